package httpapi

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/Freeeeeet/tutoring_scheduler/internal/model"
)

// transition общий обработчик переходов без тела: разбор id, вызов сервиса, ответ сущностью
func transition[T any](h *Handler, w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, id uuid.UUID, actor model.Actor) (T, error)) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	result, err := fn(r.Context(), id, actor(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) requestTransition(w http.ResponseWriter, r *http.Request, fn func(context.Context, uuid.UUID, model.Actor) (*model.Request, error)) {
	transition(h, w, r, fn)
}

// reasonBody тело отмены
type reasonBody struct {
	Reason string `json:"reason"`
}

// reasonTransition переход с причиной в теле
func reasonTransition[T any](h *Handler, w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, id uuid.UUID, actor model.Actor, reason string) (T, error)) {
	var body reasonBody
	if err := decodeJSON(r, &body); err != nil {
		h.writeError(w, r, err)
		return
	}
	transition(h, w, r, func(ctx context.Context, id uuid.UUID, a model.Actor) (T, error) {
		return fn(ctx, id, a, body.Reason)
	})
}
