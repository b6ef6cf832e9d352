package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/Freeeeeet/tutoring_scheduler/internal/errs"
	"github.com/Freeeeeet/tutoring_scheduler/internal/model"
)

type createSlotBody struct {
	StartTime time.Time `json:"start_time"`
}

type bookSlotBody struct {
	ApplicationID *uuid.UUID `json:"application_id"`
}

// POST /v1/slots
func (h *Handler) CreateSlot(w http.ResponseWriter, r *http.Request) {
	var body createSlotBody
	if err := decodeJSON(r, &body); err != nil {
		h.writeError(w, r, err)
		return
	}
	if body.StartTime.IsZero() {
		h.writeError(w, r, errs.MissingRequired("start_time"))
		return
	}

	slot, err := h.slots.CreateSlot(r.Context(), actor(r), body.StartTime)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, slot)
}

// GET /v1/slots - свободные будущие слоты
func (h *Handler) ListAvailableSlots(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	slots, err := h.slots.ListAvailable(r.Context(), filter)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list(slots))
}

// GET /v1/slots/mine
func (h *Handler) ListMySlots(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	slots, err := h.slots.ListMine(r.Context(), actor(r), filter)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list(slots))
}

// GET /v1/slots/{id}
func (h *Handler) GetSlot(w http.ResponseWriter, r *http.Request) {
	transition(h, w, r, func(ctx context.Context, id uuid.UUID, _ model.Actor) (*model.InterviewSlot, error) {
		return h.slots.Get(ctx, id)
	})
}

// POST /v1/slots/{id}/book
func (h *Handler) BookSlot(w http.ResponseWriter, r *http.Request) {
	var body bookSlotBody
	if err := decodeJSON(r, &body); err != nil {
		h.writeError(w, r, err)
		return
	}
	transition(h, w, r, func(ctx context.Context, id uuid.UUID, a model.Actor) (*model.InterviewSlot, error) {
		return h.slots.BookSlot(ctx, id, a, body.ApplicationID)
	})
}

// POST /v1/slots/{id}/complete
func (h *Handler) CompleteSlot(w http.ResponseWriter, r *http.Request) {
	transition(h, w, r, h.slots.CompleteSlot)
}

// POST /v1/slots/{id}/cancel
func (h *Handler) CancelSlot(w http.ResponseWriter, r *http.Request) {
	reasonTransition(h, w, r, h.slots.CancelSlot)
}

// POST /v1/slots/{id}/join - токен входа в интервью
func (h *Handler) JoinInterview(w http.ResponseWriter, r *http.Request) {
	transition(h, w, r, h.meetings.IssueInterviewToken)
}

// DELETE /v1/slots/{id}
func (h *Handler) DeleteSlot(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	if err := h.slots.DeleteSlot(r.Context(), id, actor(r)); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
