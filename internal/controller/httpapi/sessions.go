package httpapi

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/Freeeeeet/tutoring_scheduler/internal/errs"
	"github.com/Freeeeeet/tutoring_scheduler/internal/model"
)

// sessionView занятие с вычисленным состоянием для клиента
type sessionView struct {
	*model.Session
	DisplayState model.DisplayState `json:"display_state"`
}

func (h *Handler) viewSession(s *model.Session) sessionView {
	return sessionView{
		Session:      s,
		DisplayState: s.DisplayState(h.clock.Now(), h.policy.StartingSoonWindow),
	}
}

// sessionAction переход занятия, ответ с display_state
func (h *Handler) sessionAction(w http.ResponseWriter, r *http.Request, fn func(context.Context, uuid.UUID, model.Actor) (*model.Session, error)) {
	transition(h, w, r, func(ctx context.Context, id uuid.UUID, a model.Actor) (sessionView, error) {
		s, err := fn(ctx, id, a)
		if err != nil {
			return sessionView{}, err
		}
		return h.viewSession(s), nil
	})
}

// GET /v1/sessions/mine
func (h *Handler) ListMySessions(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	sessions, err := h.proposals.ListSessionsForUser(r.Context(), actor(r), filter)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	views := make([]sessionView, 0, len(sessions))
	for _, s := range sessions {
		views = append(views, h.viewSession(s))
	}
	writeJSON(w, http.StatusOK, views)
}

// GET /v1/sessions/{id}
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	h.sessionAction(w, r, func(ctx context.Context, id uuid.UUID, a model.Actor) (*model.Session, error) {
		s, err := h.proposals.GetSession(ctx, id)
		if err != nil {
			return nil, err
		}
		if !s.IsParty(a.ID) && !a.IsAdmin() {
			return nil, errs.Unauthorized("only session participants can view the session")
		}
		return s, nil
	})
}

// POST /v1/sessions/{id}/cancel
func (h *Handler) CancelSession(w http.ResponseWriter, r *http.Request) {
	var body reasonBody
	if err := decodeJSON(r, &body); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.sessionAction(w, r, func(ctx context.Context, id uuid.UUID, a model.Actor) (*model.Session, error) {
		return h.proposals.CancelSession(ctx, id, a, body.Reason)
	})
}

// POST /v1/sessions/{id}/complete
func (h *Handler) CompleteSession(w http.ResponseWriter, r *http.Request) {
	h.sessionAction(w, r, h.proposals.CompleteSession)
}

// POST /v1/sessions/{id}/no-show
func (h *Handler) MarkNoShow(w http.ResponseWriter, r *http.Request) {
	h.sessionAction(w, r, h.proposals.MarkNoShow)
}

// POST /v1/sessions/{id}/review
func (h *Handler) SubmitReview(w http.ResponseWriter, r *http.Request) {
	h.sessionAction(w, r, h.proposals.SubmitReview)
}

// POST /v1/sessions/{id}/join - токен входа в занятие
func (h *Handler) JoinSession(w http.ResponseWriter, r *http.Request) {
	transition(h, w, r, h.meetings.IssueSessionToken)
}
