package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/Freeeeeet/tutoring_scheduler/internal/errs"
	"github.com/Freeeeeet/tutoring_scheduler/internal/model"
)

type proposeBody struct {
	Subject   string    `json:"subject"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
}

type counterBody struct {
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
}

// POST /v1/chats/{chatID}/proposals
func (h *Handler) Propose(w http.ResponseWriter, r *http.Request) {
	chatID, err := pathID(r, "chatID")
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	var body proposeBody
	if err := decodeJSON(r, &body); err != nil {
		h.writeError(w, r, err)
		return
	}

	p, err := h.proposals.Propose(r.Context(), chatID, actor(r), body.Subject, body.StartTime, body.EndTime)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

// GET /v1/chats/{chatID}/proposals
func (h *Handler) ListChatProposals(w http.ResponseWriter, r *http.Request) {
	chatID, err := pathID(r, "chatID")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	filter, err := parseFilter(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	items, err := h.proposals.ListForChat(r.Context(), chatID, actor(r), filter)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list(items))
}

// GET /v1/proposals/{id}
func (h *Handler) GetProposal(w http.ResponseWriter, r *http.Request) {
	transition(h, w, r, func(ctx context.Context, id uuid.UUID, a model.Actor) (*model.Proposal, error) {
		p, err := h.proposals.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if !p.IsParty(a.ID) && !a.IsAdmin() {
			return nil, errs.Unauthorized("only negotiation parties can view the proposal")
		}
		return p, nil
	})
}

// POST /v1/proposals/{id}/accept
func (h *Handler) AcceptProposal(w http.ResponseWriter, r *http.Request) {
	transition(h, w, r, h.proposals.Accept)
}

// POST /v1/proposals/{id}/reject
func (h *Handler) RejectProposal(w http.ResponseWriter, r *http.Request) {
	transition(h, w, r, h.proposals.Reject)
}

// POST /v1/proposals/{id}/counter - отвечает новым предложением, старое закрывается
func (h *Handler) CounterPropose(w http.ResponseWriter, r *http.Request) {
	var body counterBody
	if err := decodeJSON(r, &body); err != nil {
		h.writeError(w, r, err)
		return
	}

	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	p, err := h.proposals.CounterPropose(r.Context(), id, actor(r), body.StartTime, body.EndTime)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

// POST /v1/proposals/{id}/cancel
func (h *Handler) CancelProposal(w http.ResponseWriter, r *http.Request) {
	reasonTransition(h, w, r, h.proposals.CancelProposal)
}
