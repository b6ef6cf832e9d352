package httpapi

import (
	"net/http"

	"github.com/Freeeeeet/tutoring_scheduler/internal/service"
)

type mutedBody struct {
	Muted bool `json:"muted"`
}

// PUT /v1/contacts/me
func (h *Handler) RegisterContact(w http.ResponseWriter, r *http.Request) {
	var body service.ContactInput
	if err := decodeJSON(r, &body); err != nil {
		h.writeError(w, r, err)
		return
	}

	contact, err := h.contacts.Register(r.Context(), actor(r), body)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, contact)
}

// GET /v1/contacts/me
func (h *Handler) GetMyContact(w http.ResponseWriter, r *http.Request) {
	contact, err := h.contacts.Get(r.Context(), actor(r).ID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, contact)
}

// PUT /v1/contacts/me/muted
func (h *Handler) SetMuted(w http.ResponseWriter, r *http.Request) {
	var body mutedBody
	if err := decodeJSON(r, &body); err != nil {
		h.writeError(w, r, err)
		return
	}

	if err := h.contacts.SetMuted(r.Context(), actor(r), body.Muted); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
