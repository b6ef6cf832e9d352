package httpapi

import (
	"net/http"

	"github.com/Freeeeeet/tutoring_scheduler/internal/model"
)

type createRequestBody struct {
	Kind model.RequestKind `json:"kind"`
	model.RequestPayload
}

// POST /v1/requests
func (h *Handler) CreateRequest(w http.ResponseWriter, r *http.Request) {
	var body createRequestBody
	if err := decodeJSON(r, &body); err != nil {
		h.writeError(w, r, err)
		return
	}

	req, err := h.requests.Create(r.Context(), actor(r), body.Kind, body.RequestPayload)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, req)
}

// GET /v1/requests/mine
func (h *Handler) ListMyRequests(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	items, err := h.requests.ListMine(r.Context(), actor(r), filter)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list(items))
}

// GET /v1/requests/open?kind=TRIAL
func (h *Handler) ListOpenRequests(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	kind := model.RequestKind(r.URL.Query().Get("kind"))
	items, err := h.requests.ListOpen(r.Context(), kind, filter)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list(items))
}

// GET /v1/requests/{id}
func (h *Handler) GetRequest(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	req, err := h.requests.Get(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

// POST /v1/requests/{id}/accept
func (h *Handler) AcceptRequest(w http.ResponseWriter, r *http.Request) {
	h.requestTransition(w, r, h.requests.Accept)
}

// POST /v1/requests/{id}/cancel
func (h *Handler) CancelRequest(w http.ResponseWriter, r *http.Request) {
	h.requestTransition(w, r, h.requests.Cancel)
}

// POST /v1/requests/{id}/extend
func (h *Handler) ExtendRequest(w http.ResponseWriter, r *http.Request) {
	h.requestTransition(w, r, h.requests.Extend)
}
