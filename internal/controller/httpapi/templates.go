package httpapi

import (
	"net/http"
	"time"

	"github.com/Freeeeeet/tutoring_scheduler/internal/model"
)

const defaultWeeksAhead = 4

type createTemplateBody struct {
	Weekday     int `json:"weekday"`
	StartHour   int `json:"start_hour"`
	StartMinute int `json:"start_minute"`
	WeeksAhead  int `json:"weeks_ahead"`
}

type createTemplateResponse struct {
	Template       *model.RecurringSlotTemplate `json:"template"`
	SlotsGenerated int                          `json:"slots_generated"`
}

// POST /v1/slot-templates
func (h *Handler) CreateTemplate(w http.ResponseWriter, r *http.Request) {
	var body createTemplateBody
	if err := decodeJSON(r, &body); err != nil {
		h.writeError(w, r, err)
		return
	}
	if body.WeeksAhead <= 0 {
		body.WeeksAhead = defaultWeeksAhead
	}

	tpl, count, err := h.templates.Create(r.Context(), actor(r), time.Weekday(body.Weekday), body.StartHour, body.StartMinute, body.WeeksAhead)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, createTemplateResponse{Template: tpl, SlotsGenerated: count})
}

// GET /v1/slot-templates
func (h *Handler) ListTemplates(w http.ResponseWriter, r *http.Request) {
	items, err := h.templates.List(r.Context(), actor(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list(items))
}

// POST /v1/slot-templates/{id}/deactivate
func (h *Handler) DeactivateTemplate(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.templates.Deactivate(r.Context(), actor(r), id); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DELETE /v1/slot-templates/{id}
func (h *Handler) DeleteTemplate(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.templates.Delete(r.Context(), actor(r), id); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
