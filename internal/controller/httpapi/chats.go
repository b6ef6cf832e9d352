package httpapi

import (
	"net/http"

	"github.com/Freeeeeet/tutoring_scheduler/internal/errs"
)

// GET /v1/chats/{chatID}/messages - служебные сообщения движка в чате
func (h *Handler) ListChatMessages(w http.ResponseWriter, r *http.Request) {
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

	chat, err := h.chats.GetByID(r.Context(), chatID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if chat == nil {
		h.writeError(w, r, errs.NotFound("chat"))
		return
	}
	a := actor(r)
	if !chat.IsParticipant(a.ID) && !a.IsAdmin() {
		h.writeError(w, r, errs.Unauthorized("only chat participants can read messages"))
		return
	}

	messages, err := h.chats.ListMessages(r.Context(), chatID, filter)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list(messages))
}
