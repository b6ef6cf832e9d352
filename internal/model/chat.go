package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Chat переписка двух пользователей
type Chat struct {
	ID        uuid.UUID `json:"id"`
	UserA     uuid.UUID `json:"user_a"`
	UserB     uuid.UUID `json:"user_b"`
	CreatedAt time.Time `json:"created_at"`
}

// IsParticipant проверяет участие пользователя в чате
func (c *Chat) IsParticipant(userID uuid.UUID) bool {
	return c.UserA == userID || c.UserB == userID
}

// Other возвращает собеседника
func (c *Chat) Other(userID uuid.UUID) uuid.UUID {
	if c.UserA == userID {
		return c.UserB
	}
	return c.UserA
}

// OrderedPair упорядочивает пару, чтобы у двух пользователей был один чат
func OrderedPair(a, b uuid.UUID) (uuid.UUID, uuid.UUID) {
	if a.String() > b.String() {
		return b, a
	}
	return a, b
}

type MessageKind string

const (
	MessageKindSystem          MessageKind = "SYSTEM"
	MessageKindSessionProposal MessageKind = "SESSION_PROPOSAL"
)

// ChatMessage служебное сообщение, которое движок пишет в чат
type ChatMessage struct {
	ID        uuid.UUID       `json:"id"`
	ChatID    uuid.UUID       `json:"chat_id"`
	SenderID  *uuid.UUID      `json:"sender_id,omitempty"` // nil у системных
	Kind      MessageKind     `json:"kind"`
	Text      string          `json:"text"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	DedupeKey string          `json:"-"`
	CreatedAt time.Time       `json:"created_at"`
}
