package memory

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/Freeeeeet/tutoring_scheduler/internal/model"
)

// ErrChatUnavailable имитация недоступного сервиса чатов
var ErrChatUnavailable = errors.New("chat service unavailable")

type ChatRepository struct {
	db *DB

	// Unavailable заставляет CreateOrGet возвращать ErrChatUnavailable
	Unavailable bool
}

func NewChatRepository(db *DB) *ChatRepository {
	return &ChatRepository{db: db}
}

func (r *ChatRepository) CreateOrGet(_ context.Context, userA, userB uuid.UUID) (*model.Chat, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	if r.Unavailable {
		return nil, ErrChatUnavailable
	}

	a, b := model.OrderedPair(userA, userB)
	for _, c := range r.db.chats {
		if c.UserA == a && c.UserB == b {
			return &c, nil
		}
	}

	chat := model.Chat{ID: uuid.New(), UserA: a, UserB: b, CreatedAt: time.Now().UTC()}
	r.db.chats[chat.ID] = chat
	return &chat, nil
}

func (r *ChatRepository) GetByID(_ context.Context, id uuid.UUID) (*model.Chat, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	c, ok := r.db.chats[id]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (r *ChatRepository) AppendMessage(_ context.Context, msg *model.ChatMessage) (bool, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	if msg.DedupeKey != "" {
		if _, ok := r.db.dedupe[msg.DedupeKey]; ok {
			return false, nil
		}
		r.db.dedupe[msg.DedupeKey] = struct{}{}
	}
	r.db.messages = append(r.db.messages, *msg)
	return true, nil
}

func (r *ChatRepository) ListMessages(_ context.Context, chatID uuid.UUID, filter model.ListFilter) ([]*model.ChatMessage, error) {
	r.db.mu.Lock()
	var out []model.ChatMessage
	for _, m := range r.db.messages {
		if m.ChatID == chatID {
			out = append(out, m)
		}
	}
	r.db.mu.Unlock()

	return pointers(model.Page(out, filter)), nil
}
