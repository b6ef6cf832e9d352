package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Freeeeeet/tutoring_scheduler/internal/model"
	"github.com/Freeeeeet/tutoring_scheduler/internal/repository/base"
)

// ChatRepository чаты и служебные сообщения
type ChatRepository struct {
	*base.Repository
}

func NewChatRepository(pool *pgxpool.Pool) *ChatRepository {
	return &ChatRepository{Repository: base.NewRepository(pool)}
}

// CreateOrGet возвращает чат пары, создавая его при необходимости
func (r *ChatRepository) CreateOrGet(ctx context.Context, userA, userB uuid.UUID) (*model.Chat, error) {
	a, b := model.OrderedPair(userA, userB)

	// DO UPDATE нужен, чтобы RETURNING вернул существующую строку
	query := `
		INSERT INTO chats (id, user_a, user_b, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_a, user_b) DO UPDATE SET user_a = EXCLUDED.user_a
		RETURNING id, user_a, user_b, created_at
	`

	var chat model.Chat
	err := r.QueryRow(ctx, query, uuid.New(), a, b, time.Now().UTC()).Scan(
		&chat.ID,
		&chat.UserA,
		&chat.UserB,
		&chat.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("create or get chat: %w", err)
	}

	return &chat, nil
}

// GetByID получает чат по ID
func (r *ChatRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Chat, error) {
	query := `SELECT id, user_a, user_b, created_at FROM chats WHERE id = $1`

	var chat model.Chat
	err := r.QueryRow(ctx, query, id).Scan(&chat.ID, &chat.UserA, &chat.UserB, &chat.CreatedAt)
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get chat by id: %w", err)
	}

	return &chat, nil
}

// AppendMessage пишет сообщение; повтор с тем же DedupeKey игнорируется
func (r *ChatRepository) AppendMessage(ctx context.Context, msg *model.ChatMessage) (bool, error) {
	query := `
		INSERT INTO chat_messages (id, chat_id, sender_id, kind, text, payload, dedupe_key, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''), $8)
		ON CONFLICT (dedupe_key) DO NOTHING
	`

	n, err := r.ExecAffected(ctx, query,
		msg.ID,
		msg.ChatID,
		msg.SenderID,
		msg.Kind,
		msg.Text,
		msg.Payload,
		msg.DedupeKey,
		msg.CreatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("append chat message: %w", err)
	}

	return n == 1, nil
}

// ListMessages сообщения чата по времени
func (r *ChatRepository) ListMessages(ctx context.Context, chatID uuid.UUID, filter model.ListFilter) ([]*model.ChatMessage, error) {
	filter = filter.Normalized()
	query := `
		SELECT id, chat_id, sender_id, kind, text, payload, COALESCE(dedupe_key, ''), created_at
		FROM chat_messages
		WHERE chat_id = $1
		ORDER BY created_at
		LIMIT $2 OFFSET $3
	`

	rows, err := r.Query(ctx, query, chatID, filter.Limit, filter.Offset)
	if err != nil {
		return nil, fmt.Errorf("list chat messages: %w", err)
	}
	defer rows.Close()

	var out []*model.ChatMessage
	for rows.Next() {
		var msg model.ChatMessage
		err := rows.Scan(
			&msg.ID,
			&msg.ChatID,
			&msg.SenderID,
			&msg.Kind,
			&msg.Text,
			&msg.Payload,
			&msg.DedupeKey,
			&msg.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan chat message: %w", err)
		}
		out = append(out, &msg)
	}

	return out, rows.Err()
}
