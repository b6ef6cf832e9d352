package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Freeeeeet/tutoring_scheduler/internal/model"
	"github.com/Freeeeeet/tutoring_scheduler/internal/repository/base"
)

type ContactRepository struct {
	pool *pgxpool.Pool
}

func NewContactRepository(pool *pgxpool.Pool) *ContactRepository {
	return &ContactRepository{pool: pool}
}

// Upsert создаёт или обновляет контакт пользователя
func (r *ContactRepository) Upsert(ctx context.Context, c *model.Contact) error {
	query := `
		INSERT INTO contacts (user_id, telegram_id, username, first_name, last_name, language_code, muted, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)
		ON CONFLICT (user_id) DO UPDATE
		SET telegram_id = EXCLUDED.telegram_id,
			username = EXCLUDED.username,
			first_name = EXCLUDED.first_name,
			last_name = EXCLUDED.last_name,
			language_code = EXCLUDED.language_code,
			updated_at = EXCLUDED.updated_at
		RETURNING muted, created_at, updated_at
	`

	err := r.pool.QueryRow(
		ctx, query,
		c.UserID,
		c.TelegramID,
		c.Username,
		c.FirstName,
		c.LastName,
		c.LanguageCode,
		c.Muted,
		c.UpdatedAt,
	).Scan(&c.Muted, &c.CreatedAt, &c.UpdatedAt)

	if err != nil {
		return fmt.Errorf("upsert contact: %w", err)
	}

	return nil
}

// GetByUserID получает контакт пользователя
func (r *ContactRepository) GetByUserID(ctx context.Context, userID uuid.UUID) (*model.Contact, error) {
	query := `
		SELECT user_id, telegram_id, username, first_name, last_name, language_code, muted, created_at, updated_at
		FROM contacts
		WHERE user_id = $1
	`

	var c model.Contact
	err := r.pool.QueryRow(ctx, query, userID).Scan(
		&c.UserID,
		&c.TelegramID,
		&c.Username,
		&c.FirstName,
		&c.LastName,
		&c.LanguageCode,
		&c.Muted,
		&c.CreatedAt,
		&c.UpdatedAt,
	)

	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get contact: %w", err)
	}

	return &c, nil
}

// GetByTelegramID находит контакт по Telegram ID
func (r *ContactRepository) GetByTelegramID(ctx context.Context, telegramID int64) (*model.Contact, error) {
	query := `
		SELECT user_id, telegram_id, username, first_name, last_name, language_code, muted, created_at, updated_at
		FROM contacts
		WHERE telegram_id = $1
	`

	var c model.Contact
	err := r.pool.QueryRow(ctx, query, telegramID).Scan(
		&c.UserID,
		&c.TelegramID,
		&c.Username,
		&c.FirstName,
		&c.LastName,
		&c.LanguageCode,
		&c.Muted,
		&c.CreatedAt,
		&c.UpdatedAt,
	)

	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get contact by telegram id: %w", err)
	}

	return &c, nil
}

// SetMuted включает или выключает внешние уведомления
func (r *ContactRepository) SetMuted(ctx context.Context, userID uuid.UUID, muted bool) error {
	query := `UPDATE contacts SET muted = $2, updated_at = NOW() WHERE user_id = $1`

	result, err := r.pool.Exec(ctx, query, userID, muted)
	if err != nil {
		return fmt.Errorf("set contact muted: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("contact not found")
	}

	return nil
}
