package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Freeeeeet/tutoring_scheduler/internal/model"
	"github.com/Freeeeeet/tutoring_scheduler/internal/repository/base"
)

const outboxColumns = `id, payload, status, attempt_count, next_attempt_at, lease_owner, lease_expires_at,
	last_error, created_at, updated_at`

// OutboxRepository очередь событий на доставку
type OutboxRepository struct {
	*base.Repository
}

func NewOutboxRepository(pool *pgxpool.Pool) *OutboxRepository {
	return &OutboxRepository{Repository: base.NewRepository(pool)}
}

func scanOutbox(row pgx.Row) (*model.OutboxEvent, error) {
	var (
		ev      model.OutboxEvent
		payload []byte
	)
	err := row.Scan(
		&ev.ID,
		&payload,
		&ev.Status,
		&ev.AttemptCount,
		&ev.NextAttemptAt,
		&ev.LeaseOwner,
		&ev.LeaseExpiresAt,
		&ev.LastError,
		&ev.CreatedAt,
		&ev.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(payload, &ev.Event); err != nil {
		return nil, fmt.Errorf("decode outbox payload: %w", err)
	}
	return &ev, nil
}

// Enqueue кладёт событие в очередь; повтор с тем же ID игнорируется
func (r *OutboxRepository) Enqueue(ctx context.Context, event model.Event, now time.Time) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode outbox payload: %w", err)
	}

	query := `
		INSERT INTO outbox_events (id, event_type, payload, status, next_attempt_at, created_at, updated_at)
		VALUES ($1, $2, $3, 'PENDING', $4, $4, $4)
		ON CONFLICT (id) DO NOTHING
	`

	if _, err := r.Pool().Exec(ctx, query, event.ID, event.Type, payload, now); err != nil {
		return fmt.Errorf("enqueue outbox event: %w", err)
	}

	return nil
}

// Lease забирает готовые к доставке события. Просроченная аренда считается свободной.
func (r *OutboxRepository) Lease(ctx context.Context, owner string, limit int, now time.Time, leaseTTL time.Duration) ([]*model.OutboxEvent, error) {
	query := `
		UPDATE outbox_events
		SET status = 'LEASED', lease_owner = $1, lease_expires_at = $2, updated_at = $3
		WHERE id IN (
			SELECT id FROM outbox_events
			WHERE (status = 'PENDING' AND next_attempt_at <= $3)
			   OR (status = 'LEASED' AND lease_expires_at <= $3)
			ORDER BY next_attempt_at, created_at
			LIMIT $4
			FOR UPDATE SKIP LOCKED
		)
		RETURNING ` + outboxColumns

	rows, err := r.Query(ctx, query, owner, now.Add(leaseTTL), now, limit)
	if err != nil {
		return nil, fmt.Errorf("lease outbox events: %w", err)
	}
	defer rows.Close()

	var out []*model.OutboxEvent
	for rows.Next() {
		ev, err := scanOutbox(rows)
		if err != nil {
			return nil, fmt.Errorf("scan outbox event: %w", err)
		}
		out = append(out, ev)
	}

	return out, rows.Err()
}

// MarkDone событие доставлено всем приёмникам
func (r *OutboxRepository) MarkDone(ctx context.Context, id uuid.UUID, owner string, now time.Time) error {
	query := `
		UPDATE outbox_events
		SET status = 'DONE', lease_owner = '', lease_expires_at = NULL, last_error = '',
			processed_at = $3, updated_at = $3
		WHERE id = $1 AND status = 'LEASED' AND lease_owner = $2
	`

	if err := r.ExecCAS(ctx, query, id, owner, now); err != nil {
		return fmt.Errorf("mark outbox done: %w", err)
	}
	return nil
}

// MarkRetry возвращает событие в очередь с отложенной попыткой
func (r *OutboxRepository) MarkRetry(ctx context.Context, id uuid.UUID, owner string, nextAttemptAt time.Time, lastError string, now time.Time) error {
	query := `
		UPDATE outbox_events
		SET status = 'PENDING', attempt_count = attempt_count + 1, next_attempt_at = $3,
			lease_owner = '', lease_expires_at = NULL, last_error = $4, updated_at = $5
		WHERE id = $1 AND status = 'LEASED' AND lease_owner = $2
	`

	if err := r.ExecCAS(ctx, query, id, owner, nextAttemptAt, lastError, now); err != nil {
		return fmt.Errorf("mark outbox retry: %w", err)
	}
	return nil
}

// MarkFailed событие больше не доставляется
func (r *OutboxRepository) MarkFailed(ctx context.Context, id uuid.UUID, owner string, lastError string, now time.Time) error {
	query := `
		UPDATE outbox_events
		SET status = 'FAILED', attempt_count = attempt_count + 1, lease_owner = '', lease_expires_at = NULL,
			last_error = $3, processed_at = $4, updated_at = $4
		WHERE id = $1 AND status = 'LEASED' AND lease_owner = $2
	`

	if err := r.ExecCAS(ctx, query, id, owner, lastError, now); err != nil {
		return fmt.Errorf("mark outbox failed: %w", err)
	}
	return nil
}
