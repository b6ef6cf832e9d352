package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Freeeeeet/tutoring_scheduler/internal/model"
	"github.com/Freeeeeet/tutoring_scheduler/internal/repository/base"
)

const requestColumns = `id, requester_id, kind, subject, grade_level, school_type, description, learning_goals,
	status, expires_at, extension_count, accepted_by_user_id, accepted_at, chat_id, cancelled_at,
	version, created_at, updated_at`

type RequestRepository struct {
	*base.Repository
}

func NewRequestRepository(pool *pgxpool.Pool) *RequestRepository {
	return &RequestRepository{Repository: base.NewRepository(pool)}
}

func scanRequest(row pgx.Row) (*model.Request, error) {
	var req model.Request
	err := row.Scan(
		&req.ID,
		&req.RequesterID,
		&req.Kind,
		&req.Subject,
		&req.GradeLevel,
		&req.SchoolType,
		&req.Description,
		&req.LearningGoals,
		&req.Status,
		&req.ExpiresAt,
		&req.ExtensionCount,
		&req.AcceptedByUserID,
		&req.AcceptedAt,
		&req.ChatID,
		&req.CancelledAt,
		&req.Version,
		&req.CreatedAt,
		&req.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &req, nil
}

func collectRequests(rows pgx.Rows) ([]*model.Request, error) {
	defer rows.Close()

	var out []*model.Request
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("scan request: %w", err)
		}
		out = append(out, req)
	}
	return out, rows.Err()
}

// Create сохраняет новый запрос
func (r *RequestRepository) Create(ctx context.Context, req *model.Request) error {
	query := `
		INSERT INTO requests (id, requester_id, kind, subject, grade_level, school_type, description,
			learning_goals, status, expires_at, extension_count, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`

	_, err := r.Pool().Exec(ctx, query,
		req.ID,
		req.RequesterID,
		req.Kind,
		req.Subject,
		req.GradeLevel,
		req.SchoolType,
		req.Description,
		req.LearningGoals,
		req.Status,
		req.ExpiresAt,
		req.ExtensionCount,
		req.Version,
		req.CreatedAt,
		req.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	return nil
}

// GetByID получает запрос по ID
func (r *RequestRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Request, error) {
	query := `SELECT ` + requestColumns + ` FROM requests WHERE id = $1`

	req, err := scanRequest(r.QueryRow(ctx, query, id))
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get request by id: %w", err)
	}

	return req, nil
}

// Update записывает изменённый запрос при совпадении версии
func (r *RequestRepository) Update(ctx context.Context, req *model.Request, expectedVersion int64) error {
	query := `
		UPDATE requests
		SET status = $3, expires_at = $4, extension_count = $5, accepted_by_user_id = $6,
			accepted_at = $7, chat_id = $8, cancelled_at = $9, updated_at = $10, version = version + 1
		WHERE id = $1 AND version = $2
	`

	err := r.ExecCAS(ctx, query,
		req.ID,
		expectedVersion,
		req.Status,
		req.ExpiresAt,
		req.ExtensionCount,
		req.AcceptedByUserID,
		req.AcceptedAt,
		req.ChatID,
		req.CancelledAt,
		req.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update request: %w", err)
	}

	req.Version = expectedVersion + 1
	return nil
}

// ListByRequester запросы студента, новые первыми
func (r *RequestRepository) ListByRequester(ctx context.Context, requesterID uuid.UUID, filter model.ListFilter) ([]*model.Request, error) {
	filter = filter.Normalized()
	query := `
		SELECT ` + requestColumns + `
		FROM requests
		WHERE requester_id = $1
		  AND ($2::timestamptz IS NULL OR created_at >= $2)
		  AND ($3::timestamptz IS NULL OR created_at < $3)
		ORDER BY created_at DESC
		LIMIT $4 OFFSET $5
	`

	rows, err := r.Query(ctx, query, requesterID, filter.From, filter.To, filter.Limit, filter.Offset)
	if err != nil {
		return nil, fmt.Errorf("list requests by requester: %w", err)
	}
	return collectRequests(rows)
}

// ListOpen ожидающие и ещё не истёкшие запросы; пустой kind означает любой вид
func (r *RequestRepository) ListOpen(ctx context.Context, kind model.RequestKind, now time.Time, filter model.ListFilter) ([]*model.Request, error) {
	filter = filter.Normalized()
	query := `
		SELECT ` + requestColumns + `
		FROM requests
		WHERE status = 'PENDING'
		  AND expires_at > $1
		  AND ($2::text = '' OR kind = $2::text)
		ORDER BY created_at ASC
		LIMIT $3 OFFSET $4
	`

	rows, err := r.Query(ctx, query, now, string(kind), filter.Limit, filter.Offset)
	if err != nil {
		return nil, fmt.Errorf("list open requests: %w", err)
	}
	return collectRequests(rows)
}

// ListExpirable ожидающие запросы с наступившим дедлайном
func (r *RequestRepository) ListExpirable(ctx context.Context, now time.Time, limit int) ([]*model.Request, error) {
	query := `
		SELECT ` + requestColumns + `
		FROM requests
		WHERE status = 'PENDING' AND expires_at <= $1
		ORDER BY expires_at
		LIMIT $2
	`

	rows, err := r.Query(ctx, query, now, limit)
	if err != nil {
		return nil, fmt.Errorf("list expirable requests: %w", err)
	}
	return collectRequests(rows)
}
