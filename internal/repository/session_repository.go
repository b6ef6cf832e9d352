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

const sessionColumns = `id, proposal_id, chat_id, student_id, tutor_id, subject, start_time, end_time,
	status, review_status, cancelled_by, cancellation_reason, version, created_at, updated_at`

type SessionRepository struct {
	*base.Repository
}

func NewSessionRepository(pool *pgxpool.Pool) *SessionRepository {
	return &SessionRepository{Repository: base.NewRepository(pool)}
}

func scanSession(row pgx.Row) (*model.Session, error) {
	var s model.Session
	err := row.Scan(
		&s.ID,
		&s.ProposalID,
		&s.ChatID,
		&s.StudentID,
		&s.TutorID,
		&s.Subject,
		&s.StartTime,
		&s.EndTime,
		&s.Status,
		&s.ReviewStatus,
		&s.CancelledBy,
		&s.CancellationReason,
		&s.Version,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func collectSessions(rows pgx.Rows) ([]*model.Session, error) {
	defer rows.Close()

	var out []*model.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Create вставляет занятие; повтор с тем же ID ничего не меняет
func (r *SessionRepository) Create(ctx context.Context, s *model.Session) (bool, error) {
	query := `
		INSERT INTO sessions (id, proposal_id, chat_id, student_id, tutor_id, subject, start_time, end_time,
			status, review_status, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (id) DO NOTHING
	`

	n, err := r.ExecAffected(ctx, query,
		s.ID,
		s.ProposalID,
		s.ChatID,
		s.StudentID,
		s.TutorID,
		s.Subject,
		s.StartTime,
		s.EndTime,
		s.Status,
		s.ReviewStatus,
		s.Version,
		s.CreatedAt,
		s.UpdatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("create session: %w", err)
	}

	return n == 1, nil
}

// GetByID получает занятие по ID
func (r *SessionRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE id = $1`

	s, err := scanSession(r.QueryRow(ctx, query, id))
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get session by id: %w", err)
	}

	return s, nil
}

// Update записывает занятие при совпадении версии
func (r *SessionRepository) Update(ctx context.Context, s *model.Session, expectedVersion int64) error {
	query := `
		UPDATE sessions
		SET status = $3, review_status = $4, cancelled_by = $5, cancellation_reason = $6,
			updated_at = $7, version = version + 1
		WHERE id = $1 AND version = $2
	`

	err := r.ExecCAS(ctx, query,
		s.ID,
		expectedVersion,
		s.Status,
		s.ReviewStatus,
		s.CancelledBy,
		s.CancellationReason,
		s.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}

	s.Version = expectedVersion + 1
	return nil
}

// ListByUser занятия, где пользователь студент или репетитор
func (r *SessionRepository) ListByUser(ctx context.Context, userID uuid.UUID, filter model.ListFilter) ([]*model.Session, error) {
	filter = filter.Normalized()
	query := `
		SELECT ` + sessionColumns + `
		FROM sessions
		WHERE (student_id = $1 OR tutor_id = $1)
		  AND ($2::timestamptz IS NULL OR start_time >= $2)
		  AND ($3::timestamptz IS NULL OR start_time < $3)
		ORDER BY start_time
		LIMIT $4 OFFSET $5
	`

	rows, err := r.Query(ctx, query, userID, filter.From, filter.To, filter.Limit, filter.Offset)
	if err != nil {
		return nil, fmt.Errorf("list sessions by user: %w", err)
	}
	return collectSessions(rows)
}

// ListEnded активные занятия, время которых уже вышло
func (r *SessionRepository) ListEnded(ctx context.Context, now time.Time, limit int) ([]*model.Session, error) {
	query := `
		SELECT ` + sessionColumns + `
		FROM sessions
		WHERE status IN ('SCHEDULED', 'IN_PROGRESS') AND end_time < $1
		ORDER BY end_time
		LIMIT $2
	`

	rows, err := r.Query(ctx, query, now, limit)
	if err != nil {
		return nil, fmt.Errorf("list ended sessions: %w", err)
	}
	return collectSessions(rows)
}
