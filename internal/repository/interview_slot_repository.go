package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Freeeeeet/tutoring_scheduler/internal/errs"
	"github.com/Freeeeeet/tutoring_scheduler/internal/model"
	"github.com/Freeeeeet/tutoring_scheduler/internal/repository/base"
)

const slotColumns = `id, owner_id, applicant_id, application_id, start_time, end_time, status,
	cancellation_reason, cancelled_by, admin_override, booked_at, version, created_at, updated_at`

type InterviewSlotRepository struct {
	*base.Repository
}

func NewInterviewSlotRepository(pool *pgxpool.Pool) *InterviewSlotRepository {
	return &InterviewSlotRepository{Repository: base.NewRepository(pool)}
}

func scanSlot(row pgx.Row) (*model.InterviewSlot, error) {
	var slot model.InterviewSlot
	err := row.Scan(
		&slot.ID,
		&slot.OwnerID,
		&slot.ApplicantID,
		&slot.ApplicationID,
		&slot.StartTime,
		&slot.EndTime,
		&slot.Status,
		&slot.CancellationReason,
		&slot.CancelledBy,
		&slot.AdminOverride,
		&slot.BookedAt,
		&slot.Version,
		&slot.CreatedAt,
		&slot.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &slot, nil
}

func collectSlots(rows pgx.Rows) ([]*model.InterviewSlot, error) {
	defer rows.Close()

	var slots []*model.InterviewSlot
	for rows.Next() {
		slot, err := scanSlot(rows)
		if err != nil {
			return nil, fmt.Errorf("scan slot: %w", err)
		}
		slots = append(slots, slot)
	}
	return slots, rows.Err()
}

// Create создаёт новый слот. Пересечение ловит ограничение interview_slots_no_overlap.
func (r *InterviewSlotRepository) Create(ctx context.Context, slot *model.InterviewSlot) error {
	query := `
		INSERT INTO interview_slots (id, owner_id, start_time, end_time, status, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := r.Pool().Exec(ctx, query,
		slot.ID,
		slot.OwnerID,
		slot.StartTime,
		slot.EndTime,
		slot.Status,
		slot.Version,
		slot.CreatedAt,
		slot.UpdatedAt,
	)
	if err != nil {
		if base.IsExclusionViolation(err) {
			return errs.Overlap().WithCause(err)
		}
		return fmt.Errorf("create slot: %w", err)
	}

	return nil
}

// GetByID получает слот по ID
func (r *InterviewSlotRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.InterviewSlot, error) {
	query := `SELECT ` + slotColumns + ` FROM interview_slots WHERE id = $1`

	slot, err := scanSlot(r.QueryRow(ctx, query, id))
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get slot by id: %w", err)
	}

	return slot, nil
}

// Update записывает слот при совпадении версии. Бронирование это Update с
// expectedVersion прочитанного AVAILABLE слота: из двух конкурентов проходит один.
func (r *InterviewSlotRepository) Update(ctx context.Context, slot *model.InterviewSlot, expectedVersion int64) error {
	query := `
		UPDATE interview_slots
		SET status = $3, applicant_id = $4, application_id = $5, cancellation_reason = $6,
			cancelled_by = $7, admin_override = $8, booked_at = $9, updated_at = $10, version = version + 1
		WHERE id = $1 AND version = $2
	`

	err := r.ExecCAS(ctx, query,
		slot.ID,
		expectedVersion,
		slot.Status,
		slot.ApplicantID,
		slot.ApplicationID,
		slot.CancellationReason,
		slot.CancelledBy,
		slot.AdminOverride,
		slot.BookedAt,
		slot.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update slot: %w", err)
	}

	slot.Version = expectedVersion + 1
	return nil
}

// Delete удаляет свободный слот
func (r *InterviewSlotRepository) Delete(ctx context.Context, id uuid.UUID, expectedVersion int64) error {
	query := `DELETE FROM interview_slots WHERE id = $1 AND version = $2 AND status = 'AVAILABLE'`

	if err := r.ExecCAS(ctx, query, id, expectedVersion); err != nil {
		return fmt.Errorf("delete slot: %w", err)
	}

	return nil
}

// ListAvailable свободные слоты в будущем
func (r *InterviewSlotRepository) ListAvailable(ctx context.Context, now time.Time, filter model.ListFilter) ([]*model.InterviewSlot, error) {
	filter = filter.Normalized()
	query := `
		SELECT ` + slotColumns + `
		FROM interview_slots
		WHERE status = 'AVAILABLE'
		  AND start_time > $1
		  AND ($2::timestamptz IS NULL OR start_time >= $2)
		  AND ($3::timestamptz IS NULL OR start_time < $3)
		ORDER BY start_time
		LIMIT $4 OFFSET $5
	`

	rows, err := r.Query(ctx, query, now, filter.From, filter.To, filter.Limit, filter.Offset)
	if err != nil {
		return nil, fmt.Errorf("get available slots: %w", err)
	}
	return collectSlots(rows)
}

// ListByOwner все слоты владельца
func (r *InterviewSlotRepository) ListByOwner(ctx context.Context, ownerID uuid.UUID, filter model.ListFilter) ([]*model.InterviewSlot, error) {
	filter = filter.Normalized()
	query := `
		SELECT ` + slotColumns + `
		FROM interview_slots
		WHERE owner_id = $1
		  AND ($2::timestamptz IS NULL OR start_time >= $2)
		  AND ($3::timestamptz IS NULL OR start_time < $3)
		ORDER BY start_time
		LIMIT $4 OFFSET $5
	`

	rows, err := r.Query(ctx, query, ownerID, filter.From, filter.To, filter.Limit, filter.Offset)
	if err != nil {
		return nil, fmt.Errorf("get slots by owner: %w", err)
	}
	return collectSlots(rows)
}

// ListByApplicant слоты, забронированные кандидатом
func (r *InterviewSlotRepository) ListByApplicant(ctx context.Context, applicantID uuid.UUID, filter model.ListFilter) ([]*model.InterviewSlot, error) {
	filter = filter.Normalized()
	query := `
		SELECT ` + slotColumns + `
		FROM interview_slots
		WHERE applicant_id = $1
		  AND ($2::timestamptz IS NULL OR start_time >= $2)
		  AND ($3::timestamptz IS NULL OR start_time < $3)
		ORDER BY start_time
		LIMIT $4 OFFSET $5
	`

	rows, err := r.Query(ctx, query, applicantID, filter.From, filter.To, filter.Limit, filter.Offset)
	if err != nil {
		return nil, fmt.Errorf("get slots by applicant: %w", err)
	}
	return collectSlots(rows)
}
