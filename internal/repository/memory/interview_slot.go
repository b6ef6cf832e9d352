package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Freeeeeet/tutoring_scheduler/internal/errs"
	"github.com/Freeeeeet/tutoring_scheduler/internal/model"
	"github.com/Freeeeeet/tutoring_scheduler/internal/repository/base"
)

type InterviewSlotRepository struct {
	db *DB
}

func NewInterviewSlotRepository(db *DB) *InterviewSlotRepository {
	return &InterviewSlotRepository{db: db}
}

// Create проверяет пересечение под той же блокировкой, что и вставка
func (r *InterviewSlotRepository) Create(_ context.Context, slot *model.InterviewSlot) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	for _, existing := range r.db.slots {
		if existing.OwnerID == slot.OwnerID && existing.HoldsTime() && existing.Overlaps(slot.StartTime, slot.EndTime) {
			return errs.Overlap()
		}
	}
	r.db.slots[slot.ID] = *slot
	return nil
}

func (r *InterviewSlotRepository) GetByID(_ context.Context, id uuid.UUID) (*model.InterviewSlot, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	slot, ok := r.db.slots[id]
	if !ok {
		return nil, nil
	}
	return &slot, nil
}

func (r *InterviewSlotRepository) Update(_ context.Context, slot *model.InterviewSlot, expectedVersion int64) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	current, ok := r.db.slots[slot.ID]
	if !ok || current.Version != expectedVersion {
		return fmt.Errorf("update slot: %w", base.ErrVersionConflict)
	}

	slot.Version = expectedVersion + 1
	r.db.slots[slot.ID] = *slot
	return nil
}

func (r *InterviewSlotRepository) Delete(_ context.Context, id uuid.UUID, expectedVersion int64) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	current, ok := r.db.slots[id]
	if !ok || current.Version != expectedVersion || current.Status != model.SlotStatusAvailable {
		return fmt.Errorf("delete slot: %w", base.ErrVersionConflict)
	}
	delete(r.db.slots, id)
	return nil
}

func (r *InterviewSlotRepository) ListAvailable(_ context.Context, now time.Time, filter model.ListFilter) ([]*model.InterviewSlot, error) {
	return r.list(func(s *model.InterviewSlot) bool {
		return s.Status == model.SlotStatusAvailable && s.StartTime.After(now) && filter.Contains(s.StartTime)
	}, filter), nil
}

func (r *InterviewSlotRepository) ListByOwner(_ context.Context, ownerID uuid.UUID, filter model.ListFilter) ([]*model.InterviewSlot, error) {
	return r.list(func(s *model.InterviewSlot) bool {
		return s.OwnerID == ownerID && filter.Contains(s.StartTime)
	}, filter), nil
}

func (r *InterviewSlotRepository) ListByApplicant(_ context.Context, applicantID uuid.UUID, filter model.ListFilter) ([]*model.InterviewSlot, error) {
	return r.list(func(s *model.InterviewSlot) bool {
		return s.ApplicantID != nil && *s.ApplicantID == applicantID && filter.Contains(s.StartTime)
	}, filter), nil
}

func (r *InterviewSlotRepository) list(match func(*model.InterviewSlot) bool, filter model.ListFilter) []*model.InterviewSlot {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	var out []model.InterviewSlot
	for _, s := range r.db.slots {
		if match(&s) {
			out = append(out, s)
		}
	}
	out = sortedBy(out, func(s *model.InterviewSlot) time.Time { return s.StartTime }, false)
	return pointers(model.Page(out, filter))
}
