package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Freeeeeet/tutoring_scheduler/internal/model"
	"github.com/Freeeeeet/tutoring_scheduler/internal/repository/base"
)

type OutboxRepository struct {
	db *DB
}

func NewOutboxRepository(db *DB) *OutboxRepository {
	return &OutboxRepository{db: db}
}

func (r *OutboxRepository) Enqueue(_ context.Context, event model.Event, now time.Time) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	if _, ok := r.db.outbox[event.ID]; ok {
		return nil
	}
	r.db.outbox[event.ID] = model.OutboxEvent{
		ID:            event.ID,
		Event:         event,
		Status:        model.OutboxStatusPending,
		NextAttemptAt: now,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	return nil
}

func (r *OutboxRepository) Lease(_ context.Context, owner string, limit int, now time.Time, leaseTTL time.Duration) ([]*model.OutboxEvent, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	var due []model.OutboxEvent
	for _, ev := range r.db.outbox {
		pending := ev.Status == model.OutboxStatusPending && !ev.NextAttemptAt.After(now)
		staleLease := ev.Status == model.OutboxStatusLeased && ev.LeaseExpiresAt != nil && !ev.LeaseExpiresAt.After(now)
		if pending || staleLease {
			due = append(due, ev)
		}
	}
	due = sortedBy(due, func(ev *model.OutboxEvent) time.Time { return ev.NextAttemptAt }, false)
	if len(due) > limit {
		due = due[:limit]
	}

	expires := now.Add(leaseTTL)
	for i := range due {
		due[i].Status = model.OutboxStatusLeased
		due[i].LeaseOwner = owner
		due[i].LeaseExpiresAt = &expires
		due[i].UpdatedAt = now
		r.db.outbox[due[i].ID] = due[i]
	}
	return pointers(due), nil
}

func (r *OutboxRepository) MarkDone(_ context.Context, id uuid.UUID, owner string, now time.Time) error {
	return r.release(id, owner, func(ev *model.OutboxEvent) {
		ev.Status = model.OutboxStatusDone
		ev.LastError = ""
		ev.UpdatedAt = now
	})
}

func (r *OutboxRepository) MarkRetry(_ context.Context, id uuid.UUID, owner string, nextAttemptAt time.Time, lastError string, now time.Time) error {
	return r.release(id, owner, func(ev *model.OutboxEvent) {
		ev.Status = model.OutboxStatusPending
		ev.AttemptCount++
		ev.NextAttemptAt = nextAttemptAt
		ev.LastError = lastError
		ev.UpdatedAt = now
	})
}

func (r *OutboxRepository) MarkFailed(_ context.Context, id uuid.UUID, owner string, lastError string, now time.Time) error {
	return r.release(id, owner, func(ev *model.OutboxEvent) {
		ev.Status = model.OutboxStatusFailed
		ev.AttemptCount++
		ev.LastError = lastError
		ev.UpdatedAt = now
	})
}

// Get для тестов и диагностики
func (r *OutboxRepository) Get(id uuid.UUID) (model.OutboxEvent, bool) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	ev, ok := r.db.outbox[id]
	return ev, ok
}

// Events снимок всей очереди
func (r *OutboxRepository) Events() []model.OutboxEvent {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	out := make([]model.OutboxEvent, 0, len(r.db.outbox))
	for _, ev := range r.db.outbox {
		out = append(out, ev)
	}
	return sortedBy(out, func(ev *model.OutboxEvent) time.Time { return ev.CreatedAt }, false)
}

func (r *OutboxRepository) release(id uuid.UUID, owner string, apply func(*model.OutboxEvent)) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	ev, ok := r.db.outbox[id]
	if !ok || ev.Status != model.OutboxStatusLeased || ev.LeaseOwner != owner {
		return fmt.Errorf("release outbox event: %w", base.ErrVersionConflict)
	}
	apply(&ev)
	ev.LeaseOwner = ""
	ev.LeaseExpiresAt = nil
	r.db.outbox[id] = ev
	return nil
}
