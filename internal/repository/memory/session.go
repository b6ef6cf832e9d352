package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Freeeeeet/tutoring_scheduler/internal/model"
	"github.com/Freeeeeet/tutoring_scheduler/internal/repository/base"
)

type SessionRepository struct {
	db *DB

	// FailCreate заставляет Create падать, для тестов восстановления
	FailCreate error
}

func NewSessionRepository(db *DB) *SessionRepository {
	return &SessionRepository{db: db}
}

func (r *SessionRepository) Create(_ context.Context, s *model.Session) (bool, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	if r.FailCreate != nil {
		return false, r.FailCreate
	}
	if _, ok := r.db.sessions[s.ID]; ok {
		return false, nil
	}
	r.db.sessions[s.ID] = *s
	return true, nil
}

func (r *SessionRepository) GetByID(_ context.Context, id uuid.UUID) (*model.Session, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	s, ok := r.db.sessions[id]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

func (r *SessionRepository) Update(_ context.Context, s *model.Session, expectedVersion int64) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	current, ok := r.db.sessions[s.ID]
	if !ok || current.Version != expectedVersion {
		return fmt.Errorf("update session: %w", base.ErrVersionConflict)
	}

	s.Version = expectedVersion + 1
	r.db.sessions[s.ID] = *s
	return nil
}

func (r *SessionRepository) ListByUser(_ context.Context, userID uuid.UUID, filter model.ListFilter) ([]*model.Session, error) {
	out := r.collect(func(s *model.Session) bool {
		return s.IsParty(userID) && filter.Contains(s.StartTime)
	}, func(s *model.Session) time.Time { return s.StartTime })
	return pointers(model.Page(out, filter)), nil
}

func (r *SessionRepository) ListEnded(_ context.Context, now time.Time, limit int) ([]*model.Session, error) {
	out := r.collect(func(s *model.Session) bool {
		return s.IsActive() && s.EndTime.Before(now)
	}, func(s *model.Session) time.Time { return s.EndTime })
	if len(out) > limit {
		out = out[:limit]
	}
	return pointers(out), nil
}

func (r *SessionRepository) collect(match func(*model.Session) bool, key func(*model.Session) time.Time) []model.Session {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	var out []model.Session
	for _, s := range r.db.sessions {
		if match(&s) {
			out = append(out, s)
		}
	}
	return sortedBy(out, key, false)
}
