package memory

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/Freeeeeet/tutoring_scheduler/internal/model"
)

type RecurringSlotRepository struct {
	db *DB
}

func NewRecurringSlotRepository(db *DB) *RecurringSlotRepository {
	return &RecurringSlotRepository{db: db}
}

func (r *RecurringSlotRepository) Create(_ context.Context, tpl *model.RecurringSlotTemplate) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	for _, t := range r.db.templates {
		if t.OwnerID == tpl.OwnerID && t.Weekday == tpl.Weekday && t.StartHour == tpl.StartHour && t.StartMinute == tpl.StartMinute {
			return fmt.Errorf("create slot template: duplicate")
		}
	}
	r.db.templates[tpl.ID] = *tpl
	return nil
}

func (r *RecurringSlotRepository) GetByID(_ context.Context, id uuid.UUID) (*model.RecurringSlotTemplate, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	t, ok := r.db.templates[id]
	if !ok {
		return nil, nil
	}
	return &t, nil
}

func (r *RecurringSlotRepository) ListByOwner(_ context.Context, ownerID uuid.UUID) ([]*model.RecurringSlotTemplate, error) {
	return r.list(func(t *model.RecurringSlotTemplate) bool { return t.OwnerID == ownerID }), nil
}

func (r *RecurringSlotRepository) ListActive(_ context.Context) ([]*model.RecurringSlotTemplate, error) {
	return r.list(func(t *model.RecurringSlotTemplate) bool { return t.IsActive }), nil
}

func (r *RecurringSlotRepository) Deactivate(_ context.Context, id uuid.UUID) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	if t, ok := r.db.templates[id]; ok {
		t.IsActive = false
		r.db.templates[id] = t
	}
	return nil
}

func (r *RecurringSlotRepository) Delete(_ context.Context, id uuid.UUID) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	delete(r.db.templates, id)
	return nil
}

func (r *RecurringSlotRepository) list(match func(*model.RecurringSlotTemplate) bool) []*model.RecurringSlotTemplate {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	var out []model.RecurringSlotTemplate
	for _, t := range r.db.templates {
		if match(&t) {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Weekday != b.Weekday {
			return a.Weekday < b.Weekday
		}
		return a.StartHour*60+a.StartMinute < b.StartHour*60+b.StartMinute
	})
	return pointers(out)
}
