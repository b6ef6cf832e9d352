package memory

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/Freeeeeet/tutoring_scheduler/internal/model"
)

type ContactRepository struct {
	db *DB
}

func NewContactRepository(db *DB) *ContactRepository {
	return &ContactRepository{db: db}
}

func (r *ContactRepository) Upsert(_ context.Context, c *model.Contact) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	if existing, ok := r.db.contacts[c.UserID]; ok {
		c.Muted = existing.Muted
		c.CreatedAt = existing.CreatedAt
	} else {
		c.CreatedAt = c.UpdatedAt
	}
	r.db.contacts[c.UserID] = *c
	return nil
}

func (r *ContactRepository) GetByUserID(_ context.Context, userID uuid.UUID) (*model.Contact, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	c, ok := r.db.contacts[userID]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (r *ContactRepository) GetByTelegramID(_ context.Context, telegramID int64) (*model.Contact, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	for _, c := range r.db.contacts {
		if c.TelegramID != nil && *c.TelegramID == telegramID {
			return &c, nil
		}
	}
	return nil, nil
}

func (r *ContactRepository) SetMuted(_ context.Context, userID uuid.UUID, muted bool) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	c, ok := r.db.contacts[userID]
	if !ok {
		return fmt.Errorf("contact not found")
	}
	c.Muted = muted
	r.db.contacts[userID] = c
	return nil
}
