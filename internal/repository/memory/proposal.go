package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Freeeeeet/tutoring_scheduler/internal/model"
	"github.com/Freeeeeet/tutoring_scheduler/internal/repository/base"
)

type ProposalRepository struct {
	db *DB
}

func NewProposalRepository(db *DB) *ProposalRepository {
	return &ProposalRepository{db: db}
}

func (r *ProposalRepository) Create(_ context.Context, p *model.Proposal) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	if _, ok := r.db.proposals[p.ID]; ok {
		return fmt.Errorf("create proposal: duplicate id %s", p.ID)
	}
	r.db.proposals[p.ID] = *p
	return nil
}

func (r *ProposalRepository) GetByID(_ context.Context, id uuid.UUID) (*model.Proposal, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	p, ok := r.db.proposals[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (r *ProposalRepository) Update(_ context.Context, p *model.Proposal, expectedVersion int64) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	return r.updateLocked(p, expectedVersion)
}

func (r *ProposalRepository) updateLocked(p *model.Proposal, expectedVersion int64) error {
	current, ok := r.db.proposals[p.ID]
	if !ok || current.Version != expectedVersion {
		return fmt.Errorf("update proposal: %w", base.ErrVersionConflict)
	}

	p.Version = expectedVersion + 1
	r.db.proposals[p.ID] = *p
	return nil
}

func (r *ProposalRepository) CounterPropose(_ context.Context, original *model.Proposal, expectedVersion int64, counter *model.Proposal) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	if _, ok := r.db.proposals[counter.ID]; ok {
		return fmt.Errorf("counter propose: duplicate id %s", counter.ID)
	}
	if err := r.updateLocked(original, expectedVersion); err != nil {
		return err
	}
	r.db.proposals[counter.ID] = *counter
	return nil
}

func (r *ProposalRepository) ListByChat(_ context.Context, chatID uuid.UUID, filter model.ListFilter) ([]*model.Proposal, error) {
	out := r.collect(func(p *model.Proposal) bool { return p.ChatID == chatID }, func(p *model.Proposal) time.Time { return p.CreatedAt })
	return pointers(model.Page(out, filter)), nil
}

func (r *ProposalRepository) ListExpirable(_ context.Context, now time.Time, limit int) ([]*model.Proposal, error) {
	out := r.collect(func(p *model.Proposal) bool {
		return p.Status == model.ProposalStatusProposed && !now.Before(p.ExpiresAt)
	}, func(p *model.Proposal) time.Time { return p.ExpiresAt })
	if len(out) > limit {
		out = out[:limit]
	}
	return pointers(out), nil
}

func (r *ProposalRepository) ListAcceptedWithoutSession(_ context.Context, limit int) ([]*model.Proposal, error) {
	r.db.mu.Lock()
	var out []model.Proposal
	for _, p := range r.db.proposals {
		if p.Status != model.ProposalStatusAccepted || p.SessionID == nil {
			continue
		}
		if _, ok := r.db.sessions[*p.SessionID]; !ok {
			out = append(out, p)
		}
	}
	r.db.mu.Unlock()

	out = sortedBy(out, func(p *model.Proposal) time.Time { return p.UpdatedAt }, false)
	if len(out) > limit {
		out = out[:limit]
	}
	return pointers(out), nil
}

func (r *ProposalRepository) collect(match func(*model.Proposal) bool, key func(*model.Proposal) time.Time) []model.Proposal {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	var out []model.Proposal
	for _, p := range r.db.proposals {
		if match(&p) {
			out = append(out, p)
		}
	}
	return sortedBy(out, key, false)
}
