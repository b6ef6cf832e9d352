package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Freeeeeet/tutoring_scheduler/internal/model"
	"github.com/Freeeeeet/tutoring_scheduler/internal/repository/base"
)

type RequestRepository struct {
	db *DB
}

func NewRequestRepository(db *DB) *RequestRepository {
	return &RequestRepository{db: db}
}

func (r *RequestRepository) Create(_ context.Context, req *model.Request) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	if _, ok := r.db.requests[req.ID]; ok {
		return fmt.Errorf("create request: duplicate id %s", req.ID)
	}
	r.db.requests[req.ID] = *req
	return nil
}

func (r *RequestRepository) GetByID(_ context.Context, id uuid.UUID) (*model.Request, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	req, ok := r.db.requests[id]
	if !ok {
		return nil, nil
	}
	return &req, nil
}

func (r *RequestRepository) Update(_ context.Context, req *model.Request, expectedVersion int64) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	current, ok := r.db.requests[req.ID]
	if !ok || current.Version != expectedVersion {
		return fmt.Errorf("update request: %w", base.ErrVersionConflict)
	}

	req.Version = expectedVersion + 1
	r.db.requests[req.ID] = *req
	return nil
}

func (r *RequestRepository) ListByRequester(_ context.Context, requesterID uuid.UUID, filter model.ListFilter) ([]*model.Request, error) {
	return r.list(func(req *model.Request) bool {
		return req.RequesterID == requesterID && filter.Contains(req.CreatedAt)
	}, true, filter), nil
}

func (r *RequestRepository) ListOpen(_ context.Context, kind model.RequestKind, now time.Time, filter model.ListFilter) ([]*model.Request, error) {
	return r.list(func(req *model.Request) bool {
		return req.IsPending() && !req.IsExpiredAt(now) && (kind == "" || req.Kind == kind)
	}, false, filter), nil
}

func (r *RequestRepository) ListExpirable(_ context.Context, now time.Time, limit int) ([]*model.Request, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	var out []model.Request
	for _, req := range r.db.requests {
		if req.IsPending() && req.IsExpiredAt(now) {
			out = append(out, req)
		}
	}
	out = sortedBy(out, func(req *model.Request) time.Time { return req.ExpiresAt }, false)
	if len(out) > limit {
		out = out[:limit]
	}
	return pointers(out), nil
}

func (r *RequestRepository) list(match func(*model.Request) bool, desc bool, filter model.ListFilter) []*model.Request {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	var out []model.Request
	for _, req := range r.db.requests {
		if match(&req) {
			out = append(out, req)
		}
	}
	out = sortedBy(out, func(req *model.Request) time.Time { return req.CreatedAt }, desc)
	return pointers(model.Page(out, filter))
}
