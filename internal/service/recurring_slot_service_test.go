package service

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Freeeeeet/tutoring_scheduler/internal/errs"
	"github.com/Freeeeeet/tutoring_scheduler/internal/model"
)

func TestCreateRecurringTemplate(t *testing.T) {
	h := newHarness(t)
	a := admin()

	tpl, count, err := h.recurring.Create(h.ctx, a, time.Tuesday, 10, 0, 2)
	require.NoError(t, err)
	assert.True(t, tpl.IsActive)
	assert.Equal(t, 2, count)

	slots, err := h.slots.ListForOwner(h.ctx, a.ID, model.ListFilter{})
	require.NoError(t, err)
	require.Len(t, slots, 2)
	assert.Equal(t, time.Date(2026, 3, 3, 10, 0, 0, 0, time.UTC), slots[0].StartTime)
	assert.Equal(t, time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC), slots[1].StartTime)

	t.Run("past occurrence of today is skipped", func(t *testing.T) {
		_, count, err := h.recurring.Create(h.ctx, a, time.Monday, 8, 0, 1)
		require.NoError(t, err)
		assert.Equal(t, 1, count)
	})

	t.Run("invalid time", func(t *testing.T) {
		_, _, err := h.recurring.Create(h.ctx, a, time.Monday, 24, 0, 1)
		assert.ErrorIs(t, err, errs.ErrValidation)
	})

	t.Run("admins only", func(t *testing.T) {
		_, _, err := h.recurring.Create(h.ctx, tutor(), time.Monday, 12, 0, 1)
		assert.ErrorIs(t, err, errs.ErrUnauthorized)
	})
}

func TestGenerateAllIsIdempotent(t *testing.T) {
	h := newHarness(t)
	a := admin()

	_, _, err := h.recurring.Create(h.ctx, a, time.Wednesday, 15, 30, 1)
	require.NoError(t, err)

	created, err := h.recurring.GenerateAll(h.ctx, 1)
	require.NoError(t, err)
	assert.Zero(t, created, "existing slots are not duplicated")

	h.clock.Advance(7 * 24 * time.Hour)
	created, err = h.recurring.GenerateAll(h.ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, created)
}

func TestDeactivateAndDeleteTemplate(t *testing.T) {
	h := newHarness(t)
	a := admin()

	tpl, _, err := h.recurring.Create(h.ctx, a, time.Friday, 12, 0, 1)
	require.NoError(t, err)

	err = h.recurring.Deactivate(h.ctx, model.Actor{ID: uuid.New(), Role: model.RoleTutor}, tpl.ID)
	assert.ErrorIs(t, err, errs.ErrUnauthorized)

	require.NoError(t, h.recurring.Deactivate(h.ctx, a, tpl.ID))

	h.clock.Advance(7 * 24 * time.Hour)
	created, err := h.recurring.GenerateAll(h.ctx, 1)
	require.NoError(t, err)
	assert.Zero(t, created)

	require.NoError(t, h.recurring.Delete(h.ctx, a, tpl.ID))
	err = h.recurring.Delete(h.ctx, a, tpl.ID)
	assert.ErrorIs(t, err, errs.ErrNotFound)

	templates, err := h.recurring.List(h.ctx, a)
	require.NoError(t, err)
	assert.Empty(t, templates)
}
