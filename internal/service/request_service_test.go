package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Freeeeeet/tutoring_scheduler/internal/errs"
	"github.com/Freeeeeet/tutoring_scheduler/internal/model"
)

func TestCreateRequest(t *testing.T) {
	h := newHarness(t)
	s := student()

	req, err := h.requests.Create(h.ctx, s, model.RequestKindTrial, validPayload())
	require.NoError(t, err)

	assert.Equal(t, model.RequestStatusPending, req.Status)
	assert.Equal(t, T0.Add(7*24*time.Hour), req.ExpiresAt)
	assert.Equal(t, 0, req.ExtensionCount)
	assert.Equal(t, []model.EventType{model.EventRequestCreated}, h.relay.types())

	t.Run("missing fields", func(t *testing.T) {
		for _, mutate := range []func(*model.RequestPayload){
			func(p *model.RequestPayload) { p.Subject = " " },
			func(p *model.RequestPayload) { p.GradeLevel = "" },
			func(p *model.RequestPayload) { p.SchoolType = "" },
		} {
			payload := validPayload()
			mutate(&payload)
			_, err := h.requests.Create(h.ctx, s, model.RequestKindSession, payload)
			assert.ErrorIs(t, err, errs.ErrValidation)
		}
	})

	t.Run("unknown kind", func(t *testing.T) {
		_, err := h.requests.Create(h.ctx, s, "GROUP", validPayload())
		assert.ErrorIs(t, err, errs.ErrValidation)
	})

	t.Run("tutor cannot create", func(t *testing.T) {
		_, err := h.requests.Create(h.ctx, tutor(), model.RequestKindTrial, validPayload())
		assert.ErrorIs(t, err, errs.ErrUnauthorized)
	})
}

func TestAcceptRequestOpensChat(t *testing.T) {
	h := newHarness(t)
	s, tu := student(), tutor()

	req, err := h.requests.Create(h.ctx, s, model.RequestKindTrial, validPayload())
	require.NoError(t, err)

	accepted, err := h.requests.Accept(h.ctx, req.ID, tu)
	require.NoError(t, err)

	assert.Equal(t, model.RequestStatusAccepted, accepted.Status)
	require.NotNil(t, accepted.AcceptedByUserID)
	assert.Equal(t, tu.ID, *accepted.AcceptedByUserID)
	require.NotNil(t, accepted.ChatID)

	chat, err := h.chats.GetByID(h.ctx, *accepted.ChatID)
	require.NoError(t, err)
	assert.True(t, chat.IsParticipant(s.ID))
	assert.True(t, chat.IsParticipant(tu.ID))

	t.Run("second accept is an invalid transition", func(t *testing.T) {
		_, err := h.requests.Accept(h.ctx, req.ID, tutor())
		assert.ErrorIs(t, err, errs.ErrInvalidTransition)
	})

	t.Run("requester cannot accept own request", func(t *testing.T) {
		other, err := h.requests.Create(h.ctx, s, model.RequestKindTrial, validPayload())
		require.NoError(t, err)
		_, err = h.requests.Accept(h.ctx, other.ID, model.Actor{ID: s.ID, Role: model.RoleTutor})
		assert.ErrorIs(t, err, errs.ErrUnauthorized)
	})
}

func TestAcceptSurvivesChatOutage(t *testing.T) {
	h := newHarness(t)
	s, tu := student(), tutor()
	h.chats.Unavailable = true

	req, err := h.requests.Create(h.ctx, s, model.RequestKindSession, validPayload())
	require.NoError(t, err)

	accepted, err := h.requests.Accept(h.ctx, req.ID, tu)
	require.NoError(t, err)
	assert.Equal(t, model.RequestStatusAccepted, accepted.Status)
	assert.Nil(t, accepted.ChatID)
	assert.Contains(t, h.relay.types(), model.EventRequestChatPending)

	h.chats.Unavailable = false
	require.NoError(t, h.requests.AttachPendingChat(h.ctx, req.ID))

	got, err := h.requests.Get(h.ctx, req.ID)
	require.NoError(t, err)
	assert.NotNil(t, got.ChatID)
	assert.Equal(t, model.RequestStatusAccepted, got.Status)
}

// Scenario: accept after the deadline fails with EXPIRED and the request becomes EXPIRED
func TestAcceptAfterExpiry(t *testing.T) {
	h := newHarness(t)

	req, err := h.requests.Create(h.ctx, student(), model.RequestKindTrial, validPayload())
	require.NoError(t, err)

	h.clock.Advance(8 * 24 * time.Hour)

	_, err = h.requests.Accept(h.ctx, req.ID, tutor())
	assert.ErrorIs(t, err, errs.ErrExpired)

	got, err := h.requests.Get(h.ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RequestStatusExpired, got.Status)
	assert.Nil(t, got.AcceptedByUserID)
}

func TestAcceptAfterSweep(t *testing.T) {
	h := newHarness(t)

	req, err := h.requests.Create(h.ctx, student(), model.RequestKindTrial, validPayload())
	require.NoError(t, err)

	expired, err := h.requests.SweepExpirations(h.ctx, T0.Add(7*24*time.Hour+time.Minute))
	require.NoError(t, err)
	require.Len(t, expired, 1)

	h.clock.Set(T0.Add(8 * 24 * time.Hour))
	_, err = h.requests.Accept(h.ctx, req.ID, tutor())
	assert.ErrorIs(t, err, errs.ErrExpired)
}

func TestCancelRequest(t *testing.T) {
	h := newHarness(t)
	s := student()

	req, err := h.requests.Create(h.ctx, s, model.RequestKindTrial, validPayload())
	require.NoError(t, err)

	_, err = h.requests.Cancel(h.ctx, req.ID, student())
	assert.ErrorIs(t, err, errs.ErrUnauthorized)

	cancelled, err := h.requests.Cancel(h.ctx, req.ID, s)
	require.NoError(t, err)
	assert.Equal(t, model.RequestStatusCancelled, cancelled.Status)
	assert.NotNil(t, cancelled.CancelledAt)

	_, err = h.requests.Cancel(h.ctx, req.ID, s)
	assert.ErrorIs(t, err, errs.ErrInvalidTransition)
}

// Scenario: extension with 12h left adds exactly 7 days once
func TestExtendRequest(t *testing.T) {
	h := newHarness(t)
	s := student()

	req, err := h.requests.Create(h.ctx, s, model.RequestKindTrial, validPayload())
	require.NoError(t, err)
	originalExpiry := req.ExpiresAt

	t.Run("too early", func(t *testing.T) {
		_, err := h.requests.Extend(h.ctx, req.ID, s)
		assert.ErrorIs(t, err, errs.ErrExtensionNotAllowed)
	})

	h.clock.Set(originalExpiry.Add(-12 * time.Hour))

	t.Run("only requester", func(t *testing.T) {
		_, err := h.requests.Extend(h.ctx, req.ID, student())
		assert.ErrorIs(t, err, errs.ErrUnauthorized)
	})

	extended, err := h.requests.Extend(h.ctx, req.ID, s)
	require.NoError(t, err)
	assert.Equal(t, originalExpiry.Add(7*24*time.Hour), extended.ExpiresAt)
	assert.Equal(t, 1, extended.ExtensionCount)

	_, err = h.requests.Extend(h.ctx, req.ID, s)
	assert.ErrorIs(t, err, errs.ErrExtensionNotAllowed)

	t.Run("never more than one extension", func(t *testing.T) {
		h.clock.Set(extended.ExpiresAt.Add(-time.Hour))
		_, err := h.requests.Extend(h.ctx, req.ID, s)
		assert.ErrorIs(t, err, errs.ErrExtensionNotAllowed)

		got, err := h.requests.Get(h.ctx, req.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, got.ExtensionCount)
	})
}

func TestExtendAtExactWindowBoundary(t *testing.T) {
	h := newHarness(t)
	s := student()

	req, err := h.requests.Create(h.ctx, s, model.RequestKindTrial, validPayload())
	require.NoError(t, err)

	h.clock.Set(req.ExpiresAt.Add(-24 * time.Hour))
	_, err = h.requests.Extend(h.ctx, req.ID, s)
	assert.NoError(t, err)
}

func TestSweepRequestExpirations(t *testing.T) {
	h := newHarness(t)

	stale, err := h.requests.Create(h.ctx, student(), model.RequestKindTrial, validPayload())
	require.NoError(t, err)

	h.clock.Advance(3 * 24 * time.Hour)
	fresh, err := h.requests.Create(h.ctx, student(), model.RequestKindTrial, validPayload())
	require.NoError(t, err)

	accepted, err := h.requests.Create(h.ctx, student(), model.RequestKindTrial, validPayload())
	require.NoError(t, err)
	_, err = h.requests.Accept(h.ctx, accepted.ID, tutor())
	require.NoError(t, err)

	t1 := stale.ExpiresAt
	expired, err := h.requests.SweepExpirations(h.ctx, t1)
	require.NoError(t, err)
	require.Len(t, expired, 1)
	assert.Equal(t, stale.ID, expired[0].ID)

	t.Run("later sweep is a no-op on swept rows", func(t *testing.T) {
		again, err := h.requests.SweepExpirations(h.ctx, t1.Add(time.Hour))
		require.NoError(t, err)
		assert.Empty(t, again)
	})

	t.Run("accepted requests are never expired", func(t *testing.T) {
		_, err := h.requests.SweepExpirations(h.ctx, t1.Add(30*24*time.Hour))
		require.NoError(t, err)

		got, err := h.requests.Get(h.ctx, accepted.ID)
		require.NoError(t, err)
		assert.Equal(t, model.RequestStatusAccepted, got.Status)

		got, err = h.requests.Get(h.ctx, fresh.ID)
		require.NoError(t, err)
		assert.Equal(t, model.RequestStatusExpired, got.Status)
	})
}

func TestNoResurrectionOfRequests(t *testing.T) {
	h := newHarness(t)
	s := student()

	req, err := h.requests.Create(h.ctx, s, model.RequestKindTrial, validPayload())
	require.NoError(t, err)
	_, err = h.requests.Cancel(h.ctx, req.ID, s)
	require.NoError(t, err)

	h.clock.Set(req.ExpiresAt.Add(-time.Hour))
	_, err = h.requests.Extend(h.ctx, req.ID, s)
	assert.Error(t, err)
	_, err = h.requests.Accept(h.ctx, req.ID, tutor())
	assert.Error(t, err)
	_, err = h.requests.SweepExpirations(h.ctx, req.ExpiresAt.Add(time.Hour))
	require.NoError(t, err)

	got, err := h.requests.Get(h.ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RequestStatusCancelled, got.Status)
}

func TestListOpenRequests(t *testing.T) {
	h := newHarness(t)

	_, err := h.requests.Create(h.ctx, student(), model.RequestKindTrial, validPayload())
	require.NoError(t, err)
	_, err = h.requests.Create(h.ctx, student(), model.RequestKindSession, validPayload())
	require.NoError(t, err)

	all, err := h.requests.ListOpen(h.ctx, "", model.ListFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	trials, err := h.requests.ListOpen(h.ctx, model.RequestKindTrial, model.ListFilter{})
	require.NoError(t, err)
	assert.Len(t, trials, 1)

	h.clock.Advance(8 * 24 * time.Hour)
	none, err := h.requests.ListOpen(h.ctx, "", model.ListFilter{})
	require.NoError(t, err)
	assert.Empty(t, none)
}
