package service

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Freeeeeet/tutoring_scheduler/internal/errs"
	"github.com/Freeeeeet/tutoring_scheduler/internal/model"
)

type pair struct {
	student model.Actor
	tutor   model.Actor
	chat    *model.Chat
}

func (h *harness) newPair() pair {
	h.t.Helper()
	p := pair{student: student(), tutor: tutor()}

	chat, err := h.chats.CreateOrGet(h.ctx, p.student.ID, p.tutor.ID)
	require.NoError(h.t, err)
	p.chat = chat
	return p
}

// propose создаёт предложение на завтра 18:00-19:00
func (h *harness) propose(p pair) *model.Proposal {
	h.t.Helper()
	start := T0.Add(33 * time.Hour)

	proposal, err := h.proposals.Propose(h.ctx, p.chat.ID, p.tutor, "Алгебра", start, start.Add(time.Hour))
	require.NoError(h.t, err)
	return proposal
}

func TestPropose(t *testing.T) {
	h := newHarness(t)
	p := h.newPair()

	proposal := h.propose(p)
	assert.Equal(t, model.ProposalStatusProposed, proposal.Status)
	assert.Equal(t, p.tutor.ID, proposal.ProposerID)
	assert.Equal(t, p.student.ID, proposal.CounterpartID)
	assert.Equal(t, 1, proposal.Round)
	assert.Equal(t, T0.Add(24*time.Hour), proposal.ExpiresAt)

	event := h.relay.last()
	assert.Equal(t, model.EventProposalCreated, event.Type)
	require.NotNil(t, event.ChatID)
	assert.Equal(t, p.chat.ID, *event.ChatID)

	t.Run("deadline never after start", func(t *testing.T) {
		start := T0.Add(2 * time.Hour)
		soon, err := h.proposals.Propose(h.ctx, p.chat.ID, p.tutor, "Алгебра", start, start.Add(time.Hour))
		require.NoError(t, err)
		assert.Equal(t, start, soon.ExpiresAt)
	})

	t.Run("students cannot propose", func(t *testing.T) {
		start := T0.Add(48 * time.Hour)
		_, err := h.proposals.Propose(h.ctx, p.chat.ID, p.student, "Алгебра", start, start.Add(time.Hour))
		assert.ErrorIs(t, err, errs.ErrUnauthorized)
	})

	t.Run("outsider tutor", func(t *testing.T) {
		start := T0.Add(48 * time.Hour)
		_, err := h.proposals.Propose(h.ctx, p.chat.ID, tutor(), "Алгебра", start, start.Add(time.Hour))
		assert.ErrorIs(t, err, errs.ErrUnauthorized)
	})

	t.Run("invalid times", func(t *testing.T) {
		_, err := h.proposals.Propose(h.ctx, p.chat.ID, p.tutor, "Алгебра", T0.Add(-time.Hour), T0)
		assert.ErrorIs(t, err, errs.ErrValidation)

		start := T0.Add(48 * time.Hour)
		_, err = h.proposals.Propose(h.ctx, p.chat.ID, p.tutor, "Алгебра", start, start)
		assert.ErrorIs(t, err, errs.ErrValidation)
	})

	t.Run("unknown chat", func(t *testing.T) {
		start := T0.Add(48 * time.Hour)
		_, err := h.proposals.Propose(h.ctx, uuid.New(), p.tutor, "Алгебра", start, start.Add(time.Hour))
		assert.ErrorIs(t, err, errs.ErrNotFound)
	})
}

func TestAcceptProposalSchedulesSession(t *testing.T) {
	h := newHarness(t)
	p := h.newPair()
	proposal := h.propose(p)

	_, err := h.proposals.Accept(h.ctx, proposal.ID, p.tutor)
	assert.ErrorIs(t, err, errs.ErrUnauthorized, "proposer cannot accept own proposal")

	accepted, err := h.proposals.Accept(h.ctx, proposal.ID, p.student)
	require.NoError(t, err)
	assert.Equal(t, model.ProposalStatusAccepted, accepted.Status)
	require.NotNil(t, accepted.SessionID)

	session, err := h.proposals.GetSession(h.ctx, *accepted.SessionID)
	require.NoError(t, err)
	assert.Equal(t, model.SessionStatusScheduled, session.Status)
	assert.Equal(t, model.ReviewStatusLocked, session.ReviewStatus)
	assert.Equal(t, p.student.ID, session.StudentID)
	assert.Equal(t, p.tutor.ID, session.TutorID)
	assert.Equal(t, proposal.StartTime, session.StartTime)
	assert.Equal(t, proposal.ID, session.ProposalID)

	_, err = h.proposals.Accept(h.ctx, proposal.ID, p.student)
	assert.ErrorIs(t, err, errs.ErrInvalidTransition)

	_, err = h.proposals.Reject(h.ctx, proposal.ID, p.student)
	assert.ErrorIs(t, err, errs.ErrInvalidTransition)
}

func TestRejectProposal(t *testing.T) {
	h := newHarness(t)
	p := h.newPair()
	proposal := h.propose(p)

	rejected, err := h.proposals.Reject(h.ctx, proposal.ID, p.student)
	require.NoError(t, err)
	assert.Equal(t, model.ProposalStatusRejected, rejected.Status)
	assert.Nil(t, rejected.SessionID)
	assert.Equal(t, model.EventProposalRejected, h.relay.last().Type)
}

// Scenario: student counter-proposes, tutor accepts the counter
func TestCounterProposal(t *testing.T) {
	h := newHarness(t)
	p := h.newPair()
	original := h.propose(p)

	newStart := original.StartTime.Add(24 * time.Hour)
	counter, err := h.proposals.CounterPropose(h.ctx, original.ID, p.student, newStart, newStart.Add(90*time.Minute))
	require.NoError(t, err)

	assert.Equal(t, model.ProposalStatusProposed, counter.Status)
	assert.Equal(t, p.student.ID, counter.ProposerID)
	assert.Equal(t, p.tutor.ID, counter.CounterpartID)
	assert.Equal(t, p.tutor.ID, counter.TutorID)
	assert.Equal(t, 2, counter.Round)
	require.NotNil(t, counter.ParentID)
	assert.Equal(t, original.ID, *counter.ParentID)

	got, err := h.proposals.Get(h.ctx, original.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ProposalStatusCounterProposed, got.Status)

	_, err = h.proposals.Accept(h.ctx, counter.ID, p.student)
	assert.ErrorIs(t, err, errs.ErrUnauthorized, "roles swap on counter")

	accepted, err := h.proposals.Accept(h.ctx, counter.ID, p.tutor)
	require.NoError(t, err)

	session, err := h.proposals.GetSession(h.ctx, *accepted.SessionID)
	require.NoError(t, err)
	assert.Equal(t, p.student.ID, session.StudentID)
	assert.Equal(t, p.tutor.ID, session.TutorID)
	assert.Equal(t, newStart, session.StartTime)
	assert.Equal(t, 90*time.Minute, session.EndTime.Sub(session.StartTime))

	history, err := h.proposals.ListForChat(h.ctx, p.chat.ID, p.student, model.ListFilter{})
	require.NoError(t, err)
	assert.Len(t, history, 2)
}

func TestCounterProposalRoundLimit(t *testing.T) {
	h := newHarness(t)
	p := h.newPair()
	current := h.propose(p)

	responders := []model.Actor{p.student, p.tutor}
	for i, responder := range responders {
		start := current.StartTime.Add(time.Duration(i+1) * time.Hour)
		next, err := h.proposals.CounterPropose(h.ctx, current.ID, responder, start, start.Add(time.Hour))
		require.NoError(t, err)
		current = next
	}
	require.Equal(t, 3, current.Round)

	start := current.StartTime.Add(time.Hour)
	_, err := h.proposals.CounterPropose(h.ctx, current.ID, p.student, start, start.Add(time.Hour))
	assert.ErrorIs(t, err, errs.ErrInvalidTransition)

	got, err := h.proposals.Get(h.ctx, current.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ProposalStatusProposed, got.Status, "limit leaves the last proposal open")
}

func TestRespondAfterDeadline(t *testing.T) {
	h := newHarness(t)
	p := h.newPair()
	proposal := h.propose(p)

	h.clock.Set(proposal.ExpiresAt)

	_, err := h.proposals.Accept(h.ctx, proposal.ID, p.student)
	assert.ErrorIs(t, err, errs.ErrExpired)

	got, err := h.proposals.Get(h.ctx, proposal.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ProposalStatusExpired, got.Status)
	assert.Nil(t, got.SessionID)
}

func TestRespondAfterSweep(t *testing.T) {
	h := newHarness(t)
	p := h.newPair()
	proposal := h.propose(p)

	expired, err := h.proposals.SweepExpirations(h.ctx, proposal.ExpiresAt)
	require.NoError(t, err)
	require.Len(t, expired, 1)

	h.clock.Set(proposal.ExpiresAt.Add(time.Hour))

	_, err = h.proposals.Accept(h.ctx, proposal.ID, p.student)
	assert.ErrorIs(t, err, errs.ErrExpired)

	_, err = h.proposals.Reject(h.ctx, proposal.ID, p.student)
	assert.ErrorIs(t, err, errs.ErrExpired)

	start := proposal.StartTime.Add(time.Hour)
	_, err = h.proposals.CounterPropose(h.ctx, proposal.ID, p.student, start, start.Add(time.Hour))
	assert.ErrorIs(t, err, errs.ErrExpired)
}

func TestNoResurrectionOfProposals(t *testing.T) {
	tests := []struct {
		name   string
		finish func(t *testing.T, h *harness, p pair, proposal *model.Proposal)
		want   model.ProposalStatus
	}{
		{
			name: "rejected",
			finish: func(t *testing.T, h *harness, p pair, proposal *model.Proposal) {
				_, err := h.proposals.Reject(h.ctx, proposal.ID, p.student)
				require.NoError(t, err)
			},
			want: model.ProposalStatusRejected,
		},
		{
			name: "cancelled",
			finish: func(t *testing.T, h *harness, p pair, proposal *model.Proposal) {
				_, err := h.proposals.CancelProposal(h.ctx, proposal.ID, p.tutor, "передумал")
				require.NoError(t, err)
			},
			want: model.ProposalStatusCancelled,
		},
		{
			name: "expired",
			finish: func(t *testing.T, h *harness, _ pair, proposal *model.Proposal) {
				_, err := h.proposals.SweepExpirations(h.ctx, proposal.ExpiresAt)
				require.NoError(t, err)
			},
			want: model.ProposalStatusExpired,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			p := h.newPair()
			proposal := h.propose(p)
			tt.finish(t, h, p, proposal)

			_, err := h.proposals.Accept(h.ctx, proposal.ID, p.student)
			assert.Error(t, err)
			_, err = h.proposals.Reject(h.ctx, proposal.ID, p.student)
			assert.Error(t, err)
			start := proposal.StartTime.Add(time.Hour)
			_, err = h.proposals.CounterPropose(h.ctx, proposal.ID, p.student, start, start.Add(time.Hour))
			assert.Error(t, err)
			_, err = h.proposals.CancelProposal(h.ctx, proposal.ID, p.tutor, "ещё раз")
			assert.Error(t, err)

			_, err = h.proposals.SweepExpirations(h.ctx, proposal.ExpiresAt.Add(time.Hour))
			require.NoError(t, err)
			_, err = h.proposals.SweepSessions(h.ctx, proposal.EndTime.Add(time.Hour))
			require.NoError(t, err)

			got, err := h.proposals.Get(h.ctx, proposal.ID)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Status)
			assert.Nil(t, got.SessionID)
		})
	}
}

func TestAcceptRacesSweep(t *testing.T) {
	for i := 0; i < 20; i++ {
		h := newHarness(t)
		p := h.newPair()
		proposal := h.propose(p)

		var (
			wg        sync.WaitGroup
			acceptErr error
		)
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, acceptErr = h.proposals.Accept(h.ctx, proposal.ID, p.student)
		}()
		go func() {
			defer wg.Done()
			_, err := h.proposals.SweepExpirations(h.ctx, proposal.ExpiresAt)
			assert.NoError(t, err)
		}()
		wg.Wait()

		got, err := h.proposals.Get(h.ctx, proposal.ID)
		require.NoError(t, err)

		switch got.Status {
		case model.ProposalStatusAccepted:
			require.NoError(t, acceptErr)
			require.NotNil(t, got.SessionID)
			_, err := h.proposals.GetSession(h.ctx, *got.SessionID)
			assert.NoError(t, err)
		case model.ProposalStatusExpired:
			assert.ErrorIs(t, acceptErr, errs.ErrExpired)
			assert.Nil(t, got.SessionID)
		default:
			t.Fatalf("unexpected status %s", got.Status)
		}
	}
}

func TestSweepProposalExpirations(t *testing.T) {
	h := newHarness(t)
	p := h.newPair()
	stale := h.propose(p)

	answered := h.propose(p)
	_, err := h.proposals.Reject(h.ctx, answered.ID, p.student)
	require.NoError(t, err)

	expired, err := h.proposals.SweepExpirations(h.ctx, stale.ExpiresAt)
	require.NoError(t, err)
	require.Len(t, expired, 1)
	assert.Equal(t, stale.ID, expired[0].ID)

	again, err := h.proposals.SweepExpirations(h.ctx, stale.ExpiresAt.Add(time.Hour))
	require.NoError(t, err)
	assert.Empty(t, again)
}

func TestCancelPendingProposal(t *testing.T) {
	h := newHarness(t)
	p := h.newPair()
	proposal := h.propose(p)

	_, err := h.proposals.CancelProposal(h.ctx, proposal.ID, p.student, "")
	assert.ErrorIs(t, err, errs.ErrUnauthorized)

	cancelled, err := h.proposals.CancelProposal(h.ctx, proposal.ID, p.tutor, "передумал")
	require.NoError(t, err)
	assert.Equal(t, model.ProposalStatusCancelled, cancelled.Status)

	_, err = h.proposals.Accept(h.ctx, proposal.ID, p.student)
	assert.ErrorIs(t, err, errs.ErrInvalidTransition)
}

// Scenario: cancelling an accepted proposal before start cascades to the session
func TestCancelAcceptedProposal(t *testing.T) {
	h := newHarness(t)
	p := h.newPair()
	proposal := h.propose(p)

	accepted, err := h.proposals.Accept(h.ctx, proposal.ID, p.student)
	require.NoError(t, err)

	h.clock.Set(proposal.StartTime.Add(-2 * time.Hour))
	cancelled, err := h.proposals.CancelProposal(h.ctx, proposal.ID, p.student, "не успеваю")
	require.NoError(t, err)
	assert.Equal(t, model.ProposalStatusCancelled, cancelled.Status)

	session, err := h.proposals.GetSession(h.ctx, *accepted.SessionID)
	require.NoError(t, err)
	assert.Equal(t, model.SessionStatusCancelled, session.Status)
	require.NotNil(t, session.CancelledBy)
	assert.Equal(t, p.student.ID, *session.CancelledBy)
	assert.Equal(t, "не успеваю", session.CancellationReason)

	event := h.relay.last()
	assert.Equal(t, model.EventProposalCancelled, event.Type)
	assert.ElementsMatch(t, []uuid.UUID{p.student.ID, p.tutor.ID}, event.Recipients)
}

func TestCancelAcceptedProposalAfterStart(t *testing.T) {
	h := newHarness(t)
	p := h.newPair()
	proposal := h.propose(p)

	_, err := h.proposals.Accept(h.ctx, proposal.ID, p.student)
	require.NoError(t, err)

	h.clock.Set(proposal.StartTime)
	_, err = h.proposals.CancelProposal(h.ctx, proposal.ID, p.tutor, "")
	assert.ErrorIs(t, err, errs.ErrCancellationWindowClosed)
}

func TestCancelSessionCascadesToProposal(t *testing.T) {
	h := newHarness(t)
	p := h.newPair()
	proposal := h.propose(p)

	accepted, err := h.proposals.Accept(h.ctx, proposal.ID, p.student)
	require.NoError(t, err)

	_, err = h.proposals.CancelSession(h.ctx, *accepted.SessionID, student(), "")
	assert.ErrorIs(t, err, errs.ErrUnauthorized)

	session, err := h.proposals.CancelSession(h.ctx, *accepted.SessionID, p.tutor, "болею")
	require.NoError(t, err)
	assert.Equal(t, model.SessionStatusCancelled, session.Status)

	got, err := h.proposals.Get(h.ctx, proposal.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ProposalStatusCancelled, got.Status)

	_, err = h.proposals.CancelSession(h.ctx, session.ID, p.tutor, "")
	assert.ErrorIs(t, err, errs.ErrInvalidTransition)
}

func TestCompleteSessionAndReview(t *testing.T) {
	h := newHarness(t)
	p := h.newPair()
	proposal := h.propose(p)

	accepted, err := h.proposals.Accept(h.ctx, proposal.ID, p.student)
	require.NoError(t, err)
	sessionID := *accepted.SessionID

	_, err = h.proposals.CompleteSession(h.ctx, sessionID, p.tutor)
	assert.ErrorIs(t, err, errs.ErrInvalidTransition, "not finished yet")

	h.clock.Set(proposal.EndTime.Add(time.Minute))

	_, err = h.proposals.CompleteSession(h.ctx, sessionID, p.student)
	assert.ErrorIs(t, err, errs.ErrUnauthorized)

	_, err = h.proposals.SubmitReview(h.ctx, sessionID, p.student)
	assert.ErrorIs(t, err, errs.ErrInvalidTransition, "review locked until completion")

	session, err := h.proposals.CompleteSession(h.ctx, sessionID, p.tutor)
	require.NoError(t, err)
	assert.Equal(t, model.SessionStatusCompleted, session.Status)
	assert.Equal(t, model.ReviewStatusPending, session.ReviewStatus)

	got, err := h.proposals.Get(h.ctx, proposal.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ProposalStatusCompleted, got.Status)

	_, err = h.proposals.SubmitReview(h.ctx, sessionID, p.tutor)
	assert.ErrorIs(t, err, errs.ErrUnauthorized)

	reviewed, err := h.proposals.SubmitReview(h.ctx, sessionID, p.student)
	require.NoError(t, err)
	assert.Equal(t, model.ReviewStatusSubmitted, reviewed.ReviewStatus)

	_, err = h.proposals.SubmitReview(h.ctx, sessionID, p.student)
	assert.ErrorIs(t, err, errs.ErrInvalidTransition)
}

func TestMarkStartedAndNoShow(t *testing.T) {
	h := newHarness(t)
	p := h.newPair()
	proposal := h.propose(p)

	accepted, err := h.proposals.Accept(h.ctx, proposal.ID, p.student)
	require.NoError(t, err)
	sessionID := *accepted.SessionID

	session, err := h.proposals.MarkStarted(h.ctx, sessionID)
	require.NoError(t, err)
	assert.Equal(t, model.SessionStatusScheduled, session.Status, "not started before start time")

	h.clock.Set(proposal.StartTime.Add(5 * time.Minute))
	session, err = h.proposals.MarkStarted(h.ctx, sessionID)
	require.NoError(t, err)
	assert.Equal(t, model.SessionStatusInProgress, session.Status)

	_, err = h.proposals.CancelSession(h.ctx, sessionID, p.student, "")
	assert.ErrorIs(t, err, errs.ErrInvalidTransition)

	session, err = h.proposals.MarkNoShow(h.ctx, sessionID, p.tutor)
	require.NoError(t, err)
	assert.Equal(t, model.SessionStatusNoShow, session.Status)
	assert.Equal(t, model.EventSessionNoShow, h.relay.last().Type)
}

func TestSweepSessions(t *testing.T) {
	h := newHarness(t)
	p := h.newPair()
	proposal := h.propose(p)

	accepted, err := h.proposals.Accept(h.ctx, proposal.ID, p.student)
	require.NoError(t, err)

	none, err := h.proposals.SweepSessions(h.ctx, proposal.StartTime)
	require.NoError(t, err)
	assert.Empty(t, none)

	done, err := h.proposals.SweepSessions(h.ctx, proposal.EndTime.Add(time.Minute))
	require.NoError(t, err)
	require.Len(t, done, 1)
	assert.Equal(t, *accepted.SessionID, done[0].ID)
	assert.Equal(t, model.ReviewStatusPending, done[0].ReviewStatus)

	event := h.relay.last()
	assert.Equal(t, model.EventSessionCompleted, event.Type)
	assert.Nil(t, event.ActorID)
}

func TestRepairMissingSessions(t *testing.T) {
	h := newHarness(t)
	p := h.newPair()
	proposal := h.propose(p)

	h.sessions.FailCreate = errors.New("disk full")
	accepted, err := h.proposals.Accept(h.ctx, proposal.ID, p.student)
	require.NoError(t, err, "accept stands even when the session write fails")

	_, err = h.proposals.GetSession(h.ctx, *accepted.SessionID)
	assert.ErrorIs(t, err, errs.ErrNotFound)

	h.sessions.FailCreate = nil
	repaired, err := h.proposals.RepairMissingSessions(h.ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, repaired)

	session, err := h.proposals.GetSession(h.ctx, *accepted.SessionID)
	require.NoError(t, err)
	assert.Equal(t, proposal.ID, session.ProposalID)

	repaired, err = h.proposals.RepairMissingSessions(h.ctx)
	require.NoError(t, err)
	assert.Zero(t, repaired)
}
