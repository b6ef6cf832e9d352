package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEveryStatusHasTransitionEntry(t *testing.T) {
	for _, s := range []RequestStatus{RequestStatusPending, RequestStatusAccepted, RequestStatusExpired, RequestStatusCancelled} {
		assert.True(t, s.Valid(), s)
	}
	for _, s := range []SlotStatus{SlotStatusAvailable, SlotStatusBooked, SlotStatusCompleted, SlotStatusCancelled} {
		assert.True(t, s.Valid(), s)
	}
	for _, s := range []ProposalStatus{
		ProposalStatusProposed, ProposalStatusAccepted, ProposalStatusRejected, ProposalStatusCounterProposed,
		ProposalStatusExpired, ProposalStatusCancelled, ProposalStatusCompleted,
	} {
		assert.True(t, s.Valid(), s)
	}
	for _, s := range []SessionStatus{
		SessionStatusScheduled, SessionStatusInProgress, SessionStatusCompleted, SessionStatusCancelled, SessionStatusNoShow,
	} {
		assert.True(t, s.Valid(), s)
	}

	assert.False(t, RequestStatus("DRAFT").Valid())
}

func TestRequestTransitions(t *testing.T) {
	assert.True(t, RequestStatusPending.CanTransitionTo(RequestStatusAccepted))
	assert.True(t, RequestStatusPending.CanTransitionTo(RequestStatusExpired))
	assert.True(t, RequestStatusPending.CanTransitionTo(RequestStatusCancelled))

	for _, terminal := range []RequestStatus{RequestStatusAccepted, RequestStatusExpired, RequestStatusCancelled} {
		assert.True(t, terminal.IsTerminal())
		assert.False(t, terminal.CanTransitionTo(RequestStatusPending), "no resurrection from %s", terminal)
	}
}

func TestSlotTransitions(t *testing.T) {
	tests := []struct {
		from, to SlotStatus
		want     bool
	}{
		{SlotStatusAvailable, SlotStatusBooked, true},
		{SlotStatusAvailable, SlotStatusCancelled, true},
		{SlotStatusAvailable, SlotStatusCompleted, false},
		{SlotStatusBooked, SlotStatusCompleted, true},
		{SlotStatusBooked, SlotStatusCancelled, true},
		{SlotStatusBooked, SlotStatusAvailable, false},
		{SlotStatusCancelled, SlotStatusAvailable, false},
		{SlotStatusCompleted, SlotStatusCancelled, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.from.CanTransitionTo(tt.to))
		})
	}
}

func TestProposalTransitions(t *testing.T) {
	assert.True(t, ProposalStatusProposed.CanTransitionTo(ProposalStatusCounterProposed))
	assert.True(t, ProposalStatusAccepted.CanTransitionTo(ProposalStatusCompleted))
	assert.True(t, ProposalStatusAccepted.CanTransitionTo(ProposalStatusCancelled))
	assert.False(t, ProposalStatusAccepted.CanTransitionTo(ProposalStatusExpired))
	assert.False(t, ProposalStatusExpired.CanTransitionTo(ProposalStatusAccepted))
	assert.False(t, ProposalStatusProposed.IsTerminal())
	assert.True(t, ProposalStatusRejected.IsTerminal())
}

func TestSessionTransitions(t *testing.T) {
	assert.True(t, SessionStatusScheduled.CanTransitionTo(SessionStatusInProgress))
	assert.True(t, SessionStatusInProgress.CanTransitionTo(SessionStatusCompleted))
	assert.False(t, SessionStatusInProgress.CanTransitionTo(SessionStatusCancelled))
	assert.False(t, SessionStatusCompleted.CanTransitionTo(SessionStatusScheduled))
	assert.True(t, SessionStatusNoShow.IsTerminal())
}
