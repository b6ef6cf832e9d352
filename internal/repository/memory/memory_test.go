package memory

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Freeeeeet/tutoring_scheduler/internal/errs"
	"github.com/Freeeeeet/tutoring_scheduler/internal/model"
	"github.com/Freeeeeet/tutoring_scheduler/internal/repository/base"
)

var t0 = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

func newSlot(owner uuid.UUID, start time.Time) *model.InterviewSlot {
	return &model.InterviewSlot{
		ID:        uuid.New(),
		OwnerID:   owner,
		StartTime: start,
		EndTime:   start.Add(time.Hour),
		Status:    model.SlotStatusAvailable,
	}
}

func TestSlotOverlapIgnoresCancelled(t *testing.T) {
	ctx := context.Background()
	repo := NewInterviewSlotRepository(NewDB())
	owner := uuid.New()

	first := newSlot(owner, t0)
	require.NoError(t, repo.Create(ctx, first))

	err := repo.Create(ctx, newSlot(owner, t0.Add(30*time.Minute)))
	assert.ErrorIs(t, err, errs.ErrOverlap)

	t.Run("adjacent slot is fine", func(t *testing.T) {
		assert.NoError(t, repo.Create(ctx, newSlot(owner, t0.Add(time.Hour))))
	})

	t.Run("other owner is fine", func(t *testing.T) {
		assert.NoError(t, repo.Create(ctx, newSlot(uuid.New(), t0)))
	})

	t.Run("cancelled slot frees the time", func(t *testing.T) {
		first.Status = model.SlotStatusCancelled
		require.NoError(t, repo.Update(ctx, first, 0))
		assert.NoError(t, repo.Create(ctx, newSlot(owner, t0.Add(15*time.Minute))))
	})
}

func TestUpdateIsCompareAndSwap(t *testing.T) {
	ctx := context.Background()
	repo := NewInterviewSlotRepository(NewDB())
	slot := newSlot(uuid.New(), t0)
	require.NoError(t, repo.Create(ctx, slot))

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			mine := *slot
			applicant := uuid.New()
			mine.Status = model.SlotStatusBooked
			mine.ApplicantID = &applicant
			if err := repo.Update(ctx, &mine, 0); err == nil {
				wins.Add(1)
			} else {
				assert.True(t, base.IsVersionConflict(err))
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load())

	got, err := repo.GetByID(ctx, slot.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.Version)
	assert.Equal(t, model.SlotStatusBooked, got.Status)
}

func TestProposalWithoutSession(t *testing.T) {
	ctx := context.Background()
	db := NewDB()
	proposals := NewProposalRepository(db)
	sessions := NewSessionRepository(db)

	sessionID := uuid.New()
	p := &model.Proposal{ID: uuid.New(), Status: model.ProposalStatusAccepted, SessionID: &sessionID}
	require.NoError(t, proposals.Create(ctx, p))

	missing, err := proposals.ListAcceptedWithoutSession(ctx, 10)
	require.NoError(t, err)
	require.Len(t, missing, 1)

	s := model.NewSessionFromProposal(p, t0)
	created, err := sessions.Create(ctx, s)
	require.NoError(t, err)
	assert.True(t, created)

	created, err = sessions.Create(ctx, s)
	require.NoError(t, err)
	assert.False(t, created)

	missing, err = proposals.ListAcceptedWithoutSession(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, missing)
}

func TestOutboxLease(t *testing.T) {
	ctx := context.Background()
	repo := NewOutboxRepository(NewDB())
	ev := model.Event{ID: uuid.New(), Type: model.EventSlotBooked}

	require.NoError(t, repo.Enqueue(ctx, ev, t0))
	require.NoError(t, repo.Enqueue(ctx, ev, t0), "duplicate enqueue is ignored")

	leased, err := repo.Lease(ctx, "worker-a", 10, t0, time.Minute)
	require.NoError(t, err)
	require.Len(t, leased, 1)

	t.Run("live lease is not handed out twice", func(t *testing.T) {
		again, err := repo.Lease(ctx, "worker-b", 10, t0.Add(30*time.Second), time.Minute)
		require.NoError(t, err)
		assert.Empty(t, again)
	})

	t.Run("expired lease is taken over", func(t *testing.T) {
		again, err := repo.Lease(ctx, "worker-b", 10, t0.Add(2*time.Minute), time.Minute)
		require.NoError(t, err)
		require.Len(t, again, 1)
	})

	t.Run("old owner can no longer release", func(t *testing.T) {
		err := repo.MarkDone(ctx, ev.ID, "worker-a", t0)
		assert.True(t, base.IsVersionConflict(err))
	})

	require.NoError(t, repo.MarkRetry(ctx, ev.ID, "worker-b", t0.Add(time.Hour), "timeout", t0))
	got, _ := repo.Get(ev.ID)
	assert.Equal(t, model.OutboxStatusPending, got.Status)
	assert.Equal(t, 1, got.AttemptCount)
	assert.Equal(t, "timeout", got.LastError)
}

func TestChatDedupe(t *testing.T) {
	ctx := context.Background()
	repo := NewChatRepository(NewDB())
	a, b := uuid.New(), uuid.New()

	chat, err := repo.CreateOrGet(ctx, a, b)
	require.NoError(t, err)
	same, err := repo.CreateOrGet(ctx, b, a)
	require.NoError(t, err)
	assert.Equal(t, chat.ID, same.ID)

	msg := &model.ChatMessage{ID: uuid.New(), ChatID: chat.ID, Kind: model.MessageKindSystem, DedupeKey: "k"}
	created, err := repo.AppendMessage(ctx, msg)
	require.NoError(t, err)
	assert.True(t, created)

	created, err = repo.AppendMessage(ctx, msg)
	require.NoError(t, err)
	assert.False(t, created)

	msgs, err := repo.ListMessages(ctx, chat.ID, model.ListFilter{})
	require.NoError(t, err)
	assert.Len(t, msgs, 1)
}
