package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Freeeeeet/tutoring_scheduler/internal/clock"
	"github.com/Freeeeeet/tutoring_scheduler/internal/model"
	"github.com/Freeeeeet/tutoring_scheduler/internal/repository/memory"
)

var t0 = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

// fakeSink падает заданное число раз, потом принимает события
type fakeSink struct {
	mu        sync.Mutex
	name      string
	failures  int
	err       error
	calls     int
	delivered []model.Event
}

func (s *fakeSink) Name() string { return s.name }

func (s *fakeSink) Deliver(_ context.Context, event model.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls++
	if s.failures != 0 {
		if s.failures > 0 {
			s.failures--
		}
		return s.err
	}
	s.delivered = append(s.delivered, event)
	return nil
}

type dispatcherFixture struct {
	clock  *clock.Fake
	outbox *memory.OutboxRepository
	relay  *OutboxRelay
}

func newDispatcherFixture() dispatcherFixture {
	clk := clock.NewFake(t0)
	outbox := memory.NewOutboxRepository(memory.NewDB())
	return dispatcherFixture{
		clock:  clk,
		outbox: outbox,
		relay:  NewOutboxRelay(outbox, clk, zap.NewNop()),
	}
}

func (f dispatcherFixture) dispatcher(sinks ...Sink) *Dispatcher {
	return NewDispatcher(f.outbox, sinks, f.clock, DispatcherConfig{
		Owner:         "worker-1",
		MaxAttempts:   3,
		RetryBackoff:  time.Second,
		RetryMaxDelay: 10 * time.Second,
		InlineTries:   2,
		NewBackOff:    func() backoff.BackOff { return &backoff.ZeroBackOff{} },
	}, zap.NewNop())
}

func (f dispatcherFixture) publish(t *testing.T) model.Event {
	t.Helper()
	event := model.Event{
		ID:         uuid.New(),
		Type:       model.EventRequestCreated,
		EntityID:   uuid.New(),
		Recipients: []uuid.UUID{uuid.New()},
		Payload:    map[string]any{"subject": "Физика"},
		OccurredAt: f.clock.Now(),
	}
	require.NoError(t, f.relay.Publish(context.Background(), event))
	return event
}

func TestPublishIsIdempotent(t *testing.T) {
	f := newDispatcherFixture()
	event := f.publish(t)

	require.NoError(t, f.relay.Publish(context.Background(), event))
	assert.Len(t, f.outbox.Events(), 1)
}

func TestDispatchDeliversToAllSinks(t *testing.T) {
	f := newDispatcherFixture()
	event := f.publish(t)

	chat, push := &fakeSink{name: "chat"}, &fakeSink{name: "push"}
	res, err := f.dispatcher(chat, push).ProcessBatch(context.Background())
	require.NoError(t, err)

	assert.Equal(t, BatchResult{Leased: 1, Delivered: 1}, res)
	require.Len(t, chat.delivered, 1)
	assert.Equal(t, event.ID, chat.delivered[0].ID)
	assert.Len(t, push.delivered, 1)

	stored, ok := f.outbox.Get(event.ID)
	require.True(t, ok)
	assert.Equal(t, model.OutboxStatusDone, stored.Status)

	t.Run("done events are not leased again", func(t *testing.T) {
		res, err := f.dispatcher(chat).ProcessBatch(context.Background())
		require.NoError(t, err)
		assert.Zero(t, res.Leased)
	})
}

func TestDispatchRetriesInline(t *testing.T) {
	f := newDispatcherFixture()
	event := f.publish(t)

	flaky := &fakeSink{name: "flaky", failures: 1, err: errors.New("timeout")}
	res, err := f.dispatcher(flaky).ProcessBatch(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, res.Delivered)
	assert.Equal(t, 2, flaky.calls)

	stored, _ := f.outbox.Get(event.ID)
	assert.Equal(t, model.OutboxStatusDone, stored.Status)
}

func TestDispatchReschedulesWithBackoff(t *testing.T) {
	f := newDispatcherFixture()
	event := f.publish(t)

	down := &fakeSink{name: "down", failures: -1, err: errors.New("connection refused")}
	d := f.dispatcher(down)

	res, err := d.ProcessBatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Retried)

	stored, _ := f.outbox.Get(event.ID)
	assert.Equal(t, model.OutboxStatusPending, stored.Status)
	assert.Equal(t, 1, stored.AttemptCount)
	assert.Equal(t, t0.Add(time.Second), stored.NextAttemptAt)
	assert.Contains(t, stored.LastError, "connection refused")

	t.Run("not due yet", func(t *testing.T) {
		res, err := d.ProcessBatch(context.Background())
		require.NoError(t, err)
		assert.Zero(t, res.Leased)
	})

	f.clock.Advance(time.Second)
	_, err = d.ProcessBatch(context.Background())
	require.NoError(t, err)

	stored, _ = f.outbox.Get(event.ID)
	assert.Equal(t, 2, stored.AttemptCount)
	assert.Equal(t, f.clock.Now().Add(2*time.Second), stored.NextAttemptAt)

	t.Run("gives up after max attempts", func(t *testing.T) {
		f.clock.Advance(2 * time.Second)
		res, err := d.ProcessBatch(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 1, res.Failed)

		stored, _ := f.outbox.Get(event.ID)
		assert.Equal(t, model.OutboxStatusFailed, stored.Status)
		assert.Equal(t, 3, stored.AttemptCount)
	})
}

func TestDispatchPermanentFailure(t *testing.T) {
	f := newDispatcherFixture()
	event := f.publish(t)

	broken := &fakeSink{name: "broken", failures: -1, err: Permanent(errors.New("chat deleted"))}
	res, err := f.dispatcher(broken).ProcessBatch(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, 1, broken.calls, "permanent errors are not retried inline")

	stored, _ := f.outbox.Get(event.ID)
	assert.Equal(t, model.OutboxStatusFailed, stored.Status)
}

func TestExpiredLeaseIsTakenOver(t *testing.T) {
	f := newDispatcherFixture()
	event := f.publish(t)

	_, err := f.outbox.Lease(context.Background(), "crashed-worker", 10, t0, time.Minute)
	require.NoError(t, err)

	sink := &fakeSink{name: "chat"}
	d := f.dispatcher(sink)

	res, err := d.ProcessBatch(context.Background())
	require.NoError(t, err)
	assert.Zero(t, res.Leased, "lease still held")

	f.clock.Advance(time.Minute)
	res, err = d.ProcessBatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Delivered)
	assert.Equal(t, event.ID, sink.delivered[0].ID)
}

func TestRetryDelay(t *testing.T) {
	d := NewDispatcher(nil, nil, clock.NewFake(t0), DispatcherConfig{
		RetryBackoff:  5 * time.Second,
		RetryMaxDelay: time.Minute,
	}, zap.NewNop())

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 5 * time.Second},
		{2, 10 * time.Second},
		{3, 20 * time.Second},
		{4, 40 * time.Second},
		{5, time.Minute},
		{30, time.Minute},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, d.RetryDelay(tt.attempt), "attempt %d", tt.attempt)
	}
}

func TestPermanent(t *testing.T) {
	assert.Nil(t, Permanent(nil))

	err := Permanent(errors.New("blocked"))
	assert.True(t, IsPermanent(err))
	assert.True(t, IsPermanent(errors.Join(errors.New("other"), err)))
	assert.False(t, IsPermanent(errors.New("blocked")))
}
