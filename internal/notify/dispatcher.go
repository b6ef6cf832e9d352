package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"

	"github.com/Freeeeeet/tutoring_scheduler/internal/clock"
	"github.com/Freeeeeet/tutoring_scheduler/internal/model"
)

// DispatcherConfig параметры разбора outbox
type DispatcherConfig struct {
	Owner         string        // идентификатор экземпляра, держащего аренду
	BatchSize     int           // событий за один проход
	LeaseTTL      time.Duration // после истечения событие забирает другой экземпляр
	MaxAttempts   int           // после стольких неудач событие уходит в FAILED
	RetryBackoff  time.Duration // базовая задержка следующей попытки
	RetryMaxDelay time.Duration // потолок задержки
	InlineTries   uint          // попыток на приёмник внутри одного прохода

	// NewBackOff задержки между попытками внутри прохода; по умолчанию короткая экспонента
	NewBackOff func() backoff.BackOff
}

func (c DispatcherConfig) withDefaults() DispatcherConfig {
	if c.BatchSize <= 0 {
		c.BatchSize = 50
	}
	if c.LeaseTTL <= 0 {
		c.LeaseTTL = time.Minute
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 8
	}
	if c.RetryBackoff <= 0 {
		c.RetryBackoff = 5 * time.Second
	}
	if c.RetryMaxDelay <= 0 {
		c.RetryMaxDelay = 10 * time.Minute
	}
	if c.InlineTries == 0 {
		c.InlineTries = 3
	}
	if c.NewBackOff == nil {
		c.NewBackOff = func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 200 * time.Millisecond
			b.MaxInterval = 2 * time.Second
			return b
		}
	}
	return c
}

// Dispatcher забирает события из outbox и доставляет их во все приёмники
type Dispatcher struct {
	store  OutboxStore
	sinks  []Sink
	clock  clock.Clock
	cfg    DispatcherConfig
	logger *zap.Logger
}

func NewDispatcher(store OutboxStore, sinks []Sink, clk clock.Clock, cfg DispatcherConfig, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		store:  store,
		sinks:  sinks,
		clock:  clk,
		cfg:    cfg.withDefaults(),
		logger: logger,
	}
}

// BatchResult итог одного прохода
type BatchResult struct {
	Leased    int
	Delivered int
	Retried   int
	Failed    int
}

// ProcessBatch арендует пачку событий и пытается их доставить
func (d *Dispatcher) ProcessBatch(ctx context.Context) (BatchResult, error) {
	var res BatchResult

	events, err := d.store.Lease(ctx, d.cfg.Owner, d.cfg.BatchSize, d.clock.Now(), d.cfg.LeaseTTL)
	if err != nil {
		return res, fmt.Errorf("lease outbox events: %w", err)
	}
	res.Leased = len(events)

	for _, ev := range events {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}

		deliverErr := d.deliver(ctx, ev.Event)
		now := d.clock.Now()

		if deliverErr == nil {
			if err := d.store.MarkDone(ctx, ev.ID, d.cfg.Owner, now); err != nil {
				d.logger.Warn("Failed to mark event as delivered",
					zap.String("event_id", ev.ID.String()),
					zap.Error(err),
				)
				continue
			}
			res.Delivered++
			continue
		}

		if d.reschedule(ctx, ev, deliverErr, now) {
			res.Retried++
		} else {
			res.Failed++
		}
	}

	if res.Leased > 0 {
		d.logger.Info("Outbox batch processed",
			zap.Int("leased", res.Leased),
			zap.Int("delivered", res.Delivered),
			zap.Int("retried", res.Retried),
			zap.Int("failed", res.Failed),
		)
	}

	return res, nil
}

// deliver отправляет событие во все приёмники; ошибки приёмников объединяются
func (d *Dispatcher) deliver(ctx context.Context, event model.Event) error {
	var errs []error
	for _, sink := range d.sinks {
		_, err := backoff.Retry(ctx, func() (struct{}, error) {
			err := sink.Deliver(ctx, event)
			if IsPermanent(err) {
				return struct{}{}, backoff.Permanent(err)
			}
			return struct{}{}, err
		},
			backoff.WithBackOff(d.cfg.NewBackOff()),
			backoff.WithMaxTries(d.cfg.InlineTries),
		)
		if err != nil {
			d.logger.Debug("Sink delivery failed",
				zap.String("sink", sink.Name()),
				zap.String("event_id", event.ID.String()),
				zap.Error(err),
			)
			errs = append(errs, fmt.Errorf("%s: %w", sink.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// reschedule возвращает событие в очередь или переводит в FAILED. true, если будет повтор.
func (d *Dispatcher) reschedule(ctx context.Context, ev *model.OutboxEvent, cause error, now time.Time) bool {
	attempt := ev.AttemptCount + 1

	if IsPermanent(cause) || attempt >= d.cfg.MaxAttempts {
		d.logger.Warn("Permanent dependency failure, event dropped",
			zap.String("event_id", ev.ID.String()),
			zap.String("event_type", string(ev.Event.Type)),
			zap.Int("attempts", attempt),
			zap.Error(cause),
		)
		if err := d.store.MarkFailed(ctx, ev.ID, d.cfg.Owner, cause.Error(), now); err != nil {
			d.logger.Warn("Failed to mark event as failed", zap.String("event_id", ev.ID.String()), zap.Error(err))
		}
		return false
	}

	next := now.Add(d.RetryDelay(attempt))
	d.logger.Warn("Event delivery failed, will retry",
		zap.String("event_id", ev.ID.String()),
		zap.String("event_type", string(ev.Event.Type)),
		zap.Int("attempt", attempt),
		zap.Time("next_attempt_at", next),
		zap.Error(cause),
	)
	if err := d.store.MarkRetry(ctx, ev.ID, d.cfg.Owner, next, cause.Error(), now); err != nil {
		d.logger.Warn("Failed to reschedule event", zap.String("event_id", ev.ID.String()), zap.Error(err))
	}
	return true
}

// RetryDelay задержка перед попыткой номер attempt+1: RetryBackoff·2^(attempt-1), не больше RetryMaxDelay
func (d *Dispatcher) RetryDelay(attempt int) time.Duration {
	delay := d.cfg.RetryBackoff
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= d.cfg.RetryMaxDelay {
			return d.cfg.RetryMaxDelay
		}
	}
	if delay > d.cfg.RetryMaxDelay {
		return d.cfg.RetryMaxDelay
	}
	return delay
}
