// Package notify доставка событий движка участникам.
// Сервисы пишут событие в outbox после коммита, Dispatcher разносит его по приёмникам
// (чат, Telegram, Redis) с повторами. Доставка at-least-once.
package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Freeeeeet/tutoring_scheduler/internal/clock"
	"github.com/Freeeeeet/tutoring_scheduler/internal/model"
)

// OutboxStore очередь событий на доставку
type OutboxStore interface {
	Enqueue(ctx context.Context, event model.Event, now time.Time) error
	Lease(ctx context.Context, owner string, limit int, now time.Time, leaseTTL time.Duration) ([]*model.OutboxEvent, error)
	MarkDone(ctx context.Context, id uuid.UUID, owner string, now time.Time) error
	MarkRetry(ctx context.Context, id uuid.UUID, owner string, nextAttemptAt time.Time, lastError string, now time.Time) error
	MarkFailed(ctx context.Context, id uuid.UUID, owner string, lastError string, now time.Time) error
}

// Sink один канал доставки
type Sink interface {
	Name() string
	Deliver(ctx context.Context, event model.Event) error
}

// OutboxRelay реализует service.Relay: событие только сохраняется, доставка асинхронная
type OutboxRelay struct {
	store  OutboxStore
	clock  clock.Clock
	logger *zap.Logger
}

func NewOutboxRelay(store OutboxStore, clk clock.Clock, logger *zap.Logger) *OutboxRelay {
	return &OutboxRelay{
		store:  store,
		clock:  clk,
		logger: logger,
	}
}

// Publish кладёт событие в outbox; повторная публикация того же ID игнорируется
func (r *OutboxRelay) Publish(ctx context.Context, event model.Event) error {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if err := r.store.Enqueue(ctx, event, r.clock.Now()); err != nil {
		return fmt.Errorf("enqueue event: %w", err)
	}

	r.logger.Debug("Event enqueued",
		zap.String("event_id", event.ID.String()),
		zap.String("event_type", string(event.Type)),
	)
	return nil
}

// ============ Постоянные ошибки ============

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent помечает ошибку приёмника как неисправимую: повторять доставку бессмысленно
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent проверяет, помечена ли ошибка как постоянная
func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}
