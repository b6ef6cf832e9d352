package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Freeeeeet/tutoring_scheduler/internal/errs"
	"github.com/Freeeeeet/tutoring_scheduler/internal/model"
	"github.com/Freeeeeet/tutoring_scheduler/internal/repository/base"
)

// conflictRetries сколько раз клиентская операция перечитывает сущность после проигранной гонки версий
const conflictRetries = 3

// withConflictRetry повторяет fn, пока запись проигрывает гонку версий.
// fn обязана заново читать и проверять сущность: так проигравший получает точную ошибку
// (SLOT_ALREADY_BOOKED, INVALID_TRANSITION), а не общий конфликт.
func withConflictRetry(fn func() error) error {
	var err error
	for i := 0; i < conflictRetries; i++ {
		err = fn()
		if !base.IsVersionConflict(err) {
			return err
		}
	}
	return errs.Internal("too many concurrent updates", err)
}

// publisher отправляет события после коммита; ошибки только логируются
type publisher struct {
	relay  Relay
	logger *zap.Logger
}

func (p publisher) publish(ctx context.Context, event model.Event) {
	if p.relay == nil {
		return
	}
	if err := p.relay.Publish(ctx, event); err != nil {
		p.logger.Warn("Failed to publish event",
			zap.String("event_type", string(event.Type)),
			zap.String("entity_id", event.EntityID.String()),
			zap.Error(err),
		)
	}
}

func newEvent(typ model.EventType, entityID uuid.UUID, actor model.Actor, now time.Time, to ...uuid.UUID) model.Event {
	event := model.Event{
		ID:         uuid.New(),
		Type:       typ,
		EntityID:   entityID,
		Recipients: recipients(to...),
		Payload:    map[string]any{},
		OccurredAt: now,
	}
	if actor.Role != model.RoleSystem {
		id := actor.ID
		event.ActorID = &id
	}
	return event
}

// recipients убирает нулевые и повторяющиеся ID
func recipients(ids ...uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if id == uuid.Nil {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
