package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Freeeeeet/tutoring_scheduler/internal/clock"
	"github.com/Freeeeeet/tutoring_scheduler/internal/errs"
	"github.com/Freeeeeet/tutoring_scheduler/internal/model"
)

// SlotService слоты интервью: создание, бронирование, отмена
type SlotService struct {
	slots  SlotStore
	clock  clock.Clock
	policy model.Policy
	events publisher
	logger *zap.Logger
}

func NewSlotService(slots SlotStore, relay Relay, clk clock.Clock, policy model.Policy, logger *zap.Logger) *SlotService {
	return &SlotService{
		slots:  slots,
		clock:  clk,
		policy: policy,
		events: publisher{relay: relay, logger: logger},
		logger: logger,
	}
}

// CreateSlot создаёт свободный слот длительностью SlotDuration
func (s *SlotService) CreateSlot(ctx context.Context, actor model.Actor, startTime time.Time) (*model.InterviewSlot, error) {
	if !actor.IsAdmin() {
		return nil, errs.Unauthorized("only admins can create interview slots")
	}
	return s.createSlot(ctx, actor.ID, startTime)
}

func (s *SlotService) createSlot(ctx context.Context, ownerID uuid.UUID, startTime time.Time) (*model.InterviewSlot, error) {
	now := s.clock.Now()
	startTime = startTime.UTC()

	// Проверяем что слот в будущем
	if !startTime.After(now) {
		return nil, errs.Validation("slot start must be in the future")
	}

	slot := &model.InterviewSlot{
		ID:        uuid.New(),
		OwnerID:   ownerID,
		StartTime: startTime,
		EndTime:   startTime.Add(s.policy.SlotDuration),
		Status:    model.SlotStatusAvailable,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.slots.Create(ctx, slot); err != nil {
		if errors.Is(err, errs.ErrOverlap) {
			return nil, err
		}
		return nil, fmt.Errorf("create slot: %w", err)
	}

	s.logger.Info("Interview slot created",
		zap.String("slot_id", slot.ID.String()),
		zap.String("owner_id", ownerID.String()),
		zap.Time("start_time", slot.StartTime),
	)

	return slot, nil
}

// Get возвращает слот по ID
func (s *SlotService) Get(ctx context.Context, id uuid.UUID) (*model.InterviewSlot, error) {
	slot, err := s.slots.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get slot: %w", err)
	}
	if slot == nil {
		return nil, errs.NotFound("slot")
	}
	return slot, nil
}

// BookSlot бронирует слот для кандидата. Запись условная по версии:
// из конкурентов побеждает один, остальные получают SLOT_ALREADY_BOOKED.
func (s *SlotService) BookSlot(ctx context.Context, id uuid.UUID, actor model.Actor, applicationID *uuid.UUID) (*model.InterviewSlot, error) {
	if actor.Role != model.RoleApplicant {
		return nil, errs.Unauthorized("only applicants can book interview slots")
	}

	var slot *model.InterviewSlot
	err := withConflictRetry(func() error {
		var err error
		slot, err = s.Get(ctx, id)
		if err != nil {
			return err
		}

		switch slot.Status {
		case model.SlotStatusAvailable:
		case model.SlotStatusBooked:
			return errs.SlotAlreadyBooked()
		default:
			return errs.InvalidTransition("slot", string(slot.Status), "book")
		}

		now := s.clock.Now()
		if !slot.StartTime.After(now) {
			return errs.Expired("slot")
		}

		expected := slot.Version
		slot.Status = model.SlotStatusBooked
		slot.ApplicantID = &actor.ID
		slot.ApplicationID = applicationID
		slot.BookedAt = &now
		slot.UpdatedAt = now
		return s.slots.Update(ctx, slot, expected)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Interview slot booked",
		zap.String("slot_id", slot.ID.String()),
		zap.String("applicant_id", actor.ID.String()),
	)

	event := newEvent(model.EventSlotBooked, slot.ID, actor, s.clock.Now(), slot.OwnerID, actor.ID)
	event.Payload["start_time"] = slot.StartTime
	if applicationID != nil {
		event.Payload["application_id"] = applicationID.String()
	}
	s.events.publish(ctx, event)

	return slot, nil
}

// CompleteSlot владелец отмечает прошедшее интервью
func (s *SlotService) CompleteSlot(ctx context.Context, id uuid.UUID, actor model.Actor) (*model.InterviewSlot, error) {
	var slot *model.InterviewSlot
	err := withConflictRetry(func() error {
		var err error
		slot, err = s.Get(ctx, id)
		if err != nil {
			return err
		}

		if slot.OwnerID != actor.ID && !actor.IsAdmin() {
			return errs.Unauthorized("only the slot owner can complete it")
		}
		if !slot.Status.CanTransitionTo(model.SlotStatusCompleted) {
			return errs.InvalidTransition("slot", string(slot.Status), "complete")
		}

		now := s.clock.Now()
		if now.Before(slot.StartTime) {
			return errs.InvalidTransition("slot", "not started", "complete")
		}

		expected := slot.Version
		slot.Status = model.SlotStatusCompleted
		slot.UpdatedAt = now
		return s.slots.Update(ctx, slot, expected)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Interview slot completed", zap.String("slot_id", slot.ID.String()))
	s.events.publish(ctx, newEvent(model.EventSlotCompleted, slot.ID, actor, s.clock.Now(), slot.OwnerID, derefID(slot.ApplicantID)))

	return slot, nil
}

// CancelSlot отменяет слот. Забронированный слот можно отменить не позже чем за
// SlotCancellationCutoff до начала; админ может отменить и позже, это фиксируется в AdminOverride.
func (s *SlotService) CancelSlot(ctx context.Context, id uuid.UUID, actor model.Actor, reason string) (*model.InterviewSlot, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, errs.MissingRequired("reason")
	}

	var (
		slot      *model.InterviewSlot
		wasBooked bool
	)
	err := withConflictRetry(func() error {
		var err error
		slot, err = s.Get(ctx, id)
		if err != nil {
			return err
		}

		if !slot.Status.CanTransitionTo(model.SlotStatusCancelled) {
			return errs.InvalidTransition("slot", string(slot.Status), "cancel")
		}

		now := s.clock.Now()
		wasBooked = slot.Status == model.SlotStatusBooked
		override := false

		if wasBooked {
			if !slot.IsParticipant(actor.ID) && !actor.IsAdmin() {
				return errs.Unauthorized("only the owner or the applicant can cancel a booked slot")
			}
			deadline := slot.StartTime.Add(-s.policy.SlotCancellationCutoff)
			if !now.Before(deadline) {
				if !actor.IsAdmin() {
					return errs.CancellationWindowClosed(fmt.Sprintf("booked slots can be cancelled until %s", deadline.Format(time.RFC3339)))
				}
				override = true
			}
		} else if slot.OwnerID != actor.ID && !actor.IsAdmin() {
			return errs.Unauthorized("only the slot owner can cancel it")
		}

		expected := slot.Version
		slot.Status = model.SlotStatusCancelled
		slot.CancellationReason = reason
		slot.CancelledBy = &actor.ID
		slot.AdminOverride = override
		slot.UpdatedAt = now
		return s.slots.Update(ctx, slot, expected)
	})
	if err != nil {
		return nil, err
	}

	if slot.AdminOverride {
		s.logger.Warn("Booked slot cancelled by admin after cutoff",
			zap.String("slot_id", slot.ID.String()),
			zap.String("admin_id", actor.ID.String()),
			zap.Time("start_time", slot.StartTime),
			zap.String("reason", reason),
		)
	} else {
		s.logger.Info("Interview slot cancelled",
			zap.String("slot_id", slot.ID.String()),
			zap.Bool("was_booked", wasBooked),
		)
	}

	if wasBooked {
		event := newEvent(model.EventSlotCancelled, slot.ID, actor, s.clock.Now(), slot.OwnerID, derefID(slot.ApplicantID))
		event.Payload["reason"] = reason
		event.Payload["start_time"] = slot.StartTime
		event.Payload["reschedule_required"] = true
		event.Payload["admin_override"] = slot.AdminOverride
		if slot.ApplicationID != nil {
			event.Payload["application_id"] = slot.ApplicationID.String()
		}
		s.events.publish(ctx, event)
	}

	return slot, nil
}

// DeleteSlot удаляет свободный слот
func (s *SlotService) DeleteSlot(ctx context.Context, id uuid.UUID, actor model.Actor) error {
	err := withConflictRetry(func() error {
		slot, err := s.Get(ctx, id)
		if err != nil {
			return err
		}

		if slot.OwnerID != actor.ID && !actor.IsAdmin() {
			return errs.Unauthorized("only the slot owner can delete it")
		}
		if slot.Status != model.SlotStatusAvailable {
			return errs.InvalidTransition("slot", string(slot.Status), "delete")
		}

		return s.slots.Delete(ctx, slot.ID, slot.Version)
	})
	if err != nil {
		return err
	}

	s.logger.Info("Interview slot deleted", zap.String("slot_id", id.String()))
	return nil
}

// ListAvailable свободные будущие слоты
func (s *SlotService) ListAvailable(ctx context.Context, filter model.ListFilter) ([]*model.InterviewSlot, error) {
	return s.slots.ListAvailable(ctx, s.clock.Now(), filter)
}

// ListForOwner слоты владельца
func (s *SlotService) ListForOwner(ctx context.Context, ownerID uuid.UUID, filter model.ListFilter) ([]*model.InterviewSlot, error) {
	return s.slots.ListByOwner(ctx, ownerID, filter)
}

// ListMine слоты актора: свои для админа, забронированные для кандидата
func (s *SlotService) ListMine(ctx context.Context, actor model.Actor, filter model.ListFilter) ([]*model.InterviewSlot, error) {
	if actor.Role == model.RoleApplicant {
		return s.slots.ListByApplicant(ctx, actor.ID, filter)
	}
	return s.slots.ListByOwner(ctx, actor.ID, filter)
}

func derefID(id *uuid.UUID) uuid.UUID {
	if id == nil {
		return uuid.Nil
	}
	return *id
}

