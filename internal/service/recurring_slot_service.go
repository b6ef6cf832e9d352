package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Freeeeeet/tutoring_scheduler/internal/clock"
	"github.com/Freeeeeet/tutoring_scheduler/internal/errs"
	"github.com/Freeeeeet/tutoring_scheduler/internal/model"
)

// RecurringSlotService еженедельные шаблоны слотов интервью
type RecurringSlotService struct {
	templates RecurringSlotStore
	slots     *SlotService
	clock     clock.Clock
	logger    *zap.Logger
}

func NewRecurringSlotService(templates RecurringSlotStore, slots *SlotService, clk clock.Clock, logger *zap.Logger) *RecurringSlotService {
	return &RecurringSlotService{
		templates: templates,
		slots:     slots,
		clock:     clk,
		logger:    logger,
	}
}

// Create создаёт шаблон и сразу раскладывает его на weeksAhead недель
func (s *RecurringSlotService) Create(ctx context.Context, actor model.Actor, weekday time.Weekday, startHour, startMinute, weeksAhead int) (*model.RecurringSlotTemplate, int, error) {
	if !actor.IsAdmin() {
		return nil, 0, errs.Unauthorized("only admins can manage slot templates")
	}

	now := s.clock.Now()
	tpl := &model.RecurringSlotTemplate{
		ID:          uuid.New(),
		OwnerID:     actor.ID,
		Weekday:     int(weekday),
		StartHour:   startHour,
		StartMinute: startMinute,
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if !tpl.Validate() {
		return nil, 0, errs.Validation("weekday must be 0-6, hour 0-23, minute 0-59")
	}

	if err := s.templates.Create(ctx, tpl); err != nil {
		return nil, 0, fmt.Errorf("create slot template: %w", err)
	}

	s.logger.Info("Slot template created",
		zap.String("template_id", tpl.ID.String()),
		zap.String("owner_id", tpl.OwnerID.String()),
		zap.Int("weekday", tpl.Weekday),
		zap.Int("start_hour", tpl.StartHour),
		zap.Int("start_minute", tpl.StartMinute),
	)

	count := s.generate(ctx, tpl, weeksAhead)
	return tpl, count, nil
}

// generate создаёт слоты шаблона; прошедшие и пересекающиеся пропускаются
func (s *RecurringSlotService) generate(ctx context.Context, tpl *model.RecurringSlotTemplate, weeksAhead int) int {
	now := s.clock.Now()
	count := 0

	for _, start := range tpl.OccurrencesBetween(now, now.AddDate(0, 0, weeksAhead*7)) {
		// Пропускаем прошедшие слоты
		if !start.After(now) {
			continue
		}

		_, err := s.slots.createSlot(ctx, tpl.OwnerID, start)
		if err != nil {
			if errors.Is(err, errs.ErrOverlap) {
				s.logger.Debug("Slot already exists, skipping", zap.Time("start_time", start))
				continue
			}
			s.logger.Warn("Failed to create slot",
				zap.Error(err),
				zap.Time("start_time", start),
			)
			continue
		}

		count++
	}

	return count
}

// GenerateAll генерирует слоты для всех активных шаблонов.
// Вызывается планировщиком по SLOT_GENERATION_SCHEDULE.
func (s *RecurringSlotService) GenerateAll(ctx context.Context, weeksAhead int) (int, error) {
	templates, err := s.templates.ListActive(ctx)
	if err != nil {
		return 0, fmt.Errorf("get active slot templates: %w", err)
	}

	total := 0
	for _, tpl := range templates {
		total += s.generate(ctx, tpl, weeksAhead)
	}

	s.logger.Info("Generated slots for all templates",
		zap.Int("total_templates", len(templates)),
		zap.Int("total_slots_created", total),
	)

	return total, nil
}

// List шаблоны актора
func (s *RecurringSlotService) List(ctx context.Context, actor model.Actor) ([]*model.RecurringSlotTemplate, error) {
	return s.templates.ListByOwner(ctx, actor.ID)
}

func (s *RecurringSlotService) owned(ctx context.Context, actor model.Actor, id uuid.UUID) (*model.RecurringSlotTemplate, error) {
	tpl, err := s.templates.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get slot template: %w", err)
	}
	if tpl == nil {
		return nil, errs.NotFound("slot template")
	}
	if tpl.OwnerID != actor.ID && !actor.IsAdmin() {
		return nil, errs.Unauthorized("slot template belongs to another owner")
	}
	return tpl, nil
}

// Deactivate останавливает генерацию новых слотов
func (s *RecurringSlotService) Deactivate(ctx context.Context, actor model.Actor, id uuid.UUID) error {
	if _, err := s.owned(ctx, actor, id); err != nil {
		return err
	}
	if err := s.templates.Deactivate(ctx, id); err != nil {
		return fmt.Errorf("deactivate slot template: %w", err)
	}

	s.logger.Info("Slot template deactivated", zap.String("template_id", id.String()))
	return nil
}

// Delete удаляет шаблон; созданные по нему слоты остаются
func (s *RecurringSlotService) Delete(ctx context.Context, actor model.Actor, id uuid.UUID) error {
	if _, err := s.owned(ctx, actor, id); err != nil {
		return err
	}
	if err := s.templates.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete slot template: %w", err)
	}

	s.logger.Info("Slot template deleted", zap.String("template_id", id.String()))
	return nil
}
