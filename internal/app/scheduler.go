package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/Freeeeeet/tutoring_scheduler/internal/clock"
	"github.com/Freeeeeet/tutoring_scheduler/internal/notify"
	"github.com/Freeeeeet/tutoring_scheduler/internal/service"
)

const jobTimeout = 5 * time.Minute

// SchedulerConfig расписания фоновых задач
type SchedulerConfig struct {
	SweepSchedule          string
	OutboxSchedule         string
	SlotGenerationSchedule string
	SlotGenerationWeeks    int
	AutoCompleteSessions   bool
}

// Jobs сервисы, которые дёргает планировщик
type Jobs struct {
	Requests   *service.RequestService
	Proposals  *service.ProposalService
	Templates  *service.RecurringSlotService
	Dispatcher *notify.Dispatcher
}

// SweepReport итог одного прохода sweep
type SweepReport struct {
	RequestsExpired   int
	ProposalsExpired  int
	SessionsCompleted int
	SessionsRepaired  int
}

// Scheduler управляет фоновыми задачами.
// Одна задача не запускается повторно, пока не закончился предыдущий запуск.
type Scheduler struct {
	cron   *cron.Cron
	jobs   Jobs
	cfg    SchedulerConfig
	clock  clock.Clock
	logger *zap.Logger
	ctx    context.Context
}

// NewScheduler создаёт новый планировщик и регистрирует задачи
func NewScheduler(jobs Jobs, clk clock.Clock, cfg SchedulerConfig, logger *zap.Logger) (*Scheduler, error) {
	cl := cronLogger{logger: logger.Sugar()}
	s := &Scheduler{
		cron: cron.New(
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		jobs: jobs,
		cfg:  cfg,
		// Снимок времени для прохода sweep только растёт
		clock:  clock.NewMonotonic(clk),
		logger: logger,
		ctx:    context.Background(),
	}

	entries := []struct {
		name string
		spec string
		run  func(ctx context.Context)
	}{
		{"sweep", cfg.SweepSchedule, func(ctx context.Context) { _, _ = s.RunSweepOnce(ctx) }},
		{"outbox", cfg.OutboxSchedule, func(ctx context.Context) { _, _ = s.RunOutboxOnce(ctx) }},
		{"slot generation", cfg.SlotGenerationSchedule, s.GenerateSlots},
	}

	for _, e := range entries {
		if e.spec == "" {
			logger.Info("Background job disabled", zap.String("job", e.name))
			continue
		}
		run := e.run
		if _, err := s.cron.AddFunc(e.spec, func() { s.runJob(run) }); err != nil {
			return nil, fmt.Errorf("schedule %s job %q: %w", e.name, e.spec, err)
		}
	}

	return s, nil
}

func (s *Scheduler) runJob(run func(ctx context.Context)) {
	ctx, cancel := context.WithTimeout(s.ctx, jobTimeout)
	defer cancel()
	run(ctx)
}

// Start запускает фоновые задачи
func (s *Scheduler) Start(ctx context.Context) {
	s.logger.Info("Starting background scheduler", zap.Int("jobs", len(s.cron.Entries())))
	s.ctx = ctx

	// Первый запуск генерации сразу при старте
	if s.cfg.SlotGenerationSchedule != "" {
		s.GenerateSlots(ctx)
	}

	s.cron.Start()
}

// Stop останавливает фоновые задачи и ждёт завершения текущих запусков
func (s *Scheduler) Stop() {
	s.logger.Info("Stopping background scheduler")
	<-s.cron.Stop().Done()
}

// RunSweepOnce один проход: ремонт занятий, истечение запросов и предложений, автозавершение занятий.
// Ошибка одного шага не останавливает остальные.
func (s *Scheduler) RunSweepOnce(ctx context.Context) (SweepReport, error) {
	var (
		report SweepReport
		errs   []error
	)
	now := s.clock.Now()

	if s.jobs.Proposals != nil {
		repaired, err := s.jobs.Proposals.RepairMissingSessions(ctx)
		if err != nil {
			errs = append(errs, err)
		}
		report.SessionsRepaired = repaired
	}

	if s.jobs.Requests != nil {
		expired, err := s.jobs.Requests.SweepExpirations(ctx, now)
		if err != nil {
			errs = append(errs, err)
		}
		report.RequestsExpired = len(expired)
	}

	if s.jobs.Proposals != nil {
		expired, err := s.jobs.Proposals.SweepExpirations(ctx, now)
		if err != nil {
			errs = append(errs, err)
		}
		report.ProposalsExpired = len(expired)

		if s.cfg.AutoCompleteSessions {
			completed, err := s.jobs.Proposals.SweepSessions(ctx, now)
			if err != nil {
				errs = append(errs, err)
			}
			report.SessionsCompleted = len(completed)
		}
	}

	err := errors.Join(errs...)
	if err != nil {
		s.logger.Error("Sweep finished with errors", zap.Error(err))
	}

	if report != (SweepReport{}) {
		s.logger.Info("Sweep completed",
			zap.Time("now", now),
			zap.Int("requests_expired", report.RequestsExpired),
			zap.Int("proposals_expired", report.ProposalsExpired),
			zap.Int("sessions_completed", report.SessionsCompleted),
			zap.Int("sessions_repaired", report.SessionsRepaired),
		)
	}

	return report, err
}

// RunOutboxOnce одна пачка доставки уведомлений
func (s *Scheduler) RunOutboxOnce(ctx context.Context) (notify.BatchResult, error) {
	if s.jobs.Dispatcher == nil {
		return notify.BatchResult{}, nil
	}

	res, err := s.jobs.Dispatcher.ProcessBatch(ctx)
	if err != nil {
		s.logger.Error("Outbox dispatch failed", zap.Error(err))
	}
	return res, err
}

// GenerateSlots раскладывает активные шаблоны в слоты интервью
func (s *Scheduler) GenerateSlots(ctx context.Context) {
	if s.jobs.Templates == nil {
		return
	}

	s.logger.Info("Starting automatic slot generation")

	created, err := s.jobs.Templates.GenerateAll(ctx, s.cfg.SlotGenerationWeeks)
	if err != nil {
		s.logger.Error("Failed to generate slots", zap.Error(err))
		return
	}

	s.logger.Info("Automatic slot generation completed", zap.Int("created", created))
}
