package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-telegram/bot"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/Freeeeeet/tutoring_scheduler/internal/clock"
	"github.com/Freeeeeet/tutoring_scheduler/internal/config"
	"github.com/Freeeeeet/tutoring_scheduler/internal/controller"
	"github.com/Freeeeeet/tutoring_scheduler/internal/controller/httpapi"
	"github.com/Freeeeeet/tutoring_scheduler/internal/meeting"
	"github.com/Freeeeeet/tutoring_scheduler/internal/notify"
	"github.com/Freeeeeet/tutoring_scheduler/internal/repository"
	"github.com/Freeeeeet/tutoring_scheduler/internal/repository/memory"
	"github.com/Freeeeeet/tutoring_scheduler/internal/service"
)

const shutdownTimeout = 15 * time.Second

// chatStore чаты и служебные сообщения
type chatStore interface {
	service.ChatGateway
	notify.MessageStore
	httpapi.ChatReader
}

type stores struct {
	requests  service.RequestStore
	slots     service.SlotStore
	proposals service.ProposalStore
	sessions  service.SessionStore
	templates service.RecurringSlotStore
	contacts  service.ContactStore
	chats     chatStore
	outbox    notify.OutboxStore
}

func postgresStores(pool *pgxpool.Pool, logger *zap.Logger) stores {
	return stores{
		requests:  repository.NewRequestRepository(pool),
		slots:     repository.NewInterviewSlotRepository(pool),
		proposals: repository.NewProposalRepository(pool),
		sessions:  repository.NewSessionRepository(pool),
		templates: repository.NewRecurringSlotRepository(pool, logger),
		contacts:  repository.NewContactRepository(pool),
		chats:     repository.NewChatRepository(pool),
		outbox:    repository.NewOutboxRepository(pool),
	}
}

func memoryStores() stores {
	db := memory.NewDB()
	return stores{
		requests:  memory.NewRequestRepository(db),
		slots:     memory.NewInterviewSlotRepository(db),
		proposals: memory.NewProposalRepository(db),
		sessions:  memory.NewSessionRepository(db),
		templates: memory.NewRecurringSlotRepository(db),
		contacts:  memory.NewContactRepository(db),
		chats:     memory.NewChatRepository(db),
		outbox:    memory.NewOutboxRepository(db),
	}
}

// App собранный движок: HTTP API, планировщик, доставка уведомлений и бот
type App struct {
	cfg    *config.Config
	logger *zap.Logger

	pool  *pgxpool.Pool
	redis *redis.Client

	Handler   http.Handler
	Scheduler *Scheduler
	Bot       *controller.BotController
}

// New собирает движок по конфигу
func New(ctx context.Context, cfg *config.Config, clk clock.Clock, logger *zap.Logger) (*App, error) {
	a := &App{cfg: cfg, logger: logger}

	var st stores
	switch cfg.StorageDriver {
	case config.StorageMemory:
		logger.Warn("Using in-memory storage, data is lost on restart")
		st = memoryStores()
	default:
		pool, err := OpenPool(ctx, cfg.DBDSN)
		if err != nil {
			return nil, err
		}
		a.pool = pool
		st = postgresStores(pool, logger)
	}

	policy := cfg.Policy()
	relay := notify.NewOutboxRelay(st.outbox, clk, logger)

	slots := service.NewSlotService(st.slots, relay, clk, policy, logger)
	requests := service.NewRequestService(st.requests, st.chats, relay, clk, policy, logger)
	proposals := service.NewProposalService(st.proposals, st.sessions, st.chats, relay, clk, policy, logger)
	templates := service.NewRecurringSlotService(st.templates, slots, clk, logger)
	contacts := service.NewContactService(st.contacts, clk, logger)

	formatter := notify.NewFormatter(cfg.Location())
	sinks := []notify.Sink{
		notify.NewChatSink(st.chats, requests, formatter, clk, logger),
	}

	if cfg.RedisURL != "" {
		client, err := openRedis(ctx, cfg.RedisURL)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.redis = client
		sinks = append(sinks, notify.NewRedisSink(client))
	}

	if cfg.TelegramToken != "" {
		b, err := bot.New(cfg.TelegramToken)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("create telegram bot: %w", err)
		}
		sinks = append(sinks, notify.NewTelegramSink(b, st.contacts, formatter, logger))
		a.Bot = controller.NewBotController(b, contacts, logger)
	}

	dispatcher := notify.NewDispatcher(st.outbox, sinks, clk, notify.DispatcherConfig{
		Owner:         "engine-" + uuid.NewString(),
		BatchSize:     cfg.OutboxBatchSize,
		LeaseTTL:      cfg.OutboxLeaseTTL,
		MaxAttempts:   cfg.OutboxMaxAttempts,
		RetryBackoff:  cfg.OutboxRetryBackoff,
		RetryMaxDelay: cfg.OutboxRetryMaxDelay,
	}, logger)

	scheduler, err := NewScheduler(Jobs{
		Requests:   requests,
		Proposals:  proposals,
		Templates:  templates,
		Dispatcher: dispatcher,
	}, clk, SchedulerConfig{
		SweepSchedule:          cfg.SweepSchedule,
		OutboxSchedule:         cfg.OutboxSchedule,
		SlotGenerationSchedule: cfg.SlotGenerationSchedule,
		SlotGenerationWeeks:    cfg.SlotGenerationWeeks,
		AutoCompleteSessions:   cfg.AutoCompleteSessions,
	}, logger)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Scheduler = scheduler

	issuer := meeting.NewIssuer(proposals, slots, clk, meeting.Config{
		Secret:             []byte(cfg.MeetingTokenSecret),
		TTL:                cfg.MeetingTokenTTL,
		StartingSoonWindow: policy.StartingSoonWindow,
	}, logger)

	a.Handler = httpapi.NewHandler(httpapi.Deps{
		Requests:  requests,
		Slots:     slots,
		Templates: templates,
		Proposals: proposals,
		Contacts:  contacts,
		Chats:     st.chats,
		Meetings:  issuer,
		Clock:     clk,
		Policy:    policy,
		Logger:    logger,
	}).Routes()

	return a, nil
}

// OpenPool подключается к PostgreSQL и проверяет соединение
func OpenPool(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

func openRedis(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse REDIS_URL: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// Run поднимает HTTP-сервер, планировщик и бота; блокируется до отмены ctx
func (a *App) Run(ctx context.Context) error {
	server := &http.Server{
		Addr:              a.cfg.HTTPAddr,
		Handler:           a.Handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	a.Scheduler.Start(ctx)
	defer a.Scheduler.Stop()

	if a.Bot != nil {
		if err := a.Bot.RegisterHandlers(ctx); err != nil {
			a.logger.Warn("Bot commands were not registered", zap.Error(err))
		}
		go a.Bot.Start(ctx)
	}

	serverErr := make(chan error, 1)
	go func() {
		a.logger.Info("HTTP server listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	a.logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}

// Close освобождает соединения
func (a *App) Close() {
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Warn("Failed to close redis", zap.Error(err))
		}
	}
	if a.pool != nil {
		a.pool.Close()
	}
}

// Pool пул PostgreSQL; nil для хранилища в памяти
func (a *App) Pool() *pgxpool.Pool {
	return a.pool
}
