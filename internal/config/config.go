package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/Freeeeeet/tutoring_scheduler/internal/model"
)

const (
	StoragePostgres = "postgres"
	StorageMemory   = "memory"

	EnvProduction = "production"

	minSecretLength = 32
)

var knownWeakSecrets = []string{
	"change-me", "secret", "dev-secret", "password",
}

type Config struct {
	Environment     string `env:"ENV" envDefault:"development"`
	HTTPAddr        string `env:"HTTP_ADDR" envDefault:":8080"`
	StorageDriver   string `env:"STORAGE_DRIVER" envDefault:"postgres"`
	DBDSN           string `env:"DB_DSN"`
	RedisURL        string `env:"REDIS_URL"`
	TelegramToken   string `env:"TELEGRAM_TOKEN"`
	DisplayTimezone string `env:"DISPLAY_TIMEZONE" envDefault:"UTC"`

	MeetingTokenSecret string        `env:"MEETING_TOKEN_SECRET" envDefault:"dev-secret"`
	MeetingTokenTTL    time.Duration `env:"MEETING_TOKEN_TTL" envDefault:"2h"`

	// Расписания фоновых задач в формате robfig/cron
	SweepSchedule          string `env:"SWEEP_SCHEDULE" envDefault:"@every 1m"`
	OutboxSchedule         string `env:"OUTBOX_SCHEDULE" envDefault:"@every 10s"`
	SlotGenerationSchedule string `env:"SLOT_GENERATION_SCHEDULE" envDefault:"@daily"`
	SlotGenerationWeeks    int    `env:"SLOT_GENERATION_WEEKS" envDefault:"4"`

	RequestTTL             time.Duration `env:"REQUEST_TTL" envDefault:"168h"`
	RequestExtension       time.Duration `env:"REQUEST_EXTENSION" envDefault:"168h"`
	RequestExtensionWindow time.Duration `env:"REQUEST_EXTENSION_WINDOW" envDefault:"24h"`
	ProposalTTL            time.Duration `env:"PROPOSAL_TTL" envDefault:"24h"`
	MaxNegotiationRounds   int           `env:"MAX_NEGOTIATION_ROUNDS" envDefault:"3"`
	SlotDuration           time.Duration `env:"SLOT_DURATION" envDefault:"1h"`
	SlotCancellationCutoff time.Duration `env:"SLOT_CANCELLATION_CUTOFF" envDefault:"1h"`
	StartingSoonWindow     time.Duration `env:"STARTING_SOON_WINDOW" envDefault:"15m"`
	SweepBatchSize         int           `env:"SWEEP_BATCH_SIZE" envDefault:"200"`
	AutoCompleteSessions   bool          `env:"AUTO_COMPLETE_SESSIONS" envDefault:"true"`

	OutboxBatchSize     int           `env:"OUTBOX_BATCH_SIZE" envDefault:"50"`
	OutboxMaxAttempts   int           `env:"OUTBOX_MAX_ATTEMPTS" envDefault:"8"`
	OutboxRetryBackoff  time.Duration `env:"OUTBOX_RETRY_BACKOFF" envDefault:"5s"`
	OutboxRetryMaxDelay time.Duration `env:"OUTBOX_RETRY_MAX_DELAY" envDefault:"10m"`
	OutboxLeaseTTL      time.Duration `env:"OUTBOX_LEASE_TTL" envDefault:"1m"`
}

// Load читает .env (если есть) и переменные окружения
func Load() (*Config, error) {
	// Отсутствие .env не ошибка: в контейнере всё приходит через окружение
	if err := godotenv.Load(".env"); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) IsProduction() bool {
	return c.Environment == EnvProduction
}

// Validate проверяет согласованность настроек
func (c *Config) Validate() error {
	switch c.StorageDriver {
	case StoragePostgres:
		if c.DBDSN == "" {
			return fmt.Errorf("DB_DSN is required for %s storage", StoragePostgres)
		}
	case StorageMemory:
	default:
		return fmt.Errorf("STORAGE_DRIVER must be %q or %q, got %q", StoragePostgres, StorageMemory, c.StorageDriver)
	}

	if _, err := time.LoadLocation(c.DisplayTimezone); err != nil {
		return fmt.Errorf("DISPLAY_TIMEZONE: %w", err)
	}

	if c.IsProduction() {
		if err := validateSecret("MEETING_TOKEN_SECRET", c.MeetingTokenSecret); err != nil {
			return err
		}
	}

	if c.MaxNegotiationRounds < 1 {
		return fmt.Errorf("MAX_NEGOTIATION_ROUNDS must be at least 1")
	}
	if c.SweepBatchSize < 1 || c.OutboxBatchSize < 1 {
		return fmt.Errorf("SWEEP_BATCH_SIZE and OUTBOX_BATCH_SIZE must be at least 1")
	}
	if c.RequestTTL <= 0 || c.ProposalTTL <= 0 || c.SlotDuration <= 0 {
		return fmt.Errorf("REQUEST_TTL, PROPOSAL_TTL and SLOT_DURATION must be positive")
	}
	return nil
}

func validateSecret(name, value string) error {
	if len(value) < minSecretLength {
		return fmt.Errorf("%s must be at least %d characters in production", name, minSecretLength)
	}
	for _, weak := range knownWeakSecrets {
		if value == weak {
			return fmt.Errorf("%s is a known weak default; set a strong secret in production", name)
		}
	}
	return nil
}

// Location часовой пояс для текстов уведомлений
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.DisplayTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Policy константы движка одним значением
func (c *Config) Policy() model.Policy {
	p := model.DefaultPolicy()
	p.RequestTTL = c.RequestTTL
	p.RequestExtension = c.RequestExtension
	p.RequestExtensionWindow = c.RequestExtensionWindow
	p.ProposalTTL = c.ProposalTTL
	p.MaxNegotiationRounds = c.MaxNegotiationRounds
	p.SlotDuration = c.SlotDuration
	p.SlotCancellationCutoff = c.SlotCancellationCutoff
	p.StartingSoonWindow = c.StartingSoonWindow
	p.SweepBatchSize = c.SweepBatchSize
	return p
}
