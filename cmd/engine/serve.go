package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Freeeeeet/tutoring_scheduler/internal/app"
	"github.com/Freeeeeet/tutoring_scheduler/internal/clock"
	"github.com/Freeeeeet/tutoring_scheduler/internal/config"
)

func newServeCmd() *cobra.Command {
	var migrate bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, background scheduler and notification relay",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, migrate)
		},
	}

	cmd.Flags().BoolVar(&migrate, "migrate", true, "apply pending migrations before start (postgres only)")
	return cmd
}

func runServe(ctx context.Context, migrate bool) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := app.NewLogger(cfg.Environment)
	defer logger.Sync()

	logger.Info("Starting tutoring engine",
		zap.String("version", Version),
		zap.String("environment", cfg.Environment),
		zap.String("storage", cfg.StorageDriver),
		zap.Bool("telegram", cfg.TelegramToken != ""),
		zap.Bool("redis", cfg.RedisURL != ""),
	)

	engine, err := app.New(ctx, cfg, clock.Real{}, logger)
	if err != nil {
		logger.Error("Failed to build engine", zap.Error(err))
		return err
	}
	defer engine.Close()

	if migrate && engine.Pool() != nil {
		if err := migrateUp(ctx, engine, logger); err != nil {
			return err
		}
	}

	return engine.Run(ctx)
}

func migrateUp(ctx context.Context, engine *app.App, logger *zap.Logger) error {
	migrator, err := app.NewMigrator(engine.Pool(), logger)
	if err != nil {
		return err
	}
	defer migrator.Close()

	if err := migrator.Run(ctx); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}
