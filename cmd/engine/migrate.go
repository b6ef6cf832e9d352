package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Freeeeeet/tutoring_scheduler/internal/app"
	"github.com/Freeeeeet/tutoring_scheduler/internal/config"
)

func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage database migrations",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(cmd, func(mg *app.Migrator) error {
				return mg.Run(cmd.Context())
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show applied and pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(cmd, func(mg *app.Migrator) error {
				if err := mg.Status(cmd.Context()); err != nil {
					return err
				}
				version, err := mg.Version(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "current version: %d\n", version)
				return nil
			})
		},
	})

	return cmd
}

func withMigrator(cmd *cobra.Command, fn func(mg *app.Migrator) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if cfg.StorageDriver != config.StoragePostgres {
		return fmt.Errorf("migrations require STORAGE_DRIVER=%s", config.StoragePostgres)
	}

	logger := app.NewLogger(cfg.Environment)
	defer logger.Sync()

	pool, err := app.OpenPool(cmd.Context(), cfg.DBDSN)
	if err != nil {
		return err
	}
	defer pool.Close()

	mg, err := app.NewMigrator(pool, logger)
	if err != nil {
		return err
	}
	defer mg.Close()

	return fn(mg)
}
