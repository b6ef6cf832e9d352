package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Freeeeeet/tutoring_scheduler/internal/app"
	"github.com/Freeeeeet/tutoring_scheduler/internal/clock"
	"github.com/Freeeeeet/tutoring_scheduler/internal/config"
)

func newSweepCmd() *cobra.Command {
	var deliver bool

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Run one expiry sweep pass and exit",
		Long: `Runs a single sweep pass: repairs sessions missing after an accepted proposal,
expires overdue requests and proposals, and auto-completes finished sessions.
Useful from an external scheduler when the engine runs without its own cron.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			logger := app.NewLogger(cfg.Environment)
			defer logger.Sync()

			engine, err := app.New(cmd.Context(), cfg, clock.Real{}, logger)
			if err != nil {
				return err
			}
			defer engine.Close()

			report, err := engine.Scheduler.RunSweepOnce(cmd.Context())
			fmt.Fprintf(cmd.OutOrStdout(), "requests expired: %d\nproposals expired: %d\nsessions completed: %d\nsessions repaired: %d\n",
				report.RequestsExpired, report.ProposalsExpired, report.SessionsCompleted, report.SessionsRepaired)
			if err != nil {
				return err
			}

			if deliver {
				res, err := engine.Scheduler.RunOutboxOnce(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "notifications delivered: %d, retried: %d, failed: %d\n", res.Delivered, res.Retried, res.Failed)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&deliver, "deliver", true, "also deliver one batch of queued notifications")
	return cmd
}
