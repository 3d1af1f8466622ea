package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/cricmirror/core/internal/app"
	"github.com/cricmirror/core/pkg/jobs"
)

func newServeCmd() *cobra.Command {
	var withHTTP bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the scheduler and worker pool until interrupted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := loadApp(ctx, "cron-service", app.WithStartupJobs(jobs.LiveMatchesJobKey))
			if err != nil {
				return err
			}
			defer a.Close()

			log := a.Logger
			a.Manager.Start()
			log.Info().
				Str("action", "scheduler_started").
				Int("job_count", len(a.Manager.GetJobs())).
				Msg("Cron job service started")

			errCh := make(chan error, 1)
			if withHTTP {
				srv := a.Server()
				go func() { errCh <- srv.Start() }()
				defer func() {
					shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
					defer cancel()
					if err := srv.Shutdown(shutdownCtx); err != nil {
						log.Warn().Err(err).Str("action", "server_shutdown_failed").Msg("Admin API did not shut down cleanly")
					}
				}()
			}

			select {
			case <-ctx.Done():
			case err := <-errCh:
				if err != nil {
					log.Error().Err(err).Str("action", "server_failed").Msg("Admin API stopped")
				}
			}

			log.Info().Str("action", "shutdown").Msg("Shutting down cron job service")
			a.Manager.Stop()
			log.Info().Str("action", "stopped").Msg("Cron job service stopped")
			return nil
		},
	}

	cmd.Flags().BoolVar(&withHTTP, "http", true, "Serve the admin API and /metrics next to the scheduler")
	return cmd
}
