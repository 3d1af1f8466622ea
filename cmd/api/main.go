package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/cricmirror/core/internal/app"
	"github.com/cricmirror/core/internal/config"
	"github.com/cricmirror/core/pkg/logger"
)

// The API process serves the admin surface only. Jobs it dispatches run on this
// process's worker pool; the schedule itself belongs to the cron process.
func main() {
	logger.SetupLogger()
	log := logger.New("api-service")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, config.Load(), log)
	if err != nil {
		log.Fatal().
			Err(err).
			Str("action", "app_init_failed").
			Msg("Failed to initialise API service")
	}
	defer a.Close()

	srv := a.Server()
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			log.Error().
				Err(err).
				Str("action", "server_failed").
				Msg("Server failed")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Str("action", "server_shutdown_failed").Msg("Server did not shut down cleanly")
	}
	a.Manager.Stop()
}
