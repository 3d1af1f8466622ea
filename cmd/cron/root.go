package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cricmirror/core/internal/app"
	"github.com/cricmirror/core/internal/config"
	"github.com/cricmirror/core/pkg/logger"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "cricmirror",
		Short:        "Mirror Cricbuzz match data into the document store",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	root.AddCommand(
		newServeCmd(),
		newRunCmd(),
		newJobsCmd(),
		newMigrateCmd(),
	)
	return root
}

// loadApp reads the environment and wires the process
func loadApp(ctx context.Context, service string, opts ...app.Option) (*app.App, error) {
	cfg := config.Load()
	log := logger.New(service)

	a, err := app.New(ctx, cfg, log, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialise %s: %w", service, err)
	}
	return a, nil
}
