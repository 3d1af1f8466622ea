package main

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/cricmirror/core/internal/app"
	"github.com/cricmirror/core/pkg/database/pool"
)

func newRunCmd() *cobra.Command {
	var runID string

	cmd := &cobra.Command{
		Use:   "run <job>",
		Short: "Run one job now and wait for it",
		Long: `Run one job synchronously. The run still passes the pause window and the job toggle.
Pass --run-id to adopt an id generated by the caller so its events can be followed.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if runID != "" {
				parsed, err := uuid.Parse(runID)
				if err != nil {
					return fmt.Errorf("--run-id must be a UUID: %w", err)
				}
				runID = parsed.String()
			} else {
				runID = uuid.NewString()
			}

			a, err := loadApp(cmd.Context(), "cron-cli", app.WithPoolConfig(pool.CLIConfig()))
			if err != nil {
				return err
			}
			defer a.Close()

			a.Logger.Info().
				Str("action", "manual_run").
				Str("job_name", args[0]).
				Str("run_id", runID).
				Msg("Running job once")

			if err := a.Manager.RunNow(cmd.Context(), args[0], runID); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), runID)
			return nil
		},
	}

	cmd.Flags().StringVar(&runID, "run-id", "", "Run id to record events under (UUID)")
	return cmd
}
