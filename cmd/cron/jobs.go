package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/cricmirror/core/internal/app"
	"github.com/cricmirror/core/pkg/database/pool"
)

func newJobsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "jobs",
		Short: "List registered jobs with their schedule and toggle",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			a, err := loadApp(ctx, "cron-cli", app.WithPoolConfig(pool.CLIConfig()))
			if err != nil {
				return err
			}
			defer a.Close()

			statuses, err := a.Manager.GetJobStatus(ctx)
			if err != nil {
				return err
			}
			toggles, err := a.Store.ListJobToggles(ctx)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "JOB\tSCHEDULE\tENABLED\tLOCKED")
			for _, s := range statuses {
				enabled := true
				if t, ok := toggles[s.Name]; ok {
					enabled = t.Enabled
				}
				fmt.Fprintf(w, "%s\t%s\t%t\t%t\n", s.Name, s.Schedule, enabled, s.IsLocked)
			}
			return w.Flush()
		},
	}
}
