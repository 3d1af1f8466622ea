package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cricmirror/core/internal/config"
	"github.com/cricmirror/core/pkg/database"
)

func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
	}

	var steps int
	down := &cobra.Command{
		Use:   "down",
		Short: "Revert the last migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(func(m database.Migrator) error {
				if err := database.MigrateDown(m, steps); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "reverted %d migration(s)\n", max(steps, 1))
				return nil
			})
		},
	}
	down.Flags().IntVar(&steps, "steps", 1, "Number of migrations to revert")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withMigrator(func(m database.Migrator) error {
					if err := database.MigrateUp(m); err != nil {
						return err
					}
					fmt.Fprintln(cmd.OutOrStdout(), "schema is up to date")
					return nil
				})
			},
		},
		down,
		&cobra.Command{
			Use:   "version",
			Short: "Print the applied schema version",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withMigrator(func(m database.Migrator) error {
					version, dirty, ok, err := database.SchemaVersion(m)
					if err != nil {
						return err
					}
					if !ok {
						fmt.Fprintln(cmd.OutOrStdout(), "no migrations applied")
						return nil
					}
					fmt.Fprintf(cmd.OutOrStdout(), "version %d (dirty: %t)\n", version, dirty)
					return nil
				})
			},
		},
	)
	return cmd
}

func withMigrator(fn func(database.Migrator) error) error {
	m, err := database.NewMigrator(config.Load().DatabaseURL())
	if err != nil {
		return err
	}
	defer m.Close()
	return fn(m)
}
