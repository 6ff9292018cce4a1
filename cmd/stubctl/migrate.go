package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage database migrations",
		Long:  "Manage database migrations for the meal stub service",
	}
	cmd.AddCommand(migrateUpCmd())
	cmd.AddCommand(migrateStatusCmd())
	return cmd
}

func migrateUpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		Long:  "Apply all pending migrations from MIGRATIONS_DIR to the database",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return withApp(ctx, cfg, func(a *app) error {
				appliedCount, err := a.migrations.ApplyMigrations(ctx)
				if err != nil {
					return fmt.Errorf("migration failed: %w", err)
				}

				if appliedCount == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No pending migrations.")
				} else {
					fmt.Fprintf(cmd.OutOrStdout(), "Applied %d migration(s) successfully.\n", appliedCount)
				}
				return nil
			})
		},
	}
}

func migrateStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		Long:  "Show the status of all migrations (applied/pending)",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return withApp(ctx, cfg, func(a *app) error {
				migrations, err := a.migrations.GetMigrationStatus(ctx)
				if err != nil {
					return fmt.Errorf("failed to get migration status: %w", err)
				}

				// テーブル形式で出力
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 3, ' ', 0)
				fmt.Fprintln(w, "VERSION\tNAME\tSTATUS\tAPPLIED AT")
				fmt.Fprintln(w, "-------\t----\t------\t----------")
				for _, m := range migrations {
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", m.Version, m.Name, m.Status, m.AppliedAtString())
				}
				if err := w.Flush(); err != nil {
					return fmt.Errorf("failed to flush output: %w", err)
				}
				return nil
			})
		},
	}
}
