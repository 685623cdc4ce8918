package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/anstrom/alicorn/internal/config"
	"github.com/anstrom/alicorn/internal/db"
)

var migrateResetForce bool

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage the database schema",
	Long: `Apply or inspect the embedded schema migrations for the saved
comparison table. The scan tables themselves are owned by the scanner and
are never migrated here.`,
}

var migrateUpCmd = &cobra.Command{
	Use:     "up",
	Short:   "Apply pending migrations",
	Example: `  alicorn migrate up`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withDatabase(cmd.Context(), func(ctx context.Context, _ *config.Config, database *db.DB) error {
			applied, err := db.NewMigrator(database.DB).Up(ctx)
			if err != nil {
				return err
			}
			if len(applied) == 0 {
				fmt.Println("Schema is up to date")
				return nil
			}
			for _, name := range applied {
				fmt.Printf("Applied %s\n", name)
			}
			return nil
		})
	},
}

var migrateStatusCmd = &cobra.Command{
	Use:     "status",
	Short:   "Show migration status",
	Example: `  alicorn migrate status`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withDatabase(cmd.Context(), func(ctx context.Context, _ *config.Config, database *db.DB) error {
			statuses, err := db.NewMigrator(database.DB).Status(ctx)
			if err != nil {
				return err
			}
			return renderMigrationStatus(os.Stdout, statuses)
		})
	},
}

var migrateResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Drop the saved comparison schema and reapply it",
	Long: `Drop every table created by the migrations and apply them again.
All saved comparisons are lost. Requires --force.`,
	Example: `  alicorn migrate reset --force`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if !migrateResetForce {
			return fmt.Errorf("refusing to reset without --force")
		}
		return withDatabase(cmd.Context(), func(ctx context.Context, _ *config.Config, database *db.DB) error {
			applied, err := db.NewMigrator(database.DB).Reset(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("Schema reset, %d migration(s) applied\n", len(applied))
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
	migrateCmd.AddCommand(migrateUpCmd, migrateStatusCmd, migrateResetCmd)

	migrateResetCmd.Flags().BoolVar(&migrateResetForce, "force", false, "confirm that saved comparisons may be deleted")
}

func renderMigrationStatus(w io.Writer, statuses []db.MigrationStatus) error {
	table := tablewriter.NewWriter(w)
	table.Header("Migration", "Status", "Applied At")

	for _, s := range statuses {
		status := "pending"
		appliedAt := ""
		if s.Applied {
			status = "applied"
			appliedAt = s.AppliedAt.UTC().Format("2006-01-02 15:04:05")
		}
		if s.Modified {
			status += " (modified)"
		}
		if err := table.Append([]string{s.Name, status, appliedAt}); err != nil {
			return err
		}
	}

	return table.Render()
}
