// Package cmd provides CLI commands for the sgb tool.
package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/signalboard/sgb-cli/config"
	"github.com/signalboard/sgb-cli/pkg/db"
)

// Database command flags
var (
	dbDryRun       bool
	dbTarget       string
	dbOutput       string
	dbMigrationDir string
	dbYes          bool
)

// DbCommandDeps holds the dependencies for database commands.
type DbCommandDeps struct {
	Config      *config.CLIConfig
	LoadConfig  func(*cobra.Command) (*config.CLIConfig, error)
	ConnectToDB func(context.Context, *config.CLIConfig) (*pgxpool.Pool, error)
}

// DefaultDbDeps returns the default dependencies for production use.
func DefaultDbDeps() *DbCommandDeps {
	return &DbCommandDeps{
		LoadConfig:  loadConfigForCommand,
		ConnectToDB: connectToDatabase,
	}
}

// NewDbCommand creates the root db command with all subcommands.
func NewDbCommand() *cobra.Command {
	deps := DefaultDbDeps()

	cmd := &cobra.Command{
		Use:   "db",
		Short: "Database management commands",
		Long: `Database management commands for Signalboard.

Manage database schema migrations and view migration status.

The db command connects directly to the PostgreSQL database to run migrations
and check status. Connection settings come from the config file or from
DATABASE_URL / DB_* environment variables.

Migration files are SQL files in the migrations directory, named with numeric
prefixes (e.g., 001_create_event_tables.sql). Migrations are applied in
alphabetical order and tracked in the schema_migrations table.

Examples:
  # Show migration status
  sgb db status

  # Apply all pending migrations
  sgb db migrate

  # Preview migrations without applying
  sgb db migrate --dry-run

  # Apply migrations up to a specific version
  sgb db migrate --target 002`,
		Aliases: []string{"database", "migrations"},
	}

	cmd.PersistentFlags().StringVarP(&dbMigrationDir, "migrations", "m", "", "Path to migrations directory (default from config)")

	cmd.AddCommand(newDbMigrateCommand(deps))
	cmd.AddCommand(newDbStatusCommand(deps))

	return cmd
}

// newDbMigrateCommand creates the 'db migrate' subcommand.
func newDbMigrateCommand(deps *DbCommandDeps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		Long: `Apply pending database migrations.

Shows pending migrations before applying them. Migrations are executed in
alphabetical order based on their filename prefix. Each migration is run
in a transaction, and the migration is recorded in the schema_migrations
table.

If a migration fails, the transaction is rolled back and no further
migrations are attempted.

Examples:
  # Apply all pending migrations
  sgb db migrate

  # Preview migrations without applying
  sgb db migrate --dry-run

  # Apply migrations up to version 002
  sgb db migrate --target 002`,
		Example: `  sgb db migrate
  sgb db migrate --dry-run
  sgb db migrate --target 002`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDbMigrate(cmd, deps)
		},
	}

	cmd.Flags().BoolVar(&dbDryRun, "dry-run", false, "Show what would be applied without executing")
	cmd.Flags().StringVarP(&dbTarget, "target", "t", "", "Target version to migrate to (e.g., 002)")
	cmd.Flags().BoolVarP(&dbYes, "yes", "y", false, "Skip the confirmation prompt")

	return cmd
}

// newDbStatusCommand creates the 'db status' subcommand.
func newDbStatusCommand(deps *DbCommandDeps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show database migration status",
		Long: `Show the current state of database migrations.

Displays three categories of migrations:
  - Applied: migrations that have been applied and have corresponding files
  - Pending: migrations with files that have not been applied yet
  - Drift: migrations that were applied but no longer have corresponding files

Examples:
  # Show migration status
  sgb db status

  # Output as JSON for programmatic use
  sgb db status --output json`,
		Example: `  sgb db status
  sgb db status --output json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDbStatus(cmd, deps)
		},
	}

	cmd.Flags().StringVarP(&dbOutput, "output", "o", "", "Output format: text, json, yaml")

	return cmd
}

// migrationsDir resolves the migrations directory: flag wins over config.
func migrationsDir(cfg *config.CLIConfig) string {
	if dbMigrationDir != "" {
		return dbMigrationDir
	}
	return cfg.MigrationsDir
}

// runDbMigrate executes the db migrate command.
func runDbMigrate(cmd *cobra.Command, deps *DbCommandDeps) error {
	ctx := cmd.Context()

	cfg, err := deps.LoadConfig(cmd)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	deps.Config = cfg

	pool, err := deps.ConnectToDB(ctx, cfg)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer pool.Close()

	dir := migrationsDir(cfg)

	pending, err := db.PendingMigrations(ctx, pool, dir)
	if err != nil {
		return fmt.Errorf("getting pending migrations: %w", err)
	}

	out := cmd.OutOrStdout()

	if len(pending) == 0 {
		fmt.Fprintln(out, "No pending migrations.")
		return nil
	}

	fmt.Fprintf(out, "Pending migrations (%d):\n", len(pending))
	for _, m := range pending {
		fmt.Fprintf(out, "  %s - %s\n", m.Version, m.Name)
	}
	fmt.Fprintln(out)

	if dbDryRun {
		fmt.Fprintln(out, "Dry run mode: no migrations applied.")
		return nil
	}

	if !dbYes {
		fmt.Fprint(out, "Apply these migrations? (y/N): ")
		var response string
		fmt.Scanln(&response)
		if strings.ToLower(response) != "y" {
			fmt.Fprintln(out, "Migration cancelled.")
			return nil
		}
	}

	var result *db.MigrationResult
	if dbTarget != "" {
		fmt.Fprintf(out, "Applying migrations up to version %s...\n", dbTarget)
		result, err = db.RunMigrationsTo(ctx, pool, dir, dbTarget)
	} else {
		fmt.Fprintln(out, "Applying all pending migrations...")
		result, err = db.RunMigrations(ctx, pool, dir)
	}

	if err != nil {
		fmt.Fprintf(out, "\nMigration failed: %v\n", err)
		if result != nil && len(result.Applied) > 0 {
			fmt.Fprintln(out, "\nSuccessfully applied before failure:")
			for _, v := range result.Applied {
				fmt.Fprintf(out, "  ✓ %s\n", v)
			}
		}
		return err
	}

	fmt.Fprintln(out)
	if len(result.Applied) > 0 {
		fmt.Fprintf(out, "Successfully applied %d migration(s):\n", len(result.Applied))
		for _, v := range result.Applied {
			fmt.Fprintf(out, "  ✓ %s\n", v)
		}
	}
	if len(result.Skipped) > 0 {
		fmt.Fprintf(out, "\nSkipped %d migration(s) (already applied):\n", len(result.Skipped))
		for _, v := range result.Skipped {
			fmt.Fprintf(out, "  - %s\n", v)
		}
	}

	fmt.Fprintln(out)
	fmt.Fprintln(out, "Migrations completed successfully.")
	return nil
}

// runDbStatus executes the db status command.
func runDbStatus(cmd *cobra.Command, deps *DbCommandDeps) error {
	ctx := cmd.Context()

	cfg, err := deps.LoadConfig(cmd)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	deps.Config = cfg

	pool, err := deps.ConnectToDB(ctx, cfg)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer pool.Close()

	status, err := db.Status(ctx, pool, migrationsDir(cfg))
	if err != nil {
		return fmt.Errorf("getting migration status: %w", err)
	}

	format, err := resolveFormat(cfg, dbOutput)
	if err != nil {
		return err
	}

	if format != config.OutputFormatText {
		return writeStructured(cmd.OutOrStdout(), format, status)
	}
	return outputMigrationStatusText(cmd, status)
}

// outputMigrationStatusText formats migration status for terminal display.
func outputMigrationStatusText(cmd *cobra.Command, status *db.MigrationStatus) error {
	out := cmd.OutOrStdout()

	if len(status.Applied) > 0 {
		fmt.Fprintf(out, "Applied Migrations (%d):\n", len(status.Applied))
		fmt.Fprintln(out, "  VERSION   NAME                                      APPLIED")
		fmt.Fprintln(out, "  -------   ----                                      -------")
		for _, m := range status.Applied {
			appliedAt := "-"
			if m.AppliedAt != nil {
				appliedAt = m.AppliedAt.Format("2006-01-02 15:04:05")
			}
			fmt.Fprintf(out, "  %-9s %-41s %s\n",
				truncateString(m.Version, 9),
				truncateString(m.Name, 41),
				appliedAt)
		}
		fmt.Fprintln(out)
	}

	if len(status.Pending) > 0 {
		fmt.Fprintf(out, "Pending Migrations (%d):\n", len(status.Pending))
		fmt.Fprintln(out, "  VERSION   NAME")
		fmt.Fprintln(out, "  -------   ----")
		for _, m := range status.Pending {
			fmt.Fprintf(out, "  %-9s %s\n", truncateString(m.Version, 9), m.Name)
		}
		fmt.Fprintln(out)
	}

	if len(status.Drift) > 0 {
		fmt.Fprintf(out, "Drift (%d) - applied but file missing:\n", len(status.Drift))
		for _, m := range status.Drift {
			fmt.Fprintf(out, "  %s\n", m.Version)
		}
		fmt.Fprintln(out)
	}

	if len(status.Applied) == 0 && len(status.Pending) == 0 && len(status.Drift) == 0 {
		fmt.Fprintln(out, "No migrations found.")
		return nil
	}

	fmt.Fprintf(out, "Summary: %d applied, %d pending", len(status.Applied), len(status.Pending))
	if len(status.Drift) > 0 {
		fmt.Fprintf(out, ", %d drift", len(status.Drift))
	}
	fmt.Fprintln(out)

	return nil
}
