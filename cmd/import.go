package cmd

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/signalboard/sgb-cli/config"
	"github.com/signalboard/sgb-cli/pkg/ingest"
	"github.com/signalboard/sgb-cli/pkg/store"
)

// Import command flags
var (
	importDryRun bool
	importOutput string
)

// ImportCommandDeps holds the dependencies for import commands.
type ImportCommandDeps struct {
	Config      *config.CLIConfig
	LoadConfig  func(*cobra.Command) (*config.CLIConfig, error)
	ConnectToDB func(context.Context, *config.CLIConfig) (*pgxpool.Pool, error)
}

// DefaultImportDeps returns the default dependencies for production use.
func DefaultImportDeps() *ImportCommandDeps {
	return &ImportCommandDeps{
		LoadConfig:  loadConfigForCommand,
		ConnectToDB: connectToDatabase,
	}
}

// NewImportCommand creates the import command with all subcommands.
func NewImportCommand() *cobra.Command {
	deps := DefaultImportDeps()

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Batch import JSONL exports",
		Long: `Batch import JSONL exports from the upstream system of record.

Each line of the file is one event; the notion_id field becomes the
external correlation key, so re-importing the same export updates rows in
place instead of duplicating them. Rejected lines are recorded against the
import job with their line number and never abort the run.

Examples:
  # Import a content export
  sgb import content ./exports/content-2026-03.jsonl

  # Validate a funnel export without writing
  sgb import funnel ./exports/funnel-2026-03.jsonl --dry-run

  # Inspect a finished job and its rejected lines
  sgb import status <job-id>`,
	}

	cmd.PersistentFlags().BoolVar(&importDryRun, "dry-run", false, "Parse and validate without writing")

	cmd.AddCommand(newImportRunCommand(deps, ingest.KindContent, "content",
		"Import a content event JSONL export"))
	cmd.AddCommand(newImportRunCommand(deps, ingest.KindFunnel, "funnel",
		"Import a funnel event JSONL export"))
	cmd.AddCommand(newImportStatusCommand(deps))

	return cmd
}

// newImportRunCommand creates an import subcommand for one record kind.
func newImportRunCommand(deps *ImportCommandDeps, kind ingest.Kind, use, short string) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <file>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		Example: fmt.Sprintf(`  sgb import %s ./export.jsonl
  sgb import %s ./export.jsonl --dry-run`, use, use),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(cmd, deps, kind, args[0])
		},
	}
}

// newImportStatusCommand creates the 'import status' subcommand.
func newImportStatusCommand(deps *ImportCommandDeps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status <job-id>",
		Short: "Show an import job and its rejected lines",
		Args:  cobra.ExactArgs(1),
		Example: `  sgb import status 7d9a1c0e-...
  sgb import status 7d9a1c0e-... --output json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImportStatus(cmd, deps, args[0])
		},
	}

	cmd.Flags().StringVarP(&importOutput, "output", "o", "", "Output format: text, json, yaml")

	return cmd
}

// runImport executes a batch import.
func runImport(cmd *cobra.Command, deps *ImportCommandDeps, kind ingest.Kind, path string) error {
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

	logger := newLogger(cfg)
	opts, err := cfg.Ingest.StoreOptions()
	if err != nil {
		return err
	}

	repo := store.NewRepository(pool, logger, opts)
	jobs := ingest.NewJobRepository(pool, logger)
	publisher := newPublisher(cfg, logger)

	progressEvery := 0
	if cfg.Ingest != nil {
		progressEvery = cfg.Ingest.ProgressEvery
	}

	imp := ingest.NewImporter(repo, jobs, publisher, logger, ingest.ImporterOptions{
		DryRun:        importDryRun,
		ProgressEvery: progressEvery,
	})

	job, runErr := imp.Run(ctx, kind, path)

	out := cmd.OutOrStdout()
	if job != nil {
		if importDryRun {
			fmt.Fprintln(out, "Dry run: no rows written.")
		}
		fmt.Fprintf(out, "Job %s: %s\n", job.ID, job.Status)
		fmt.Fprintf(out, "  records:  %d\n", job.TotalRecords)
		fmt.Fprintf(out, "  imported: %d\n", job.ImportedCount)
		fmt.Fprintf(out, "  failed:   %d\n", job.FailedCount)
		if job.FailedCount > 0 && !importDryRun {
			fmt.Fprintf(out, "\nInspect rejected lines with: sgb import status %s\n", job.ID)
		}
	}
	return runErr
}

// importJobReport is the structured output of 'import status'.
type importJobReport struct {
	Job    *ingest.Job        `json:"job" yaml:"job"`
	Errors []*ingest.JobError `json:"errors,omitempty" yaml:"errors,omitempty"`
}

// runImportStatus executes the import status command.
func runImportStatus(cmd *cobra.Command, deps *ImportCommandDeps, jobID string) error {
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

	jobs := ingest.NewJobRepository(pool, newLogger(cfg))

	job, err := jobs.Get(ctx, jobID)
	if err != nil {
		return fmt.Errorf("getting import job: %w", err)
	}
	jobErrors, err := jobs.Errors(ctx, jobID)
	if err != nil {
		return fmt.Errorf("getting import errors: %w", err)
	}

	format, err := resolveFormat(cfg, importOutput)
	if err != nil {
		return err
	}

	if format != config.OutputFormatText {
		return writeStructured(cmd.OutOrStdout(), format, importJobReport{Job: job, Errors: jobErrors})
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Job %s (%s)\n", job.ID, job.Kind)
	fmt.Fprintf(out, "  file:     %s\n", job.SourceFile)
	fmt.Fprintf(out, "  status:   %s\n", job.Status)
	fmt.Fprintf(out, "  records:  %d\n", job.TotalRecords)
	fmt.Fprintf(out, "  imported: %d\n", job.ImportedCount)
	fmt.Fprintf(out, "  failed:   %d\n", job.FailedCount)
	if job.CompletedAt != nil {
		fmt.Fprintf(out, "  finished: %s\n", job.CompletedAt.UTC().Format("2006-01-02 15:04:05"))
	}

	if len(jobErrors) > 0 {
		fmt.Fprintf(out, "\nRejected lines (%d):\n", len(jobErrors))
		fmt.Fprintln(out, "  LINE   CODE                 MESSAGE")
		for _, e := range jobErrors {
			fmt.Fprintf(out, "  %-6d %-20s %s\n", e.LineNumber, e.ErrorCode, truncateString(e.ErrorMessage, 70))
		}
	}
	return nil
}
