package cmd

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/signalboard/sgb-cli/config"
	sgberrors "github.com/signalboard/sgb-cli/pkg/errors"
	"github.com/signalboard/sgb-cli/pkg/report"
	"github.com/signalboard/sgb-cli/pkg/store"
)

// Funnel command flags
var (
	funnelKey       string
	funnelOccurred  string
	funnelOrg       string
	funnelSector    string
	funnelStage     string
	funnelSource    string
	funnelSourceKey string
	funnelAmount    string
	funnelOwner     string
	funnelNotes     string

	funnelListStage  string
	funnelListSector string
	funnelListSource string
	funnelListFrom   string
	funnelListUntil  string
	funnelListLimit  int
	funnelOutput     string
)

// FunnelCommandDeps holds the dependencies for funnel commands.
type FunnelCommandDeps struct {
	Config      *config.CLIConfig
	LoadConfig  func(*cobra.Command) (*config.CLIConfig, error)
	ConnectToDB func(context.Context, *config.CLIConfig) (*pgxpool.Pool, error)
}

// DefaultFunnelDeps returns the default dependencies for production use.
func DefaultFunnelDeps() *FunnelCommandDeps {
	return &FunnelCommandDeps{
		LoadConfig:  loadConfigForCommand,
		ConnectToDB: connectToDatabase,
	}
}

// NewFunnelCommand creates the funnel command with all subcommands.
func NewFunnelCommand() *cobra.Command {
	deps := DefaultFunnelDeps()

	cmd := &cobra.Command{
		Use:   "funnel",
		Short: "Record and query sales funnel events",
		Long: `Record and query sales funnel events.

A funnel event marks one organization reaching a stage (lead, meeting,
pilot, deal). Deal events may carry an amount, which feeds the monthly
revenue rollup. Events can name the content that sourced them via
--source-key; an unresolvable reference is kept with the link cleared
under the default policy, or refused under the reject policy.

Examples:
  # Record a lead sourced from a LinkedIn post
  sgb funnel add --key lead-acme --stage lead --org "Acme" --source linkedin --source-key notion-abc

  # Record a closed deal with revenue
  sgb funnel add --key deal-acme --stage deal --org "Acme" --amount 5000.00

  # List March deals
  sgb funnel list --stage deal --from 2026-03 --until 2026-04`,
	}

	cmd.AddCommand(newFunnelAddCommand(deps))
	cmd.AddCommand(newFunnelListCommand(deps))

	return cmd
}

// newFunnelAddCommand creates the 'funnel add' subcommand.
func newFunnelAddCommand(deps *FunnelCommandDeps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Record a funnel event",
		Long: `Record a sales funnel event.

With --key the write is an upsert keyed on the external key. Without it,
every call inserts a new row. --amount takes a decimal value (e.g.
5000.00) and is usually set on deal events.

--occurred accepts a date (2026-03-20), a month (2026-03), or a full
RFC3339 timestamp, and defaults to now.`,
		Example: `  sgb funnel add --key deal-acme --stage deal --org "Acme" --sector energy --amount 5000.00
  sgb funnel add --stage meeting --org "Northwind" --source threads`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFunnelAdd(cmd, deps)
		},
	}

	cmd.Flags().StringVar(&funnelKey, "key", "", "External correlation key (enables idempotent re-recording)")
	cmd.Flags().StringVar(&funnelOccurred, "occurred", "", "When the event occurred (default: now)")
	cmd.Flags().StringVar(&funnelOrg, "org", "", "Organization name")
	cmd.Flags().StringVar(&funnelSector, "sector", "", "Organization sector (energy, gov, other)")
	cmd.Flags().StringVar(&funnelStage, "stage", "", "Funnel stage (lead, meeting, pilot, deal)")
	cmd.Flags().StringVar(&funnelSource, "source", "", "Channel that sourced the event")
	cmd.Flags().StringVar(&funnelSourceKey, "source-key", "", "External key of the content event that sourced this")
	cmd.Flags().StringVar(&funnelAmount, "amount", "", "Monetary amount (e.g. 5000.00)")
	cmd.Flags().StringVar(&funnelOwner, "owner", "", "Owner of the opportunity")
	cmd.Flags().StringVar(&funnelNotes, "notes", "", "Free-form notes")
	_ = cmd.MarkFlagRequired("stage")

	return cmd
}

// newFunnelListCommand creates the 'funnel list' subcommand.
func newFunnelListCommand(deps *FunnelCommandDeps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List funnel events",
		Long: `List funnel events, optionally filtered by stage, sector, source
channel, and time range. The time range is half-open: --from is inclusive,
--until is exclusive. Events are returned oldest first.`,
		Example: `  sgb funnel list
  sgb funnel list --stage deal --output json
  sgb funnel list --sector energy --from 2026-01`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFunnelList(cmd, deps)
		},
	}

	cmd.Flags().StringVar(&funnelListStage, "stage", "", "Filter by stage")
	cmd.Flags().StringVar(&funnelListSector, "sector", "", "Filter by sector")
	cmd.Flags().StringVar(&funnelListSource, "source", "", "Filter by source channel")
	cmd.Flags().StringVar(&funnelListFrom, "from", "", "Inclusive lower time bound")
	cmd.Flags().StringVar(&funnelListUntil, "until", "", "Exclusive upper time bound")
	cmd.Flags().IntVar(&funnelListLimit, "limit", 0, "Maximum number of events to return")
	cmd.Flags().StringVarP(&funnelOutput, "output", "o", "", "Output format: text, json, yaml")

	return cmd
}

// runFunnelAdd executes the funnel add command.
func runFunnelAdd(cmd *cobra.Command, deps *FunnelCommandDeps) error {
	ctx := cmd.Context()

	cfg, err := deps.LoadConfig(cmd)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	deps.Config = cfg

	occurred, err := parseTimeFlag(funnelOccurred)
	if err != nil {
		return err
	}

	var amount *decimal.Decimal
	if funnelAmount != "" {
		d, err := decimal.NewFromString(funnelAmount)
		if err != nil {
			return fmt.Errorf("invalid amount %q: %w", funnelAmount, sgberrors.ErrValidation)
		}
		amount = &d
	}

	ev := &store.FunnelEvent{
		ExternalKey:           strFlagPtr(funnelKey),
		OccurredAt:            occurred,
		OrgName:               strFlagPtr(funnelOrg),
		Sector:                strFlagPtr(funnelSector),
		Stage:                 funnelStage,
		SourceChannel:         strFlagPtr(funnelSource),
		SourceContentNotionID: strFlagPtr(funnelSourceKey),
		Amount:                amount,
		Owner:                 strFlagPtr(funnelOwner),
		Notes:                 strFlagPtr(funnelNotes),
	}

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

	id, err := repo.UpsertFunnelEvent(ctx, ev)
	if err != nil {
		return fmt.Errorf("recording funnel event: %w", err)
	}

	publisher := newPublisher(cfg, logger)
	publisher.FunnelUpserted(ctx, id, ev.ExternalKey, ev.Stage,
		report.FormatMonth(report.MonthOf(ev.OccurredAt)))

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Recorded funnel event %d", id)
	if ev.ExternalKey != nil {
		fmt.Fprintf(out, " (key %s)", *ev.ExternalKey)
	}
	fmt.Fprintln(out)
	return nil
}

// runFunnelList executes the funnel list command.
func runFunnelList(cmd *cobra.Command, deps *FunnelCommandDeps) error {
	ctx := cmd.Context()

	cfg, err := deps.LoadConfig(cmd)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	deps.Config = cfg

	from, err := parseTimeFlag(funnelListFrom)
	if err != nil {
		return err
	}
	until, err := parseTimeFlag(funnelListUntil)
	if err != nil {
		return err
	}

	pool, err := deps.ConnectToDB(ctx, cfg)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer pool.Close()

	repo := store.NewRepository(pool, newLogger(cfg), store.Options{})
	eventsList, err := repo.QueryFunnelEvents(ctx, store.FunnelEventFilter{
		Stage:         funnelListStage,
		Sector:        funnelListSector,
		SourceChannel: funnelListSource,
		From:          from,
		Until:         until,
		Limit:         funnelListLimit,
	})
	if err != nil {
		return fmt.Errorf("listing funnel events: %w", err)
	}

	format, err := resolveFormat(cfg, funnelOutput)
	if err != nil {
		return err
	}

	if format != config.OutputFormatText {
		return writeStructured(cmd.OutOrStdout(), format, eventsList)
	}
	return outputFunnelEventsText(cmd, eventsList)
}

// outputFunnelEventsText formats funnel events for terminal display.
func outputFunnelEventsText(cmd *cobra.Command, list []*store.FunnelEvent) error {
	out := cmd.OutOrStdout()

	if len(list) == 0 {
		fmt.Fprintln(out, "No funnel events found.")
		return nil
	}

	fmt.Fprintf(out, "%-19s %-8s %-20s %-8s %-10s %12s\n",
		"OCCURRED", "STAGE", "ORG", "SECTOR", "SOURCE", "AMOUNT")
	for _, ev := range list {
		amount := "-"
		if ev.Amount != nil {
			amount = ev.Amount.StringFixed(2)
		}
		fmt.Fprintf(out, "%-19s %-8s %-20s %-8s %-10s %12s\n",
			ev.OccurredAt.UTC().Format("2006-01-02 15:04:05"),
			truncateString(ev.Stage, 8),
			truncateString(valueOrDash(ev.OrgName), 20),
			truncateString(valueOrDash(ev.Sector), 8),
			truncateString(valueOrDash(ev.SourceChannel), 10),
			amount)
	}
	fmt.Fprintf(out, "\n%d event(s)\n", len(list))
	return nil
}
