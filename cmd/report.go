package cmd

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/signalboard/sgb-cli/config"
	"github.com/signalboard/sgb-cli/pkg/report"
)

// Report command flags
var (
	reportFrom    string
	reportUntil   string
	reportChannel string
	reportOutput  string
)

// ReportCommandDeps holds the dependencies for report commands.
type ReportCommandDeps struct {
	Config      *config.CLIConfig
	LoadConfig  func(*cobra.Command) (*config.CLIConfig, error)
	ConnectToDB func(context.Context, *config.CLIConfig) (*pgxpool.Pool, error)
}

// DefaultReportDeps returns the default dependencies for production use.
func DefaultReportDeps() *ReportCommandDeps {
	return &ReportCommandDeps{
		LoadConfig:  loadConfigForCommand,
		ConnectToDB: connectToDatabase,
	}
}

// NewReportCommand creates the report command with all subcommands.
func NewReportCommand() *cobra.Command {
	deps := DefaultReportDeps()

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Monthly rollup reports",
		Long: `Monthly rollup reports over the event store.

Reports read the database views that group events by calendar month (UTC)
and channel. They are computed at read time, so they always reflect the
latest recorded counters.

Examples:
  # Content performance per month and channel
  sgb report channels

  # Funnel stage counts and deal revenue
  sgb report funnel

  # One channel, one quarter, machine-readable
  sgb report channels --channel linkedin --from 2026-01 --until 2026-04 --output json`,
		Aliases: []string{"reports"},
	}

	cmd.PersistentFlags().StringVar(&reportFrom, "from", "", "Inclusive lower month bound (e.g. 2026-01)")
	cmd.PersistentFlags().StringVar(&reportUntil, "until", "", "Exclusive upper month bound (e.g. 2026-04)")
	cmd.PersistentFlags().StringVar(&reportChannel, "channel", "", "Filter to one channel")
	cmd.PersistentFlags().StringVarP(&reportOutput, "output", "o", "", "Output format: text, json, yaml")

	cmd.AddCommand(newReportChannelsCommand(deps))
	cmd.AddCommand(newReportFunnelCommand(deps))

	return cmd
}

// newReportChannelsCommand creates the 'report channels' subcommand.
func newReportChannelsCommand(deps *ReportCommandDeps) *cobra.Command {
	return &cobra.Command{
		Use:   "channels",
		Short: "Monthly content performance per channel",
		Long: `Monthly content performance per channel.

For every (month, channel) with recorded content events, shows the number
of authored items (posts and threads), total views, total engagements
(reactions + comments + shares), and total clicks.`,
		Example: `  sgb report channels
  sgb report channels --channel linkedin --output json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReportChannels(cmd, deps)
		},
	}
}

// newReportFunnelCommand creates the 'report funnel' subcommand.
func newReportFunnelCommand(deps *ReportCommandDeps) *cobra.Command {
	return &cobra.Command{
		Use:   "funnel",
		Short: "Monthly funnel stage counts and revenue per source channel",
		Long: `Monthly funnel stage counts per source channel.

For every (month, source channel) with recorded funnel events, shows how
many organizations reached each stage and the summed deal revenue. Events
without a source channel are grouped under "-".`,
		Example: `  sgb report funnel
  sgb report funnel --from 2026-01 --until 2026-07`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReportFunnel(cmd, deps)
		},
	}
}

// reportFilter builds the report filter from the shared flags.
func reportFilter() (report.Filter, error) {
	f := report.Filter{Channel: reportChannel}

	if reportFrom != "" {
		from, err := report.ParseMonth(reportFrom)
		if err != nil {
			return f, fmt.Errorf("invalid --from: %w", err)
		}
		f.From = from
	}
	if reportUntil != "" {
		until, err := report.ParseMonth(reportUntil)
		if err != nil {
			return f, fmt.Errorf("invalid --until: %w", err)
		}
		f.Until = until
	}
	return f, nil
}

// runReportChannels executes the report channels command.
func runReportChannels(cmd *cobra.Command, deps *ReportCommandDeps) error {
	ctx := cmd.Context()

	cfg, err := deps.LoadConfig(cmd)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	deps.Config = cfg

	filter, err := reportFilter()
	if err != nil {
		return err
	}

	pool, err := deps.ConnectToDB(ctx, cfg)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer pool.Close()

	rows, err := report.NewReporter(pool).ChannelMetrics(ctx, filter)
	if err != nil {
		return fmt.Errorf("reading channel metrics: %w", err)
	}

	format, err := resolveFormat(cfg, reportOutput)
	if err != nil {
		return err
	}
	if format != config.OutputFormatText {
		return writeStructured(cmd.OutOrStdout(), format, rows)
	}

	out := cmd.OutOrStdout()
	if len(rows) == 0 {
		fmt.Fprintln(out, "No content events recorded.")
		return nil
	}

	fmt.Fprintf(out, "%-8s %-10s %6s %10s %12s %8s\n",
		"MONTH", "CHANNEL", "ITEMS", "VIEWS", "ENGAGEMENTS", "CLICKS")
	for _, r := range rows {
		fmt.Fprintf(out, "%-8s %-10s %6d %10d %12d %8d\n",
			report.FormatMonth(r.Month),
			truncateString(r.Channel, 10),
			r.ContentItems, r.Views, r.Engagements, r.Clicks)
	}
	return nil
}

// runReportFunnel executes the report funnel command.
func runReportFunnel(cmd *cobra.Command, deps *ReportCommandDeps) error {
	ctx := cmd.Context()

	cfg, err := deps.LoadConfig(cmd)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	deps.Config = cfg

	filter, err := reportFilter()
	if err != nil {
		return err
	}

	pool, err := deps.ConnectToDB(ctx, cfg)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer pool.Close()

	rows, err := report.NewReporter(pool).FunnelMetrics(ctx, filter)
	if err != nil {
		return fmt.Errorf("reading funnel metrics: %w", err)
	}

	format, err := resolveFormat(cfg, reportOutput)
	if err != nil {
		return err
	}
	if format != config.OutputFormatText {
		return writeStructured(cmd.OutOrStdout(), format, rows)
	}

	out := cmd.OutOrStdout()
	if len(rows) == 0 {
		fmt.Fprintln(out, "No funnel events recorded.")
		return nil
	}

	fmt.Fprintf(out, "%-8s %-10s %6s %9s %7s %6s %12s\n",
		"MONTH", "CHANNEL", "LEADS", "MEETINGS", "PILOTS", "DEALS", "REVENUE")
	for _, r := range rows {
		revenue := "-"
		if r.Revenue != nil {
			revenue = r.Revenue.StringFixed(2)
		}
		fmt.Fprintf(out, "%-8s %-10s %6d %9d %7d %6d %12s\n",
			report.FormatMonth(r.Month),
			truncateString(valueOrDash(r.Channel), 10),
			r.Leads, r.Meetings, r.Pilots, r.Deals, revenue)
	}
	return nil
}
