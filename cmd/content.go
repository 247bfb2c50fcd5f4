package cmd

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/signalboard/sgb-cli/config"
	"github.com/signalboard/sgb-cli/pkg/report"
	"github.com/signalboard/sgb-cli/pkg/store"
)

// Content command flags
var (
	contentKey      string
	contentOccurred string
	contentChannel  string
	contentType     string
	contentTheme    string
	contentTitle    string
	contentURL      string
	contentViews    int64
	contentReacts   int64
	contentComments int64
	contentShares   int64
	contentClicks   int64

	contentListChannel string
	contentListType    string
	contentListTheme   string
	contentListFrom    string
	contentListUntil   string
	contentListLimit   int
	contentOutput      string
)

// ContentCommandDeps holds the dependencies for content commands.
type ContentCommandDeps struct {
	Config      *config.CLIConfig
	LoadConfig  func(*cobra.Command) (*config.CLIConfig, error)
	ConnectToDB func(context.Context, *config.CLIConfig) (*pgxpool.Pool, error)
}

// DefaultContentDeps returns the default dependencies for production use.
func DefaultContentDeps() *ContentCommandDeps {
	return &ContentCommandDeps{
		LoadConfig:  loadConfigForCommand,
		ConnectToDB: connectToDatabase,
	}
}

// NewContentCommand creates the content command with all subcommands.
func NewContentCommand() *cobra.Command {
	deps := DefaultContentDeps()

	cmd := &cobra.Command{
		Use:   "content",
		Short: "Record and query content performance events",
		Long: `Record and query content performance events.

A content event is one observation of a piece of published content and its
engagement counters (views, reactions, comments, shares, clicks). Events
carrying an external key are idempotent: re-recording the same key updates
the existing row instead of inserting a duplicate.

Examples:
  # Record a LinkedIn post observation
  sgb content add --key notion-abc --channel linkedin --type post --views 1200

  # Re-record with fresh counters (updates in place)
  sgb content add --key notion-abc --channel linkedin --type post --views 1450

  # List March events on one channel
  sgb content list --channel linkedin --from 2026-03 --until 2026-04`,
	}

	cmd.AddCommand(newContentAddCommand(deps))
	cmd.AddCommand(newContentListCommand(deps))

	return cmd
}

// newContentAddCommand creates the 'content add' subcommand.
func newContentAddCommand(deps *ContentCommandDeps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Record a content event",
		Long: `Record a content performance event.

With --key the write is an upsert: an existing event with the same key has
its channel, type, and metric counters replaced, while theme, title, and
url are only overwritten when provided. Without --key every call inserts a
new row.

--occurred accepts a date (2026-03-14), a month (2026-03), or a full
RFC3339 timestamp, and defaults to now.`,
		Example: `  sgb content add --key notion-abc --channel linkedin --type post --views 1200 --reactions 40
  sgb content add --channel threads --type thread --occurred 2026-03-14`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runContentAdd(cmd, deps)
		},
	}

	cmd.Flags().StringVar(&contentKey, "key", "", "External correlation key (enables idempotent re-recording)")
	cmd.Flags().StringVar(&contentOccurred, "occurred", "", "When the event occurred (default: now)")
	cmd.Flags().StringVar(&contentChannel, "channel", "", "Publishing channel (linkedin, threads, x, ...)")
	cmd.Flags().StringVar(&contentType, "type", "", "Content type (post, thread, dm, landing)")
	cmd.Flags().StringVar(&contentTheme, "theme", "", "Content theme")
	cmd.Flags().StringVar(&contentTitle, "title", "", "Content title")
	cmd.Flags().StringVar(&contentURL, "url", "", "Content URL")
	cmd.Flags().Int64Var(&contentViews, "views", 0, "View count")
	cmd.Flags().Int64Var(&contentReacts, "reactions", 0, "Reaction count")
	cmd.Flags().Int64Var(&contentComments, "comments", 0, "Comment count")
	cmd.Flags().Int64Var(&contentShares, "shares", 0, "Share count")
	cmd.Flags().Int64Var(&contentClicks, "clicks", 0, "Click count")
	_ = cmd.MarkFlagRequired("channel")
	_ = cmd.MarkFlagRequired("type")

	return cmd
}

// newContentListCommand creates the 'content list' subcommand.
func newContentListCommand(deps *ContentCommandDeps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List content events",
		Long: `List content events, optionally filtered by channel, type, theme,
and time range. The time range is half-open: --from is inclusive, --until
is exclusive. Events are returned oldest first.`,
		Example: `  sgb content list
  sgb content list --channel linkedin --limit 20
  sgb content list --from 2026-03 --until 2026-04 --output json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runContentList(cmd, deps)
		},
	}

	cmd.Flags().StringVar(&contentListChannel, "channel", "", "Filter by channel")
	cmd.Flags().StringVar(&contentListType, "type", "", "Filter by content type")
	cmd.Flags().StringVar(&contentListTheme, "theme", "", "Filter by theme")
	cmd.Flags().StringVar(&contentListFrom, "from", "", "Inclusive lower time bound")
	cmd.Flags().StringVar(&contentListUntil, "until", "", "Exclusive upper time bound")
	cmd.Flags().IntVar(&contentListLimit, "limit", 0, "Maximum number of events to return")
	cmd.Flags().StringVarP(&contentOutput, "output", "o", "", "Output format: text, json, yaml")

	return cmd
}

// runContentAdd executes the content add command.
func runContentAdd(cmd *cobra.Command, deps *ContentCommandDeps) error {
	ctx := cmd.Context()

	cfg, err := deps.LoadConfig(cmd)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	deps.Config = cfg

	occurred, err := parseTimeFlag(contentOccurred)
	if err != nil {
		return err
	}

	ev := &store.ContentEvent{
		ExternalKey: strFlagPtr(contentKey),
		OccurredAt:  occurred,
		Channel:     contentChannel,
		ContentType: contentType,
		Theme:       strFlagPtr(contentTheme),
		Title:       strFlagPtr(contentTitle),
		URL:         strFlagPtr(contentURL),
		Views:       contentViews,
		Reactions:   contentReacts,
		Comments:    contentComments,
		Shares:      contentShares,
		Clicks:      contentClicks,
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

	id, err := repo.UpsertContentEvent(ctx, ev)
	if err != nil {
		return fmt.Errorf("recording content event: %w", err)
	}

	publisher := newPublisher(cfg, logger)
	publisher.ContentUpserted(ctx, id, ev.ExternalKey, ev.Channel,
		report.FormatMonth(report.MonthOf(ev.OccurredAt)))

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Recorded content event %d", id)
	if ev.ExternalKey != nil {
		fmt.Fprintf(out, " (key %s)", *ev.ExternalKey)
	}
	fmt.Fprintln(out)
	return nil
}

// runContentList executes the content list command.
func runContentList(cmd *cobra.Command, deps *ContentCommandDeps) error {
	ctx := cmd.Context()

	cfg, err := deps.LoadConfig(cmd)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	deps.Config = cfg

	from, err := parseTimeFlag(contentListFrom)
	if err != nil {
		return err
	}
	until, err := parseTimeFlag(contentListUntil)
	if err != nil {
		return err
	}

	pool, err := deps.ConnectToDB(ctx, cfg)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer pool.Close()

	repo := store.NewRepository(pool, newLogger(cfg), store.Options{})
	eventsList, err := repo.QueryContentEvents(ctx, store.ContentEventFilter{
		Channel:     contentListChannel,
		ContentType: contentListType,
		Theme:       contentListTheme,
		From:        from,
		Until:       until,
		Limit:       contentListLimit,
	})
	if err != nil {
		return fmt.Errorf("listing content events: %w", err)
	}

	format, err := resolveFormat(cfg, contentOutput)
	if err != nil {
		return err
	}

	if format != config.OutputFormatText {
		return writeStructured(cmd.OutOrStdout(), format, eventsList)
	}
	return outputContentEventsText(cmd, eventsList)
}

// outputContentEventsText formats content events for terminal display.
func outputContentEventsText(cmd *cobra.Command, list []*store.ContentEvent) error {
	out := cmd.OutOrStdout()

	if len(list) == 0 {
		fmt.Fprintln(out, "No content events found.")
		return nil
	}

	fmt.Fprintf(out, "%-19s %-10s %-8s %-24s %8s %6s %6s\n",
		"OCCURRED", "CHANNEL", "TYPE", "KEY", "VIEWS", "ENGMT", "CLICKS")
	for _, ev := range list {
		engagements := ev.Reactions + ev.Comments + ev.Shares
		fmt.Fprintf(out, "%-19s %-10s %-8s %-24s %8d %6d %6d\n",
			ev.OccurredAt.UTC().Format("2006-01-02 15:04:05"),
			truncateString(ev.Channel, 10),
			truncateString(ev.ContentType, 8),
			truncateString(valueOrDash(ev.ExternalKey), 24),
			ev.Views, engagements, ev.Clicks)
	}
	fmt.Fprintf(out, "\n%d event(s)\n", len(list))
	return nil
}
