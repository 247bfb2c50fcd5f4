package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	sgberrors "github.com/signalboard/sgb-cli/pkg/errors"
	"github.com/signalboard/sgb-cli/pkg/logging"
)

// AttributionPolicy decides what happens when a funnel event references a
// content external key that does not exist at write time.
type AttributionPolicy string

const (
	// AttributionAcceptNull stores the funnel event with the reference
	// cleared and logs a warning. This is the default: attribution is a
	// weak link and a missing content event must not block funnel data.
	AttributionAcceptNull AttributionPolicy = "accept_null"

	// AttributionReject refuses the write with ErrDanglingReference.
	AttributionReject AttributionPolicy = "reject"
)

// Options fixes the repository's data-quality policies at construction so
// they are applied consistently, never per call site.
type Options struct {
	// Attribution selects the dangling-reference policy.
	// Defaults to AttributionAcceptNull.
	Attribution AttributionPolicy

	// StrictValues rejects categorical values outside the documented sets
	// instead of accepting and logging them.
	StrictValues bool
}

// Repository provides durable event store operations over PostgreSQL.
// Concurrency control is delegated to the database: the unique index on
// external_key serializes concurrent upserts of the same key (last commit
// wins), and reads run at the store's default read-committed isolation.
type Repository struct {
	pool   *pgxpool.Pool
	logger logging.Logger
	opts   Options
}

// NewRepository creates an event store repository.
func NewRepository(pool *pgxpool.Pool, logger logging.Logger, opts Options) *Repository {
	if opts.Attribution == "" {
		opts.Attribution = AttributionAcceptNull
	}
	return &Repository{
		pool:   pool,
		logger: logger.With(logging.F("component", "store")),
		opts:   opts,
	}
}

const contentEventColumns = `id, external_key, occurred_at, channel, content_type, theme, title, url,
	metric_views, metric_reactions, metric_comments, metric_shares, metric_clicks, created_at, updated_at`

const funnelEventColumns = `id, external_key, occurred_at, org_name, sector, stage, source_channel,
	source_content_notion_id, amount, owner, notes, created_at, updated_at`

// UpsertContentEvent inserts the event, or refreshes the existing row when
// its external key is already present. The upstream system is treated as
// source of truth per ingestion snapshot: required fields and metrics
// overwrite, optional fields overwrite only when non-null. Events without an
// external key always insert (NULL keys never conflict). Returns the
// internal identifier.
func (r *Repository) UpsertContentEvent(ctx context.Context, ev *ContentEvent) (int64, error) {
	if err := ValidateContentEvent(ev); err != nil {
		return 0, err
	}
	if err := r.checkValues(UnknownContentValues(ev)); err != nil {
		return 0, err
	}
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now().UTC()
	}

	query := `
		INSERT INTO content_events (
			external_key, occurred_at, channel, content_type, theme, title, url,
			metric_views, metric_reactions, metric_comments, metric_shares, metric_clicks
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (external_key) DO UPDATE SET
			occurred_at      = EXCLUDED.occurred_at,
			channel          = EXCLUDED.channel,
			content_type     = EXCLUDED.content_type,
			theme            = COALESCE(EXCLUDED.theme, content_events.theme),
			title            = COALESCE(EXCLUDED.title, content_events.title),
			url              = COALESCE(EXCLUDED.url, content_events.url),
			metric_views     = EXCLUDED.metric_views,
			metric_reactions = EXCLUDED.metric_reactions,
			metric_comments  = EXCLUDED.metric_comments,
			metric_shares    = EXCLUDED.metric_shares,
			metric_clicks    = EXCLUDED.metric_clicks,
			updated_at       = NOW()
		RETURNING id
	`

	var id int64
	err := r.pool.QueryRow(ctx, query,
		ev.ExternalKey,
		ev.OccurredAt,
		ev.Channel,
		ev.ContentType,
		ev.Theme,
		ev.Title,
		ev.URL,
		ev.Views,
		ev.Reactions,
		ev.Comments,
		ev.Shares,
		ev.Clicks,
	).Scan(&id)
	if err != nil {
		r.logger.Error("Failed to upsert content event",
			logging.Err(err),
			logging.F("channel", ev.Channel))
		return 0, fmt.Errorf("upsert content event: %w: %v", sgberrors.ErrStorageUnavailable, err)
	}

	r.logger.Debug("Content event upserted",
		logging.F("id", id),
		logging.F("channel", ev.Channel),
		logging.F("content_type", ev.ContentType))

	return id, nil
}

// UpsertFunnelEvent inserts the event, or refreshes the existing row when
// its external key is already present. A non-null attribution reference is
// resolved against content_events.external_key at write time and handled per
// the configured AttributionPolicy; once stored there is no lifecycle
// coupling to the referenced content event.
func (r *Repository) UpsertFunnelEvent(ctx context.Context, ev *FunnelEvent) (int64, error) {
	if err := ValidateFunnelEvent(ev); err != nil {
		return 0, err
	}
	if err := r.checkValues(UnknownFunnelValues(ev)); err != nil {
		return 0, err
	}
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now().UTC()
	}

	if ev.SourceContentNotionID != nil {
		resolved, err := r.contentKeyExists(ctx, *ev.SourceContentNotionID)
		if err != nil {
			return 0, err
		}
		if !resolved {
			if r.opts.Attribution == AttributionReject {
				return 0, fmt.Errorf("source_content_notion_id %q: %w",
					*ev.SourceContentNotionID, sgberrors.ErrDanglingReference)
			}
			r.logger.Warn("Attribution reference does not resolve, storing without it",
				logging.F("source_content_notion_id", *ev.SourceContentNotionID),
				logging.F("stage", ev.Stage))
			ev.SourceContentNotionID = nil
		}
	}

	var amount decimal.NullDecimal
	if ev.Amount != nil {
		amount = decimal.NewNullDecimal(*ev.Amount)
	}

	query := `
		INSERT INTO funnel_events (
			external_key, occurred_at, org_name, sector, stage, source_channel,
			source_content_notion_id, amount, owner, notes
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (external_key) DO UPDATE SET
			occurred_at              = EXCLUDED.occurred_at,
			org_name                 = COALESCE(EXCLUDED.org_name, funnel_events.org_name),
			sector                   = COALESCE(EXCLUDED.sector, funnel_events.sector),
			stage                    = EXCLUDED.stage,
			source_channel           = COALESCE(EXCLUDED.source_channel, funnel_events.source_channel),
			source_content_notion_id = COALESCE(EXCLUDED.source_content_notion_id, funnel_events.source_content_notion_id),
			amount                   = COALESCE(EXCLUDED.amount, funnel_events.amount),
			owner                    = COALESCE(EXCLUDED.owner, funnel_events.owner),
			notes                    = COALESCE(EXCLUDED.notes, funnel_events.notes),
			updated_at               = NOW()
		RETURNING id
	`

	var id int64
	err := r.pool.QueryRow(ctx, query,
		ev.ExternalKey,
		ev.OccurredAt,
		ev.OrgName,
		ev.Sector,
		ev.Stage,
		ev.SourceChannel,
		ev.SourceContentNotionID,
		amount,
		ev.Owner,
		ev.Notes,
	).Scan(&id)
	if err != nil {
		r.logger.Error("Failed to upsert funnel event",
			logging.Err(err),
			logging.F("stage", ev.Stage))
		return 0, fmt.Errorf("upsert funnel event: %w: %v", sgberrors.ErrStorageUnavailable, err)
	}

	r.logger.Debug("Funnel event upserted",
		logging.F("id", id),
		logging.F("stage", ev.Stage))

	return id, nil
}

// QueryContentEvents returns content events matching the filter, ordered by
// occurred_at (id as tiebreak).
func (r *Repository) QueryContentEvents(ctx context.Context, filter ContentEventFilter) ([]*ContentEvent, error) {
	w := filter.where()
	query := fmt.Sprintf("SELECT %s FROM content_events%s ORDER BY occurred_at, id%s",
		contentEventColumns, w.SQL(), limitClause(filter.Limit))

	rows, err := r.pool.Query(ctx, query, w.args...)
	if err != nil {
		return nil, fmt.Errorf("query content events: %w: %v", sgberrors.ErrStorageUnavailable, err)
	}
	defer rows.Close()

	var events []*ContentEvent
	for rows.Next() {
		ev, err := scanContentEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan content event: %w", err)
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate content events: %w: %v", sgberrors.ErrStorageUnavailable, err)
	}
	return events, nil
}

// QueryFunnelEvents returns funnel events matching the filter, ordered by
// occurred_at (id as tiebreak).
func (r *Repository) QueryFunnelEvents(ctx context.Context, filter FunnelEventFilter) ([]*FunnelEvent, error) {
	w := filter.where()
	query := fmt.Sprintf("SELECT %s FROM funnel_events%s ORDER BY occurred_at, id%s",
		funnelEventColumns, w.SQL(), limitClause(filter.Limit))

	rows, err := r.pool.Query(ctx, query, w.args...)
	if err != nil {
		return nil, fmt.Errorf("query funnel events: %w: %v", sgberrors.ErrStorageUnavailable, err)
	}
	defer rows.Close()

	var events []*FunnelEvent
	for rows.Next() {
		ev, err := scanFunnelEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan funnel event: %w", err)
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate funnel events: %w: %v", sgberrors.ErrStorageUnavailable, err)
	}
	return events, nil
}

// GetContentEventByKey fetches a content event by its external key.
func (r *Repository) GetContentEventByKey(ctx context.Context, externalKey string) (*ContentEvent, error) {
	query := fmt.Sprintf("SELECT %s FROM content_events WHERE external_key = $1", contentEventColumns)
	ev, err := scanContentEvent(r.pool.QueryRow(ctx, query, externalKey))
	if err == pgx.ErrNoRows {
		return nil, fmt.Errorf("content event %q: %w", externalKey, sgberrors.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get content event: %w: %v", sgberrors.ErrStorageUnavailable, err)
	}
	return ev, nil
}

// GetFunnelEventByKey fetches a funnel event by its external key.
func (r *Repository) GetFunnelEventByKey(ctx context.Context, externalKey string) (*FunnelEvent, error) {
	query := fmt.Sprintf("SELECT %s FROM funnel_events WHERE external_key = $1", funnelEventColumns)
	ev, err := scanFunnelEvent(r.pool.QueryRow(ctx, query, externalKey))
	if err == pgx.ErrNoRows {
		return nil, fmt.Errorf("funnel event %q: %w", externalKey, sgberrors.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get funnel event: %w: %v", sgberrors.ErrStorageUnavailable, err)
	}
	return ev, nil
}

// contentKeyExists reports whether a content event with the given external
// key exists.
func (r *Repository) contentKeyExists(ctx context.Context, externalKey string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		"SELECT EXISTS (SELECT 1 FROM content_events WHERE external_key = $1)",
		externalKey,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("resolve attribution: %w: %v", sgberrors.ErrStorageUnavailable, err)
	}
	return exists, nil
}

// checkValues applies the configured unknown-value policy.
func (r *Repository) checkValues(unknown []string) error {
	if len(unknown) == 0 {
		return nil
	}
	if r.opts.StrictValues {
		return fmt.Errorf("%s: %w", strings.Join(unknown, ", "), sgberrors.ErrUnknownValue)
	}
	r.logger.Warn("Accepting undocumented categorical values",
		logging.F("values", strings.Join(unknown, ", ")))
	return nil
}

func scanContentEvent(row pgx.Row) (*ContentEvent, error) {
	ev := &ContentEvent{}
	err := row.Scan(
		&ev.ID,
		&ev.ExternalKey,
		&ev.OccurredAt,
		&ev.Channel,
		&ev.ContentType,
		&ev.Theme,
		&ev.Title,
		&ev.URL,
		&ev.Views,
		&ev.Reactions,
		&ev.Comments,
		&ev.Shares,
		&ev.Clicks,
		&ev.CreatedAt,
		&ev.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return ev, nil
}

func scanFunnelEvent(row pgx.Row) (*FunnelEvent, error) {
	ev := &FunnelEvent{}
	var amount decimal.NullDecimal
	err := row.Scan(
		&ev.ID,
		&ev.ExternalKey,
		&ev.OccurredAt,
		&ev.OrgName,
		&ev.Sector,
		&ev.Stage,
		&ev.SourceChannel,
		&ev.SourceContentNotionID,
		&amount,
		&ev.Owner,
		&ev.Notes,
		&ev.CreatedAt,
		&ev.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if amount.Valid {
		ev.Amount = &amount.Decimal
	}
	return ev, nil
}
