package report

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	sgberrors "github.com/signalboard/sgb-cli/pkg/errors"
)

// ChannelMetrics is one row of the monthly_channel_metrics view: content
// performance for one (month, channel) pair. ContentItems counts only posts
// and threads; the sums cover every content event in the group.
type ChannelMetrics struct {
	Month        time.Time
	Channel      string
	ContentItems int64
	Views        int64
	Engagements  int64
	Clicks       int64
}

// FunnelMetrics is one row of the monthly_funnel_metrics view: funnel
// progress for one (month, source channel) pair. The four stage counts are
// conditional and mutually independent; Revenue sums amount over deal-stage
// rows only and is nil for groups without any deal.
type FunnelMetrics struct {
	Month    time.Time
	Channel  *string // nil when the funnel events carried no source channel
	Leads    int64
	Meetings int64
	Pilots   int64
	Deals    int64
	Revenue  *decimal.Decimal
}

// Filter bounds a rollup query. From/Until are month boundaries (half-open);
// Channel narrows to one channel. Zero values mean "no bound".
type Filter struct {
	From    time.Time
	Until   time.Time
	Channel string
}

// Reporter reads the monthly rollup views.
type Reporter struct {
	pool *pgxpool.Pool
}

// NewReporter creates a Reporter over the given pool.
func NewReporter(pool *pgxpool.Pool) *Reporter {
	return &Reporter{pool: pool}
}

func (f Filter) where() (string, []any) {
	var conds []string
	var args []any
	if !f.From.IsZero() {
		args = append(args, MonthOf(f.From))
		conds = append(conds, fmt.Sprintf("month >= $%d", len(args)))
	}
	if !f.Until.IsZero() {
		args = append(args, MonthOf(f.Until))
		conds = append(conds, fmt.Sprintf("month < $%d", len(args)))
	}
	if f.Channel != "" {
		args = append(args, f.Channel)
		conds = append(conds, fmt.Sprintf("channel = $%d", len(args)))
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// ChannelMetrics returns monthly content rollups matching the filter,
// ordered by (month, channel).
func (r *Reporter) ChannelMetrics(ctx context.Context, filter Filter) ([]*ChannelMetrics, error) {
	where, args := filter.where()
	query := fmt.Sprintf(`
		SELECT month, channel, content_items, views, engagements, clicks
		FROM monthly_channel_metrics%s
		ORDER BY month, channel
	`, where)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query channel metrics: %w: %v", sgberrors.ErrStorageUnavailable, err)
	}
	defer rows.Close()

	var metrics []*ChannelMetrics
	for rows.Next() {
		m := &ChannelMetrics{}
		if err := rows.Scan(&m.Month, &m.Channel, &m.ContentItems, &m.Views, &m.Engagements, &m.Clicks); err != nil {
			return nil, fmt.Errorf("scan channel metrics: %w", err)
		}
		metrics = append(metrics, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate channel metrics: %w: %v", sgberrors.ErrStorageUnavailable, err)
	}
	return metrics, nil
}

// FunnelMetrics returns monthly funnel rollups matching the filter, ordered
// by (month, channel). Rows whose source channel is NULL sort last within
// their month.
func (r *Reporter) FunnelMetrics(ctx context.Context, filter Filter) ([]*FunnelMetrics, error) {
	where, args := filter.where()
	query := fmt.Sprintf(`
		SELECT month, channel, leads, meetings, pilots, deals, revenue
		FROM monthly_funnel_metrics%s
		ORDER BY month, channel NULLS LAST
	`, where)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query funnel metrics: %w: %v", sgberrors.ErrStorageUnavailable, err)
	}
	defer rows.Close()

	var metrics []*FunnelMetrics
	for rows.Next() {
		m := &FunnelMetrics{}
		var revenue decimal.NullDecimal
		if err := rows.Scan(&m.Month, &m.Channel, &m.Leads, &m.Meetings, &m.Pilots, &m.Deals, &revenue); err != nil {
			return nil, fmt.Errorf("scan funnel metrics: %w", err)
		}
		if revenue.Valid {
			m.Revenue = &revenue.Decimal
		}
		metrics = append(metrics, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate funnel metrics: %w: %v", sgberrors.ErrStorageUnavailable, err)
	}
	return metrics, nil
}
