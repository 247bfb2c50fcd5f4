package store

import (
	"fmt"
	"strings"
	"time"
)

// ContentEventFilter narrows a content event query. Zero values mean "no
// filter". The time range is half-open: [From, Until).
type ContentEventFilter struct {
	Channel     string
	ContentType string
	Theme       string
	From        time.Time
	Until       time.Time
	Limit       int
}

// FunnelEventFilter narrows a funnel event query.
type FunnelEventFilter struct {
	Stage         string
	Sector        string
	SourceChannel string
	From          time.Time
	Until         time.Time
	Limit         int
}

// whereClause accumulates predicates and positional args for a query.
type whereClause struct {
	conds []string
	args  []any
}

func (w *whereClause) add(column, op string, value any) {
	w.args = append(w.args, value)
	w.conds = append(w.conds, fmt.Sprintf("%s %s $%d", column, op, len(w.args)))
}

// SQL renders the WHERE clause, or an empty string when unfiltered.
func (w *whereClause) SQL() string {
	if len(w.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.conds, " AND ")
}

func (f ContentEventFilter) where() *whereClause {
	w := &whereClause{}
	if f.Channel != "" {
		w.add("channel", "=", f.Channel)
	}
	if f.ContentType != "" {
		w.add("content_type", "=", f.ContentType)
	}
	if f.Theme != "" {
		w.add("theme", "=", f.Theme)
	}
	if !f.From.IsZero() {
		w.add("occurred_at", ">=", f.From)
	}
	if !f.Until.IsZero() {
		w.add("occurred_at", "<", f.Until)
	}
	return w
}

func (f FunnelEventFilter) where() *whereClause {
	w := &whereClause{}
	if f.Stage != "" {
		w.add("stage", "=", f.Stage)
	}
	if f.Sector != "" {
		w.add("sector", "=", f.Sector)
	}
	if f.SourceChannel != "" {
		w.add("source_channel", "=", f.SourceChannel)
	}
	if !f.From.IsZero() {
		w.add("occurred_at", ">=", f.From)
	}
	if !f.Until.IsZero() {
		w.add("occurred_at", "<", f.Until)
	}
	return w
}

// limitClause renders a LIMIT when limit is positive.
func limitClause(limit int) string {
	if limit > 0 {
		return fmt.Sprintf(" LIMIT %d", limit)
	}
	return ""
}
