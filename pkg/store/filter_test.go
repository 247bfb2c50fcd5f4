package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestContentEventFilterEmpty(t *testing.T) {
	w := ContentEventFilter{}.where()
	assert.Empty(t, w.SQL())
	assert.Empty(t, w.args)
}

func TestContentEventFilterAllFields(t *testing.T) {
	from := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	until := time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)

	w := ContentEventFilter{
		Channel:     "linkedin",
		ContentType: "post",
		Theme:       "audit",
		From:        from,
		Until:       until,
	}.where()

	sql := w.SQL()
	assert.Equal(t, " WHERE channel = $1 AND content_type = $2 AND theme = $3 AND occurred_at >= $4 AND occurred_at < $5", sql)
	assert.Equal(t, []any{"linkedin", "post", "audit", from, until}, w.args)
}

func TestFunnelEventFilterPartial(t *testing.T) {
	w := FunnelEventFilter{
		Stage:  "deal",
		Sector: "energy",
	}.where()

	assert.Equal(t, " WHERE stage = $1 AND sector = $2", w.SQL())
	assert.Equal(t, []any{"deal", "energy"}, w.args)
}

func TestFunnelEventFilterTimeRangeHalfOpen(t *testing.T) {
	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	until := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)

	w := FunnelEventFilter{From: from, Until: until}.where()
	assert.Equal(t, " WHERE occurred_at >= $1 AND occurred_at < $2", w.SQL())
}

func TestLimitClause(t *testing.T) {
	assert.Empty(t, limitClause(0))
	assert.Empty(t, limitClause(-5))
	assert.Equal(t, " LIMIT 50", limitClause(50))
}
