// Package report computes the monthly rollups over the Signalboard event
// store. The rollups are plain SQL views recomputed on every read; nothing
// here caches or stores derived state.
//
// Month buckets are UTC throughout: occurred_at values are normalized to UTC
// before truncation, both in the views and in the helpers here.
package report

import (
	"fmt"
	"time"
)

// MonthOf truncates t to the first instant of its UTC calendar month.
func MonthOf(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// NextMonth returns the first instant of the month after t's UTC month.
func NextMonth(t time.Time) time.Time {
	return MonthOf(t).AddDate(0, 1, 0)
}

// ParseMonth parses a YYYY-MM string into the first instant of that UTC
// month.
func ParseMonth(s string) (time.Time, error) {
	t, err := time.Parse("2006-01", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid month %q (want YYYY-MM): %w", s, err)
	}
	return t.UTC(), nil
}

// FormatMonth renders a month bucket as YYYY-MM.
func FormatMonth(t time.Time) string {
	return t.UTC().Format("2006-01")
}
