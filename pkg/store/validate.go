package store

import (
	"fmt"

	sgberrors "github.com/signalboard/sgb-cli/pkg/errors"
)

// ValidateContentEvent checks a content event at the write boundary.
// Required fields must be present and the five metrics non-negative. The
// categorical columns stay open here; unknown values are handled by policy,
// not validation.
func ValidateContentEvent(ev *ContentEvent) error {
	if ev == nil {
		return fmt.Errorf("content event is nil: %w", sgberrors.ErrValidation)
	}
	if ev.Channel == "" {
		return fmt.Errorf("channel is required: %w", sgberrors.ErrValidation)
	}
	if ev.ContentType == "" {
		return fmt.Errorf("content_type is required: %w", sgberrors.ErrValidation)
	}
	if ev.ExternalKey != nil && *ev.ExternalKey == "" {
		return fmt.Errorf("external_key must be null or non-empty: %w", sgberrors.ErrValidation)
	}

	metrics := map[string]int64{
		"views":     ev.Views,
		"reactions": ev.Reactions,
		"comments":  ev.Comments,
		"shares":    ev.Shares,
		"clicks":    ev.Clicks,
	}
	for name, v := range metrics {
		if v < 0 {
			return fmt.Errorf("metric %s is negative (%d): %w", name, v, sgberrors.ErrValidation)
		}
	}

	return nil
}

// ValidateFunnelEvent checks a funnel event at the write boundary.
func ValidateFunnelEvent(ev *FunnelEvent) error {
	if ev == nil {
		return fmt.Errorf("funnel event is nil: %w", sgberrors.ErrValidation)
	}
	if ev.Stage == "" {
		return fmt.Errorf("stage is required: %w", sgberrors.ErrValidation)
	}
	if ev.ExternalKey != nil && *ev.ExternalKey == "" {
		return fmt.Errorf("external_key must be null or non-empty: %w", sgberrors.ErrValidation)
	}
	if ev.Amount != nil && ev.Amount.IsNegative() {
		return fmt.Errorf("amount is negative (%s): %w", ev.Amount, sgberrors.ErrValidation)
	}
	return nil
}

// UnknownContentValues lists the categorical values on ev that fall outside
// the documented sets. Used for warn-level logging under the default policy
// and for rejection under strict_values.
func UnknownContentValues(ev *ContentEvent) []string {
	var unknown []string
	if ev.Channel != "" && !IsKnownContentChannel(ev.Channel) {
		unknown = append(unknown, fmt.Sprintf("channel=%s", ev.Channel))
	}
	if ev.ContentType != "" && !IsKnownContentType(ev.ContentType) {
		unknown = append(unknown, fmt.Sprintf("content_type=%s", ev.ContentType))
	}
	return unknown
}

// UnknownFunnelValues lists the categorical values on ev that fall outside
// the documented sets.
func UnknownFunnelValues(ev *FunnelEvent) []string {
	var unknown []string
	if ev.Stage != "" && !IsKnownStage(ev.Stage) {
		unknown = append(unknown, fmt.Sprintf("stage=%s", ev.Stage))
	}
	if ev.Sector != nil && *ev.Sector != "" && !IsKnownSector(*ev.Sector) {
		unknown = append(unknown, fmt.Sprintf("sector=%s", *ev.Sector))
	}
	if ev.SourceChannel != nil && *ev.SourceChannel != "" && !IsKnownSourceChannel(*ev.SourceChannel) {
		unknown = append(unknown, fmt.Sprintf("source_channel=%s", *ev.SourceChannel))
	}
	return unknown
}
