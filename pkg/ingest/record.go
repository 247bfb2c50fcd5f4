// Package ingest imports JSONL exports from the upstream system of record
// into the event store, one job per file, with per-line error capture.
package ingest

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	sgberrors "github.com/signalboard/sgb-cli/pkg/errors"
	"github.com/signalboard/sgb-cli/pkg/store"
)

// Kind identifies what a JSONL file contains.
type Kind string

const (
	KindContent Kind = "content"
	KindFunnel  Kind = "funnel"
)

// ContentRecord is one line of a content export. NotionID becomes the
// external correlation key; an empty NotionID inserts a fresh row on every
// import, so exports should always carry it.
type ContentRecord struct {
	NotionID    string     `json:"notion_id"`
	OccurredAt  *time.Time `json:"occurred_at,omitempty"`
	Channel     string     `json:"channel"`
	ContentType string     `json:"content_type"`
	Theme       *string    `json:"theme,omitempty"`
	Title       *string    `json:"title,omitempty"`
	URL         *string    `json:"url,omitempty"`
	Views       int64      `json:"views"`
	Reactions   int64      `json:"reactions"`
	Comments    int64      `json:"comments"`
	Shares      int64      `json:"shares"`
	Clicks      int64      `json:"clicks"`
}

// FunnelRecord is one line of a funnel export.
type FunnelRecord struct {
	NotionID              string           `json:"notion_id"`
	OccurredAt            *time.Time       `json:"occurred_at,omitempty"`
	OrgName               *string          `json:"org_name,omitempty"`
	Sector                *string          `json:"sector,omitempty"`
	Stage                 string           `json:"stage"`
	SourceChannel         *string          `json:"source_channel,omitempty"`
	SourceContentNotionID *string          `json:"source_content_notion_id,omitempty"`
	Amount                *decimal.Decimal `json:"amount,omitempty"`
	Owner                 *string          `json:"owner,omitempty"`
	Notes                 *string          `json:"notes,omitempty"`
}

// ParseContentRecord decodes one JSONL line into a content record.
func ParseContentRecord(line []byte) (*ContentRecord, error) {
	var rec ContentRecord
	if err := json.Unmarshal(line, &rec); err != nil {
		return nil, fmt.Errorf("decode content record: %v: %w", err, sgberrors.ErrParse)
	}
	return &rec, nil
}

// ParseFunnelRecord decodes one JSONL line into a funnel record.
func ParseFunnelRecord(line []byte) (*FunnelRecord, error) {
	var rec FunnelRecord
	if err := json.Unmarshal(line, &rec); err != nil {
		return nil, fmt.Errorf("decode funnel record: %v: %w", err, sgberrors.ErrParse)
	}
	return &rec, nil
}

// Event converts the record to its store representation.
func (r *ContentRecord) Event() *store.ContentEvent {
	ev := &store.ContentEvent{
		Channel:     r.Channel,
		ContentType: r.ContentType,
		Theme:       r.Theme,
		Title:       r.Title,
		URL:         r.URL,
		Views:       r.Views,
		Reactions:   r.Reactions,
		Comments:    r.Comments,
		Shares:      r.Shares,
		Clicks:      r.Clicks,
	}
	if r.NotionID != "" {
		key := r.NotionID
		ev.ExternalKey = &key
	}
	if r.OccurredAt != nil {
		ev.OccurredAt = *r.OccurredAt
	}
	return ev
}

// Event converts the record to its store representation.
func (r *FunnelRecord) Event() *store.FunnelEvent {
	ev := &store.FunnelEvent{
		OrgName:               r.OrgName,
		Sector:                r.Sector,
		Stage:                 r.Stage,
		SourceChannel:         r.SourceChannel,
		SourceContentNotionID: r.SourceContentNotionID,
		Amount:                r.Amount,
		Owner:                 r.Owner,
		Notes:                 r.Notes,
	}
	if r.NotionID != "" {
		key := r.NotionID
		ev.ExternalKey = &key
	}
	if r.OccurredAt != nil {
		ev.OccurredAt = *r.OccurredAt
	}
	return ev
}
