// Package store implements the Signalboard event store: durable,
// append-mostly persistence of content publishing events and sales funnel
// events with idempotent upsert semantics keyed on an external correlation
// identifier (the Notion page ID in the reference deployment).
package store

import (
	"time"

	"github.com/shopspring/decimal"
)

// Distribution channels. The column is open text; these are the documented
// values, and anything else is accepted and logged (or rejected in strict
// mode).
const (
	ChannelLinkedIn = "linkedin"
	ChannelThreads  = "threads"
	ChannelX        = "x"
	ChannelBotDM    = "bot_dm"
	ChannelSite     = "site"
	ChannelEmail    = "email"
	ChannelReferral = "referral"
)

// Content types.
const (
	ContentTypePost    = "post"
	ContentTypeThread  = "thread"
	ContentTypeDM      = "dm"
	ContentTypeLanding = "landing"
)

// Funnel stages. Each row is an independent point-in-time snapshot: an
// organization progressing lead to deal yields four rows, never one mutated
// row.
const (
	StageLead    = "lead"
	StageMeeting = "meeting"
	StagePilot   = "pilot"
	StageDeal    = "deal"
)

// Sectors.
const (
	SectorEnergy = "energy"
	SectorGov    = "gov"
	SectorOther  = "other"
)

var knownContentChannels = map[string]bool{
	ChannelLinkedIn: true,
	ChannelThreads:  true,
	ChannelX:        true,
	ChannelBotDM:    true,
	ChannelSite:     true,
}

var knownSourceChannels = map[string]bool{
	ChannelLinkedIn: true,
	ChannelThreads:  true,
	ChannelX:        true,
	ChannelBotDM:    true,
	ChannelEmail:    true,
	ChannelReferral: true,
}

var knownContentTypes = map[string]bool{
	ContentTypePost:    true,
	ContentTypeThread:  true,
	ContentTypeDM:      true,
	ContentTypeLanding: true,
}

var knownStages = map[string]bool{
	StageLead:    true,
	StageMeeting: true,
	StagePilot:   true,
	StageDeal:    true,
}

var knownSectors = map[string]bool{
	SectorEnergy: true,
	SectorGov:    true,
	SectorOther:  true,
}

// IsKnownContentChannel reports whether channel is a documented content
// distribution channel.
func IsKnownContentChannel(channel string) bool { return knownContentChannels[channel] }

// IsKnownSourceChannel reports whether channel is a documented funnel source
// channel.
func IsKnownSourceChannel(channel string) bool { return knownSourceChannels[channel] }

// IsKnownContentType reports whether contentType is documented.
func IsKnownContentType(contentType string) bool { return knownContentTypes[contentType] }

// IsKnownStage reports whether stage is one of lead, meeting, pilot, deal.
func IsKnownStage(stage string) bool { return knownStages[stage] }

// IsKnownSector reports whether sector is documented.
func IsKnownSector(sector string) bool { return knownSectors[sector] }

// ContentEvent is a single published piece of content on a distribution
// channel, with accumulated engagement metrics. Metrics are snapshots from
// the upstream system of record: re-ingestion overwrites them rather than
// adding.
type ContentEvent struct {
	ID          int64
	ExternalKey *string
	OccurredAt  time.Time
	Channel     string
	ContentType string
	Theme       *string
	Title       *string
	URL         *string
	Views       int64
	Reactions   int64
	Comments    int64
	Shares      int64
	Clicks      int64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// FunnelEvent is a single observed stage transition of a prospective
// business relationship, attributable to an outreach source. Amount is only
// interpreted by downstream aggregation at the deal stage, but may be
// populated at any stage without being an error.
type FunnelEvent struct {
	ID                    int64
	ExternalKey           *string
	OccurredAt            time.Time
	OrgName               *string
	Sector                *string
	Stage                 string
	SourceChannel         *string
	SourceContentNotionID *string
	Amount                *decimal.Decimal
	Owner                 *string
	Notes                 *string
	CreatedAt             time.Time
	UpdatedAt             time.Time
}
