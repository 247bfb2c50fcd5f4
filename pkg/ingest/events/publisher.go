// Package events publishes write notifications over Redis pub/sub.
//
// Consumers that materialize the monthly rollups for dashboards use these
// notifications as their invalidation signal; the event store itself never
// depends on them, so publishing is strictly best-effort.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/signalboard/sgb-cli/pkg/logging"
)

// Redis channels for store notifications.
const (
	ChannelContentUpserted    = "events.content.upserted"
	ChannelFunnelUpserted     = "events.funnel.upserted"
	ChannelImportJobProgress  = "events.import_job.progress"
	ChannelImportJobCompleted = "events.import_job.completed"
)

// BaseEvent contains common fields for all events.
type BaseEvent struct {
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
	Source    string    `json:"source"`
	Version   string    `json:"version"`
}

// NewBaseEvent creates a BaseEvent with sensible defaults.
func NewBaseEvent(eventType string) BaseEvent {
	return BaseEvent{
		EventType: eventType,
		Timestamp: time.Now().UTC(),
		Source:    "signalboard",
		Version:   "1.0",
	}
}

// RecordUpsertedEvent is published after a content or funnel event write.
type RecordUpsertedEvent struct {
	BaseEvent

	RecordID    int64   `json:"record_id"`
	ExternalKey *string `json:"external_key,omitempty"`
	Channel     *string `json:"channel,omitempty"`
	Stage       *string `json:"stage,omitempty"`
	Month       string  `json:"month"`
}

// ImportJobProgressEvent is published periodically during a batch import.
type ImportJobProgressEvent struct {
	BaseEvent

	JobID          string `json:"job_id"`
	Kind           string `json:"kind"`
	TotalRecords   int    `json:"total_records"`
	ProcessedCount int    `json:"processed_count"`
	ImportedCount  int    `json:"imported_count"`
	FailedCount    int    `json:"failed_count"`
}

// ImportJobCompletedEvent is published when a batch import finishes.
type ImportJobCompletedEvent struct {
	BaseEvent

	JobID         string    `json:"job_id"`
	Kind          string    `json:"kind"`
	TotalRecords  int       `json:"total_records"`
	ImportedCount int       `json:"imported_count"`
	FailedCount   int       `json:"failed_count"`
	CompletedAt   time.Time `json:"completed_at"`
	FinalStatus   string    `json:"final_status"`
}

// Publisher publishes store notifications to Redis. A nil client disables
// publishing entirely.
type Publisher struct {
	client *redis.Client
	logger logging.Logger
}

// Config holds Redis connection configuration.
type Config struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// NewPublisher creates a publisher over an existing client. client may be
// nil, in which case every publish is a no-op.
func NewPublisher(client *redis.Client, logger logging.Logger) *Publisher {
	return &Publisher{
		client: client,
		logger: logger.With(logging.F("component", "event_publisher")),
	}
}

// NewPublisherFromConfig creates a publisher with a new Redis connection.
func NewPublisherFromConfig(cfg Config, logger logging.Logger) (*Publisher, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewPublisher(client, logger), nil
}

// ContentUpserted announces a content event write.
func (p *Publisher) ContentUpserted(ctx context.Context, recordID int64, externalKey *string, channel, month string) {
	event := RecordUpsertedEvent{
		BaseEvent:   NewBaseEvent("content.upserted"),
		RecordID:    recordID,
		ExternalKey: externalKey,
		Channel:     &channel,
		Month:       month,
	}
	p.publish(ctx, ChannelContentUpserted, event)
}

// FunnelUpserted announces a funnel event write.
func (p *Publisher) FunnelUpserted(ctx context.Context, recordID int64, externalKey *string, stage, month string) {
	event := RecordUpsertedEvent{
		BaseEvent:   NewBaseEvent("funnel.upserted"),
		RecordID:    recordID,
		ExternalKey: externalKey,
		Stage:       &stage,
		Month:       month,
	}
	p.publish(ctx, ChannelFunnelUpserted, event)
}

// JobProgress announces batch import progress.
func (p *Publisher) JobProgress(ctx context.Context, jobID, kind string, total, processed, imported, failed int) {
	event := ImportJobProgressEvent{
		BaseEvent:      NewBaseEvent("import_job.progress"),
		JobID:          jobID,
		Kind:           kind,
		TotalRecords:   total,
		ProcessedCount: processed,
		ImportedCount:  imported,
		FailedCount:    failed,
	}
	p.publish(ctx, ChannelImportJobProgress, event)
}

// JobCompleted announces batch import completion.
func (p *Publisher) JobCompleted(ctx context.Context, jobID, kind string, total, imported, failed int, finalStatus string) {
	event := ImportJobCompletedEvent{
		BaseEvent:     NewBaseEvent("import_job.completed"),
		JobID:         jobID,
		Kind:          kind,
		TotalRecords:  total,
		ImportedCount: imported,
		FailedCount:   failed,
		CompletedAt:   time.Now().UTC(),
		FinalStatus:   finalStatus,
	}
	p.publish(ctx, ChannelImportJobCompleted, event)
}

// publish serializes and sends the event. Failures are logged, never
// returned: a missing broker must not fail the write it announces.
func (p *Publisher) publish(ctx context.Context, channel string, event interface{}) {
	if p == nil || p.client == nil {
		return
	}

	payload, err := json.Marshal(event)
	if err != nil {
		p.logger.Warn("Failed to marshal event", logging.Err(err), logging.F("channel", channel))
		return
	}

	if err := p.client.Publish(ctx, channel, payload).Err(); err != nil {
		p.logger.Warn("Failed to publish event", logging.Err(err), logging.F("channel", channel))
	}
}
