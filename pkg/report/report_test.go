package report

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/signalboard/sgb-cli/pkg/db"
	"github.com/signalboard/sgb-cli/pkg/logging"
	"github.com/signalboard/sgb-cli/pkg/store"
)

func strptr(s string) *string { return &s }

func setupTest(t *testing.T) (*Reporter, *store.Repository, *pgxpool.Pool) {
	t.Helper()

	if testing.Short() {
		t.Skip("Skipping integration test")
	}
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		t.Skip("DATABASE_URL not set; skipping integration test")
	}

	ctx := context.Background()
	cfg := db.DefaultConfig()
	cfg.URL = dbURL

	pool, err := db.Connect(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	_, err = db.RunMigrations(ctx, pool, "../../migrations")
	require.NoError(t, err)

	_, err = pool.Exec(ctx, "DELETE FROM funnel_events")
	require.NoError(t, err)
	_, err = pool.Exec(ctx, "DELETE FROM content_events")
	require.NoError(t, err)

	repo := store.NewRepository(pool, logging.NewNopLogger(), store.Options{})
	return NewReporter(pool), repo, pool
}

func TestChannelMetricsMatchUnderlyingEvents(t *testing.T) {
	reporter, repo, _ := setupTest(t)
	ctx := context.Background()

	march := time.Date(2024, 3, 5, 9, 0, 0, 0, time.UTC)
	seed := []*store.ContentEvent{
		{ExternalKey: strptr("cm-1"), Channel: "linkedin", ContentType: "post", OccurredAt: march, Views: 100, Reactions: 10, Comments: 5, Shares: 2, Clicks: 7},
		{ExternalKey: strptr("cm-2"), Channel: "linkedin", ContentType: "thread", OccurredAt: march.AddDate(0, 0, 3), Views: 40, Reactions: 1},
		// landing page view in the same group: summed, but not a content item
		{ExternalKey: strptr("cm-3"), Channel: "linkedin", ContentType: "landing", OccurredAt: march.AddDate(0, 0, 5), Views: 9, Clicks: 3},
		// different channel, same month
		{ExternalKey: strptr("cm-4"), Channel: "x", ContentType: "post", OccurredAt: march, Views: 11},
		// different month, same channel
		{ExternalKey: strptr("cm-5"), Channel: "linkedin", ContentType: "post", OccurredAt: march.AddDate(0, 1, 0), Views: 500},
	}
	for _, ev := range seed {
		_, err := repo.UpsertContentEvent(ctx, ev)
		require.NoError(t, err)
	}

	metrics, err := reporter.ChannelMetrics(ctx, Filter{})
	require.NoError(t, err)
	require.Len(t, metrics, 3)

	byKey := map[string]*ChannelMetrics{}
	for _, m := range metrics {
		byKey[FormatMonth(m.Month)+"/"+m.Channel] = m
	}

	li := byKey["2024-03/linkedin"]
	require.NotNil(t, li)
	assert.Equal(t, int64(2), li.ContentItems, "only post and thread count as content items")
	assert.Equal(t, int64(149), li.Views, "views sum over every event in the group")
	assert.Equal(t, int64(18), li.Engagements, "reactions + comments + shares")
	assert.Equal(t, int64(10), li.Clicks)

	x := byKey["2024-03/x"]
	require.NotNil(t, x)
	assert.Equal(t, int64(11), x.Views)

	april := byKey["2024-04/linkedin"]
	require.NotNil(t, april)
	assert.Equal(t, int64(500), april.Views)
}

func TestChannelMetricsFilter(t *testing.T) {
	reporter, repo, _ := setupTest(t)
	ctx := context.Background()

	for i, month := range []time.Month{2, 3, 4} {
		key := string(rune('a' + i))
		_, err := repo.UpsertContentEvent(ctx, &store.ContentEvent{
			ExternalKey: strptr("cf-" + key),
			Channel:     "linkedin",
			ContentType: "post",
			OccurredAt:  time.Date(2024, month, 10, 0, 0, 0, 0, time.UTC),
		})
		require.NoError(t, err)
	}

	metrics, err := reporter.ChannelMetrics(ctx, Filter{
		From:  time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		Until: time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	require.Len(t, metrics, 1)
	assert.Equal(t, "2024-03", FormatMonth(metrics[0].Month))
}

func TestFunnelMetricsDealRevenue(t *testing.T) {
	reporter, repo, _ := setupTest(t)
	ctx := context.Background()

	march := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	amount := decimal.NewFromInt(5000)

	_, err := repo.UpsertFunnelEvent(ctx, &store.FunnelEvent{
		ExternalKey:   strptr("fm-deal"),
		Stage:         "deal",
		SourceChannel: strptr("linkedin"),
		OccurredAt:    march,
		Amount:        &amount,
	})
	require.NoError(t, err)

	metrics, err := reporter.FunnelMetrics(ctx, Filter{Channel: "linkedin"})
	require.NoError(t, err)
	require.Len(t, metrics, 1)

	m := metrics[0]
	assert.Equal(t, int64(1), m.Deals)
	assert.Equal(t, int64(0), m.Leads)
	require.NotNil(t, m.Revenue)
	assert.True(t, m.Revenue.Equal(decimal.NewFromInt(5000)), "revenue = %s", m.Revenue)
}

func TestFunnelMetricsUnknownStageNotCounted(t *testing.T) {
	reporter, repo, _ := setupTest(t)
	ctx := context.Background()

	march := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	_, err := repo.UpsertFunnelEvent(ctx, &store.FunnelEvent{
		ExternalKey:   strptr("fm-odd"),
		Stage:         "renewal",
		SourceChannel: strptr("email"),
		OccurredAt:    march,
	})
	require.NoError(t, err)

	metrics, err := reporter.FunnelMetrics(ctx, Filter{})
	require.NoError(t, err)
	require.Len(t, metrics, 1, "the group exists because it has an event")

	m := metrics[0]
	assert.Zero(t, m.Leads)
	assert.Zero(t, m.Meetings)
	assert.Zero(t, m.Pilots)
	assert.Zero(t, m.Deals)
	assert.Nil(t, m.Revenue)
}

func TestFunnelMetricsNullSourceChannelGroups(t *testing.T) {
	reporter, repo, _ := setupTest(t)
	ctx := context.Background()

	_, err := repo.UpsertFunnelEvent(ctx, &store.FunnelEvent{
		ExternalKey: strptr("fm-nochan"),
		Stage:       "lead",
		OccurredAt:  time.Date(2024, 3, 3, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	metrics, err := reporter.FunnelMetrics(ctx, Filter{})
	require.NoError(t, err)
	require.Len(t, metrics, 1)
	assert.Nil(t, metrics[0].Channel)
	assert.Equal(t, int64(1), metrics[0].Leads)
}

// TestMarchScenario replays the attribution scenario end to end: a LinkedIn
// post in early March and a lead it generated a few days later.
func TestMarchScenario(t *testing.T) {
	reporter, repo, _ := setupTest(t)
	ctx := context.Background()

	_, err := repo.UpsertContentEvent(ctx, &store.ContentEvent{
		ExternalKey: strptr("post-1"),
		Channel:     "linkedin",
		ContentType: "post",
		OccurredAt:  time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC),
		Views:       100,
	})
	require.NoError(t, err)

	_, err = repo.UpsertFunnelEvent(ctx, &store.FunnelEvent{
		ExternalKey:           strptr("lead-1"),
		Stage:                 "lead",
		SourceChannel:         strptr("linkedin"),
		SourceContentNotionID: strptr("post-1"),
		OccurredAt:            time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	channel, err := reporter.ChannelMetrics(ctx, Filter{Channel: "linkedin"})
	require.NoError(t, err)
	require.Len(t, channel, 1)
	assert.Equal(t, "2024-03", FormatMonth(channel[0].Month))
	assert.Equal(t, int64(1), channel[0].ContentItems)
	assert.Equal(t, int64(100), channel[0].Views)

	funnel, err := reporter.FunnelMetrics(ctx, Filter{Channel: "linkedin"})
	require.NoError(t, err)
	require.Len(t, funnel, 1)
	assert.Equal(t, int64(1), funnel[0].Leads)
	assert.Nil(t, funnel[0].Revenue)
}
