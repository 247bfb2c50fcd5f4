package db

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
)

func TestPoolStatsCollectorDescribe(t *testing.T) {
	c := NewPoolStatsCollector(nil)

	ch := make(chan *prometheus.Desc, 10)
	c.Describe(ch)
	close(ch)

	var count int
	for range ch {
		count++
	}
	assert.Equal(t, 4, count)
}

func TestPoolStatsCollectorNilPool(t *testing.T) {
	c := NewPoolStatsCollector(nil)

	ch := make(chan prometheus.Metric, 10)
	c.Collect(ch)
	close(ch)

	for range ch {
		t.Fatal("nil pool should emit no metrics")
	}
}

func TestGatherPoolMetricsNilPool(t *testing.T) {
	values, err := GatherPoolMetrics(nil)
	assert.NoError(t, err)
	assert.Empty(t, values)
}

func TestRegisterPoolStatsCollectorTwice(t *testing.T) {
	reg := prometheus.NewRegistry()

	_, err := RegisterPoolStatsCollector(nil, reg)
	assert.NoError(t, err)
	_, err = RegisterPoolStatsCollector(nil, reg)
	assert.NoError(t, err)
}

func TestGatherPoolMetricsReportsGauges(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}

	pool := setupTestDB(t)
	defer pool.Close()

	values, err := GatherPoolMetrics(pool)
	assert.NoError(t, err)

	for _, name := range []string{
		"sgb_db_pool_total_conns",
		"sgb_db_pool_idle_conns",
		"sgb_db_pool_acquired_conns",
		"sgb_db_pool_max_conns",
	} {
		_, ok := values[name]
		assert.True(t, ok, "missing gauge %s", name)
	}
	assert.Greater(t, values["sgb_db_pool_max_conns"], float64(0))
}

func TestPoolStatsCollectorRegisters(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}

	pool := setupTestDB(t)
	defer pool.Close()

	reg := prometheus.NewRegistry()
	assert.NoError(t, reg.Register(NewPoolStatsCollector(pool)))

	families, err := reg.Gather()
	assert.NoError(t, err)
	assert.NotEmpty(t, families)
}
