package db

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "localhost", cfg.Host)
	assert.Equal(t, 5432, cfg.Port)
	assert.Equal(t, "signalboard", cfg.Database)
	assert.Equal(t, "disable", cfg.SSLMode)
	assert.NoError(t, cfg.Validate())
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("DB_HOST", "db.internal")
	t.Setenv("DB_PORT", "6432")
	t.Setenv("DB_NAME", "sgb_test")
	t.Setenv("DB_USER", "tester")
	t.Setenv("DB_PASSWORD", "secret")
	t.Setenv("DB_SSLMODE", "require")
	t.Setenv("DB_MAX_CONNS", "7")
	t.Setenv("DB_MIN_CONNS", "3")

	cfg := ConfigFromEnv()
	assert.Equal(t, "db.internal", cfg.Host)
	assert.Equal(t, 6432, cfg.Port)
	assert.Equal(t, "sgb_test", cfg.Database)
	assert.Equal(t, "tester", cfg.User)
	assert.Equal(t, "secret", cfg.Password)
	assert.Equal(t, "require", cfg.SSLMode)
	assert.Equal(t, int32(7), cfg.MaxConns)
	assert.Equal(t, int32(3), cfg.MinConns)
}

func TestConfigFromEnvURLWins(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://u:p@example.com:5432/events")
	t.Setenv("DB_HOST", "ignored")

	cfg := ConfigFromEnv()
	assert.Equal(t, "postgres://u:p@example.com:5432/events", cfg.URL)
	assert.Equal(t, cfg.URL, cfg.ConnectionString())
	assert.NoError(t, cfg.Validate())
}

func TestConfigFromEnvInvalidNumbersIgnored(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("DB_PORT", "not-a-port")
	t.Setenv("DB_MAX_CONNS", "lots")

	cfg := ConfigFromEnv()
	assert.Equal(t, 5432, cfg.Port)
	assert.Equal(t, DefaultConfig().MaxConns, cfg.MaxConns)
}

func TestConnectionStringEscapesCredentials(t *testing.T) {
	cfg := DefaultConfig()
	cfg.User = "user@corp"
	cfg.Password = "p:ss/word"

	s := cfg.ConnectionString()
	assert.Contains(t, s, "user%40corp")
	assert.Contains(t, s, "p%3Ass%2Fword")
	assert.NotContains(t, s, "p:ss/word")
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"missing host", func(c *Config) { c.Host = "" }, "host is required"},
		{"bad port", func(c *Config) { c.Port = 0 }, "invalid database port"},
		{"port too large", func(c *Config) { c.Port = 70000 }, "invalid database port"},
		{"missing database", func(c *Config) { c.Database = "" }, "name is required"},
		{"missing user", func(c *Config) { c.User = "" }, "user is required"},
		{"max below min", func(c *Config) { c.MaxConns = 1; c.MinConns = 5 }, "must be >="},
		{"url skips field checks", func(c *Config) { c.Host = ""; c.URL = "postgres://x" }, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestConnectWithRetryRespectsContext(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}

	cfg := DefaultConfig()
	cfg.Host = "127.0.0.1"
	cfg.Port = 1 // nothing listens here
	cfg.ConnectTimeout = time.Second

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := ConnectWithRetry(ctx, cfg, 10, 5*time.Second)
	require.Error(t, err)
}

// setupTestDB connects to the database named by DATABASE_URL, skipping the
// test when the variable is unset.
func setupTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		t.Skip("DATABASE_URL not set; skipping integration test")
	}

	cfg := DefaultConfig()
	cfg.URL = dbURL

	pool, err := Connect(context.Background(), cfg)
	require.NoError(t, err)
	return pool
}

func TestPingAndCheck(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}

	pool := setupTestDB(t)
	defer pool.Close()

	ctx := context.Background()
	require.NoError(t, Ping(ctx, pool))

	status := Check(ctx, pool)
	assert.True(t, status.Healthy)
	assert.NoError(t, status.Error)
	assert.Greater(t, status.Latency, time.Duration(0))
}

func TestPingNilPool(t *testing.T) {
	assert.Error(t, Ping(context.Background(), nil))

	status := Check(context.Background(), nil)
	assert.False(t, status.Healthy)
	assert.Error(t, status.Error)
}
