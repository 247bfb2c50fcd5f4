package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/signalboard/sgb-cli/config"
	"github.com/signalboard/sgb-cli/pkg/db"
	"github.com/signalboard/sgb-cli/pkg/ingest/events"
	"github.com/signalboard/sgb-cli/pkg/logging"
)

// Transient connection failures get a couple of retries so a restarting
// database does not fail a batch import outright.
const (
	dbConnectAttempts = 3
	dbConnectDelay    = 2 * time.Second
)

// connectToDatabase establishes a database connection from the loaded
// configuration, falling back to DATABASE_URL / DB_* environment variables.
func connectToDatabase(ctx context.Context, cfg *config.CLIConfig) (*pgxpool.Pool, error) {
	poolCfg := cfg.Database.PoolConfig()
	pool, err := db.ConnectWithRetry(ctx, poolCfg, dbConnectAttempts, dbConnectDelay)
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}
	return pool, nil
}

// newLogger builds the CLI logger. Debug mode switches to verbose
// human-readable output; otherwise only warnings reach the terminal.
func newLogger(cfg *config.CLIConfig) logging.Logger {
	level := logging.LevelWarn
	if cfg.Debug {
		level = logging.LevelDebug
	}
	return logging.New(&logging.Config{
		Level:     level,
		Component: "sgb",
		Output:    os.Stderr,
	})
}

// newPublisher builds the write-notification publisher, or a disabled one
// when Redis is not configured. A broker failure only degrades to a
// warning; commands still run.
func newPublisher(cfg *config.CLIConfig, logger logging.Logger) *events.Publisher {
	if cfg.Redis == nil || !cfg.Redis.Enabled {
		return events.NewPublisher(nil, logger)
	}

	pub, err := events.NewPublisherFromConfig(events.Config{
		Host:     cfg.Redis.GetHost(),
		Port:     cfg.Redis.GetPort(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}, logger)
	if err != nil {
		logger.Warn("Redis unavailable, write notifications disabled", logging.Err(err))
		return events.NewPublisher(nil, logger)
	}
	return pub
}

// resolveFormat picks the output format: command flag wins over config.
func resolveFormat(cfg *config.CLIConfig, flagValue string) (config.OutputFormat, error) {
	format := cfg.OutputFormat
	if flagValue != "" {
		format = config.OutputFormat(flagValue)
	}
	if !format.IsValid() {
		return "", fmt.Errorf("invalid output format: %q (must be text, json, or yaml)", format)
	}
	return format, nil
}

// writeStructured renders v as JSON or YAML to w.
func writeStructured(w io.Writer, format config.OutputFormat, v interface{}) error {
	switch format {
	case config.OutputFormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case config.OutputFormatYAML:
		enc := yaml.NewEncoder(w)
		defer enc.Close()
		return enc.Encode(v)
	default:
		return fmt.Errorf("writeStructured: unsupported format %q", format)
	}
}

// loadConfigForCommand loads configuration honoring the global --config,
// --output, and --debug flags set on the root command.
func loadConfigForCommand(cmd *cobra.Command) (*config.CLIConfig, error) {
	rootFlags := cmd.Root().PersistentFlags()

	var cfg *config.CLIConfig
	var err error
	if flag := rootFlags.Lookup("config"); flag != nil && flag.Value.String() != "" {
		cfg, err = config.LoadConfigFile(flag.Value.String())
	} else {
		cfg, err = config.LoadConfig()
	}
	if err != nil {
		return nil, err
	}

	if flag := rootFlags.Lookup("output"); flag != nil && flag.Value.String() != "" {
		cfg.OutputFormat = config.OutputFormat(flag.Value.String())
	}
	if flag := rootFlags.Lookup("debug"); flag != nil && flag.Value.String() == "true" {
		cfg.Debug = true
	}

	return cfg, nil
}

// parseTimeFlag parses a time flag accepting a date (2006-01-02), a month
// (2006-01), or a full RFC3339 timestamp. Dates and months are UTC.
func parseTimeFlag(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02", "2006-01"} {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid time %q (use 2006-01, 2006-01-02, or RFC3339)", value)
}

// strFlagPtr returns nil for unset optional string flags.
func strFlagPtr(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}

// valueOrDash renders optional string columns in text tables.
func valueOrDash(s *string) string {
	if s == nil || *s == "" {
		return "-"
	}
	return *s
}

// truncateString truncates a string to maxLen, adding "..." if truncated.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
