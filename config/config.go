// Package config provides CLI configuration management for the sgb
// command-line tool. It supports loading configuration from YAML files and
// environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/signalboard/sgb-cli/pkg/db"
	"github.com/signalboard/sgb-cli/pkg/store"
)

// OutputFormat defines the supported output formats for CLI results.
type OutputFormat string

const (
	// OutputFormatText is human-readable plain text output.
	OutputFormatText OutputFormat = "text"
	// OutputFormatJSON is JSON-formatted output for machine processing.
	OutputFormatJSON OutputFormat = "json"
	// OutputFormatYAML is YAML-formatted output for machine processing.
	OutputFormatYAML OutputFormat = "yaml"
)

// Default configuration values.
const (
	DefaultOutputFormat  = OutputFormatText
	DefaultConfigDir     = ".sgb"
	DefaultConfigFile    = "config.yaml"
	DefaultMigrationsDir = "migrations"
)

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	// URL is a full connection string. When set, the discrete fields
	// below are ignored.
	URL string `yaml:"url,omitempty"`

	Host     string `yaml:"host,omitempty"`
	Port     int    `yaml:"port,omitempty"`
	Database string `yaml:"database,omitempty"`
	User     string `yaml:"user,omitempty"`
	Password string `yaml:"password,omitempty"`

	// SSLMode is the SSL connection mode (disable, require, verify-ca,
	// verify-full).
	SSLMode string `yaml:"sslmode,omitempty"`
}

// PoolConfig converts the YAML settings into a pool configuration,
// falling back to environment variables for anything unset.
func (c *DatabaseConfig) PoolConfig() *db.Config {
	cfg := db.ConfigFromEnv()
	if c == nil {
		return cfg
	}
	if c.URL != "" {
		cfg.URL = c.URL
		return cfg
	}
	if c.Host != "" {
		cfg.Host = c.Host
	}
	if c.Port != 0 {
		cfg.Port = c.Port
	}
	if c.Database != "" {
		cfg.Database = c.Database
	}
	if c.User != "" {
		cfg.User = c.User
	}
	if c.Password != "" {
		cfg.Password = c.Password
	}
	if c.SSLMode != "" {
		cfg.SSLMode = c.SSLMode
	}
	return cfg
}

// RedisConfig holds Redis settings for write notifications. Publishing is
// optional; when Enabled is false writes carry on without a broker.
type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Host     string `yaml:"host,omitempty"`
	Port     int    `yaml:"port,omitempty"`
	Password string `yaml:"password,omitempty"`
	DB       int    `yaml:"db,omitempty"`
}

// GetHost returns the Redis host, defaulting to localhost.
func (c *RedisConfig) GetHost() string {
	if c == nil || c.Host == "" {
		return "localhost"
	}
	return c.Host
}

// GetPort returns the Redis port, defaulting to 6379.
func (c *RedisConfig) GetPort() int {
	if c == nil || c.Port == 0 {
		return 6379
	}
	return c.Port
}

// IngestConfig holds write-path policy settings.
type IngestConfig struct {
	// AttributionPolicy controls what happens when a funnel event names a
	// source content key that does not exist: "accept_null" (default)
	// keeps the event and clears the reference, "reject" refuses it.
	AttributionPolicy string `yaml:"attribution_policy,omitempty"`

	// StrictValues rejects events carrying channels, content types,
	// stages, or sectors outside the known sets instead of logging them.
	StrictValues bool `yaml:"strict_values,omitempty"`

	// ProgressEvery is the line interval between batch import progress
	// updates. Zero uses the importer default.
	ProgressEvery int `yaml:"progress_every,omitempty"`
}

// StoreOptions converts the ingest policies into store options.
func (c *IngestConfig) StoreOptions() (store.Options, error) {
	opts := store.Options{Attribution: store.AttributionAcceptNull}
	if c == nil {
		return opts, nil
	}
	switch c.AttributionPolicy {
	case "", "accept_null":
		opts.Attribution = store.AttributionAcceptNull
	case "reject":
		opts.Attribution = store.AttributionReject
	default:
		return opts, fmt.Errorf("invalid attribution_policy: %q (must be accept_null or reject)", c.AttributionPolicy)
	}
	opts.StrictValues = c.StrictValues
	return opts, nil
}

// CLIConfig holds the CLI configuration settings.
type CLIConfig struct {
	// OutputFormat specifies the default output format for commands.
	OutputFormat OutputFormat `yaml:"output_format"`

	// MigrationsDir is the directory containing SQL migration files.
	MigrationsDir string `yaml:"migrations_dir,omitempty"`

	// Debug enables verbose debug logging.
	Debug bool `yaml:"debug,omitempty"`

	// Database holds PostgreSQL connection settings.
	Database *DatabaseConfig `yaml:"database,omitempty"`

	// Redis holds write-notification broker settings.
	Redis *RedisConfig `yaml:"redis,omitempty"`

	// Ingest holds write-path policy settings.
	Ingest *IngestConfig `yaml:"ingest,omitempty"`
}

// DefaultConfig returns a CLIConfig with default values.
func DefaultConfig() *CLIConfig {
	return &CLIConfig{
		OutputFormat:  DefaultOutputFormat,
		MigrationsDir: DefaultMigrationsDir,
	}
}

// ConfigDir returns the configuration directory path.
// Uses $SGB_CONFIG_DIR if set, otherwise ~/.sgb
func ConfigDir() (string, error) {
	if dir := os.Getenv("SGB_CONFIG_DIR"); dir != "" {
		return dir, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}

	return filepath.Join(home, DefaultConfigDir), nil
}

// ConfigPath returns the full path to the configuration file.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, DefaultConfigFile), nil
}

// LoadConfig loads the CLI configuration. Sources are applied in order,
// later ones overriding earlier ones:
// 1. Default values
// 2. Config file (~/.sgb/config.yaml or $SGB_CONFIG_DIR/config.yaml)
// 3. Environment variables (SGB_OUTPUT_FORMAT, SGB_DEBUG, SGB_REDIS_*)
func LoadConfig() (*CLIConfig, error) {
	path, err := ConfigPath()
	if err != nil {
		return nil, fmt.Errorf("getting config path: %w", err)
	}
	return LoadConfigFile(path)
}

// LoadConfigFile loads the configuration from an explicit file path. A
// missing file is not an error; defaults and environment apply.
func LoadConfigFile(path string) (*CLIConfig, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(path); err == nil {
		if err := loadFromFile(cfg, path); err != nil {
			return nil, fmt.Errorf("loading config file: %w", err)
		}
	}

	loadFromEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// loadFromFile loads configuration from a YAML file.
func loadFromFile(cfg *CLIConfig, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}

	var fileCfg CLIConfig
	if err := yaml.Unmarshal(data, &fileCfg); err != nil {
		return fmt.Errorf("parsing config file: %w", err)
	}

	if fileCfg.OutputFormat != "" {
		cfg.OutputFormat = fileCfg.OutputFormat
	}
	if fileCfg.MigrationsDir != "" {
		cfg.MigrationsDir = fileCfg.MigrationsDir
	}
	if fileCfg.Database != nil {
		cfg.Database = fileCfg.Database
	}
	if fileCfg.Redis != nil {
		cfg.Redis = fileCfg.Redis
	}
	if fileCfg.Ingest != nil {
		cfg.Ingest = fileCfg.Ingest
	}
	cfg.Debug = fileCfg.Debug

	return nil
}

// loadFromEnv overlays environment variables onto the configuration. The
// DATABASE_URL and DB_* variables are handled by db.ConfigFromEnv when the
// pool configuration is built.
func loadFromEnv(cfg *CLIConfig) {
	if v := os.Getenv("SGB_OUTPUT_FORMAT"); v != "" {
		cfg.OutputFormat = OutputFormat(v)
	}

	if v := os.Getenv("SGB_MIGRATIONS_DIR"); v != "" {
		cfg.MigrationsDir = v
	}

	if v := os.Getenv("SGB_DEBUG"); v == "true" || v == "1" {
		cfg.Debug = true
	}

	if v := os.Getenv("SGB_ATTRIBUTION_POLICY"); v != "" {
		if cfg.Ingest == nil {
			cfg.Ingest = &IngestConfig{}
		}
		cfg.Ingest.AttributionPolicy = v
	}

	if v := os.Getenv("SGB_STRICT_VALUES"); v == "true" || v == "1" {
		if cfg.Ingest == nil {
			cfg.Ingest = &IngestConfig{}
		}
		cfg.Ingest.StrictValues = true
	}

	loadRedisFromEnv(cfg)
}

// loadRedisFromEnv overlays Redis environment variables.
func loadRedisFromEnv(cfg *CLIConfig) {
	host := os.Getenv("SGB_REDIS_HOST")
	enabled := os.Getenv("SGB_REDIS_ENABLED")

	if host == "" && enabled == "" {
		return
	}

	if cfg.Redis == nil {
		cfg.Redis = &RedisConfig{}
	}

	if enabled == "true" || enabled == "1" {
		cfg.Redis.Enabled = true
	}
	if host != "" {
		cfg.Redis.Host = host
	}
	if v := os.Getenv("SGB_REDIS_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Redis.Port = port
		}
	}
	if v := os.Getenv("SGB_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("SGB_REDIS_DB"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Redis.DB = n
		}
	}
}

// Validate checks that the configuration is valid.
func (c *CLIConfig) Validate() error {
	if !c.OutputFormat.IsValid() {
		return fmt.Errorf("invalid output_format: %q (must be text, json, or yaml)", c.OutputFormat)
	}

	if _, err := c.Ingest.StoreOptions(); err != nil {
		return err
	}

	return nil
}

// IsValid checks if the output format is valid.
func (f OutputFormat) IsValid() bool {
	switch f {
	case OutputFormatText, OutputFormatJSON, OutputFormatYAML:
		return true
	default:
		return false
	}
}

// String returns the string representation of the output format.
func (f OutputFormat) String() string {
	return string(f)
}

// SaveConfig saves the configuration to the config file.
func SaveConfig(cfg *CLIConfig) error {
	if err := EnsureConfigDir(); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	configPath, err := ConfigPath()
	if err != nil {
		return fmt.Errorf("getting config path: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	return nil
}

// EnsureConfigDir creates the configuration directory if it doesn't exist.
func EnsureConfigDir() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	return os.MkdirAll(dir, 0700)
}
