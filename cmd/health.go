package cmd

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/signalboard/sgb-cli/config"
	"github.com/signalboard/sgb-cli/pkg/db"
)

// Health command flags
var healthOutput string

// HealthCommandDeps holds the dependencies for the health command.
type HealthCommandDeps struct {
	Config      *config.CLIConfig
	LoadConfig  func(*cobra.Command) (*config.CLIConfig, error)
	ConnectToDB func(context.Context, *config.CLIConfig) (*pgxpool.Pool, error)
}

// DefaultHealthDeps returns the default dependencies for production use.
func DefaultHealthDeps() *HealthCommandDeps {
	return &HealthCommandDeps{
		LoadConfig:  loadConfigForCommand,
		ConnectToDB: connectToDatabase,
	}
}

// healthReport is the structured output of the health command.
type healthReport struct {
	Database   healthComponent `json:"database" yaml:"database"`
	Migrations healthComponent `json:"migrations" yaml:"migrations"`
	Redis      healthComponent `json:"redis" yaml:"redis"`
}

type healthComponent struct {
	Healthy   bool               `json:"healthy" yaml:"healthy"`
	LatencyMs int64              `json:"latency_ms" yaml:"latency_ms"`
	Detail    string             `json:"detail,omitempty" yaml:"detail,omitempty"`
	Metrics   map[string]float64 `json:"metrics,omitempty" yaml:"metrics,omitempty"`
	Error     string             `json:"error,omitempty" yaml:"error,omitempty"`
}

// NewHealthCommand creates the health command.
func NewHealthCommand() *cobra.Command {
	deps := DefaultHealthDeps()

	cmd := &cobra.Command{
		Use:   "health",
		Short: "Check database and broker connectivity",
		Long: `Check the health of the event store's dependencies.

Verifies that PostgreSQL is reachable and reports query latency, connection
pool usage, and schema migration state. When Redis write notifications are
enabled, the
broker is pinged as well; a broker failure is reported but never makes
the command fail, since writes work without it.`,
		Example: `  sgb health
  sgb health --output json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHealth(cmd, deps)
		},
	}

	cmd.Flags().StringVarP(&healthOutput, "output", "o", "", "Output format: text, json, yaml")

	return cmd
}

// runHealth executes the health command.
func runHealth(cmd *cobra.Command, deps *HealthCommandDeps) error {
	ctx := cmd.Context()

	cfg, err := deps.LoadConfig(cmd)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	deps.Config = cfg

	rep := healthReport{}

	pool, err := deps.ConnectToDB(ctx, cfg)
	if err != nil {
		rep.Database = healthComponent{Healthy: false, Error: err.Error()}
		rep.Migrations = healthComponent{Healthy: false, Detail: "database unreachable"}
	} else {
		defer pool.Close()
		status := db.Check(ctx, pool)
		rep.Database = healthComponent{
			Healthy:   status.Healthy,
			LatencyMs: status.Latency.Milliseconds(),
			Detail: fmt.Sprintf("%d/%d connections in use, %d idle",
				status.AcquiredConns, status.TotalConns, status.IdleConns),
		}
		if status.Error != nil {
			rep.Database.Error = status.Error.Error()
		}
		if metrics, merr := db.GatherPoolMetrics(pool); merr == nil {
			rep.Database.Metrics = metrics
		}
		rep.Migrations = checkMigrations(ctx, pool, cfg)
	}

	rep.Redis = checkRedis(ctx, cfg)

	format, err := resolveFormat(cfg, healthOutput)
	if err != nil {
		return err
	}
	if format != config.OutputFormatText {
		if err := writeStructured(cmd.OutOrStdout(), format, rep); err != nil {
			return err
		}
	} else {
		outputHealthText(cmd, rep)
	}

	if !rep.Database.Healthy {
		return fmt.Errorf("database is unhealthy")
	}
	return nil
}

// checkMigrations summarizes schema migration state. Pending migrations make
// the component unhealthy since reads against missing views would fail.
func checkMigrations(ctx context.Context, pool *pgxpool.Pool, cfg *config.CLIConfig) healthComponent {
	dir := cfg.MigrationsDir
	if dir == "" {
		dir = config.DefaultMigrationsDir
	}

	status, err := db.Status(ctx, pool, dir)
	if err != nil {
		return healthComponent{Healthy: false, Error: err.Error()}
	}

	detail := fmt.Sprintf("%d applied, %d pending", len(status.Applied), len(status.Pending))
	if len(status.Drift) > 0 {
		detail += fmt.Sprintf(", %d drifted", len(status.Drift))
	}
	return healthComponent{Healthy: len(status.Pending) == 0, Detail: detail}
}

// checkRedis pings the broker when notifications are enabled.
func checkRedis(ctx context.Context, cfg *config.CLIConfig) healthComponent {
	if cfg.Redis == nil || !cfg.Redis.Enabled {
		return healthComponent{Healthy: true, Detail: "disabled"}
	}

	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Redis.GetHost(), cfg.Redis.GetPort()),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer client.Close()

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	start := time.Now()
	if err := client.Ping(pingCtx).Err(); err != nil {
		return healthComponent{Healthy: false, Error: err.Error()}
	}
	return healthComponent{Healthy: true, LatencyMs: time.Since(start).Milliseconds()}
}

// outputHealthText formats the health report for terminal display.
func outputHealthText(cmd *cobra.Command, rep healthReport) {
	out := cmd.OutOrStdout()

	printComponent := func(name string, c healthComponent) {
		state := "HEALTHY"
		if !c.Healthy {
			state = "UNHEALTHY"
		}
		fmt.Fprintf(out, "%-10s %s", name, state)
		if c.Detail != "" {
			fmt.Fprintf(out, "  (%s)", c.Detail)
		}
		if c.Healthy && c.LatencyMs > 0 {
			fmt.Fprintf(out, "  %dms", c.LatencyMs)
		}
		if c.Error != "" {
			fmt.Fprintf(out, "  error: %s", c.Error)
		}
		fmt.Fprintln(out)
	}

	printComponent("database", rep.Database)
	if len(rep.Database.Metrics) > 0 {
		names := make([]string, 0, len(rep.Database.Metrics))
		for name := range rep.Database.Metrics {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Fprintf(out, "  %-28s %.0f\n", name, rep.Database.Metrics[name])
		}
	}
	printComponent("migrations", rep.Migrations)
	printComponent("redis", rep.Redis)
}
