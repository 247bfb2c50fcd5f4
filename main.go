// Package main provides the sgb CLI entry point.
// sgb is the command-line interface for the Signalboard publishing analytics store.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/signalboard/sgb-cli/cmd"
	"github.com/signalboard/sgb-cli/config"
	"github.com/signalboard/sgb-cli/pkg/buildinfo"
)

// Global flags and state.
var (
	cfgFile      string
	outputFormat string
	debug        bool

	// cfg holds the loaded configuration.
	cfg *config.CLIConfig
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "sgb",
	Short: "Signalboard CLI - publishing and sales funnel analytics",
	Long: `sgb is the command-line interface for the Signalboard analytics store.

Signalboard records content publishing events (posts, threads, DMs,
landing-page views)
and sales funnel events (leads, meetings, pilots, deals) in PostgreSQL,
keyed for idempotent re-ingestion, and reports monthly rollups per channel.

COMMON WORKFLOWS:
  Record activity:  sgb content add --channel linkedin --type post --views 120
  Record funnel:    sgb funnel add --stage lead --org "Acme Corp"
  Batch import:     sgb import content ./events.jsonl
  Monthly rollups:  sgb report channels --from 2026-01
  Check system:     sgb health  ->  sgb db status

DISCOVERY:
  sgb <command> --help    Subcommands, flags, and examples for any command
  sgb db status           Schema migration state
  sgb import status <id>  Rejected lines for a batch import`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Skip initialization for commands that don't need it.
		if cmd.Name() == "version" || cmd.Name() == "help" || cmd.Name() == "completion" {
			return nil
		}

		// Load configuration.
		var err error
		if cfgFile != "" {
			cfg, err = config.LoadConfigFile(cfgFile)
		} else {
			cfg, err = config.LoadConfig()
		}
		if err != nil {
			return fmt.Errorf("loading configuration: %w", err)
		}

		// Override with command-line flags.
		if outputFormat != "" {
			cfg.OutputFormat = config.OutputFormat(outputFormat)
		}
		if debug {
			cfg.Debug = true
		}

		return nil
	},
}

// Version command flags.
var versionOutputJSON bool

// versionCmd prints version information.
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long: `Print the version, commit hash, and build time of the sgb CLI.

Use --output-json for machine-readable output.

Examples:
  sgb version                Show version
  sgb version --output-json  Output as JSON`,
	RunE: func(cmd *cobra.Command, args []string) error {
		info := buildinfo.Get("sgb-cli")
		out := cmd.OutOrStdout()

		if versionOutputJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(info)
		}

		fmt.Fprintf(out, "sgb version %s\n", info.Version)
		fmt.Fprintf(out, "  commit:     %s\n", info.Commit)
		fmt.Fprintf(out, "  built:      %s\n", info.BuildTime)
		return nil
	},
}

// configCmd manages CLI configuration.
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage CLI configuration",
	Long:  `View and modify the sgb CLI configuration settings.`,
}

// configShowCmd displays current configuration.
var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long:  `Display the current CLI configuration values.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		// Load config (uses PersistentPreRunE, so cfg is already loaded).
		if cfg == nil {
			var err error
			cfg, err = config.LoadConfig()
			if err != nil {
				return fmt.Errorf("loading configuration: %w", err)
			}
		}

		configPath, _ := config.ConfigPath()

		out := cmd.OutOrStdout()
		fmt.Fprintln(out, "Current configuration:")
		fmt.Fprintf(out, "  Config file:        %s\n", configPath)
		fmt.Fprintf(out, "  Output format:      %s\n", cfg.OutputFormat)
		fmt.Fprintf(out, "  Migrations dir:     %s\n", migrationsDirOrDefault(cfg))
		fmt.Fprintf(out, "  Debug:              %t\n", cfg.Debug)
		if cfg.Database != nil && cfg.Database.URL != "" {
			fmt.Fprintf(out, "  Database URL:       (set)\n")
		} else if cfg.Database != nil && cfg.Database.Host != "" {
			fmt.Fprintf(out, "  Database host:      %s\n", cfg.Database.Host)
		} else {
			fmt.Fprintf(out, "  Database:           (from environment)\n")
		}
		if cfg.Redis != nil && cfg.Redis.Enabled {
			fmt.Fprintf(out, "  Redis:              %s:%d\n", cfg.Redis.GetHost(), cfg.Redis.GetPort())
		} else {
			fmt.Fprintf(out, "  Redis:              disabled\n")
		}
		if cfg.Ingest != nil {
			fmt.Fprintf(out, "  Attribution policy: %s\n", attributionPolicyOrDefault(cfg.Ingest))
			fmt.Fprintf(out, "  Strict values:      %t\n", cfg.Ingest.StrictValues)
		}

		return nil
	},
}

// configInitCmd initializes configuration.
var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration file",
	Long:  `Create a new configuration file with default values if one doesn't exist.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath, err := config.ConfigPath()
		if err != nil {
			return fmt.Errorf("getting config path: %w", err)
		}

		// Check if config already exists.
		if _, err := os.Stat(configPath); err == nil {
			fmt.Printf("Configuration file already exists: %s\n", configPath)
			fmt.Println("Use 'sgb config show' to view current settings.")
			return nil
		}

		// Create default config.
		defaultCfg := config.DefaultConfig()
		if err := config.SaveConfig(defaultCfg); err != nil {
			return fmt.Errorf("saving configuration: %w", err)
		}

		fmt.Printf("Created configuration file: %s\n", configPath)
		fmt.Println("\nDefault settings:")
		fmt.Printf("  Output format:  %s\n", defaultCfg.OutputFormat)
		fmt.Printf("  Migrations dir: %s\n", migrationsDirOrDefault(defaultCfg))

		return nil
	},
}

// configSetCmd sets a configuration value.
var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long: `Set a configuration value in the config file.

Available keys:
  output_format       - Default output format (text, json, yaml)
  migrations_dir      - Directory containing SQL migration files
  debug               - Enable debug mode (true/false)
  attribution_policy  - Dangling funnel attribution handling (accept_null, reject)
  strict_values       - Reject unknown channels/stages/sectors (true/false)
  progress_every      - Line interval between import progress updates

Examples:
  sgb config set output_format json
  sgb config set migrations_dir ./migrations
  sgb config set attribution_policy reject
  sgb config set strict_values true`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		// Load current config.
		currentCfg, err := config.LoadConfig()
		if err != nil {
			// If config doesn't exist, start with defaults.
			currentCfg = config.DefaultConfig()
		}

		// Set the value.
		switch key {
		case "output_format":
			format := config.OutputFormat(value)
			if !format.IsValid() {
				return fmt.Errorf("invalid output format: %s (must be text, json, or yaml)", value)
			}
			currentCfg.OutputFormat = format
		case "migrations_dir":
			currentCfg.MigrationsDir = value
		case "debug":
			enabled, err := parseBoolValue(value)
			if err != nil {
				return fmt.Errorf("invalid debug value: %s (must be true or false)", value)
			}
			currentCfg.Debug = enabled
		case "attribution_policy":
			if value != "accept_null" && value != "reject" {
				return fmt.Errorf("invalid attribution policy: %s (must be accept_null or reject)", value)
			}
			if currentCfg.Ingest == nil {
				currentCfg.Ingest = &config.IngestConfig{}
			}
			currentCfg.Ingest.AttributionPolicy = value
		case "strict_values":
			enabled, err := parseBoolValue(value)
			if err != nil {
				return fmt.Errorf("invalid strict_values value: %s (must be true or false)", value)
			}
			if currentCfg.Ingest == nil {
				currentCfg.Ingest = &config.IngestConfig{}
			}
			currentCfg.Ingest.StrictValues = enabled
		case "progress_every":
			n, err := strconv.Atoi(value)
			if err != nil || n < 0 {
				return fmt.Errorf("invalid progress_every value: %s (must be a non-negative integer)", value)
			}
			if currentCfg.Ingest == nil {
				currentCfg.Ingest = &config.IngestConfig{}
			}
			currentCfg.Ingest.ProgressEvery = n
		default:
			return fmt.Errorf("unknown configuration key: %s", key)
		}

		// Save the config.
		if err := config.SaveConfig(currentCfg); err != nil {
			return fmt.Errorf("saving configuration: %w", err)
		}

		fmt.Printf("Set %s = %s\n", key, value)
		return nil
	},
}

// completionCmd generates shell completion scripts.
var completionCmd = &cobra.Command{
	Use:   "completion [bash|zsh|fish|powershell]",
	Short: "Generate shell completion scripts",
	Long: `Generate shell completion scripts for sgb.

To load completions:

Bash:
  $ source <(sgb completion bash)

  # To load completions for each session, execute once:
  # Linux:
  $ sgb completion bash > /etc/bash_completion.d/sgb
  # macOS:
  $ sgb completion bash > $(brew --prefix)/etc/bash_completion.d/sgb

Zsh:
  # If shell completion is not already enabled in your environment,
  # you will need to enable it. Execute the following once:
  $ echo "autoload -U compinit; compinit" >> ~/.zshrc

  # To load completions for each session, execute once:
  $ sgb completion zsh > "${fpath[1]}/_sgb"

  # You will need to start a new shell for this setup to take effect.

Fish:
  $ sgb completion fish | source

  # To load completions for each session, execute once:
  $ sgb completion fish > ~/.config/fish/completions/sgb.fish

PowerShell:
  PS> sgb completion powershell | Out-String | Invoke-Expression

  # To load completions for every new session, run:
  PS> sgb completion powershell > sgb.ps1
  # and source this file from your PowerShell profile.
`,
	DisableFlagsInUseLine: true,
	ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
	Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	RunE: func(cmd *cobra.Command, args []string) error {
		switch args[0] {
		case "bash":
			return rootCmd.GenBashCompletion(os.Stdout)
		case "zsh":
			return rootCmd.GenZshCompletion(os.Stdout)
		case "fish":
			return rootCmd.GenFishCompletion(os.Stdout, true)
		case "powershell":
			return rootCmd.GenPowerShellCompletionWithDesc(os.Stdout)
		}
		return nil
	},
}

// migrationsDirOrDefault returns the configured migrations directory or the
// built-in default.
func migrationsDirOrDefault(c *config.CLIConfig) string {
	if c.MigrationsDir != "" {
		return c.MigrationsDir
	}
	return config.DefaultMigrationsDir
}

// attributionPolicyOrDefault returns the configured attribution policy name.
func attributionPolicyOrDefault(c *config.IngestConfig) string {
	if c.AttributionPolicy != "" {
		return c.AttributionPolicy
	}
	return "accept_null"
}

// parseBoolValue parses true/false and 1/0 config values.
func parseBoolValue(value string) (bool, error) {
	switch value {
	case "true", "1":
		return true, nil
	case "false", "0":
		return false, nil
	}
	return false, fmt.Errorf("not a boolean: %s", value)
}

func init() {
	// Enables the standard --version flag alongside the version command.
	rootCmd.Version = buildinfo.String()

	// Global flags.
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ~/.sgb/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&outputFormat, "output", "", "output format: text, json, yaml")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")

	// Add command groups for organized help output.
	rootCmd.AddGroup(
		&cobra.Group{ID: "events", Title: "Events:"},
		&cobra.Group{ID: "reports", Title: "Reports:"},
		&cobra.Group{ID: "ops", Title: "Operations:"},
		&cobra.Group{ID: "setup", Title: "Setup:"},
	)

	// Events
	contentCmd := cmd.NewContentCommand()
	contentCmd.GroupID = "events"
	rootCmd.AddCommand(contentCmd)

	funnelCmd := cmd.NewFunnelCommand()
	funnelCmd.GroupID = "events"
	rootCmd.AddCommand(funnelCmd)

	importCmd := cmd.NewImportCommand()
	importCmd.GroupID = "events"
	rootCmd.AddCommand(importCmd)

	// Reports
	reportCmd := cmd.NewReportCommand()
	reportCmd.GroupID = "reports"
	rootCmd.AddCommand(reportCmd)

	// Operations
	dbCmd := cmd.NewDbCommand()
	dbCmd.GroupID = "ops"
	rootCmd.AddCommand(dbCmd)

	healthCmd := cmd.NewHealthCommand()
	healthCmd.GroupID = "ops"
	rootCmd.AddCommand(healthCmd)

	// Setup
	configCmd.GroupID = "setup"
	rootCmd.AddCommand(configCmd)

	completionCmd.GroupID = "setup"
	rootCmd.AddCommand(completionCmd)

	versionCmd.GroupID = "setup"
	versionCmd.Flags().BoolVar(&versionOutputJSON, "output-json", false, "Output as JSON")
	rootCmd.AddCommand(versionCmd)

	// Config subcommands.
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configSetCmd)
}

func main() {
	// Set up signal handling for graceful shutdown.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		fmt.Println("\nReceived interrupt signal, shutting down...")
		cancel()
	}()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
