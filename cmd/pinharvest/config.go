package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
	"pinharvest/pkg/config"
	"pinharvest/pkg/ui"
)

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration files",
	Long: `Manage Pinharvest configuration files.

Configuration can be loaded from:
  - Command line flags (highest priority)
  - Environment variables (PINHARVEST_*)
  - Configuration file
  - Default values (lowest priority)`,
}

// configInitCmd represents the config init command
var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create an example configuration file",
	Long: `Create an example configuration file with all available options.

The file will be created in the current directory as 'pinharvest.yaml'
unless a different path is specified with the --config flag.`,
	Run: runConfigInit,
}

// configShowCmd represents the config show command
var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long: `Show the current configuration including values from all sources.

Sensitive values like credentials will be masked for security.`,
	Run: runConfigShow,
}

// configValidateCmd represents the config validate command
var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration file",
	Long: `Validate a configuration file for syntax errors and invalid values.

This command checks:
  - YAML syntax
  - Required fields
  - Value types and ranges
  - Path accessibility`,
	Run: runConfigValidate,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configValidateCmd)
}

func runConfigInit(cmd *cobra.Command, args []string) {
	configPath := configFile
	if configPath == "" {
		configPath = "pinharvest.yaml"
	}

	if _, err := os.Stat(configPath); err == nil {
		ui.PrintError("Configuration file already exists", configPath)
		fmt.Println("\nTo overwrite, first remove the existing file:")
		fmt.Printf("  rm %s\n", configPath)
		os.Exit(1)
	}

	exampleConfig := `# Pinharvest Configuration File
#
# This file contains all available configuration options.
# You can also use environment variables prefixed with PINHARVEST_
# For example: PINHARVEST_EMAIL, PINHARVEST_PASSWORD

# Harvest targets: each entry is one profile, board or search query
targets:
  - name: "travel-ideas"
    kind: "board"                # profile, board, search, project
    url: "https://www.pinterest.com/someuser/travel-ideas/"
    max_items: 500
    # max_scrolls: 50            # per-target override of collect.max_scrolls

  - name: "mid century lamps"
    kind: "search"
    query: "mid century lamps"
    max_items: 200

# Authentication settings
auth:
  # Account email for direct or federated login
  email: ""

  # Password: prefer the PINHARVEST_PASSWORD environment variable
  password: ""

  # Saved session cookie file (restored before any login attempt)
  cookies_path: ""

  # Login entry point
  login_url: "https://www.pinterest.com/login/"

  # Per-step timeout during login flows
  step_timeout: 15s

# Browser settings
browser:
  headless: true
  stealth: true

  # Attach to a running browser instead of launching one (optional)
  remote_url: ""

  viewport_width: 1280
  viewport_height: 800
  navigation_timeout: 30s

# Pacing between item-level steps
pacing:
  # fixed, jittered or none
  mode: "jittered"
  delay: 500ms
  min_delay: 250ms
  max_delay: 1500ms

# Infinite-scroll collection bounds
collect:
  min_items_before_scroll: 10
  max_scrolls: 100
  no_growth_limit: 3
  settle_delay: 2s

# Media download settings
download:
  concurrent_fetches: 3
  fetch_timeout: 30s
  requests_per_second: 2.0

  # Override the default browser user agent for media requests
  user_agent: ""

# Local media output
output:
  base_directory: "./harvest"

# Document store
storage:
  database_path: "./harvest/pinharvest.db"
  dedup_across_runs: true

# Logging
logging:
  # debug, info, warn, error
  level: "info"

  # Log file path (optional, stdout when empty)
  file: ""

# Retries around document store writes
retry:
  max_attempts: 3
  initial_delay: 1s
  max_delay: 30s
`

	if err := os.WriteFile(configPath, []byte(exampleConfig), 0644); err != nil {
		ui.PrintError("Failed to create configuration file", err.Error())
		os.Exit(1)
	}

	ui.PrintSuccess("Configuration file created: " + configPath)
	fmt.Println("\nNext steps:")
	fmt.Println("1. Edit the configuration file and add your targets")
	fmt.Println("2. Store credentials with 'pinharvest auth login'")
	fmt.Println("3. Run 'pinharvest config validate' to check the configuration")
	fmt.Println("4. Start harvesting with 'pinharvest harvest'")
}

func runConfigShow(cmd *cobra.Command, args []string) {
	cfg, err := config.Load(configFile, nil)
	if err != nil {
		ui.PrintError("Failed to load configuration", err.Error())
		os.Exit(1)
	}

	// Mask sensitive values before display
	displayCfg := *cfg
	if displayCfg.Auth.Password != "" {
		displayCfg.Auth.Password = "***"
	}
	if displayCfg.Auth.Email != "" {
		displayCfg.Auth.Email = maskValue(displayCfg.Auth.Email)
	}

	data, err := yaml.Marshal(&displayCfg)
	if err != nil {
		ui.PrintError("Failed to format configuration", err.Error())
		os.Exit(1)
	}

	ui.PrintHighlight("Current Configuration")
	fmt.Println()
	fmt.Print(string(data))

	fmt.Println("\nConfiguration sources (in order of priority):")
	fmt.Println("1. Command line flags")
	fmt.Println("2. Environment variables (PINHARVEST_*)")
	if configFile != "" {
		fmt.Printf("3. Configuration file: %s\n", configFile)
	} else {
		fmt.Println("3. Configuration file: (not specified)")
	}
	fmt.Println("4. Default values")
}

func runConfigValidate(cmd *cobra.Command, args []string) {
	if configFile == "" {
		possiblePaths := []string{
			"pinharvest.yaml",
			"pinharvest.yml",
			".pinharvest.yaml",
			filepath.Join(os.Getenv("HOME"), ".pinharvest.yaml"),
			filepath.Join(os.Getenv("HOME"), ".config", "pinharvest", "config.yaml"),
		}

		for _, path := range possiblePaths {
			if _, err := os.Stat(path); err == nil {
				configFile = path
				break
			}
		}

		if configFile == "" {
			ui.PrintError("No configuration file found", "Specify a file with --config flag")
			os.Exit(1)
		}
	}

	ui.PrintInfo("Validating configuration", configFile)

	cfg, err := config.Load(configFile, nil)
	if err != nil {
		ui.PrintError("Configuration validation failed", err.Error())
		os.Exit(1)
	}

	warnings := []string{}
	errors := []string{}

	if len(cfg.Targets) == 0 {
		warnings = append(warnings, "no targets configured")
	}
	if cfg.Auth.Email == "" && cfg.Auth.CookiesPath == "" {
		warnings = append(warnings, "no credentials or saved session configured")
	}

	if cfg.Output.BaseDirectory != "" {
		if err := os.MkdirAll(cfg.Output.BaseDirectory, 0755); err != nil {
			errors = append(errors, fmt.Sprintf("cannot create output directory: %v", err))
		}
	}
	if cfg.Storage.DatabasePath != "" {
		dir := filepath.Dir(cfg.Storage.DatabasePath)
		if err := os.MkdirAll(dir, 0755); err != nil {
			errors = append(errors, fmt.Sprintf("cannot create database directory: %v", err))
		}
	}
	if cfg.Logging.File != "" {
		dir := filepath.Dir(cfg.Logging.File)
		if err := os.MkdirAll(dir, 0755); err != nil {
			errors = append(errors, fmt.Sprintf("cannot create log directory: %v", err))
		}
	}

	if len(errors) > 0 {
		ui.PrintError("Configuration has errors:", "")
		for _, err := range errors {
			fmt.Printf("  - %s\n", err)
		}
		os.Exit(1)
	}

	if len(warnings) > 0 {
		ui.PrintWarning("Configuration warnings:", "")
		for _, warn := range warnings {
			fmt.Printf("  - %s\n", warn)
		}
		fmt.Println()
	}

	ui.PrintSuccess("Configuration is valid")

	fmt.Println("\nConfiguration summary:")
	fmt.Printf("  Targets: %d\n", len(cfg.Targets))
	fmt.Printf("  Output directory: %s\n", cfg.Output.BaseDirectory)
	fmt.Printf("  Database: %s\n", cfg.Storage.DatabasePath)
	fmt.Printf("  Concurrent fetches: %d\n", cfg.Download.ConcurrentFetches)
	fmt.Printf("  Max retries: %d\n", cfg.Retry.MaxAttempts)
	fmt.Printf("  Log level: %s\n", cfg.Logging.Level)
}
