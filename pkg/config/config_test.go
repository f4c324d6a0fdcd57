package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	// Test default values
	if config.Download.ConcurrentFetches != 4 {
		t.Errorf("Expected default concurrent fetches to be 4, got %d", config.Download.ConcurrentFetches)
	}

	if config.Output.BaseDirectory != "./harvested_media" {
		t.Errorf("Expected default output directory to be ./harvested_media, got %s", config.Output.BaseDirectory)
	}

	if config.Pacing.Mode != "fixed" {
		t.Errorf("Expected default pacing mode to be fixed, got %s", config.Pacing.Mode)
	}

	if config.Collect.NoGrowthLimit != 3 {
		t.Errorf("Expected default no-growth limit to be 3, got %d", config.Collect.NoGrowthLimit)
	}

	if config.Retry.MaxAttempts != 3 {
		t.Errorf("Expected default max attempts to be 3, got %d", config.Retry.MaxAttempts)
	}

	if !strings.Contains(config.Auth.LoginURL, "pinterest.com") {
		t.Errorf("Expected default login URL to point at pinterest.com, got %s", config.Auth.LoginURL)
	}

	// Defaults must validate on their own
	if err := config.Validate(); err != nil {
		t.Errorf("Expected default config to be valid, got %v", err)
	}
}

func TestLoadFromEnv(t *testing.T) {
	// Set test environment variables
	os.Setenv("PINHARVEST_EMAIL", "harvest@example.com")
	os.Setenv("PINHARVEST_PASSWORD", "test-password")
	os.Setenv("PINHARVEST_OUTPUT_DIR", "/tmp/test-harvest")
	os.Setenv("PINHARVEST_DB", "/tmp/test-harvest/store.db")
	os.Setenv("PINHARVEST_CONCURRENT_FETCHES", "6")
	os.Setenv("PINHARVEST_HEADLESS", "false")
	os.Setenv("PINHARVEST_LOG_LEVEL", "debug")

	defer func() {
		// Clean up environment variables
		os.Unsetenv("PINHARVEST_EMAIL")
		os.Unsetenv("PINHARVEST_PASSWORD")
		os.Unsetenv("PINHARVEST_OUTPUT_DIR")
		os.Unsetenv("PINHARVEST_DB")
		os.Unsetenv("PINHARVEST_CONCURRENT_FETCHES")
		os.Unsetenv("PINHARVEST_HEADLESS")
		os.Unsetenv("PINHARVEST_LOG_LEVEL")
	}()

	config := DefaultConfig()
	err := config.LoadFromEnv()
	if err != nil {
		t.Fatalf("Failed to load from environment: %v", err)
	}

	// Test loaded values
	if config.Auth.Email != "harvest@example.com" {
		t.Errorf("Expected email to be harvest@example.com, got %s", config.Auth.Email)
	}

	if config.Auth.Password != "test-password" {
		t.Errorf("Expected password to be test-password, got %s", config.Auth.Password)
	}

	if config.Output.BaseDirectory != "/tmp/test-harvest" {
		t.Errorf("Expected output directory to be /tmp/test-harvest, got %s", config.Output.BaseDirectory)
	}

	if config.Storage.DatabasePath != "/tmp/test-harvest/store.db" {
		t.Errorf("Expected database path to be /tmp/test-harvest/store.db, got %s", config.Storage.DatabasePath)
	}

	if config.Download.ConcurrentFetches != 6 {
		t.Errorf("Expected concurrent fetches to be 6, got %d", config.Download.ConcurrentFetches)
	}

	if config.Browser.Headless != false {
		t.Errorf("Expected headless to be disabled, got %v", config.Browser.Headless)
	}

	if config.Logging.Level != "debug" {
		t.Errorf("Expected log level to be debug, got %s", config.Logging.Level)
	}
}

func TestLoadFromFile(t *testing.T) {
	content := `
targets:
  - name: "travel"
    kind: "board"
    url: "https://www.pinterest.com/someuser/travel/"
    max_items: 100
auth:
  email: "file@example.com"
  step_timeout: 20s
pacing:
  mode: "jittered"
download:
  concurrent_fetches: 2
output:
  base_directory: "/tmp/file-harvest"
`
	path := filepath.Join(t.TempDir(), "pinharvest.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	config := DefaultConfig()
	if err := config.LoadFromFile(path); err != nil {
		t.Fatalf("Failed to load config file: %v", err)
	}

	if len(config.Targets) != 1 {
		t.Fatalf("Expected 1 target, got %d", len(config.Targets))
	}
	if config.Targets[0].Kind != "board" {
		t.Errorf("Expected target kind board, got %s", config.Targets[0].Kind)
	}
	if config.Targets[0].MaxItems != 100 {
		t.Errorf("Expected max items 100, got %d", config.Targets[0].MaxItems)
	}
	if config.Auth.Email != "file@example.com" {
		t.Errorf("Expected email file@example.com, got %s", config.Auth.Email)
	}
	if config.Auth.StepTimeout != 20*time.Second {
		t.Errorf("Expected step timeout 20s, got %v", config.Auth.StepTimeout)
	}
	if config.Pacing.Mode != "jittered" {
		t.Errorf("Expected pacing mode jittered, got %s", config.Pacing.Mode)
	}
	if config.Download.ConcurrentFetches != 2 {
		t.Errorf("Expected concurrent fetches 2, got %d", config.Download.ConcurrentFetches)
	}

	// Values not present in the file keep their defaults
	if config.Collect.MaxScrolls != 25 {
		t.Errorf("Expected default max scrolls 25, got %d", config.Collect.MaxScrolls)
	}
}

func TestLoadFromFileMissing(t *testing.T) {
	config := DefaultConfig()
	err := config.LoadFromFile(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	if err == nil {
		t.Error("Expected error for missing config file path")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{
			name:    "valid defaults",
			modify:  func(c *Config) {},
			wantErr: false,
		},
		{
			name: "valid target",
			modify: func(c *Config) {
				c.Targets = []TargetConfig{{Name: "t", Kind: "board", URL: "https://example.com/u/b/"}}
			},
			wantErr: false,
		},
		{
			name: "target missing url and query",
			modify: func(c *Config) {
				c.Targets = []TargetConfig{{Name: "t", Kind: "board"}}
			},
			wantErr: true,
		},
		{
			name: "project target kind",
			modify: func(c *Config) {
				c.Targets = []TargetConfig{{Name: "t", Kind: "project", URL: "https://example.com/gallery/"}}
			},
			wantErr: false,
		},
		{
			name: "unknown target kind",
			modify: func(c *Config) {
				c.Targets = []TargetConfig{{Name: "t", Kind: "album", URL: "https://example.com"}}
			},
			wantErr: true,
		},
		{
			name: "negative per-target max scrolls",
			modify: func(c *Config) {
				c.Targets = []TargetConfig{{Name: "t", Kind: "board", URL: "https://example.com", MaxScrolls: -1}}
			},
			wantErr: true,
		},
		{
			name:    "bad pacing mode",
			modify:  func(c *Config) { c.Pacing.Mode = "random" },
			wantErr: true,
		},
		{
			name:    "zero no-growth limit",
			modify:  func(c *Config) { c.Collect.NoGrowthLimit = 0 },
			wantErr: true,
		},
		{
			name:    "zero concurrent fetches",
			modify:  func(c *Config) { c.Download.ConcurrentFetches = 0 },
			wantErr: true,
		},
		{
			name:    "too many concurrent fetches",
			modify:  func(c *Config) { c.Download.ConcurrentFetches = 32 },
			wantErr: true,
		},
		{
			name:    "empty output directory",
			modify:  func(c *Config) { c.Output.BaseDirectory = "" },
			wantErr: true,
		},
		{
			name:    "empty database path",
			modify:  func(c *Config) { c.Storage.DatabasePath = "" },
			wantErr: true,
		},
		{
			name:    "invalid log level",
			modify:  func(c *Config) { c.Logging.Level = "verbose" },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := DefaultConfig()
			tt.modify(config)
			err := config.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestMergeCommandLineFlags(t *testing.T) {
	config := DefaultConfig()
	config.Targets = []TargetConfig{
		{Name: "a", Kind: "board", URL: "https://example.com/u/a/"},
		{Name: "b", Kind: "search", Query: "lamps"},
	}

	flags := map[string]interface{}{
		"email":       "flag@example.com",
		"output":      "/tmp/flag-harvest",
		"db":          "/tmp/flag.db",
		"concurrent":  8,
		"max-items":   50,
		"no-headless": true,
		"log-level":   "warn",
	}

	config.MergeCommandLineFlags(flags)

	if config.Auth.Email != "flag@example.com" {
		t.Errorf("Expected email flag@example.com, got %s", config.Auth.Email)
	}
	if config.Output.BaseDirectory != "/tmp/flag-harvest" {
		t.Errorf("Expected output /tmp/flag-harvest, got %s", config.Output.BaseDirectory)
	}
	if config.Storage.DatabasePath != "/tmp/flag.db" {
		t.Errorf("Expected database /tmp/flag.db, got %s", config.Storage.DatabasePath)
	}
	if config.Download.ConcurrentFetches != 8 {
		t.Errorf("Expected concurrent fetches 8, got %d", config.Download.ConcurrentFetches)
	}
	for i, target := range config.Targets {
		if target.MaxItems != 50 {
			t.Errorf("Expected target %d max items 50, got %d", i, target.MaxItems)
		}
	}
	if config.Browser.Headless {
		t.Error("Expected headless to be disabled by no-headless flag")
	}
	if config.Logging.Level != "warn" {
		t.Errorf("Expected log level warn, got %s", config.Logging.Level)
	}
}

func TestLoadPrecedence(t *testing.T) {
	content := `
output:
  base_directory: "/tmp/from-file"
download:
  concurrent_fetches: 2
`
	path := filepath.Join(t.TempDir(), "pinharvest.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	os.Setenv("PINHARVEST_OUTPUT_DIR", "/tmp/from-env")
	defer os.Unsetenv("PINHARVEST_OUTPUT_DIR")

	flags := map[string]interface{}{
		"concurrent": 5,
	}

	config, err := Load(path, flags)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	// Env beats file
	if config.Output.BaseDirectory != "/tmp/from-env" {
		t.Errorf("Expected env to override file output directory, got %s", config.Output.BaseDirectory)
	}

	// Flag beats file
	if config.Download.ConcurrentFetches != 5 {
		t.Errorf("Expected flag to override file concurrent fetches, got %d", config.Download.ConcurrentFetches)
	}
}
