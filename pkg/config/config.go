package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration options for the harvest pipeline
type Config struct {
	// Harvest targets
	Targets []TargetConfig `yaml:"targets" json:"targets"`

	// Authentication settings
	Auth AuthConfig `yaml:"auth" json:"auth"`

	// Browser settings
	Browser BrowserConfig `yaml:"browser" json:"browser"`

	// Pacing between item-level steps
	Pacing PacingConfig `yaml:"pacing" json:"pacing"`

	// Collection settings
	Collect CollectConfig `yaml:"collect" json:"collect"`

	// Media download settings
	Download DownloadConfig `yaml:"download" json:"download"`

	// Output settings
	Output OutputConfig `yaml:"output" json:"output"`

	// Document store settings
	Storage StorageConfig `yaml:"storage" json:"storage"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`

	// Retry configuration for persistence writes
	Retry RetryConfig `yaml:"retry" json:"retry"`
}

// TargetConfig describes a single harvest unit: a profile, a board/listing
// or a search query
type TargetConfig struct {
	Name     string `yaml:"name" json:"name"`
	Kind     string `yaml:"kind" json:"kind"` // profile, board, search, project
	URL      string `yaml:"url" json:"url"`
	Query    string `yaml:"query" json:"query"`
	MaxItems int    `yaml:"max_items" json:"max_items"`
	// MaxScrolls overrides collect.max_scrolls for this target when positive
	MaxScrolls int `yaml:"max_scrolls" json:"max_scrolls"`
}

// AuthConfig holds credentials and session persistence settings
type AuthConfig struct {
	Email       string        `yaml:"email" json:"email"`
	Password    string        `yaml:"password" json:"-"`
	CookiesPath string        `yaml:"cookies_path" json:"cookies_path"`
	LoginURL    string        `yaml:"login_url" json:"login_url"`
	StepTimeout time.Duration `yaml:"step_timeout" json:"step_timeout"`
}

// BrowserConfig holds browsing surface configuration
type BrowserConfig struct {
	Headless          bool          `yaml:"headless" json:"headless"`
	Stealth           bool          `yaml:"stealth" json:"stealth"`
	RemoteURL         string        `yaml:"remote_url" json:"remote_url"`
	ViewportWidth     int           `yaml:"viewport_width" json:"viewport_width"`
	ViewportHeight    int           `yaml:"viewport_height" json:"viewport_height"`
	NavigationTimeout time.Duration `yaml:"navigation_timeout" json:"navigation_timeout"`
}

// PacingConfig selects the inter-item pacing policy
type PacingConfig struct {
	Mode     string        `yaml:"mode" json:"mode"` // fixed, jittered, none
	Delay    time.Duration `yaml:"delay" json:"delay"`
	MinDelay time.Duration `yaml:"min_delay" json:"min_delay"`
	MaxDelay time.Duration `yaml:"max_delay" json:"max_delay"`
}

// CollectConfig bounds the infinite-scroll collection loop
type CollectConfig struct {
	MinItemsBeforeScroll int           `yaml:"min_items_before_scroll" json:"min_items_before_scroll"`
	MaxScrolls           int           `yaml:"max_scrolls" json:"max_scrolls"`
	NoGrowthLimit        int           `yaml:"no_growth_limit" json:"no_growth_limit"`
	SettleDelay          time.Duration `yaml:"settle_delay" json:"settle_delay"`
}

// DownloadConfig holds media fetch settings
type DownloadConfig struct {
	ConcurrentFetches int           `yaml:"concurrent_fetches" json:"concurrent_fetches"`
	FetchTimeout      time.Duration `yaml:"fetch_timeout" json:"fetch_timeout"`
	RequestsPerSecond float64       `yaml:"requests_per_second" json:"requests_per_second"`
	UserAgent         string        `yaml:"user_agent" json:"user_agent"`
}

// OutputConfig holds local media output settings
type OutputConfig struct {
	BaseDirectory string `yaml:"base_directory" json:"base_directory"`
}

// StorageConfig holds document store settings
type StorageConfig struct {
	DatabasePath    string `yaml:"database_path" json:"database_path"`
	DedupAcrossRuns bool   `yaml:"dedup_across_runs" json:"dedup_across_runs"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
	File  string `yaml:"file" json:"file"`
}

// RetryConfig bounds retries around document store writes
type RetryConfig struct {
	MaxAttempts  int           `yaml:"max_attempts" json:"max_attempts"`
	InitialDelay time.Duration `yaml:"initial_delay" json:"initial_delay"`
	MaxDelay     time.Duration `yaml:"max_delay" json:"max_delay"`
}

// DefaultConfig returns a Config instance with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Auth: AuthConfig{
			CookiesPath: "./cookies.json",
			LoginURL:    "https://www.pinterest.com/login/",
			StepTimeout: 15 * time.Second,
		},
		Browser: BrowserConfig{
			Headless:          true,
			Stealth:           true,
			ViewportWidth:     1920,
			ViewportHeight:    1080,
			NavigationTimeout: 30 * time.Second,
		},
		Pacing: PacingConfig{
			Mode:     "fixed",
			Delay:    2 * time.Second,
			MinDelay: time.Second,
			MaxDelay: 4 * time.Second,
		},
		Collect: CollectConfig{
			MinItemsBeforeScroll: 5,
			MaxScrolls:           25,
			NoGrowthLimit:        3,
			SettleDelay:          1500 * time.Millisecond,
		},
		Download: DownloadConfig{
			ConcurrentFetches: 4,
			FetchTimeout:      30 * time.Second,
			RequestsPerSecond: 5,
			UserAgent:         "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36",
		},
		Output: OutputConfig{
			BaseDirectory: "./harvested_media",
		},
		Storage: StorageConfig{
			DatabasePath:    "./pinharvest.db",
			DedupAcrossRuns: false,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Retry: RetryConfig{
			MaxAttempts:  3,
			InitialDelay: time.Second,
			MaxDelay:     10 * time.Second,
		},
	}
}

// LoadFromEnv loads configuration from environment variables
func (c *Config) LoadFromEnv() error {
	if email := os.Getenv("PINHARVEST_EMAIL"); email != "" {
		c.Auth.Email = email
	}
	if password := os.Getenv("PINHARVEST_PASSWORD"); password != "" {
		c.Auth.Password = password
	}
	if cookies := os.Getenv("PINHARVEST_COOKIES"); cookies != "" {
		c.Auth.CookiesPath = cookies
	}
	if outputDir := os.Getenv("PINHARVEST_OUTPUT_DIR"); outputDir != "" {
		c.Output.BaseDirectory = outputDir
	}
	if dbPath := os.Getenv("PINHARVEST_DB"); dbPath != "" {
		c.Storage.DatabasePath = dbPath
	}
	if concurrent := os.Getenv("PINHARVEST_CONCURRENT_FETCHES"); concurrent != "" {
		var val int
		fmt.Sscanf(concurrent, "%d", &val)
		if val > 0 {
			c.Download.ConcurrentFetches = val
		}
	}
	if headless := os.Getenv("PINHARVEST_HEADLESS"); headless != "" {
		c.Browser.Headless = strings.ToLower(headless) == "true"
	}
	if remote := os.Getenv("PINHARVEST_BROWSER_URL"); remote != "" {
		c.Browser.RemoteURL = remote
	}
	if logLevel := os.Getenv("PINHARVEST_LOG_LEVEL"); logLevel != "" {
		c.Logging.Level = logLevel
	}
	return nil
}

// LoadFromFile loads configuration from a YAML file
func (c *Config) LoadFromFile(path string) error {
	// If path is empty, try default locations
	if path == "" {
		path = c.findConfigFile()
		if path == "" {
			return nil // No config file found, not an error
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// findConfigFile searches for config file in standard locations
func (c *Config) findConfigFile() string {
	locations := []string{
		".pinharvest.yaml",
		".pinharvest.yml",
		filepath.Join(os.Getenv("HOME"), ".config", "pinharvest", "config.yaml"),
		filepath.Join(os.Getenv("HOME"), ".config", "pinharvest", "config.yml"),
		filepath.Join(os.Getenv("HOME"), ".pinharvest.yaml"),
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}

	return ""
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var errs []error

	for i, t := range c.Targets {
		if t.URL == "" && t.Query == "" {
			errs = append(errs, fmt.Errorf("target %d: url or query is required", i))
		}
		switch t.Kind {
		case "profile", "board", "search", "project", "":
		default:
			errs = append(errs, fmt.Errorf("target %d: unknown kind %q", i, t.Kind))
		}
		if t.MaxScrolls < 0 {
			errs = append(errs, fmt.Errorf("target %d: max scrolls must not be negative", i))
		}
	}

	switch strings.ToLower(c.Pacing.Mode) {
	case "fixed", "jittered", "none":
	default:
		errs = append(errs, errors.New("pacing mode must be fixed, jittered or none"))
	}

	if c.Collect.NoGrowthLimit <= 0 {
		errs = append(errs, errors.New("no-growth limit must be positive"))
	}
	if c.Collect.MaxScrolls <= 0 {
		errs = append(errs, errors.New("max scrolls must be positive"))
	}

	if c.Download.ConcurrentFetches <= 0 {
		errs = append(errs, errors.New("concurrent fetches must be positive"))
	}
	if c.Download.ConcurrentFetches > 16 {
		errs = append(errs, errors.New("concurrent fetches should not exceed 16"))
	}
	if c.Download.FetchTimeout <= 0 {
		errs = append(errs, errors.New("fetch timeout must be positive"))
	}

	if c.Output.BaseDirectory == "" {
		errs = append(errs, errors.New("output directory is required"))
	}
	if c.Storage.DatabasePath == "" {
		errs = append(errs, errors.New("database path is required"))
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, errors.New("invalid log level"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}

// Save saves the configuration to a file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// MergeCommandLineFlags merges command line flags into the configuration
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) {
	if email, ok := flags["email"].(string); ok && email != "" {
		c.Auth.Email = email
	}
	if password, ok := flags["password"].(string); ok && password != "" {
		c.Auth.Password = password
	}
	if cookies, ok := flags["cookies-path"].(string); ok && cookies != "" {
		c.Auth.CookiesPath = cookies
	}
	if outputDir, ok := flags["output"].(string); ok && outputDir != "" {
		c.Output.BaseDirectory = outputDir
	}
	if dbPath, ok := flags["db"].(string); ok && dbPath != "" {
		c.Storage.DatabasePath = dbPath
	}
	if concurrent, ok := flags["concurrent"].(int); ok && concurrent > 0 {
		c.Download.ConcurrentFetches = concurrent
	}
	if maxItems, ok := flags["max-items"].(int); ok && maxItems > 0 {
		for i := range c.Targets {
			c.Targets[i].MaxItems = maxItems
		}
	}
	if noHeadless, ok := flags["no-headless"].(bool); ok && noHeadless {
		c.Browser.Headless = false
	}
	if logLevel, ok := flags["log-level"].(string); ok && logLevel != "" {
		c.Logging.Level = logLevel
	}
}

// Load loads configuration from all sources with proper precedence
// Precedence order: Command line flags > Environment variables > .env file > Config file > Defaults
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	// Try to load .env files (don't fail if they don't exist)
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".env"))
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".pinharvest.env"))

	// Start with defaults
	config := DefaultConfig()

	// Load from config file
	if err := config.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	// Override with environment variables (includes values from .env)
	if err := config.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	// Override with command line flags
	config.MergeCommandLineFlags(flags)

	// Validate final configuration
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}
