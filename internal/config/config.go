package config

import (
	"embed"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed example.yaml
var exampleConfig embed.FS

// Config represents the complete nearly client engine configuration.
type Config struct {
	Identity Identity `yaml:"identity"`
	API      API      `yaml:"api"`
	Sync     Sync     `yaml:"sync"`
	Storage  Storage  `yaml:"storage"`
	Logging  Logging  `yaml:"logging"`
	Metrics  Metrics  `yaml:"metrics"`
}

// Identity identifies the local user all toggle sets are scoped to.
type Identity struct {
	UserID string `yaml:"user_id"`
}

// API configures the external messaging/content service client.
type API struct {
	BaseURL        string  `yaml:"base_url"`
	TokenEnv       string  `yaml:"token_env"`       // env var holding the bearer token
	TimeoutSeconds int     `yaml:"timeout_seconds"` // per-request timeout
	MaxAttempts    int     `yaml:"max_attempts"`    // GET retry budget, POSTs never retry
	BaseBackoffMs  int     `yaml:"base_backoff_ms"` // backoff between GET retries
	RatePerSecond  float64 `yaml:"rate_per_second"` // request rate limit
	RateBurst      int     `yaml:"rate_burst"`
}

// Timeout returns the per-request timeout as a duration.
func (a *API) Timeout() time.Duration {
	return time.Duration(a.TimeoutSeconds) * time.Second
}

// BaseBackoff returns the retry backoff as a duration.
func (a *API) BaseBackoff() time.Duration {
	return time.Duration(a.BaseBackoffMs) * time.Millisecond
}

// Sync configures the conversation sync engine.
type Sync struct {
	PollIntervalMs       int `yaml:"poll_interval_ms"`       // fixed poll interval while a conversation is open
	FailAfterCycles      int `yaml:"fail_after_cycles"`      // cycles before an uncorrelated placeholder is marked failed
	CorrelationWindowSec int `yaml:"correlation_window_sec"` // max |server createdAt - local enqueue| for correlation
	MarkSeenDebounceMs   int `yaml:"mark_seen_debounce_ms"`  // debounce for mark-seen side effects
}

// PollInterval returns the poll interval as a duration.
func (s *Sync) PollInterval() time.Duration {
	return time.Duration(s.PollIntervalMs) * time.Millisecond
}

// CorrelationWindow returns the correlation window as a duration.
func (s *Sync) CorrelationWindow() time.Duration {
	return time.Duration(s.CorrelationWindowSec) * time.Second
}

// MarkSeenDebounce returns the mark-seen debounce as a duration.
func (s *Sync) MarkSeenDebounce() time.Duration {
	return time.Duration(s.MarkSeenDebounceMs) * time.Millisecond
}

// Storage configures the durable toggle store.
type Storage struct {
	Driver     string `yaml:"driver"` // "sqlite" or "memory"
	SQLitePath string `yaml:"sqlite_path"`
}

// Logging configures the structured logger.
type Logging struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text or json
}

// Metrics configures the optional prometheus endpoint.
type Metrics struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen"`
}

// Default returns a configuration with all defaults applied.
func Default() *Config {
	return &Config{
		API: API{
			TimeoutSeconds: 15,
			MaxAttempts:    3,
			BaseBackoffMs:  500,
			RatePerSecond:  5,
			RateBurst:      10,
		},
		Sync: Sync{
			PollIntervalMs:       2000,
			FailAfterCycles:      5,
			CorrelationWindowSec: 120,
			MarkSeenDebounceMs:   250,
		},
		Storage: Storage{
			Driver:     "sqlite",
			SQLitePath: "nearly.db",
		},
		Logging: Logging{
			Level:  "info",
			Format: "text",
		},
		Metrics: Metrics{
			Listen: ":9090",
		},
	}
}

// Load reads, defaults, overrides, and validates a configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyDefaults(&cfg)
	applyEnvOverrides(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// applyDefaults fills zero-valued fields from Default.
func applyDefaults(cfg *Config) {
	defaults := Default()

	if cfg.API.TimeoutSeconds == 0 {
		cfg.API.TimeoutSeconds = defaults.API.TimeoutSeconds
	}
	if cfg.API.MaxAttempts == 0 {
		cfg.API.MaxAttempts = defaults.API.MaxAttempts
	}
	if cfg.API.BaseBackoffMs == 0 {
		cfg.API.BaseBackoffMs = defaults.API.BaseBackoffMs
	}
	if cfg.API.RatePerSecond == 0 {
		cfg.API.RatePerSecond = defaults.API.RatePerSecond
	}
	if cfg.API.RateBurst == 0 {
		cfg.API.RateBurst = defaults.API.RateBurst
	}

	if cfg.Sync.PollIntervalMs == 0 {
		cfg.Sync.PollIntervalMs = defaults.Sync.PollIntervalMs
	}
	if cfg.Sync.FailAfterCycles == 0 {
		cfg.Sync.FailAfterCycles = defaults.Sync.FailAfterCycles
	}
	if cfg.Sync.CorrelationWindowSec == 0 {
		cfg.Sync.CorrelationWindowSec = defaults.Sync.CorrelationWindowSec
	}
	if cfg.Sync.MarkSeenDebounceMs == 0 {
		cfg.Sync.MarkSeenDebounceMs = defaults.Sync.MarkSeenDebounceMs
	}

	if cfg.Storage.Driver == "" {
		cfg.Storage.Driver = defaults.Storage.Driver
	}
	if cfg.Storage.SQLitePath == "" {
		cfg.Storage.SQLitePath = defaults.Storage.SQLitePath
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = defaults.Logging.Level
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = defaults.Logging.Format
	}

	if cfg.Metrics.Listen == "" {
		cfg.Metrics.Listen = defaults.Metrics.Listen
	}
}

// applyEnvOverrides applies NEARLY_ environment variable overrides.
func applyEnvOverrides(cfg *Config) {
	if userID := os.Getenv("NEARLY_USER_ID"); userID != "" {
		cfg.Identity.UserID = userID
	}
	if baseURL := os.Getenv("NEARLY_API_BASE_URL"); baseURL != "" {
		cfg.API.BaseURL = baseURL
	}
	if path := os.Getenv("NEARLY_SQLITE_PATH"); path != "" {
		cfg.Storage.SQLitePath = path
	}
}

// Validate checks a configuration for consistency.
func Validate(cfg *Config) error {
	if cfg.Identity.UserID == "" {
		return fmt.Errorf("identity.user_id is required")
	}
	if cfg.API.BaseURL == "" {
		return fmt.Errorf("api.base_url is required")
	}
	if cfg.API.MaxAttempts < 1 {
		return fmt.Errorf("api.max_attempts must be at least 1")
	}
	if cfg.Sync.PollIntervalMs < 100 {
		return fmt.Errorf("sync.poll_interval_ms must be at least 100")
	}
	if cfg.Sync.FailAfterCycles < 1 {
		return fmt.Errorf("sync.fail_after_cycles must be at least 1")
	}
	switch cfg.Storage.Driver {
	case "sqlite":
		if cfg.Storage.SQLitePath == "" {
			return fmt.Errorf("storage.sqlite_path is required for the sqlite driver")
		}
	case "memory":
	default:
		return fmt.Errorf("unsupported storage driver: %s", cfg.Storage.Driver)
	}
	switch cfg.Logging.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json")
	}
	return nil
}

// GetExampleConfig returns the embedded example configuration.
func GetExampleConfig() ([]byte, error) {
	return exampleConfig.ReadFile("example.yaml")
}
