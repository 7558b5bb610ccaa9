package common

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/autoforgehq/autoforge/internal/models"
)

// Config represents the application configuration.
type Config struct {
	Environment string          `toml:"environment"` // "development" or "production"
	Server      ServerConfig    `toml:"server"`
	Storage     StorageConfig   `toml:"storage"`
	Queue       QueueConfig     `toml:"queue"`
	Retention   RetentionConfig `toml:"retention"`
	Prober      ProberConfig    `toml:"prober"`
	Logging     LoggingConfig   `toml:"logging"`
	LLM         LLMConfig       `toml:"llm"`
}

type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port" validate:"gt=0,lte=65535"`
}

type StorageConfig struct {
	Badger BadgerConfig `toml:"badger"`
}

// BadgerConfig represents BadgerDB-specific configuration.
type BadgerConfig struct {
	Path           string `toml:"path" validate:"required"`
	ResetOnStartup bool   `toml:"reset_on_startup"` // Delete database on startup for clean test runs
}

type QueueConfig struct {
	PollInterval    string         `toml:"poll_interval"`    // e.g. "500ms" - how often workers poll for eligible jobs
	Concurrency     map[string]int `toml:"concurrency"`      // Per-queue worker ceiling
	StalledAfter    string         `toml:"stalled_after"`    // Heartbeat age before an active job is flagged stalled
	MonitorInterval string         `toml:"monitor_interval"` // How often the stalled-job monitor runs
	PublishRate     float64        `toml:"publish_rate"`     // Requests/second ceiling for the publishing worker
}

// PollIntervalDuration parses the poll interval, defaulting to 500ms.
func (q QueueConfig) PollIntervalDuration() time.Duration {
	return parseDuration(q.PollInterval, 500*time.Millisecond)
}

// StalledAfterDuration parses the stalled threshold, defaulting to 10m.
func (q QueueConfig) StalledAfterDuration() time.Duration {
	return parseDuration(q.StalledAfter, 10*time.Minute)
}

// MonitorIntervalDuration parses the monitor cadence, defaulting to 5m.
func (q QueueConfig) MonitorIntervalDuration() time.Duration {
	return parseDuration(q.MonitorInterval, 5*time.Minute)
}

// ConcurrencyFor returns the worker ceiling for a queue, defaulting to 1.
func (q QueueConfig) ConcurrencyFor(queueName string) int {
	if n, ok := q.Concurrency[queueName]; ok && n > 0 {
		return n
	}
	return 1
}

type RetentionConfig struct {
	KeepCompleted int    `toml:"keep_completed"` // Terminal completed jobs retained
	KeepFailed    int    `toml:"keep_failed"`    // Terminal failed jobs retained
	RecentResults int    `toml:"recent_results"` // Probe results retained (count)
	RecentAlerts  int    `toml:"recent_alerts"`  // Alerts retained (count)
	ResultTTLDays int    `toml:"result_ttl_days"`
	AlertTTLDays  int    `toml:"alert_ttl_days"`
	PruneSchedule string `toml:"prune_schedule"` // Cron spec for the retention pruner
}

type ProberConfig struct {
	Enabled             bool    `toml:"enabled"`
	BaseURL             string  `toml:"base_url"` // Probe target; defaults to the local server
	EndpointsFile       string  `toml:"endpoints_file"`
	TimeoutSeconds      int     `toml:"timeout_seconds"`      // Per-probe hard timeout
	HealthSchedule      string  `toml:"health_schedule"`      // Critical-path probe cadence
	SweepSchedule       string  `toml:"sweep_schedule"`       // Full endpoint sweep cadence
	PerformanceSchedule string  `toml:"performance_schedule"` // Concurrent burst cadence
	SnapshotSchedule    string  `toml:"snapshot_schedule"`    // Metrics snapshot cadence
	SweepRate           float64 `toml:"sweep_rate"`           // Requests/second during a sweep
	BurstConcurrency    int     `toml:"burst_concurrency"`
	ErrorRateThreshold  float64 `toml:"error_rate_threshold"` // Sweep error rate above which to alert
	SlowResponseMs      int64   `toml:"slow_response_ms"`     // Sweep average above which to alert
	AlertWindowHours    int     `toml:"alert_window_hours"`   // Active-alert window for health derivation
	MaxActiveAlerts     int     `toml:"max_active_alerts"`    // Alerts in window before unhealthy

	// Endpoints may be declared inline or loaded from EndpointsFile.
	Endpoints []models.Endpoint `toml:"endpoints"`
}

// Timeout returns the per-probe timeout, defaulting to 10s.
func (p ProberConfig) Timeout() time.Duration {
	if p.TimeoutSeconds > 0 {
		return time.Duration(p.TimeoutSeconds) * time.Second
	}
	return 10 * time.Second
}

type LoggingConfig struct {
	Level  string   `toml:"level"`  // "debug", "info", "warn", "error"
	Output []string `toml:"output"` // "stdout", "file"
}

// LLMConfig configures the optional Anthropic-backed workflow generator.
// When the key is empty the pipeline falls back to the template generator.
type LLMConfig struct {
	AnthropicAPIKey string `toml:"anthropic_api_key"`
	Model           string `toml:"model"`
	MaxTokens       int    `toml:"max_tokens"`
}

// LoadFromFiles loads configuration by merging defaults, then each file
// in order, then environment overrides. Later files win.
func LoadFromFiles(paths ...string) (*Config, error) {
	cfg := DefaultConfig()

	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.LoadEndpointsFile(); err != nil {
		return nil, err
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// LoadEndpointsFile merges the YAML endpoint list into the prober config.
// File entries replace inline entries when both are present.
func (c *Config) LoadEndpointsFile() error {
	if c.Prober.EndpointsFile == "" {
		return nil
	}
	data, err := os.ReadFile(c.Prober.EndpointsFile)
	if err != nil {
		return fmt.Errorf("failed to read endpoints file %s: %w", c.Prober.EndpointsFile, err)
	}

	var doc struct {
		Endpoints []models.Endpoint `yaml:"endpoints"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("failed to parse endpoints file %s: %w", c.Prober.EndpointsFile, err)
	}
	if len(doc.Endpoints) > 0 {
		c.Prober.Endpoints = doc.Endpoints
	}
	return nil
}

// ApplyFlagOverrides applies command-line overrides (highest priority).
func ApplyFlagOverrides(cfg *Config, port int, host string) {
	if port > 0 {
		cfg.Server.Port = port
	}
	if host != "" {
		cfg.Server.Host = host
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("AUTOFORGE_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("AUTOFORGE_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("AUTOFORGE_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("AUTOFORGE_DATA_DIR"); v != "" {
		cfg.Storage.Badger.Path = v
	}
	if v := os.Getenv("ANTHROPIC_API_KEY"); v != "" {
		cfg.LLM.AnthropicAPIKey = v
	}
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
