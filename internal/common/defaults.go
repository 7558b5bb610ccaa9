package common

import "github.com/autoforgehq/autoforge/internal/models"

// DefaultConfig returns the baseline configuration. Config files, env
// vars, and CLI flags layer on top in that order.
func DefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Host: "localhost",
			Port: 8085,
		},
		Storage: StorageConfig{
			Badger: BadgerConfig{
				Path: "./data/autoforge",
			},
		},
		Queue: QueueConfig{
			PollInterval: "500ms",
			// Ceilings reflect external rate-limit sensitivity; the video
			// platform quota keeps publishing at one worker.
			Concurrency: map[string]int{
				models.QueueGeneration:      5,
				models.QueueTesting:         3,
				models.QueueContentCreation: 2,
				models.QueuePublishing:      1,
				models.QueueNotifications:   10,
				models.QueueAnalytics:       20,
			},
			StalledAfter:    "10m",
			MonitorInterval: "5m",
			PublishRate:     0.5,
		},
		Retention: RetentionConfig{
			KeepCompleted: 200,
			KeepFailed:    500,
			RecentResults: 100,
			RecentAlerts:  50,
			ResultTTLDays: 7,
			AlertTTLDays:  30,
			PruneSchedule: "@hourly",
		},
		Prober: ProberConfig{
			Enabled:             true,
			TimeoutSeconds:      10,
			HealthSchedule:      "@every 2m",
			SweepSchedule:       "@every 15m",
			PerformanceSchedule: "@every 60m",
			SnapshotSchedule:    "@every 6h",
			SweepRate:           2,
			BurstConcurrency:    5,
			ErrorRateThreshold:  0.05,
			SlowResponseMs:      5000,
			AlertWindowHours:    24,
			MaxActiveAlerts:     5,
			Endpoints: []models.Endpoint{
				{Name: "health", Path: "/api/health", Method: "GET", Critical: true},
				{Name: "version", Path: "/api/version", Method: "GET", Critical: false},
				{Name: "queue-stats", Path: "/api/queues/stats", Method: "GET", Critical: true},
				{Name: "monitoring-metrics", Path: "/monitoring/metrics", Method: "GET", Critical: false},
				{Name: "monitoring-alerts", Path: "/monitoring/alerts", Method: "GET", Critical: false},
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Output: []string{"stdout"},
		},
		LLM: LLMConfig{
			Model:     "claude-sonnet-4-20250514",
			MaxTokens: 4096,
		},
	}
}
