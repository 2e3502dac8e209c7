// NotifyRank - Notification Engagement Scoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/notifyrank

package config

import (
	"time"
)

// Config holds all application configuration loaded from defaults, an
// optional YAML file and environment variables.
//
// Configuration Loading Order (Koanf v2):
//  1. Defaults: Built-in sensible defaults for all optional settings
//  2. Config File: Optional YAML config file (config.yaml)
//  3. Environment Variables: Override any setting
//
// Config is immutable after Load() and safe for concurrent read access.
type Config struct {
	Server     ServerConfig     `koanf:"server"`
	Logging    LoggingConfig    `koanf:"logging"`
	Database   DatabaseConfig   `koanf:"database"`
	Models     ModelsConfig     `koanf:"models"`
	Engagement EngagementConfig `koanf:"engagement"`
	NATS       NATSConfig       `koanf:"nats"`
	Security   SecurityConfig   `koanf:"security"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port        int           `koanf:"port"`
	Host        string        `koanf:"host"`
	Timeout     time.Duration `koanf:"timeout"`
	Environment string        `koanf:"environment"` // development or production
}

// LoggingConfig holds logging configuration.
//
// Environment Variables:
//   - LOG_LEVEL: trace, debug, info, warn, error (default: info)
//   - LOG_FORMAT: json, console (default: json)
//   - LOG_CALLER: true/false - include caller file:line (default: false)
type LoggingConfig struct {
	// Level is the minimum log level.
	// Default: info
	Level string `koanf:"level"`

	// Format is the output format: json or console.
	// Default: json
	Format string `koanf:"format"`

	// Caller includes caller file and line number in logs.
	// Default: false
	Caller bool `koanf:"caller"`
}

// DatabaseConfig holds DuckDB settings.
type DatabaseConfig struct {
	Path      string `koanf:"path"`
	MaxMemory string `koanf:"max_memory"`
	Threads   int    `koanf:"threads"` // 0 = use NumCPU
}

// ModelsConfig controls where trained models are persisted and cached.
type ModelsConfig struct {
	// Dir holds model artifacts and their metadata files.
	// Default: /data/models
	Dir string `koanf:"dir"`

	// CachePath is the badger directory for the external model cache.
	// Empty runs the cache in memory.
	CachePath string `koanf:"cache_path"`

	// CacheTTL bounds how long a loaded model is reused before reload.
	// Default: 1h
	CacheTTL time.Duration `koanf:"cache_ttl"`

	// LoadBreakerTimeout is how long the disk-load circuit breaker stays open.
	// Default: 30s
	LoadBreakerTimeout time.Duration `koanf:"load_breaker_timeout"`
}

// EngagementConfig groups the thresholds used by the scoring pipeline.
// Every value is configurable; the defaults reproduce the production tuning.
type EngagementConfig struct {
	// Location is the IANA zone used for calendar days and hour-of-day flags.
	// Default: UTC
	Location string `koanf:"location"`

	Labeler   LabelerConfig   `koanf:"labeler"`
	Features  FeaturesConfig  `koanf:"features"`
	Training  TrainingConfig  `koanf:"training"`
	Retrain   RetrainConfig   `koanf:"retrain"`
	ColdStart ColdStartConfig `koanf:"cold_start"`
}

// LabelerConfig holds label constants.
type LabelerConfig struct {
	ClickMin          float64       `koanf:"click_min"`
	ClickMax          float64       `koanf:"click_max"`
	ClickRecencyDecay time.Duration `koanf:"click_recency_decay"`
	ExpandLabel       float64       `koanf:"expand_label"`
	SwipeMax          float64       `koanf:"swipe_max"`
	SwipeRecencyDecay time.Duration `koanf:"swipe_recency_decay"`
	IgnoredLabel      float64       `koanf:"ignored_label"`
	AgingThreshold    time.Duration `koanf:"aging_threshold"`
}

// FeaturesConfig holds feature extraction settings.
type FeaturesConfig struct {
	StatsWindowDays  int           `koanf:"stats_window_days"`
	CacheTTL         time.Duration `koanf:"cache_ttl"`
	PriorRate        float64       `koanf:"prior_rate"`
	BurstWindow      time.Duration `koanf:"burst_window"`
	BurstThreshold   int           `koanf:"burst_threshold"`
	RareMaxPosts     int           `koanf:"rare_max_posts"`
	SleepStartHour   int           `koanf:"sleep_start_hour"`
	SleepEndHour     int           `koanf:"sleep_end_hour"`
	WorkStartHour    int           `koanf:"work_start_hour"`
	WorkEndHour      int           `koanf:"work_end_hour"`
	HighPriorityApps []string      `koanf:"high_priority_apps"`
}

// TrainingConfig controls shared model training and the background trainer.
type TrainingConfig struct {
	// Enabled starts the background training service.
	// Default: true
	Enabled bool `koanf:"enabled"`

	// Interval between background retrain checks.
	// Default: 6h
	Interval time.Duration `koanf:"interval"`

	// OnStartup runs a retrain check when the service starts.
	// Default: true
	OnStartup bool `koanf:"on_startup"`

	MinUsers         int    `koanf:"min_users"`
	SamplesPerUser   int    `koanf:"samples_per_user"`
	MinLabeledStates int    `koanf:"min_labeled_states"`
	MinTotalSamples  int    `koanf:"min_total_samples"`
	LinearMaxSamples int    `koanf:"linear_max_samples"`
	ModelKind        string `koanf:"model_kind"` // ridge or gbm
	Seed             int64  `koanf:"seed"`

	// TriggerRate is the number of on-demand training requests allowed per minute.
	// Default: 2
	TriggerRate  float64 `koanf:"trigger_rate"`
	TriggerBurst int     `koanf:"trigger_burst"`
}

// RetrainConfig holds the retrain decision thresholds.
type RetrainConfig struct {
	MinLabeled    int           `koanf:"min_labeled"`
	MinInterval   time.Duration `koanf:"min_interval"`
	MaxAge        time.Duration `koanf:"max_age"`
	MinNewSamples int           `koanf:"min_new_samples"`
}

// ColdStartConfig controls synthetic padding for new users.
type ColdStartConfig struct {
	MinRealSamples int   `koanf:"min_real_samples"`
	TargetSamples  int   `koanf:"target_samples"`
	Seed           int64 `koanf:"seed"`
}

// NATSConfig holds NATS JetStream ingestion settings. When disabled,
// ingestion runs on an in-process channel transport.
type NATSConfig struct {
	// Enabled controls whether NATS is used as the ingestion transport.
	// Default: false
	Enabled bool `koanf:"enabled"`

	// URL is the NATS server connection URL.
	URL string `koanf:"url"`

	// EmbeddedServer starts an in-process NATS server.
	// If false, expects an external NATS server at URL.
	EmbeddedServer bool `koanf:"embedded_server"`

	// StoreDir is the JetStream storage directory.
	StoreDir string `koanf:"store_dir"`

	// MaxMemory is the maximum memory for JetStream in bytes.
	MaxMemory int64 `koanf:"max_memory"`

	// MaxStore is the maximum disk storage for JetStream in bytes.
	MaxStore int64 `koanf:"max_store"`

	// StreamRetentionDays is how long to keep events.
	StreamRetentionDays int `koanf:"stream_retention_days"`

	// SubscribersCount is the number of concurrent message processors.
	SubscribersCount int `koanf:"subscribers_count"`

	// DurableName is the consumer durable name prefix.
	DurableName string `koanf:"durable_name"`

	// QueueGroup is the queue group for load balancing.
	QueueGroup string `koanf:"queue_group"`

	// RouterRetryCount is the maximum number of retries for failed messages.
	// Default: 3
	RouterRetryCount int `koanf:"router_retry_count"`

	// RouterRetryInitialInterval is the initial backoff interval for retries.
	// Default: 100ms
	RouterRetryInitialInterval time.Duration `koanf:"router_retry_initial_interval"`

	// RouterThrottlePerSecond limits messages processed per second (0 = unlimited).
	// Default: 0
	RouterThrottlePerSecond int `koanf:"router_throttle_per_second"`

	// RouterPoisonQueueEnabled routes permanently failed messages to a poison queue.
	// Default: true
	RouterPoisonQueueEnabled bool `koanf:"router_poison_queue_enabled"`

	// RouterPoisonQueueTopic is the topic for permanently failed messages.
	// Default: notifications.poison
	RouterPoisonQueueTopic string `koanf:"router_poison_queue_topic"`

	// RouterCloseTimeout is the maximum time to wait for graceful router shutdown.
	// Default: 30s
	RouterCloseTimeout time.Duration `koanf:"router_close_timeout"`
}

// SecurityConfig holds CORS and rate limiting settings.
type SecurityConfig struct {
	RateLimitReqs     int           `koanf:"rate_limit_reqs"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`
	CORSOrigins       []string      `koanf:"cors_origins"`
}

// IsProduction reports whether the server runs in production mode.
func (c *Config) IsProduction() bool {
	return c.Server.Environment == "production"
}

// Load reads configuration from defaults, config file and environment.
func Load() (*Config, error) {
	return LoadWithKoanf()
}

// Loc returns the configured engagement time zone, falling back to UTC when
// the name cannot be resolved.
func (e *EngagementConfig) Loc() *time.Location {
	if e.Location == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(e.Location)
	if err != nil {
		return time.UTC
	}
	return loc
}
