// NotifyRank - Notification Engagement Scoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/notifyrank

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where config files are searched in order of priority.
// The first file found will be used.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/notifyrank/config.yaml",
	"/etc/notifyrank/config.yml",
}

// ConfigPathEnvVar is the environment variable that can override the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// defaultHighPriorityApps are package-name fragments of messaging, calling,
// mail, calendar and banking apps.
var defaultHighPriorityApps = []string{
	"whatsapp", "telegram", "signal", "messag", "dialer", "phone",
	"gmail", "outlook", "slack", "teams", "calendar", "bank",
}

// DefaultConfig returns a Config struct with all sensible default values.
// These defaults are applied first, then overridden by config file and env vars.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:        8470,
			Host:        "0.0.0.0",
			Timeout:     30 * time.Second,
			Environment: "development",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
		Database: DatabaseConfig{
			Path:      "/data/notifyrank.duckdb",
			MaxMemory: "1GB",
			Threads:   0,
		},
		Models: ModelsConfig{
			Dir:                "/data/models",
			CachePath:          "",
			CacheTTL:           time.Hour,
			LoadBreakerTimeout: 30 * time.Second,
		},
		Engagement: EngagementConfig{
			Location: "UTC",
			Labeler: LabelerConfig{
				ClickMin:          0.9,
				ClickMax:          1.0,
				ClickRecencyDecay: 30 * time.Minute,
				ExpandLabel:       0.6,
				SwipeMax:          0.1,
				SwipeRecencyDecay: 10 * time.Minute,
				IgnoredLabel:      0.15,
				AgingThreshold:    24 * time.Hour,
			},
			Features: FeaturesConfig{
				StatsWindowDays:  30,
				CacheTTL:         time.Hour,
				PriorRate:        0.5,
				BurstWindow:      10 * time.Minute,
				BurstThreshold:   5,
				RareMaxPosts:     3,
				SleepStartHour:   23,
				SleepEndHour:     7,
				WorkStartHour:    9,
				WorkEndHour:      17,
				HighPriorityApps: append([]string(nil), defaultHighPriorityApps...),
			},
			Training: TrainingConfig{
				Enabled:          true,
				Interval:         6 * time.Hour,
				OnStartup:        true,
				MinUsers:         5,
				SamplesPerUser:   200,
				MinLabeledStates: 20,
				MinTotalSamples:  100,
				LinearMaxSamples: 500,
				ModelKind:        "gbm",
				Seed:             42,
				TriggerRate:      2,
				TriggerBurst:     1,
			},
			Retrain: RetrainConfig{
				MinLabeled:    20,
				MinInterval:   6 * time.Hour,
				MaxAge:        7 * 24 * time.Hour,
				MinNewSamples: 25,
			},
			ColdStart: ColdStartConfig{
				MinRealSamples: 20,
				TargetSamples:  200,
				Seed:           42,
			},
		},
		NATS: NATSConfig{
			Enabled:                    false,
			URL:                        "nats://127.0.0.1:4222",
			EmbeddedServer:             true,
			StoreDir:                   "/data/nats/jetstream",
			MaxMemory:                  256 << 20, // 256MB
			MaxStore:                   1 << 30,   // 1GB
			StreamRetentionDays:        7,
			SubscribersCount:           2,
			DurableName:                "notifyrank-ingest",
			QueueGroup:                 "ingest",
			RouterRetryCount:           3,
			RouterRetryInitialInterval: 100 * time.Millisecond,
			RouterThrottlePerSecond:    0,
			RouterPoisonQueueEnabled:   true,
			RouterPoisonQueueTopic:     "notifications.poison",
			RouterCloseTimeout:         30 * time.Second,
		},
		Security: SecurityConfig{
			RateLimitReqs:     100,
			RateLimitWindow:   time.Minute,
			RateLimitDisabled: false,
			CORSOrigins:       []string{"*"},
		},
	}
}

// LoadWithKoanf loads configuration using Koanf v2 with layered sources:
//  1. Defaults: Built-in sensible defaults
//  2. Config File: Optional YAML config file (if exists)
//  3. Environment Variables: Override any setting
func LoadWithKoanf() (*Config, error) {
	k := koanf.New(".")

	// Layer 1: defaults
	defaults := DefaultConfig()
	if err := k.Load(structs.Provider(defaults, "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// Layer 2: config file (optional)
	configPath := findConfigFile()
	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// Layer 3: environment variables
	envProvider := env.Provider("", ".", envTransformFunc)
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile returns the first config file found, or "" if none exist.
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// sliceConfigPaths defines which config paths should be parsed as comma-separated slices
var sliceConfigPaths = []string{
	"security.cors_origins",
	"engagement.features.high_priority_apps",
}

// processSliceFields converts comma-separated string values to slices for known slice fields.
// Env vars arrive as strings, but the config expects slices.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		val := k.Get(path)
		if val == nil {
			continue
		}

		if _, ok := val.([]interface{}); ok {
			continue
		}
		if _, ok := val.([]string); ok {
			continue
		}

		strVal, ok := val.(string)
		if !ok || strVal == "" {
			continue
		}
		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if len(trimmed) > 0 {
			if err := k.Set(path, trimmed); err != nil {
				return fmt.Errorf("failed to set %s: %w", path, err)
			}
		}
	}
	return nil
}

// envMappings maps lowercased environment variable names to koanf paths.
var envMappings = map[string]string{
	// Server
	"http_port":    "server.port",
	"http_host":    "server.host",
	"http_timeout": "server.timeout",
	"environment":  "server.environment",

	// Logging
	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",

	// Database
	"duckdb_path":       "database.path",
	"duckdb_max_memory": "database.max_memory",
	"duckdb_threads":    "database.threads",

	// Models
	"models_dir":                 "models.dir",
	"model_cache_path":           "models.cache_path",
	"model_cache_ttl":            "models.cache_ttl",
	"model_load_breaker_timeout": "models.load_breaker_timeout",

	// Engagement
	"engagement_location":         "engagement.location",
	"label_click_min":             "engagement.labeler.click_min",
	"label_click_max":             "engagement.labeler.click_max",
	"label_click_recency_decay":   "engagement.labeler.click_recency_decay",
	"label_expand":                "engagement.labeler.expand_label",
	"label_swipe_max":             "engagement.labeler.swipe_max",
	"label_swipe_recency_decay":   "engagement.labeler.swipe_recency_decay",
	"label_ignored":               "engagement.labeler.ignored_label",
	"label_aging_threshold":       "engagement.labeler.aging_threshold",
	"features_stats_window_days":  "engagement.features.stats_window_days",
	"features_cache_ttl":          "engagement.features.cache_ttl",
	"features_prior_rate":         "engagement.features.prior_rate",
	"features_burst_window":       "engagement.features.burst_window",
	"features_burst_threshold":    "engagement.features.burst_threshold",
	"features_rare_max_posts":     "engagement.features.rare_max_posts",
	"features_high_priority_apps": "engagement.features.high_priority_apps",
	"training_enabled":            "engagement.training.enabled",
	"training_interval":           "engagement.training.interval",
	"training_on_startup":         "engagement.training.on_startup",
	"training_min_users":          "engagement.training.min_users",
	"training_samples_per_user":   "engagement.training.samples_per_user",
	"training_min_labeled_states": "engagement.training.min_labeled_states",
	"training_min_total_samples":  "engagement.training.min_total_samples",
	"training_linear_max_samples": "engagement.training.linear_max_samples",
	"training_model_kind":         "engagement.training.model_kind",
	"training_seed":               "engagement.training.seed",
	"training_trigger_rate":       "engagement.training.trigger_rate",
	"training_trigger_burst":      "engagement.training.trigger_burst",
	"retrain_min_labeled":         "engagement.retrain.min_labeled",
	"retrain_min_interval":        "engagement.retrain.min_interval",
	"retrain_max_age":             "engagement.retrain.max_age",
	"retrain_min_new_samples":     "engagement.retrain.min_new_samples",
	"cold_start_min_real_samples": "engagement.cold_start.min_real_samples",
	"cold_start_target_samples":   "engagement.cold_start.target_samples",
	"cold_start_seed":             "engagement.cold_start.seed",

	// NATS
	"nats_enabled":               "nats.enabled",
	"nats_url":                   "nats.url",
	"nats_embedded":              "nats.embedded_server",
	"nats_store_dir":             "nats.store_dir",
	"nats_max_memory":            "nats.max_memory",
	"nats_max_store":             "nats.max_store",
	"nats_retention_days":        "nats.stream_retention_days",
	"nats_subscribers":           "nats.subscribers_count",
	"nats_durable_name":          "nats.durable_name",
	"nats_queue_group":           "nats.queue_group",
	"nats_router_retry_count":    "nats.router_retry_count",
	"nats_router_retry_interval": "nats.router_retry_initial_interval",
	"nats_router_throttle":       "nats.router_throttle_per_second",
	"nats_router_poison_enabled": "nats.router_poison_queue_enabled",
	"nats_router_poison_topic":   "nats.router_poison_queue_topic",
	"nats_router_close_timeout":  "nats.router_close_timeout",

	// Security
	"rate_limit_requests": "security.rate_limit_reqs",
	"rate_limit_window":   "security.rate_limit_window",
	"disable_rate_limit":  "security.rate_limit_disabled",
	"cors_origins":        "security.cors_origins",
}

// envTransformFunc transforms environment variable names to koanf config paths.
// Unknown variables return "" and are ignored by the provider.
//
// Examples:
//   - HTTP_PORT -> server.port
//   - DUCKDB_PATH -> database.path
//   - TRAINING_MIN_USERS -> engagement.training.min_users
func envTransformFunc(key string) string {
	if path, ok := envMappings[strings.ToLower(key)]; ok {
		return path
	}
	return ""
}
