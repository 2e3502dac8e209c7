// NotifyRank - Notification Engagement Scoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/notifyrank

package config

import (
	"fmt"
	"strings"
	"time"
)

// Validate checks that required configuration is present and valid
func (c *Config) Validate() error {
	validators := []func() error{
		c.validateServer,
		c.validateDatabase,
		c.validateModels,
		c.validateEngagement,
		c.validateNATS,
		c.validateSecurity,
		c.validateLogging,
	}
	for _, validate := range validators {
		if err := validate(); err != nil {
			return err
		}
	}
	return nil
}

// validateServer validates server configuration
func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("HTTP_PORT must be between 1 and 65535")
	}
	if c.Server.Environment != "development" && c.Server.Environment != "production" {
		return fmt.Errorf("ENVIRONMENT must be development or production, got %q", c.Server.Environment)
	}
	return nil
}

func (c *Config) validateDatabase() error {
	if c.Database.Path == "" {
		return fmt.Errorf("DUCKDB_PATH is required")
	}
	if c.Database.Threads < 0 {
		return fmt.Errorf("DUCKDB_THREADS must be >= 0")
	}
	return nil
}

func (c *Config) validateModels() error {
	if c.Models.Dir == "" {
		return fmt.Errorf("MODELS_DIR is required")
	}
	if c.Models.CacheTTL <= 0 {
		return fmt.Errorf("MODEL_CACHE_TTL must be positive")
	}
	if c.Models.LoadBreakerTimeout <= 0 {
		return fmt.Errorf("MODEL_LOAD_BREAKER_TIMEOUT must be positive")
	}
	return nil
}

// validateEngagement validates labeler, feature, training and retrain thresholds
func (c *Config) validateEngagement() error {
	if _, err := time.LoadLocation(c.Engagement.Location); err != nil {
		return fmt.Errorf("ENGAGEMENT_LOCATION is invalid: %w", err)
	}

	l := c.Engagement.Labeler
	for name, v := range map[string]float64{
		"LABEL_CLICK_MIN": l.ClickMin,
		"LABEL_CLICK_MAX": l.ClickMax,
		"LABEL_EXPAND":    l.ExpandLabel,
		"LABEL_SWIPE_MAX": l.SwipeMax,
		"LABEL_IGNORED":   l.IgnoredLabel,
	} {
		if v < 0 || v > 1 {
			return fmt.Errorf("%s must be between 0 and 1", name)
		}
	}
	if l.ClickMin > l.ClickMax {
		return fmt.Errorf("LABEL_CLICK_MIN must not exceed LABEL_CLICK_MAX")
	}
	if l.ClickRecencyDecay <= 0 || l.SwipeRecencyDecay <= 0 || l.AgingThreshold <= 0 {
		return fmt.Errorf("label decay and aging durations must be positive")
	}

	f := c.Engagement.Features
	if f.StatsWindowDays < 1 {
		return fmt.Errorf("FEATURES_STATS_WINDOW_DAYS must be at least 1")
	}
	if f.PriorRate < 0 || f.PriorRate > 1 {
		return fmt.Errorf("FEATURES_PRIOR_RATE must be between 0 and 1")
	}
	if f.BurstThreshold < 1 {
		return fmt.Errorf("FEATURES_BURST_THRESHOLD must be at least 1")
	}
	for _, h := range []int{f.SleepStartHour, f.SleepEndHour, f.WorkStartHour, f.WorkEndHour} {
		if h < 0 || h > 23 {
			return fmt.Errorf("feature hour bounds must be between 0 and 23")
		}
	}

	t := c.Engagement.Training
	if t.MinUsers < 1 {
		return fmt.Errorf("TRAINING_MIN_USERS must be at least 1")
	}
	if t.SamplesPerUser < 1 {
		return fmt.Errorf("TRAINING_SAMPLES_PER_USER must be at least 1")
	}
	switch strings.ToLower(t.ModelKind) {
	case "ridge", "gbm":
	default:
		return fmt.Errorf("TRAINING_MODEL_KIND must be ridge or gbm, got %q", t.ModelKind)
	}
	if t.Enabled && t.Interval < time.Minute {
		return fmt.Errorf("TRAINING_INTERVAL must be at least 1m")
	}
	if t.TriggerRate <= 0 || t.TriggerBurst < 1 {
		return fmt.Errorf("TRAINING_TRIGGER_RATE and TRAINING_TRIGGER_BURST must be positive")
	}

	r := c.Engagement.Retrain
	if r.MinLabeled < 0 || r.MinNewSamples < 0 {
		return fmt.Errorf("retrain sample thresholds must be >= 0")
	}
	if r.MinInterval < 0 || r.MaxAge <= 0 {
		return fmt.Errorf("RETRAIN_MAX_AGE must be positive and RETRAIN_MIN_INTERVAL >= 0")
	}

	cs := c.Engagement.ColdStart
	if cs.TargetSamples < cs.MinRealSamples {
		return fmt.Errorf("COLD_START_TARGET_SAMPLES must be >= COLD_START_MIN_REAL_SAMPLES")
	}
	return nil
}

// NATS limit constants
const (
	natsMinMemory      = 64 * 1024 * 1024  // 64MB
	natsMinStore       = 100 * 1024 * 1024 // 100MB
	natsMaxRetention   = 365
	natsMinRetention   = 1
	natsMaxSubscribers = 32
)

// validateNATS validates NATS configuration (only if enabled)
func (c *Config) validateNATS() error {
	if !c.NATS.Enabled {
		return nil
	}

	if err := validateNATSURL(c.NATS.URL); err != nil {
		return fmt.Errorf("NATS_URL is invalid: %w", err)
	}
	if c.NATS.EmbeddedServer && c.NATS.StoreDir == "" {
		return fmt.Errorf("NATS_STORE_DIR is required for the embedded server")
	}
	if c.NATS.MaxMemory < natsMinMemory {
		return fmt.Errorf("NATS_MAX_MEMORY must be at least 64MB (67108864 bytes)")
	}
	if c.NATS.MaxStore < natsMinStore {
		return fmt.Errorf("NATS_MAX_STORE must be at least 100MB (104857600 bytes)")
	}
	if c.NATS.StreamRetentionDays < natsMinRetention || c.NATS.StreamRetentionDays > natsMaxRetention {
		return fmt.Errorf("NATS_RETENTION_DAYS must be between 1 and 365")
	}
	if c.NATS.SubscribersCount < 1 || c.NATS.SubscribersCount > natsMaxSubscribers {
		return fmt.Errorf("NATS_SUBSCRIBERS must be between 1 and 32")
	}
	if c.NATS.RouterPoisonQueueEnabled && c.NATS.RouterPoisonQueueTopic == "" {
		return fmt.Errorf("NATS_ROUTER_POISON_TOPIC is required when the poison queue is enabled")
	}
	return nil
}

// Rate limit constants
const (
	minRateLimitReqs   = 1
	maxRateLimitReqs   = 100000
	minRateLimitWindow = time.Second
	maxRateLimitWindow = time.Hour
)

// validateSecurity validates CORS and rate limiting bounds
func (c *Config) validateSecurity() error {
	if c.Security.RateLimitDisabled {
		return nil
	}
	if c.Security.RateLimitReqs < minRateLimitReqs || c.Security.RateLimitReqs > maxRateLimitReqs {
		return fmt.Errorf("RATE_LIMIT_REQUESTS must be between %d and %d", minRateLimitReqs, maxRateLimitReqs)
	}
	if c.Security.RateLimitWindow < minRateLimitWindow || c.Security.RateLimitWindow > maxRateLimitWindow {
		return fmt.Errorf("RATE_LIMIT_WINDOW must be between 1s and 1h")
	}
	return nil
}

// ShouldWarnAboutCORS returns true if wildcard CORS is configured in production.
func (c *Config) ShouldWarnAboutCORS() bool {
	if !c.IsProduction() {
		return false
	}
	for _, origin := range c.Security.CORSOrigins {
		if origin == "*" {
			return true
		}
	}
	return false
}

var validLogLevels = map[string]bool{
	"trace": true,
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

var validLogFormats = map[string]bool{
	"json":    true,
	"console": true,
}

// validateLogging validates logging configuration
func (c *Config) validateLogging() error {
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("LOG_LEVEL must be one of: trace, debug, info, warn, error")
	}
	if c.Logging.Format != "" && !validLogFormats[c.Logging.Format] {
		return fmt.Errorf("LOG_FORMAT must be one of: json, console")
	}
	return nil
}
