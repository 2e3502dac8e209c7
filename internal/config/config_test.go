// NotifyRank - Notification Engagement Scoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/notifyrank

package config

import (
	"strings"
	"testing"
	"time"
)

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"defaults", func(c *Config) {}, ""},
		{"bad port", func(c *Config) { c.Server.Port = 0 }, "HTTP_PORT"},
		{"bad environment", func(c *Config) { c.Server.Environment = "staging" }, "ENVIRONMENT"},
		{"empty db path", func(c *Config) { c.Database.Path = "" }, "DUCKDB_PATH"},
		{"empty models dir", func(c *Config) { c.Models.Dir = "" }, "MODELS_DIR"},
		{"bad location", func(c *Config) { c.Engagement.Location = "Mars/Olympus" }, "ENGAGEMENT_LOCATION"},
		{"label out of range", func(c *Config) { c.Engagement.Labeler.ExpandLabel = 1.5 }, "LABEL_EXPAND"},
		{"click min above max", func(c *Config) { c.Engagement.Labeler.ClickMin = 0.99; c.Engagement.Labeler.ClickMax = 0.95 }, "LABEL_CLICK_MIN"},
		{"bad hour", func(c *Config) { c.Engagement.Features.SleepStartHour = 24 }, "hour"},
		{"bad model kind", func(c *Config) { c.Engagement.Training.ModelKind = "forest" }, "TRAINING_MODEL_KIND"},
		{"short interval", func(c *Config) { c.Engagement.Training.Interval = time.Second }, "TRAINING_INTERVAL"},
		{"cold start target", func(c *Config) { c.Engagement.ColdStart.TargetSamples = 5 }, "COLD_START_TARGET_SAMPLES"},
		{"bad log level", func(c *Config) { c.Logging.Level = "verbose" }, "LOG_LEVEL"},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }, "LOG_FORMAT"},
		{"rate limit bounds", func(c *Config) { c.Security.RateLimitReqs = 0 }, "RATE_LIMIT_REQUESTS"},
		{"rate limit disabled skips bounds", func(c *Config) {
			c.Security.RateLimitDisabled = true
			c.Security.RateLimitReqs = 0
		}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Validate() expected error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %q, want substring %q", err.Error(), tt.wantErr)
			}
		})
	}
}

func TestValidateNATS(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.NATS.Enabled = true
	if err := cfg.Validate(); err != nil {
		t.Fatalf("enabled NATS defaults should validate: %v", err)
	}

	cfg.NATS.URL = "http://localhost:4222"
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "NATS_URL") {
		t.Errorf("expected NATS_URL error, got %v", err)
	}

	cfg = DefaultConfig()
	cfg.NATS.Enabled = true
	cfg.NATS.SubscribersCount = 0
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "NATS_SUBSCRIBERS") {
		t.Errorf("expected NATS_SUBSCRIBERS error, got %v", err)
	}
}

func TestValidateNATSURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		url     string
		wantErr bool
	}{
		{"nats://localhost:4222", false},
		{"tls://nats.example.com:4222", false},
		{"wss://nats.example.com", false},
		{"http://localhost:4222", true},
		{"nats://", true},
	}

	for _, tt := range tests {
		err := validateNATSURL(tt.url)
		if (err != nil) != tt.wantErr {
			t.Errorf("validateNATSURL(%q) error = %v, wantErr %v", tt.url, err, tt.wantErr)
		}
	}
}

func TestShouldWarnAboutCORS(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	if cfg.ShouldWarnAboutCORS() {
		t.Error("development mode should not warn")
	}
	cfg.Server.Environment = "production"
	if !cfg.ShouldWarnAboutCORS() {
		t.Error("wildcard CORS in production should warn")
	}
	cfg.Security.CORSOrigins = []string{"https://app.example"}
	if cfg.ShouldWarnAboutCORS() {
		t.Error("explicit origins should not warn")
	}
}
