// NotifyRank - Notification Engagement Scoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/notifyrank

/*
Package config provides centralized configuration management for NotifyRank.

Configuration is layered with Koanf v2: built-in defaults, then an optional
YAML file (CONFIG_PATH, config.yaml or /etc/notifyrank/config.yaml), then
environment variables. Environment variables are mapped explicitly; unknown
variables are ignored.

# Configuration Structure

  - ServerConfig: HTTP listen address and timeouts
  - LoggingConfig: zerolog level and format
  - DatabaseConfig: DuckDB path and tuning
  - ModelsConfig: model artifact directory and external model cache
  - EngagementConfig: labeler constants, feature thresholds, training,
    retrain policy and cold-start settings
  - NATSConfig: JetStream ingestion (in-process channels when disabled)
  - SecurityConfig: CORS origins and per-IP rate limiting

# Selected Environment Variables

  - HTTP_PORT: Listen port (default: 8470)
  - DUCKDB_PATH: Database file (default: /data/notifyrank.duckdb)
  - MODELS_DIR: Model directory (default: /data/models)
  - TRAINING_MIN_USERS: Minimum eligible users for the shared model (default: 5)
  - TRAINING_MODEL_KIND: ridge or gbm for large datasets (default: gbm)
  - RETRAIN_MIN_NEW_SAMPLES: New labeled samples that trigger a retrain (default: 25)
  - NATS_ENABLED: Use NATS JetStream for ingestion (default: false)
  - CORS_ORIGINS, FEATURES_HIGH_PRIORITY_APPS: comma-separated lists

# Usage

	cfg, err := config.Load()
	if err != nil {
	    log.Fatal(err)
	}
*/
package config
