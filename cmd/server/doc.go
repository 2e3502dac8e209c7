// NotifyRank - Notification Engagement Scoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/notifyrank

/*
Package main is the entry point for the NotifyRank server.

NotifyRank records notifications posted on users' devices and the way users
react to them, labels that history, trains a shared engagement model plus
optional per-user models, and serves a 0..1 engagement score for any
recorded notification.

# Application Architecture

	RootSupervisor ("notifyrank")
	├── DataSupervisor ("data-layer")
	│   └── TrainingService (startup + interval global retrain)
	├── MessagingSupervisor ("messaging-layer")
	│   └── IngestService (watermill router: notifications.posted, notifications.interaction)
	└── APISupervisor ("api-layer")
	    └── HTTP Server (chi, /api/v1 and /metrics)

Component initialization order:

 1. Configuration: koanf (defaults, optional config.yaml, environment)
 2. Logging: zerolog, bridged to slog for the supervisor
 3. Database: DuckDB (events, states, aggregates, training runs)
 4. Model cache: badger (shared model bytes with TTL)
 5. Engagement: labeler, feature extractor, shared model, per-user trainer, scorer
 6. Ingest transport: NATS JetStream, or an in-process channel when NATS is off
 7. Supervisor tree and HTTP server

# Configuration

Core environment variables:

	HTTP_PORT=8470                  # HTTP listen port
	LOG_LEVEL=info                  # trace, debug, info, warn, error
	LOG_FORMAT=json                 # json or console
	DUCKDB_PATH=/data/notifyrank.duckdb
	MODELS_DIR=/data/models         # global_model.gob.gz, user_<id>.gob.gz
	MODEL_CACHE_PATH=               # badger dir; empty keeps the cache in memory
	TRAINING_ENABLED=true           # background TrainingService
	TRAINING_INTERVAL=6h
	TRAINING_TRIGGER_RATE=2         # on-demand train requests per minute
	NATS_ENABLED=false              # true for JetStream ingestion
	NATS_EMBEDDED=true              # run nats-server in process

# Signal Handling

SIGINT and SIGTERM cancel the root context. The supervisor stops the HTTP
server (graceful Shutdown), the ingest router and the trainer, then the
transport, model cache and database are closed in that order.
*/
package main
