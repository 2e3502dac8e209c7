// NotifyRank - Notification Engagement Scoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/notifyrank

/*
Package ingest consumes notification and interaction events from a message
transport and applies them through the notifications service.

# Topics

	notifications.posted       NotificationInput JSON
	notifications.interaction  InteractionInput JSON
	notifications.poison       messages that failed after all retries

# Transports

Two transports implement the same watermill Publisher/Subscriber pair:

  - NATS JetStream, either an embedded nats-server or an external URL. The
    NOTIFICATIONS stream captures notifications.> and is created or updated
    on startup.
  - An in-process gochannel, used when NATS is disabled (single process
    deployments and tests).

# Router

The watermill router applies, from outermost to innermost:

 1. Throttle (when a per-second limit is configured)
 2. PoisonQueue (when enabled): failures left after retries are published
    to the poison topic and acknowledged
 3. Retry with exponential backoff
 4. Recoverer: handler panics become errors

Malformed or invalid payloads are not retried; they go straight to the
poison queue.
*/
package ingest
