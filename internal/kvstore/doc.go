// NotifyRank - Notification Engagement Scoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/notifyrank

// Package kvstore provides the external cache for trained models.
//
// Values are stored in BadgerDB wrapped in a JSON envelope that records when
// they were written. Entries may carry a TTL, after which badger stops
// returning them. The shared model orchestrator keeps the serialized global
// model here under the key "global_notification_model" so a restarted
// process can skip the disk load.
package kvstore
