// NotifyRank - Notification Engagement Scoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/notifyrank

// Package storage provides model persistence for engagement models.
//
// # Storage Format
//
// Each model is stored as two files in the models directory:
//
//   - <name>.gob.gz: gob-encoded envelope holding the metadata and the
//     gzip-compressed model bytes, verified with a SHA-256 checksum on load
//   - <name>_metadata.json: the same metadata as JSON, readable without
//     decoding the model
//
// Both files are written to a temporary file first and renamed into place.
//
// # Thread Safety
//
// All Store methods are safe for concurrent use.
package storage
