// NotifyRank - Notification Engagement Scoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/notifyrank

// Package testinfra provides container-backed infrastructure for integration
// tests, built on testcontainers-go. Every file carries the integration build
// tag, so regular test runs never need Docker.
//
// # NATS Container
//
// NewNATSContainer starts a NATS server with JetStream enabled:
//
//	func TestIngest(t *testing.T) {
//	    testinfra.SkipIfNoDocker(t)
//	    ctx := context.Background()
//	    natsC, err := testinfra.NewNATSContainer(ctx)
//	    if err != nil {
//	        t.Fatal(err)
//	    }
//	    defer testinfra.CleanupContainer(t, ctx, natsC)
//
//	    cfg.NATS.URL = natsC.URL
//	}
//
// Run with:
//
//	go test -tags integration ./internal/ingest/...
package testinfra
