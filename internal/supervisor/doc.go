// NotifyRank - Notification Engagement Scoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/notifyrank

/*
Package supervisor runs NotifyRank's long-lived services under suture v4.

The tree has three layers, each its own supervisor so failures are
counted and backed off independently:

	notifyrank
	├── data-layer
	│   └── TrainingService (if training.enabled)
	├── messaging-layer
	│   └── IngestService (watermill router over NATS or gochannel)
	└── api-layer
	    └── HTTPServerService

# Usage

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(logging.WithComponent("supervisor")), supervisor.DefaultTreeConfig())
	if err != nil {
	    return err
	}
	tree.AddDataService(trainingSvc)
	tree.AddMessagingService(ingestSvc)
	tree.AddAPIService(services.NewHTTPServerService(server, 10*time.Second))

	errCh := tree.ServeBackground(ctx)
	<-ctx.Done()
	<-errCh

# Failure Handling

Suture keeps a failure counter per supervisor that decays over
FailureDecay seconds. When it exceeds FailureThreshold the supervisor
waits FailureBackoff before the next restart.

A service's Serve return value decides what happens next:
  - nil: stopped cleanly, not restarted
  - error: restarted subject to backoff
  - ctx.Err() after cancellation: shutdown

# Not Supervised

DuckDB and badger are embedded libraries opened once in main and closed
after the tree stops. The NATS transport, embedded server included, is
owned by main for the same reason; only the router that consumes it is
supervised, so a router crash reconnects handlers without dropping the
JetStream stream.

# Debugging Shutdown

UnstoppedServiceReport lists services that ignored cancellation for longer
than ShutdownTimeout.
*/
package supervisor
