// NotifyRank - Notification Engagement Scoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/notifyrank

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/notifyrank/internal/api"
	"github.com/tomtom215/notifyrank/internal/config"
	"github.com/tomtom215/notifyrank/internal/database"
	"github.com/tomtom215/notifyrank/internal/engagement"
	"github.com/tomtom215/notifyrank/internal/engagement/storage"
	"github.com/tomtom215/notifyrank/internal/ingest"
	"github.com/tomtom215/notifyrank/internal/kvstore"
	"github.com/tomtom215/notifyrank/internal/logging"
	"github.com/tomtom215/notifyrank/internal/notifications"
	"github.com/tomtom215/notifyrank/internal/supervisor"
	"github.com/tomtom215/notifyrank/internal/supervisor/services"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

// modelCachePrefix namespaces NotifyRank keys in the badger cache.
const modelCachePrefix = "notifyrank:"

// app holds every long-lived component. Fields are set in dependency
// order by newApp and released in reverse by close.
type app struct {
	cfg    *config.Config
	logger zerolog.Logger

	db        *database.DB
	cache     *kvstore.Store
	transport *ingest.Transport

	features      *engagement.FeatureExtractor
	shared        *engagement.SharedModel
	users         *engagement.UserTrainer
	scorer        *engagement.Scorer
	notifications *notifications.Service
	training      *services.TrainingService
}

// newApp opens storage and builds the engagement pipeline. On error every
// resource opened so far is released.
func newApp(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (a *app, err error) {
	a = &app{cfg: cfg, logger: logger}
	defer func() {
		if err != nil {
			a.close()
			a = nil
		}
	}()

	a.db, err = database.New(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("initialize database: %w", err)
	}
	logger.Info().Str("path", cfg.Database.Path).Msg("Database initialized")

	a.cache, err = kvstore.Open(cfg.Models.CachePath, modelCachePrefix)
	if err != nil {
		return nil, fmt.Errorf("open model cache: %w", err)
	}

	if err := a.buildEngagement(); err != nil {
		return nil, err
	}

	a.transport, err = ingest.NewTransport(ctx, &cfg.NATS, logging.NewWatermillAdapter(logger))
	if err != nil {
		return nil, fmt.Errorf("initialize ingest transport: %w", err)
	}
	logger.Info().Str("kind", a.transport.Kind).Msg("Ingest transport ready")

	return a, nil
}

// buildEngagement wires the scoring pipeline on top of the database.
func (a *app) buildEngagement() error {
	eng := &a.cfg.Engagement
	loc := eng.Loc()

	store, err := storage.NewStore(a.cfg.Models.Dir)
	if err != nil {
		return fmt.Errorf("open model store: %w", err)
	}

	labeler := engagement.NewLabeler(eng.Labeler, a.db)
	a.features = engagement.NewFeatureExtractor(eng.Features, loc, a.db, a.logger)
	policy := engagement.NewRetrainPolicy(eng.Retrain)

	a.shared, err = engagement.NewSharedModel(eng.Training, a.cfg.Models, engagement.SharedModelDeps{
		Source:   a.db,
		Recorder: a.db,
		Labeler:  labeler,
		Features: a.features,
		Store:    store,
		Cache:    a.cache,
		Policy:   policy,
	}, a.logger)
	if err != nil {
		return fmt.Errorf("create shared model: %w", err)
	}

	a.users, err = engagement.NewUserTrainer(eng.Training, eng.ColdStart, a.cfg.Models, engagement.UserTrainerDeps{
		Source:    a.db,
		Recorder:  a.db,
		Labeler:   labeler,
		Features:  a.features,
		Store:     store,
		Generator: engagement.NewSyntheticGenerator(eng.ColdStart.Seed, eng.Features),
		Policy:    policy,
	}, a.logger)
	if err != nil {
		return fmt.Errorf("create user trainer: %w", err)
	}

	a.scorer = engagement.NewScorer(a.features, a.users, a.shared, a.db, a.logger)
	bookkeeper := engagement.NewBookkeeper(a.db, loc, a.logger)
	a.notifications = notifications.NewService(a.db, bookkeeper, a.logger)

	a.training = services.NewTrainingService(a.shared, services.TrainingServiceConfig{
		OnStartup:      eng.Training.OnStartup,
		Interval:       eng.Training.Interval,
		MinUsers:       eng.Training.MinUsers,
		SamplesPerUser: eng.Training.SamplesPerUser,
	}, a.logger)
	return nil
}

// routerFactory builds a fresh ingest router bound to the transport. The
// ingest service calls it on every (re)start.
func (a *app) routerFactory() services.RouterFactory {
	return func() (services.IngestRouter, error) {
		router, err := ingest.NewRouter(
			ingest.RouterConfigFrom(&a.cfg.NATS),
			a.transport.Publisher,
			logging.NewWatermillAdapter(a.logger),
		)
		if err != nil {
			return nil, err
		}
		router.Register(a.transport.Subscriber, ingest.NewHandlers(a.notifications, a.logger))
		return router, nil
	}
}

// handler builds the HTTP handler tree.
func (a *app) handler() http.Handler {
	h := api.NewHandler(a.cfg.Engagement.Training, api.Deps{
		Notifications: a.notifications,
		Scorer:        a.scorer,
		Trainer:       a.training,
		Model:         a.shared,
		Users:         a.users,
		DB:            a.db,
		TransportKind: a.transport.Kind,
		Version:       version,
	})
	mw := api.NewChiMiddleware(api.ChiMiddlewareConfigFrom(&a.cfg.Security))
	return api.NewRouter(h, mw).SetupChi()
}

// addServices registers the supervised services. The background trainer is
// only scheduled when enabled; on-demand training works either way.
func (a *app) addServices(tree *supervisor.SupervisorTree) *http.Server {
	if a.cfg.Engagement.Training.Enabled {
		tree.AddDataService(a.training)
		a.logger.Info().Dur("interval", a.cfg.Engagement.Training.Interval).Msg("Training service added to supervisor tree")
	} else {
		a.logger.Info().Msg("Background training disabled (TRAINING_ENABLED=false)")
	}

	tree.AddMessagingService(services.NewIngestService(a.routerFactory(), a.logger))

	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", a.cfg.Server.Host, a.cfg.Server.Port),
		Handler:           a.handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       a.cfg.Server.Timeout,
		WriteTimeout:      a.cfg.Server.Timeout,
		IdleTimeout:       60 * time.Second,
	}
	tree.AddAPIService(services.NewHTTPServerService(server, 10*time.Second))
	a.logger.Info().Str("addr", server.Addr).Msg("HTTP server service added")
	return server
}

// close releases resources in reverse order of creation. It is safe on a
// partially built app.
func (a *app) close() {
	var errs []error
	if a.transport != nil {
		errs = append(errs, a.transport.Close())
	}
	if a.users != nil {
		a.users.Close()
	}
	if a.features != nil {
		a.features.Close()
	}
	if a.cache != nil {
		errs = append(errs, a.cache.Close())
	}
	if a.db != nil {
		errs = append(errs, a.db.Close())
	}
	if err := errors.Join(errs...); err != nil {
		a.logger.Error().Err(err).Msg("Error releasing resources")
	}
}
