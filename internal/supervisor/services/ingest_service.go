// NotifyRank - Notification Engagement Scoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/notifyrank

package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
)

// IngestRouter matches the lifecycle of *ingest.Router.
type IngestRouter interface {
	Run(ctx context.Context) error
	Running() <-chan struct{}
	Close() error
}

// RouterFactory builds a router with its handlers registered. A watermill
// router cannot be run again once closed, so every restart gets a new one.
type RouterFactory func() (IngestRouter, error)

// errRouterStopped is returned when the router exits while the service
// is still supposed to run, so suture restarts it.
var errRouterStopped = errors.New("ingest router stopped unexpectedly")

// IngestService runs the event ingestion router under supervision.
type IngestService struct {
	newRouter RouterFactory
	logger    zerolog.Logger
	name      string
}

// NewIngestService creates an ingestion service.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewIngestService(newRouter RouterFactory, logger zerolog.Logger) *IngestService {
	return &IngestService{
		newRouter: newRouter,
		logger:    logger.With().Str("service", "ingest").Logger(),
		name:      "ingest-router",
	}
}

// Serve implements suture.Service. It returns an error whenever the router
// stops before ctx is canceled.
func (s *IngestService) Serve(ctx context.Context) error {
	router, err := s.newRouter()
	if err != nil {
		return fmt.Errorf("create ingest router: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- router.Run(ctx)
	}()

	select {
	case <-router.Running():
		s.logger.Info().Msg("ingest router running")
	case err := <-errCh:
		return routerExit(ctx, err)
	case <-ctx.Done():
		return s.stop(ctx, router, errCh)
	}

	select {
	case err := <-errCh:
		return routerExit(ctx, err)
	case <-ctx.Done():
		return s.stop(ctx, router, errCh)
	}
}

func (s *IngestService) stop(ctx context.Context, router IngestRouter, errCh <-chan error) error {
	if err := router.Close(); err != nil {
		s.logger.Warn().Err(err).Msg("ingest router close failed")
	}
	<-errCh
	s.logger.Info().Msg("ingest router stopped")
	return ctx.Err()
}

func routerExit(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if err == nil {
		return errRouterStopped
	}
	return fmt.Errorf("ingest router failed: %w", err)
}

// String returns the service name for logging.
func (s *IngestService) String() string {
	return s.name
}
