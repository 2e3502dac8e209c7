// NotifyRank - Notification Engagement Scoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/notifyrank

package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/tomtom215/notifyrank/internal/config"
)

func TestTrainLimitSharedAcrossTriggers(t *testing.T) {
	t.Parallel()

	deps := testDeps()
	trainer := deps.Trainer.(*fakeTrainer)
	h := NewHandler(config.TrainingConfig{TriggerRate: 1, TriggerBurst: 1}, deps)
	mwCfg := DefaultChiMiddlewareConfig()
	mwCfg.RateLimitDisabled = true
	router := NewRouter(h, NewChiMiddleware(mwCfg)).SetupChi()

	rec, _ := doRequest(t, router, http.MethodPost, "/api/v1/model/train", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("first trigger status = %d", rec.Code)
	}

	// The bucket is shared, so a per-user trigger is rejected too.
	rec, resp := doRequest(t, router, http.MethodPost, "/api/v1/users/7/retrain", "")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second trigger status = %d", rec.Code)
	}
	if resp.Error == nil || resp.Error.Code != ErrCodeTooManyRequests {
		t.Errorf("error = %+v", resp.Error)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("missing Retry-After")
	}

	// Reads are not limited.
	rec, _ = doRequest(t, router, http.MethodGet, "/api/v1/users/7/retrain", "")
	if rec.Code != http.StatusOK {
		t.Errorf("decision status = %d", rec.Code)
	}

	trainer.mu.Lock()
	defer trainer.mu.Unlock()
	if trainer.calls != 1 {
		t.Errorf("TrainNow calls = %d, want 1", trainer.calls)
	}
}

func TestNewHandlerTriggerDefaults(t *testing.T) {
	t.Parallel()

	h := NewHandler(config.TrainingConfig{}, Deps{})
	if got := float64(h.trainLimiter.Limit()); got != 2.0/60 {
		t.Errorf("limit = %v, want 2/min", got)
	}
	if h.trainLimiter.Burst() != 1 {
		t.Errorf("burst = %d", h.trainLimiter.Burst())
	}
	if h.version != "dev" {
		t.Errorf("version = %q", h.version)
	}
}

func TestRateLimit(t *testing.T) {
	t.Parallel()

	mw := NewChiMiddleware(&ChiMiddlewareConfig{
		RateLimitRequests: 2,
		RateLimitWindow:   time.Minute,
	})
	handler := mw.RateLimit()(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/model/info", nil)
		req.RemoteAddr = "192.0.2.10:5000"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
		if rec.Code == http.StatusTooManyRequests && !strings.Contains(rec.Body.String(), ErrCodeTooManyRequests) {
			t.Errorf("429 body = %q", rec.Body.String())
		}
	}
	if codes[0] != http.StatusNoContent || codes[1] != http.StatusNoContent || codes[2] != http.StatusTooManyRequests {
		t.Errorf("codes = %v", codes)
	}
}

func TestRateLimitDisabled(t *testing.T) {
	t.Parallel()

	mw := NewChiMiddleware(&ChiMiddlewareConfig{RateLimitRequests: 1, RateLimitWindow: time.Minute, RateLimitDisabled: true})
	handler := mw.RateLimit()(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	for i := 0; i < 5; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		if rec.Code != http.StatusNoContent {
			t.Fatalf("request %d status = %d", i, rec.Code)
		}
	}
}

func TestChiMiddlewareConfigFrom(t *testing.T) {
	t.Parallel()

	cfg := ChiMiddlewareConfigFrom(&config.SecurityConfig{
		RateLimitReqs:   30,
		RateLimitWindow: 10 * time.Second,
		CORSOrigins:     []string{"https://dash.example.com"},
	})
	if cfg.RateLimitRequests != 30 || cfg.RateLimitWindow != 10*time.Second {
		t.Errorf("rate limit = %d/%v", cfg.RateLimitRequests, cfg.RateLimitWindow)
	}
	if len(cfg.CORSAllowedOrigins) != 1 || cfg.CORSAllowedOrigins[0] != "https://dash.example.com" {
		t.Errorf("origins = %v", cfg.CORSAllowedOrigins)
	}

	defaults := ChiMiddlewareConfigFrom(&config.SecurityConfig{})
	if defaults.RateLimitRequests != 100 || len(defaults.CORSAllowedOrigins) != 1 || defaults.CORSAllowedOrigins[0] != "*" {
		t.Errorf("defaults = %+v", defaults)
	}
}

func TestCORSPreflight(t *testing.T) {
	t.Parallel()

	h := NewHandler(config.TrainingConfig{}, testDeps())
	mw := NewChiMiddleware(ChiMiddlewareConfigFrom(&config.SecurityConfig{
		CORSOrigins:       []string{"https://dash.example.com"},
		RateLimitDisabled: true,
	}))
	router := NewRouter(h, mw).SetupChi()

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/score", nil)
	req.Header.Set("Origin", "https://dash.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://dash.example.com" {
		t.Errorf("Allow-Origin = %q", got)
	}
}

func TestResponseCarriesRequestID(t *testing.T) {
	t.Parallel()

	router := newTestRouter(testDeps())
	req := httptest.NewRequest(http.MethodGet, "/api/v1/health/live", nil)
	req.Header.Set("X-Request-ID", "client-123")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if got := rec.Header().Get("X-Request-ID"); got != "client-123" {
		t.Errorf("X-Request-ID = %q", got)
	}
	if cc := rec.Header().Get("Cache-Control"); cc != "no-store" {
		t.Errorf("Cache-Control = %q", cc)
	}
}
