// NotifyRank - Notification Engagement Scoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/notifyrank

package database

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/tomtom215/notifyrank/internal/config"
	"github.com/tomtom215/notifyrank/internal/models"
)

// testDBSemaphore limits concurrent database creation to prevent resource exhaustion in CI.
// Setting to 1 fully serializes database use across parallel tests.
var testDBSemaphore = make(chan struct{}, 1)

// setupTestDB creates a new in-memory test database. The semaphore is held
// for the entire test lifecycle and released via t.Cleanup.
func setupTestDB(t *testing.T) *DB {
	t.Helper()

	testDBSemaphore <- struct{}{}
	t.Cleanup(func() {
		<-testDBSemaphore
	})

	db, err := New(&config.DatabaseConfig{
		Path:      ":memory:",
		MaxMemory: "512MB",
		Threads:   1,
	})
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Logf("close: %v", err)
		}
	})
	return db
}

// insertTestNotification stores a notification for userID from app posted at postTime.
func insertTestNotification(t *testing.T, db *DB, userID int64, app string, postTime time.Time) models.NotificationEvent {
	t.Helper()
	n, err := db.InsertNotification(context.Background(), models.NotificationEvent{
		UserID:   userID,
		App:      app,
		NotifKey: "key",
		PostTime: postTime,
		Title:    "Title",
		Text:     "Body",
	})
	if err != nil {
		t.Fatalf("InsertNotification: %v", err)
	}
	return n
}

func TestNewCreatesSchema(t *testing.T) {
	t.Parallel()
	db := setupTestDB(t)

	ctx := context.Background()
	if err := db.Ping(ctx); err != nil {
		t.Fatalf("Ping: %v", err)
	}

	for _, table := range []string{"apps", "notifications", "interactions",
		"user_notification_states", "daily_aggregates", "training_runs"} {
		var count int
		err := db.Conn().QueryRowContext(ctx,
			"SELECT COUNT(*) FROM information_schema.tables WHERE table_name = ?", table).Scan(&count)
		if err != nil {
			t.Fatalf("query %s: %v", table, err)
		}
		if count != 1 {
			t.Errorf("table %s missing", table)
		}
	}

	// Idempotent schema creation.
	if err := db.createSchema(); err != nil {
		t.Errorf("createSchema second run: %v", err)
	}
}

func TestNewFileDatabaseCreatesDirectory(t *testing.T) {
	t.Parallel()

	testDBSemaphore <- struct{}{}
	defer func() { <-testDBSemaphore }()

	path := filepath.Join(t.TempDir(), "nested", "notifyrank.duckdb")
	db, err := New(&config.DatabaseConfig{Path: path, MaxMemory: "256MB", Threads: 1})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := db.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
}

func TestIsTransactionConflict(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{errors.New("TransactionContext Error: Transaction conflict: cannot update"), true},
		{errors.New("Conflict on update!"), true},
		{errors.New("Constraint Error: duplicate key"), false},
	}
	for _, tt := range tests {
		if got := isTransactionConflict(tt.err); got != tt.want {
			t.Errorf("isTransactionConflict(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}

func TestEnsureContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := ensureContext(context.Background())
	defer cancel()
	if _, ok := ctx.Deadline(); !ok {
		t.Error("expected default deadline")
	}

	parent, parentCancel := context.WithTimeout(context.Background(), time.Minute)
	defer parentCancel()
	want, _ := parent.Deadline()
	ctx2, cancel2 := ensureContext(parent)
	defer cancel2()
	if got, _ := ctx2.Deadline(); !got.Equal(want) {
		t.Errorf("deadline = %v, want caller deadline %v", got, want)
	}
}
