// NotifyRank - Notification Engagement Scoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/notifyrank

package kvstore

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/tomtom215/notifyrank/internal/metrics"
)

// ErrClosed is returned by operations on a closed store.
var ErrClosed = errors.New("kvstore closed")

// Entry is a cached value with the time it was written.
type Entry struct {
	Value    []byte    `json:"value"`
	StoredAt time.Time `json:"stored_at"`
}

// Store is a BadgerDB-backed key/value cache with per-entry TTLs.
// It is shared between processes through the badger directory, or kept in
// memory when no path is configured.
type Store struct {
	db     *badger.DB
	prefix string
	closed bool
	mu     sync.RWMutex
}

// Open opens a store at path. An empty path runs badger in memory.
func Open(path, prefix string) (*Store, error) {
	opts := badger.DefaultOptions(path)
	if path == "" {
		opts = opts.WithInMemory(true)
	}
	opts.Logger = nil // Suppress BadgerDB logs

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger db: %w", err)
	}
	return New(db, prefix), nil
}

// New wraps an already opened badger database. prefix namespaces keys.
func New(db *badger.DB, prefix string) *Store {
	return &Store{db: db, prefix: prefix}
}

func (s *Store) makeKey(key string) []byte {
	return []byte(s.prefix + key)
}

// Get returns the entry for key. ok is false when the key is missing or expired.
func (s *Store) Get(ctx context.Context, key string) (entry Entry, ok bool, err error) {
	if err := s.check(ctx); err != nil {
		return Entry{}, false, err
	}

	err = s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(s.makeKey(key))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		ok = true
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &entry)
		})
	})
	if err != nil {
		return Entry{}, false, fmt.Errorf("get %s: %w", key, err)
	}
	metrics.RecordCacheLookup("kvstore", ok)
	return entry, ok, nil
}

// Set stores value under key. A positive ttl expires the entry.
func (s *Store) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := s.check(ctx); err != nil {
		return err
	}

	data, err := json.Marshal(Entry{Value: value, StoredAt: time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("marshal entry: %w", err)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		e := badger.NewEntry(s.makeKey(key), data)
		if ttl > 0 {
			e = e.WithTTL(ttl)
		}
		return txn.SetEntry(e)
	})
	if err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

// Delete removes key. Deleting a missing key is not an error.
func (s *Store) Delete(ctx context.Context, key string) error {
	if err := s.check(ctx); err != nil {
		return err
	}

	err := s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Delete(s.makeKey(key)); err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	metrics.CacheInvalidations.WithLabelValues("kvstore").Inc()
	return nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

func (s *Store) check(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}
	return nil
}
