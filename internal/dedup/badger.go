// Observability Hub - Event-Driven Observability Ingestion Pipeline
// Copyright 2026 Faruk Tunc (frktunc)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/frktunc/observability-hub

package dedup

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/frktunc/observability-hub/internal/config"
	"github.com/frktunc/observability-hub/internal/logging"
	"github.com/frktunc/observability-hub/internal/metrics"
)

// Badger is the embedded backend for single-instance deployments. Marks are
// plain keys with a Badger-native TTL; expiry happens during compaction, so
// no sweeper is needed.
type Badger struct {
	db *badger.DB
}

// NewBadger opens (or creates) the BadgerDB at cfg.Path.
func NewBadger(cfg config.CacheConfig) (*Badger, error) {
	opts := badger.DefaultOptions(cfg.Path)
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open BadgerDB: %w", err)
	}

	logging.Info().Str("path", cfg.Path).Msg("Embedded dedup cache opened")
	return &Badger{db: db}, nil
}

// IsDuplicate reports whether a live mark exists for eventID. Expired keys
// read as not found.
func (b *Badger) IsDuplicate(ctx context.Context, eventID string) (bool, error) {
	var found bool
	err := b.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get([]byte(keyPrefix + eventID))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		return nil
	})
	if err != nil {
		metrics.RecordCacheError(cacheName)
		return false, fmt.Errorf("dedup lookup: %w", err)
	}
	if found {
		metrics.RecordCacheHit(cacheName)
		return true, nil
	}
	metrics.RecordCacheMiss(cacheName)
	return false, nil
}

// MarkProcessed writes the mark with the given TTL. Overwriting an existing
// mark only refreshes its TTL, which preserves set-if-absent semantics for
// duplicate detection.
func (b *Badger) MarkProcessed(ctx context.Context, eventID string, ttl time.Duration) error {
	err := b.db.Update(func(txn *badger.Txn) error {
		e := badger.NewEntry([]byte(keyPrefix+eventID), []byte{1}).WithTTL(ttl)
		return txn.SetEntry(e)
	})
	if err != nil {
		metrics.RecordCacheError(cacheName)
		return fmt.Errorf("dedup mark: %w", err)
	}
	return nil
}

// Ping reports whether the database is open.
func (b *Badger) Ping(ctx context.Context) error {
	if b.db.IsClosed() {
		return errors.New("dedup cache is closed")
	}
	return nil
}

// Close closes the database. Pending compactions are flushed.
func (b *Badger) Close() error {
	return b.db.Close()
}
