// Observability Hub - Event-Driven Observability Ingestion Pipeline
// Copyright 2026 Faruk Tunc (frktunc)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/frktunc/observability-hub

package dedup

import (
	"context"
	"fmt"
	"time"

	"github.com/frktunc/observability-hub/internal/config"
	"github.com/frktunc/observability-hub/internal/logging"
)

// keyPrefix namespaces dedup marks in shared key/value stores.
const keyPrefix = "dedup:"

// Deduper answers whether an event ID has already been processed and records
// that it has been now. Implementations must be safe for concurrent use by
// all pipeline workers.
//
// Both operations are best-effort: an error means the backend could not
// answer, not that the event is a duplicate. Callers proceed as if the event
// were new; backends count the degradation themselves.
type Deduper interface {
	// IsDuplicate reports whether eventID carries a live dedup mark.
	IsDuplicate(ctx context.Context, eventID string) (bool, error)

	// MarkProcessed sets the dedup mark for eventID atomically (set-if-absent)
	// with the given TTL. Marking an already-marked ID is not an error.
	MarkProcessed(ctx context.Context, eventID string, ttl time.Duration) error

	// Ping verifies the backend is reachable.
	Ping(ctx context.Context) error

	// Close releases backend resources.
	Close() error
}

// New builds the Deduper selected by backend, one of the config.CacheBackend
// constants after resolution. The disabled backend yields a Noop deduper.
func New(cfg config.CacheConfig, backend string) (Deduper, error) {
	switch backend {
	case config.CacheBackendRedis:
		return NewRedis(cfg)
	case config.CacheBackendEmbedded:
		return NewBadger(cfg)
	case config.CacheBackendDisabled:
		return NewNoop(), nil
	default:
		return nil, fmt.Errorf("unknown cache backend %q", backend)
	}
}

// Noop is the disabled backend: every event is new, marks are dropped.
type Noop struct{}

// NewNoop returns a Deduper that never detects duplicates. The primary
// store's key constraint remains the only duplicate guard.
func NewNoop() *Noop {
	logging.Info().Msg("Dedup disabled, relying on store key constraint only")
	return &Noop{}
}

// IsDuplicate always reports false.
func (n *Noop) IsDuplicate(ctx context.Context, eventID string) (bool, error) {
	return false, nil
}

// MarkProcessed is a no-op.
func (n *Noop) MarkProcessed(ctx context.Context, eventID string, ttl time.Duration) error {
	return nil
}

// Ping always succeeds.
func (n *Noop) Ping(ctx context.Context) error { return nil }

// Close is a no-op.
func (n *Noop) Close() error { return nil }
