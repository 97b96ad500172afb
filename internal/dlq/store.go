// Observability Hub - Event-Driven Observability Ingestion Pipeline
// Copyright 2026 Faruk Tunc (frktunc)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/frktunc/observability-hub

package dlq

import (
	"context"
	"time"
)

// Store persists dead letter entries. The Postgres implementation lives in
// the storage package; this interface keeps the dead letter logic free of
// driver types.
type Store interface {
	// Save inserts the entry, or refreshes the existing row when the same
	// MessageID was quarantined before.
	Save(ctx context.Context, e *Entry) error

	// Update rewrites the mutable fields of an existing entry.
	Update(ctx context.Context, e *Entry) error

	// Get returns the entry for a message, or nil when none exists.
	Get(ctx context.Context, messageID string) (*Entry, error)

	// PendingRetries lists unresolved retryable entries whose NextRetryAt
	// is at or before the given time, oldest schedule first, capped at
	// limit rows.
	PendingRetries(ctx context.Context, before time.Time, limit int) ([]*Entry, error)

	// UnresolvedStats returns the number of unresolved entries and the
	// first failure time of the oldest one. The zero time means the
	// quarantine is empty.
	UnresolvedStats(ctx context.Context) (pending int64, oldest time.Time, err error)

	// DeleteResolved removes resolved entries older than the given time
	// and returns how many rows went away.
	DeleteResolved(ctx context.Context, olderThan time.Time) (int64, error)
}
