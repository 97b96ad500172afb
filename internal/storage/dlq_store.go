// Observability Hub - Event-Driven Observability Ingestion Pipeline
// Copyright 2026 Faruk Tunc (frktunc)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/frktunc/observability-hub

package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/frktunc/observability-hub/internal/dlq"
)

// DLQStore implements dlq.Store on the shared pool. Quarantined messages
// live in dead_letter_events, keyed by message_id; event_id is text because
// a payload that failed validation may carry a malformed one.
type DLQStore struct {
	store *Store
}

// NewDLQStore returns the dead letter table accessor.
func NewDLQStore(s *Store) *DLQStore {
	return &DLQStore{store: s}
}

const dlqColumns = `
	id, message_id, event_id, subject, payload, error_message, last_error,
	category, retryable, retry_count, max_retries, first_failure_at,
	last_retry_at, next_retry_at, resolved`

// Save inserts a quarantine row. A redelivered message that fails again
// refreshes its existing row's error state and schedule instead of
// duplicating it; the original failure record is preserved.
func (d *DLQStore) Save(ctx context.Context, e *dlq.Entry) error {
	_, err := d.store.pool.Exec(ctx, `
		INSERT INTO dead_letter_events (`+dlqColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (message_id) DO UPDATE SET
			last_error    = EXCLUDED.last_error,
			category      = EXCLUDED.category,
			retryable     = EXCLUDED.retryable,
			next_retry_at = EXCLUDED.next_retry_at,
			resolved      = FALSE`,
		e.ID, e.MessageID, textOrNil(e.EventID), e.Subject, e.Payload,
		e.ErrorMessage, e.LastError, e.Category.String(), e.Retryable,
		e.RetryCount, e.MaxRetries, e.FirstFailureAt,
		e.LastRetryAt, timeOrNil(e.NextRetryAt), e.Resolved,
	)
	if err != nil {
		return Classify("save dead letter entry", err)
	}
	return nil
}

// Update rewrites the retry bookkeeping of an existing entry.
func (d *DLQStore) Update(ctx context.Context, e *dlq.Entry) error {
	tag, err := d.store.pool.Exec(ctx, `
		UPDATE dead_letter_events SET
			last_error    = $2,
			retryable     = $3,
			retry_count   = $4,
			last_retry_at = $5,
			next_retry_at = $6,
			resolved      = $7
		WHERE message_id = $1`,
		e.MessageID, e.LastError, e.Retryable, e.RetryCount,
		e.LastRetryAt, timeOrNil(e.NextRetryAt), e.Resolved,
	)
	if err != nil {
		return Classify("update dead letter entry", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("dead letter entry not found: %s", e.MessageID)
	}
	return nil
}

// Get returns the entry for a message, or nil when none exists.
func (d *DLQStore) Get(ctx context.Context, messageID string) (*dlq.Entry, error) {
	row := d.store.pool.QueryRow(ctx, `
		SELECT `+dlqColumns+`
		FROM dead_letter_events
		WHERE message_id = $1`,
		messageID,
	)
	e, err := scanDLQEntry(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, Classify("get dead letter entry", err)
	}
	return e, nil
}

// PendingRetries lists unresolved retryable entries due at or before the
// given time, oldest schedule first.
func (d *DLQStore) PendingRetries(ctx context.Context, before time.Time, limit int) ([]*dlq.Entry, error) {
	rows, err := d.store.pool.Query(ctx, `
		SELECT `+dlqColumns+`
		FROM dead_letter_events
		WHERE resolved = FALSE
		  AND retryable = TRUE
		  AND retry_count < max_retries
		  AND next_retry_at IS NOT NULL
		  AND next_retry_at <= $1
		ORDER BY next_retry_at
		LIMIT $2`,
		before, limit,
	)
	if err != nil {
		return nil, Classify("scan pending retries", err)
	}
	defer rows.Close()

	var entries []*dlq.Entry
	for rows.Next() {
		e, err := scanDLQEntry(rows)
		if err != nil {
			return nil, Classify("scan pending retries", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, Classify("scan pending retries", err)
	}
	return entries, nil
}

// UnresolvedStats returns the quarantine depth and the first failure time
// of the oldest unresolved entry.
func (d *DLQStore) UnresolvedStats(ctx context.Context) (int64, time.Time, error) {
	var (
		pending int64
		oldest  *time.Time
	)
	err := d.store.pool.QueryRow(ctx, `
		SELECT COUNT(*), MIN(first_failure_at)
		FROM dead_letter_events
		WHERE resolved = FALSE`,
	).Scan(&pending, &oldest)
	if err != nil {
		return 0, time.Time{}, Classify("dead letter stats", err)
	}
	if oldest == nil {
		return pending, time.Time{}, nil
	}
	return pending, *oldest, nil
}

// DeleteResolved removes resolved entries whose resolution is older than
// the given time.
func (d *DLQStore) DeleteResolved(ctx context.Context, olderThan time.Time) (int64, error) {
	tag, err := d.store.pool.Exec(ctx, `
		DELETE FROM dead_letter_events
		WHERE resolved = TRUE
		  AND COALESCE(last_retry_at, first_failure_at) < $1`,
		olderThan,
	)
	if err != nil {
		return 0, Classify("delete resolved dead letter entries", err)
	}
	return tag.RowsAffected(), nil
}

func scanDLQEntry(row pgx.Row) (*dlq.Entry, error) {
	var (
		e           dlq.Entry
		eventID     *string
		category    string
		nextRetryAt *time.Time
	)
	err := row.Scan(
		&e.ID, &e.MessageID, &eventID, &e.Subject, &e.Payload,
		&e.ErrorMessage, &e.LastError, &category, &e.Retryable,
		&e.RetryCount, &e.MaxRetries, &e.FirstFailureAt,
		&e.LastRetryAt, &nextRetryAt, &e.Resolved,
	)
	if err != nil {
		return nil, err
	}
	if eventID != nil {
		e.EventID = *eventID
	}
	if nextRetryAt != nil {
		e.NextRetryAt = *nextRetryAt
	}
	e.Category = dlq.ParseCategory(category)
	return &e, nil
}

func timeOrNil(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}
