// Observability Hub - Event-Driven Observability Ingestion Pipeline
// Copyright 2026 Faruk Tunc (frktunc)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/frktunc/observability-hub

package dlq

import (
	"time"

	"github.com/google/uuid"
)

// Failure describes one message the pipeline could not process. EventID is
// empty when the payload never decoded far enough to yield one.
type Failure struct {
	MessageID string
	EventID   string
	Subject   string
	Payload   []byte
	Err       error
}

// Entry is one quarantined message. Entries are keyed by MessageID so a
// redelivered message that fails again updates its existing row instead of
// creating a second one.
type Entry struct {
	ID             uuid.UUID
	MessageID      string
	EventID        string
	Subject        string
	Payload        []byte
	ErrorMessage   string
	LastError      string
	Category       ErrorCategory
	Retryable      bool
	RetryCount     int
	MaxRetries     int
	FirstFailureAt time.Time
	LastRetryAt    *time.Time
	NextRetryAt    time.Time
	Resolved       bool
}

// NewEntry builds the quarantine row for a failure. Retryable failures get a
// first retry slot one backoff step out; permanent ones are parked with no
// schedule.
func NewEntry(f Failure, policy *RetryPolicy, now time.Time) *Entry {
	e := &Entry{
		ID:             uuid.New(),
		MessageID:      f.MessageID,
		EventID:        f.EventID,
		Subject:        f.Subject,
		Payload:        f.Payload,
		Category:       CategoryOf(f.Err),
		Retryable:      !IsPermanentError(f.Err),
		MaxRetries:     policy.MaxRetries,
		FirstFailureAt: now,
	}
	if f.Err != nil {
		e.ErrorMessage = f.Err.Error()
		e.LastError = e.ErrorMessage
	}
	if e.Retryable {
		e.NextRetryAt = now.Add(policy.CalculateBackoff(0))
	}
	return e
}

// Exhausted reports whether the entry has used up its retry budget.
func (e *Entry) Exhausted() bool {
	return e.RetryCount >= e.MaxRetries
}

// markAttempt records the outcome of one replay attempt and schedules the
// next one when the policy allows it.
func (e *Entry) markAttempt(err error, policy *RetryPolicy, now time.Time) {
	at := now
	e.LastRetryAt = &at
	e.RetryCount++

	if err == nil {
		e.Resolved = true
		e.LastError = ""
		return
	}

	e.LastError = err.Error()
	if IsPermanentError(err) {
		// A replay that fails permanently will fail the same way forever.
		e.Retryable = false
		return
	}
	if e.RetryCount < e.MaxRetries {
		e.NextRetryAt = now.Add(policy.CalculateBackoff(e.RetryCount))
	}
}
