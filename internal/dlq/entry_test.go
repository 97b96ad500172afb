// Observability Hub - Event-Driven Observability Ingestion Pipeline
// Copyright 2026 Faruk Tunc (frktunc)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/frktunc/observability-hub

package dlq

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
)

var entryNow = time.Date(2024, 7, 1, 12, 0, 0, 0, time.UTC)

func zeroJitterPolicy(maxRetries int) *RetryPolicy {
	return NewRetryPolicyWithSeed(maxRetries, 2*time.Second, 5*time.Minute, 2.0, 0, 1)
}

func TestNewEntryRetryable(t *testing.T) {
	f := Failure{
		MessageID: "msg-1",
		EventID:   "3f0a1b2c-0000-4000-8000-000000000001",
		Subject:   "logs.api.created",
		Payload:   []byte(`{"eventId":"x"}`),
		Err:       NewRetryableError("flush batch", errors.New("connection refused")),
	}
	e := NewEntry(f, zeroJitterPolicy(5), entryNow)

	if e.ID == uuid.Nil {
		t.Error("ID not assigned")
	}
	if e.MessageID != "msg-1" || e.EventID != f.EventID || e.Subject != f.Subject {
		t.Errorf("identity fields not carried: %+v", e)
	}
	if string(e.Payload) != string(f.Payload) {
		t.Error("payload not carried")
	}
	if !e.Retryable {
		t.Error("Retryable = false, want true")
	}
	if e.Category != CategoryConnection {
		t.Errorf("Category = %v, want CategoryConnection", e.Category)
	}
	if e.ErrorMessage != "flush batch: connection refused" || e.LastError != e.ErrorMessage {
		t.Errorf("error text = %q / %q", e.ErrorMessage, e.LastError)
	}
	if e.MaxRetries != 5 {
		t.Errorf("MaxRetries = %d, want 5", e.MaxRetries)
	}
	if want := entryNow.Add(2 * time.Second); !e.NextRetryAt.Equal(want) {
		t.Errorf("NextRetryAt = %v, want %v", e.NextRetryAt, want)
	}
	if e.Resolved {
		t.Error("new entry marked resolved")
	}
	if e.LastRetryAt != nil {
		t.Error("LastRetryAt set before any attempt")
	}
}

func TestNewEntryPermanent(t *testing.T) {
	f := Failure{
		MessageID: "msg-2",
		Subject:   "metrics.api.request_rate",
		Payload:   []byte(`not json`),
		Err:       NewPermanentError("decode event", errors.New("malformed payload")),
	}
	e := NewEntry(f, zeroJitterPolicy(5), entryNow)

	if e.Retryable {
		t.Error("Retryable = true for permanent failure")
	}
	if !e.NextRetryAt.IsZero() {
		t.Errorf("NextRetryAt = %v, want zero", e.NextRetryAt)
	}
	if e.EventID != "" {
		t.Errorf("EventID = %q, want empty for undecodable payload", e.EventID)
	}
	if e.Category != CategoryValidation {
		t.Errorf("Category = %v, want CategoryValidation", e.Category)
	}
}

func TestMarkAttemptSuccess(t *testing.T) {
	p := zeroJitterPolicy(5)
	e := NewEntry(Failure{MessageID: "m", Err: NewRetryableError("flush", nil)}, p, entryNow)

	later := entryNow.Add(time.Minute)
	e.markAttempt(nil, p, later)

	if !e.Resolved {
		t.Error("Resolved = false after successful attempt")
	}
	if e.RetryCount != 1 {
		t.Errorf("RetryCount = %d, want 1", e.RetryCount)
	}
	if e.LastError != "" {
		t.Errorf("LastError = %q, want empty", e.LastError)
	}
	if e.LastRetryAt == nil || !e.LastRetryAt.Equal(later) {
		t.Errorf("LastRetryAt = %v, want %v", e.LastRetryAt, later)
	}
}

func TestMarkAttemptFailureReschedules(t *testing.T) {
	p := zeroJitterPolicy(5)
	e := NewEntry(Failure{MessageID: "m", Err: NewRetryableError("flush", nil)}, p, entryNow)

	later := entryNow.Add(time.Minute)
	e.markAttempt(NewRetryableError("still down", nil), p, later)

	if e.Resolved {
		t.Error("Resolved = true after failed attempt")
	}
	if e.RetryCount != 1 {
		t.Errorf("RetryCount = %d, want 1", e.RetryCount)
	}
	if e.LastError != "still down" {
		t.Errorf("LastError = %q", e.LastError)
	}
	// One prior failure doubles the backoff step.
	if want := later.Add(4 * time.Second); !e.NextRetryAt.Equal(want) {
		t.Errorf("NextRetryAt = %v, want %v", e.NextRetryAt, want)
	}
}

func TestMarkAttemptPermanentFailureStopsRetrying(t *testing.T) {
	p := zeroJitterPolicy(5)
	e := NewEntry(Failure{MessageID: "m", Err: NewRetryableError("flush", nil)}, p, entryNow)

	e.markAttempt(NewPermanentError("validation failed", nil), p, entryNow.Add(time.Minute))

	if e.Retryable {
		t.Error("Retryable = true after permanent replay failure")
	}
	if e.Resolved {
		t.Error("Resolved = true, want false")
	}
}

func TestMarkAttemptExhaustionKeepsSchedule(t *testing.T) {
	p := zeroJitterPolicy(2)
	e := NewEntry(Failure{MessageID: "m", Err: NewRetryableError("flush", nil)}, p, entryNow)

	e.markAttempt(NewRetryableError("down", nil), p, entryNow.Add(time.Minute))
	before := e.NextRetryAt
	e.markAttempt(NewRetryableError("down", nil), p, entryNow.Add(2*time.Minute))

	if !e.Exhausted() {
		t.Errorf("Exhausted() = false with RetryCount %d of %d", e.RetryCount, e.MaxRetries)
	}
	if !e.NextRetryAt.Equal(before) {
		t.Errorf("NextRetryAt advanced past budget: %v", e.NextRetryAt)
	}
}
