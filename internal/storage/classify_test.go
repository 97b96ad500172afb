// Observability Hub - Event-Driven Observability Ingestion Pipeline
// Copyright 2026 Faruk Tunc (frktunc)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/frktunc/observability-hub

package storage

import (
	"context"
	"errors"
	"io"
	"net"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/frktunc/observability-hub/internal/dlq"
)

func TestClassifyNil(t *testing.T) {
	if err := Classify("op", nil); err != nil {
		t.Errorf("Classify(nil) = %v, want nil", err)
	}
}

func TestClassifyPgErrorCodes(t *testing.T) {
	tests := []struct {
		name          string
		code          string
		wantRetryable bool
		wantCategory  dlq.ErrorCategory
	}{
		{"connection_failure", "08006", true, dlq.CategoryConnection},
		{"connection_does_not_exist", "08003", true, dlq.CategoryConnection},
		{"admin_shutdown", "57P01", true, dlq.CategoryConnection},
		{"too_many_connections", "53300", true, dlq.CategoryCapacity},
		{"disk_full", "53100", true, dlq.CategoryCapacity},
		{"serialization_failure", "40001", true, dlq.CategoryDatabase},
		{"deadlock_detected", "40P01", true, dlq.CategoryDatabase},
		{"read_only_sql_transaction", "25006", true, dlq.CategoryDatabase},
		{"invalid_text_representation", "22P02", false, dlq.CategoryDatabase},
		{"not_null_violation", "23502", false, dlq.CategoryDatabase},
		{"unique_violation", "23505", false, dlq.CategoryDatabase},
		{"undefined_table", "42P01", false, dlq.CategoryDatabase},
		{"internal_error", "XX000", true, dlq.CategoryDatabase},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Classify("flush", &pgconn.PgError{Code: tt.code, Message: "boom"})
			if got := dlq.IsRetryableError(err); got != tt.wantRetryable {
				t.Errorf("retryable = %v, want %v", got, tt.wantRetryable)
			}
			if got := dlq.CategoryOf(err); got != tt.wantCategory {
				t.Errorf("category = %v, want %v", got, tt.wantCategory)
			}
		})
	}
}

func TestClassifyContextErrors(t *testing.T) {
	for _, cause := range []error{context.DeadlineExceeded, context.Canceled} {
		err := Classify("flush", cause)
		if !dlq.IsRetryableError(err) {
			t.Errorf("Classify(%v) not retryable", cause)
		}
		if got := dlq.CategoryOf(err); got != dlq.CategoryTimeout {
			t.Errorf("Classify(%v) category = %v, want CategoryTimeout", cause, got)
		}
		if !errors.Is(err, cause) {
			t.Errorf("Classify(%v) does not unwrap to cause", cause)
		}
	}
}

func TestClassifyNetworkErrors(t *testing.T) {
	opErr := &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("refused")}
	for _, cause := range []error{opErr, io.EOF, io.ErrUnexpectedEOF} {
		err := Classify("flush", cause)
		if !dlq.IsRetryableError(err) {
			t.Errorf("Classify(%v) not retryable", cause)
		}
		if got := dlq.CategoryOf(err); got != dlq.CategoryConnection {
			t.Errorf("Classify(%v) category = %v, want CategoryConnection", cause, got)
		}
	}
}

func TestClassifyUnknownStaysRetryable(t *testing.T) {
	err := Classify("flush", errors.New("something odd"))
	if !dlq.IsRetryableError(err) {
		t.Error("unknown error classified as permanent")
	}
}

func TestIsUniqueViolation(t *testing.T) {
	if !IsUniqueViolation(&pgconn.PgError{Code: "23505"}) {
		t.Error("IsUniqueViolation(23505) = false")
	}
	if IsUniqueViolation(&pgconn.PgError{Code: "23502"}) {
		t.Error("IsUniqueViolation(23502) = true")
	}
	if IsUniqueViolation(errors.New("plain")) {
		t.Error("IsUniqueViolation(plain) = true")
	}
}
