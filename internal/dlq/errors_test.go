// Observability Hub - Event-Driven Observability Ingestion Pipeline
// Copyright 2026 Faruk Tunc (frktunc)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/frktunc/observability-hub

package dlq

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorCategoryString(t *testing.T) {
	tests := []struct {
		category ErrorCategory
		want     string
	}{
		{CategoryUnknown, "unknown"},
		{CategoryConnection, "connection"},
		{CategoryTimeout, "timeout"},
		{CategoryValidation, "validation"},
		{CategoryDatabase, "database"},
		{CategoryCapacity, "capacity"},
		{ErrorCategory(99), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.category.String(); got != tt.want {
			t.Errorf("ErrorCategory(%d).String() = %q, want %q", tt.category, got, tt.want)
		}
	}
}

func TestParseCategory(t *testing.T) {
	for _, c := range []ErrorCategory{
		CategoryConnection, CategoryTimeout, CategoryValidation, CategoryDatabase, CategoryCapacity,
	} {
		if got := ParseCategory(c.String()); got != c {
			t.Errorf("ParseCategory(%q) = %v, want %v", c.String(), got, c)
		}
	}
	if got := ParseCategory("weird"); got != CategoryUnknown {
		t.Errorf("ParseCategory(weird) = %v, want CategoryUnknown", got)
	}
}

func TestCategorizeFromText(t *testing.T) {
	tests := []struct {
		name    string
		message string
		cause   error
		want    ErrorCategory
	}{
		{"connection refused", "publish failed", errors.New("dial tcp: connection refused"), CategoryConnection},
		{"broken pipe", "write events", errors.New("broken pipe"), CategoryConnection},
		{"timeout", "flush batch", errors.New("context deadline exceeded"), CategoryTimeout},
		{"timed out", "await ack", errors.New("request timed out"), CategoryTimeout},
		{"malformed", "decode event", errors.New("malformed envelope"), CategoryValidation},
		{"database", "copy rows", errors.New("postgres: relation missing"), CategoryDatabase},
		{"capacity", "enqueue", errors.New("queue limit exceeded"), CategoryCapacity},
		{"unknown", "boom", errors.New("???"), CategoryUnknown},
		{"message only", "connection lost", nil, CategoryConnection},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewRetryableError(tt.message, tt.cause)
			if err.Category != tt.want {
				t.Errorf("category = %v, want %v", err.Category, tt.want)
			}
		})
	}
}

func TestNewPermanentErrorDefaultsToValidation(t *testing.T) {
	err := NewPermanentError("boom", errors.New("???"))
	if err.Category != CategoryValidation {
		t.Errorf("category = %v, want CategoryValidation", err.Category)
	}

	err = NewPermanentError("store rejected row", errors.New("constraint violated"))
	if err.Category != CategoryDatabase {
		t.Errorf("category = %v, want CategoryDatabase", err.Category)
	}
}

func TestErrorFormatting(t *testing.T) {
	re := NewRetryableError("flush batch", errors.New("connection reset"))
	if got, want := re.Error(), "flush batch: connection reset"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}

	pe := &PermanentError{Message: "no cause"}
	if got, want := pe.Error(), "no cause"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestIsRetryableError(t *testing.T) {
	base := NewRetryableError("flush", errors.New("timeout"))
	wrapped := fmt.Errorf("worker 3: %w", base)

	if !IsRetryableError(base) {
		t.Error("IsRetryableError(base) = false, want true")
	}
	if !IsRetryableError(wrapped) {
		t.Error("IsRetryableError(wrapped) = false, want true")
	}
	if IsRetryableError(errors.New("plain")) {
		t.Error("IsRetryableError(plain) = true, want false")
	}
	if IsRetryableError(nil) {
		t.Error("IsRetryableError(nil) = true, want false")
	}
}

func TestIsPermanentError(t *testing.T) {
	base := NewPermanentError("decode", errors.New("malformed"))
	wrapped := fmt.Errorf("message abc: %w", base)

	if !IsPermanentError(base) {
		t.Error("IsPermanentError(base) = false, want true")
	}
	if !IsPermanentError(wrapped) {
		t.Error("IsPermanentError(wrapped) = false, want true")
	}
	if IsPermanentError(NewRetryableError("x", nil)) {
		t.Error("retryable error reported as permanent")
	}
}

func TestCategoryOf(t *testing.T) {
	if got := CategoryOf(NewRetryableError("x", errors.New("timeout"))); got != CategoryTimeout {
		t.Errorf("CategoryOf(retryable) = %v, want CategoryTimeout", got)
	}
	if got := CategoryOf(NewPermanentErrorWithCategory(CategoryValidation, "x", nil)); got != CategoryValidation {
		t.Errorf("CategoryOf(permanent) = %v, want CategoryValidation", got)
	}
	if got := CategoryOf(errors.New("plain")); got != CategoryUnknown {
		t.Errorf("CategoryOf(plain) = %v, want CategoryUnknown", got)
	}
	if got := CategoryOf(nil); got != CategoryUnknown {
		t.Errorf("CategoryOf(nil) = %v, want CategoryUnknown", got)
	}
}

func TestUnwrap(t *testing.T) {
	cause := errors.New("root")
	if !errors.Is(NewRetryableError("x", cause), cause) {
		t.Error("retryable error does not unwrap to cause")
	}
	if !errors.Is(NewPermanentError("x", cause), cause) {
		t.Error("permanent error does not unwrap to cause")
	}
}
