// Observability Hub - Event-Driven Observability Ingestion Pipeline
// Copyright 2026 Faruk Tunc (frktunc)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/frktunc/observability-hub

package dlq

import (
	"errors"
	"strings"
)

// ErrorCategory classifies a failure for routing and metrics.
type ErrorCategory int

const (
	CategoryUnknown ErrorCategory = iota
	CategoryConnection
	CategoryTimeout
	CategoryValidation
	CategoryDatabase
	CategoryCapacity
)

// String returns the category label used in metrics and dead letter rows.
func (c ErrorCategory) String() string {
	switch c {
	case CategoryConnection:
		return "connection"
	case CategoryTimeout:
		return "timeout"
	case CategoryValidation:
		return "validation"
	case CategoryDatabase:
		return "database"
	case CategoryCapacity:
		return "capacity"
	default:
		return "unknown"
	}
}

// ParseCategory maps a stored label back to its category. Unrecognized
// labels fall back to CategoryUnknown.
func ParseCategory(s string) ErrorCategory {
	switch s {
	case "connection":
		return CategoryConnection
	case "timeout":
		return CategoryTimeout
	case "validation":
		return CategoryValidation
	case "database":
		return CategoryDatabase
	case "capacity":
		return CategoryCapacity
	default:
		return CategoryUnknown
	}
}

// RetryableError marks a failure caused by transient infrastructure.
// Deliveries that hit one are redelivered or parked for auto retry.
type RetryableError struct {
	Message  string
	Cause    error
	Category ErrorCategory
}

// NewRetryableError wraps cause as retryable, inferring the category from
// the combined error text.
func NewRetryableError(message string, cause error) *RetryableError {
	return &RetryableError{
		Message:  message,
		Cause:    cause,
		Category: categorize(message, cause),
	}
}

// NewRetryableErrorWithCategory wraps cause as retryable under an explicit
// category, for callers that already know the failure class.
func NewRetryableErrorWithCategory(category ErrorCategory, message string, cause error) *RetryableError {
	return &RetryableError{Message: message, Cause: cause, Category: category}
}

func (e *RetryableError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *RetryableError) Unwrap() error { return e.Cause }

// PermanentError marks a failure that redelivery cannot fix, such as a
// payload that does not decode or validate. The message is quarantined and
// never retried automatically.
type PermanentError struct {
	Message  string
	Cause    error
	Category ErrorCategory
}

// NewPermanentError wraps cause as permanent. An unclassifiable cause
// defaults to CategoryValidation since poison input is the dominant source
// of permanent failures.
func NewPermanentError(message string, cause error) *PermanentError {
	category := categorize(message, cause)
	if category == CategoryUnknown {
		category = CategoryValidation
	}
	return &PermanentError{Message: message, Cause: cause, Category: category}
}

// NewPermanentErrorWithCategory wraps cause as permanent under an explicit
// category.
func NewPermanentErrorWithCategory(category ErrorCategory, message string, cause error) *PermanentError {
	return &PermanentError{Message: message, Cause: cause, Category: category}
}

func (e *PermanentError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *PermanentError) Unwrap() error { return e.Cause }

// IsRetryableError reports whether any error in the chain is retryable.
func IsRetryableError(err error) bool {
	var re *RetryableError
	return errors.As(err, &re)
}

// IsPermanentError reports whether any error in the chain is permanent.
func IsPermanentError(err error) bool {
	var pe *PermanentError
	return errors.As(err, &pe)
}

// CategoryOf extracts the category from a classified error chain, or
// CategoryUnknown when the error carries no classification.
func CategoryOf(err error) ErrorCategory {
	var re *RetryableError
	if errors.As(err, &re) {
		return re.Category
	}
	var pe *PermanentError
	if errors.As(err, &pe) {
		return pe.Category
	}
	return CategoryUnknown
}

// categorize infers a category from error text. It is a heuristic for
// errors that arrive unclassified; code that knows the failure class uses
// the WithCategory constructors instead.
func categorize(message string, cause error) ErrorCategory {
	text := strings.ToLower(message)
	if cause != nil {
		text += " " + strings.ToLower(cause.Error())
	}

	switch {
	case containsAny(text, "connection", "connect", "refused", "reset", "broken pipe", "network"):
		return CategoryConnection
	case containsAny(text, "timeout", "timed out", "deadline"):
		return CategoryTimeout
	case containsAny(text, "validation", "invalid", "malformed", "parse", "decode"):
		return CategoryValidation
	case containsAny(text, "database", "postgres", "sql", "query", "constraint"):
		return CategoryDatabase
	case containsAny(text, "capacity", "too many", "full", "limit", "exceeded", "overflow"):
		return CategoryCapacity
	default:
		return CategoryUnknown
	}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
