// Observability Hub - Event-Driven Observability Ingestion Pipeline
// Copyright 2026 Faruk Tunc (frktunc)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/frktunc/observability-hub

// Package validation enforces the event envelope and payload rules using
// go-playground/validator v10.
//
// This package wraps the go-playground/validator library behind a Validator
// that is configured once at startup and then applied to every decoded
// event. Structural rules live as struct tags on the event types; semantic
// rules that need runtime configuration (supported schema major, clock skew
// tolerance) are applied in code after the structural pass.
//
// # Overview
//
// The package provides:
//   - Thread-safe singleton validator (initialized once, cached struct info)
//   - Custom validators for event types, trace/span identifiers, and metric
//     names and values
//   - Stable failure codes for dead-letter classification
//   - Field paths in wire format ("metadata.priority", "data.message")
//   - Batch validation without short-circuiting
//
// # Quick Start
//
//	v := validation.New(cfg.Validation.SchemaMajor, cfg.Validation.ClockSkewTolerance)
//
//	e, err := event.Decode(payload)
//	if err != nil {
//	    // malformed input, dead-letter with the decode error
//	}
//
//	if err := v.Validate(e); err != nil {
//	    verr, _ := validation.AsValidationError(err)
//	    // verr.Field, verr.Code, verr.Message -> dead-letter row
//	    return
//	}
//
//	// proceed with valid event
//
// # Failure Codes
//
// Every violation carries one of five stable codes:
//
//	VE_Required           missing mandatory field
//	VE_Format             malformed value (UUID, semver, trace ID, ...)
//	VE_Range              numeric or length bound violation
//	VE_Enum               value outside its allowed set
//	VE_UnsupportedVersion schema major version not accepted
//
// Codes are persisted in dead-letter rows and exposed as a label on the
// validation metrics, so they must remain stable across releases.
//
// # Envelope Rules
//
// Applied to every event regardless of family:
//   - eventId, correlationId: canonical UUIDv4; causationId when present
//   - eventType: family.entity.action, family one of log, metrics, trace
//   - schemaVersion: semver, major version must match the configured value
//   - timestamp: at most the configured tolerance in the future
//   - source.service and source.version required, version semver
//   - metadata.priority: one of critical, high, normal, low
//   - metadata.environment when present: production, staging, development,
//     testing
//   - tracing.traceId: 16 or 32 hex characters; span IDs 16 hex characters
//
// # Payload Rules
//
// Log events:
//   - level: one of TRACE, DEBUG, INFO, WARN, ERROR, FATAL
//   - message: 1 to 32768 characters
//   - timestamp required
//
// Metrics events:
//   - name: starts with a letter, at most 255 characters of letters,
//     digits, dots, and underscores
//   - type: one of counter, gauge, histogram, summary, timer
//   - value: JSON number or aggregate object with sum and count
//   - timestamp required
//
// Trace events:
//   - traceId, spanId, operationName, startTime required
//   - endTime when present must not precede startTime
//   - duration when present must not be negative
//
// # Disposition
//
// Validation failures are terminal. The pipeline dead-letters the event and
// acknowledges the delivery; redelivery would fail identically. Transient
// failures (store, cache, broker) never surface as ValidationError.
//
// # Thread Safety
//
// The underlying validator instance is a singleton guarded by sync.Once.
// Validator values are immutable after New and safe for concurrent use from
// every worker goroutine.
//
// # Performance
//
// Struct reflection metadata is cached by the underlying library:
//   - First validation of a struct type: ~1ms (reflection + caching)
//   - Subsequent validations: ~10us (cached)
//
// Regular expressions for custom rules are compiled at package init, never
// per event.
//
// # See Also
//
//   - internal/event: envelope and payload types carrying the struct tags
//   - internal/pipeline: disposition of validation failures
//   - github.com/go-playground/validator/v10: underlying library
package validation
