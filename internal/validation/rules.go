// Observability Hub - Event-Driven Observability Ingestion Pipeline
// Copyright 2026 Faruk Tunc (frktunc)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/frktunc/observability-hub

package validation

import (
	"fmt"
	"time"

	"github.com/frktunc/observability-hub/internal/event"
)

// Validator applies envelope and payload rules for a single supported schema
// major version. All rules are compiled before the first event arrives, so
// Validate performs no allocation-heavy setup on the hot path. A Validator
// is immutable after construction and safe for concurrent use.
type Validator struct {
	schemaMajor int
	clockSkew   time.Duration
	now         func() time.Time
}

// New builds a Validator that accepts events whose schemaVersion carries the
// given major version and whose timestamp lies no further than clockSkew in
// the future.
func New(schemaMajor int, clockSkew time.Duration) *Validator {
	getValidator()
	return &Validator{
		schemaMajor: schemaMajor,
		clockSkew:   clockSkew,
		now:         time.Now,
	}
}

// Validate checks e against every envelope and payload rule and returns the
// first violation as a *ValidationError, or nil when the event is valid.
// Violations are terminal: callers dead-letter the event rather than retry.
func (v *Validator) Validate(e *event.Event) error {
	if e == nil {
		return &ValidationError{Field: "event", Code: CodeRequired, Message: "event is required"}
	}

	if err := checkStruct(e, ""); err != nil {
		return err
	}

	major, err := e.SchemaMajor()
	if err != nil {
		return &ValidationError{
			Field:   "schemaVersion",
			Code:    CodeFormat,
			Message: "schemaVersion must be a semantic version in MAJOR.MINOR.PATCH form",
		}
	}
	if major != v.schemaMajor {
		return &ValidationError{
			Field:   "schemaVersion",
			Code:    CodeUnsupportedVersion,
			Message: fmt.Sprintf("schema major version %d is not supported, this collector accepts %d", major, v.schemaMajor),
		}
	}

	if limit := v.now().Add(v.clockSkew); e.Timestamp.After(limit) {
		return &ValidationError{
			Field:   "timestamp",
			Code:    CodeRange,
			Message: fmt.Sprintf("timestamp %s is more than %s in the future", e.Timestamp.Format(time.RFC3339Nano), v.clockSkew),
		}
	}

	switch e.Family() {
	case event.FamilyLog:
		return v.validateLog(e)
	case event.FamilyMetrics:
		return v.validateMetrics(e)
	case event.FamilyTrace:
		return v.validateTrace(e)
	}

	// The eventtype rule admits only known families, so this is unreachable
	// for events that passed the envelope check.
	return &ValidationError{
		Field:   "eventType",
		Code:    CodeFormat,
		Message: fmt.Sprintf("eventType %q does not belong to a known family", e.EventType),
	}
}

// ValidateBatch validates every event independently and returns one result
// per input in order. A nil entry means the event at that index is valid.
// Invalid events never prevent later events in the batch from being checked.
func (v *Validator) ValidateBatch(events []*event.Event) []error {
	results := make([]error, len(events))
	for i, e := range events {
		results[i] = v.Validate(e)
	}
	return results
}

func (v *Validator) validateLog(e *event.Event) error {
	if e.Log == nil {
		return missingPayload()
	}
	return checkStruct(e.Log, "data.")
}

func (v *Validator) validateMetrics(e *event.Event) error {
	if e.Metrics == nil {
		return missingPayload()
	}
	return checkStruct(e.Metrics, "data.")
}

func (v *Validator) validateTrace(e *event.Event) error {
	if e.Trace == nil {
		return missingPayload()
	}
	if err := checkStruct(e.Trace, "data."); err != nil {
		return err
	}
	if e.Trace.EndTime != nil && e.Trace.EndTime.Before(e.Trace.StartTime) {
		return &ValidationError{
			Field:   "data.endTime",
			Code:    CodeRange,
			Message: "data.endTime must not be before data.startTime",
		}
	}
	return nil
}

func missingPayload() *ValidationError {
	return &ValidationError{Field: "data", Code: CodeRequired, Message: "data payload is required"}
}
