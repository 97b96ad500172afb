// Observability Hub - Event-Driven Observability Ingestion Pipeline
// Copyright 2026 Faruk Tunc (frktunc)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/frktunc/observability-hub

package event

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/goccy/go-json"
)

// DecodeErrorKind classifies codec failures.
type DecodeErrorKind int

const (
	// KindMalformed marks input that is not valid JSON or cannot bind the
	// envelope types.
	KindMalformed DecodeErrorKind = iota
	// KindMissingField marks an envelope missing a required field.
	KindMissingField
	// KindUnknownEventType marks an event type outside the log, metrics, and
	// trace families.
	KindUnknownEventType
)

// String returns the kind name as it appears in dead letter records.
func (k DecodeErrorKind) String() string {
	switch k {
	case KindMissingField:
		return "MissingField"
	case KindUnknownEventType:
		return "UnknownEventType"
	default:
		return "Malformed"
	}
}

// DecodeError reports why a message body could not be decoded into an Event.
// Decode failures are terminal: the message routes to the dead letter store
// and is never retried.
type DecodeError struct {
	Kind   DecodeErrorKind
	Path   string // JSON path of the offending field, when known
	Offset int64  // byte offset of the syntax error, when known
	Err    error  // underlying cause
}

func (e *DecodeError) Error() string {
	switch {
	case e.Path != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Path, e.Err)
	case e.Path != "":
		return fmt.Sprintf("%s: %s", e.Kind, e.Path)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	default:
		return e.Kind.String()
	}
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// NewMissingFieldError reports a required envelope field that is absent.
func NewMissingFieldError(path string) *DecodeError {
	return &DecodeError{Kind: KindMissingField, Path: path}
}

// NewUnknownEventTypeError reports an event type with an unrecognized family
// prefix.
func NewUnknownEventTypeError(eventType string) *DecodeError {
	return &DecodeError{
		Kind: KindUnknownEventType,
		Path: "eventType",
		Err:  fmt.Errorf("event type %q", eventType),
	}
}

// malformedFrom wraps a JSON error, lifting position information when the
// underlying decoder provides it.
func malformedFrom(err error) *DecodeError {
	de := &DecodeError{Kind: KindMalformed, Err: err}

	var syn *json.SyntaxError
	if errors.As(err, &syn) {
		de.Offset = syn.Offset
	}

	var typ *json.UnmarshalTypeError
	if errors.As(err, &typ) {
		de.Offset = typ.Offset
		de.Path = typ.Field
	}

	return de
}

var jsonNull = []byte("null")

// Decode converts message bytes into a typed Event. The envelope is checked
// for required fields, the event type is dispatched by family, and the
// matching payload variant is populated. The raw data bytes are preserved on
// the returned event; all timestamps are normalized to UTC.
func Decode(data []byte) (*Event, error) {
	var e Event
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, malformedFrom(err)
	}

	if err := checkRequired(&e); err != nil {
		return nil, err
	}

	family := e.Family()
	if family == FamilyUnknown {
		return nil, NewUnknownEventTypeError(e.EventType)
	}

	e.Timestamp = e.Timestamp.UTC()

	switch family {
	case FamilyLog:
		var p LogPayload
		if err := json.Unmarshal(e.Data, &p); err != nil {
			return nil, &DecodeError{Kind: KindMalformed, Path: "data", Err: err}
		}
		p.Timestamp = p.Timestamp.UTC()
		e.Log = &p

	case FamilyMetrics:
		var p MetricsPayload
		if err := json.Unmarshal(e.Data, &p); err != nil {
			return nil, &DecodeError{Kind: KindMalformed, Path: "data", Err: err}
		}
		p.Timestamp = p.Timestamp.UTC()
		e.Metrics = &p

	case FamilyTrace:
		var p TracePayload
		if err := json.Unmarshal(e.Data, &p); err != nil {
			return nil, &DecodeError{Kind: KindMalformed, Path: "data", Err: err}
		}
		p.StartTime = p.StartTime.UTC()
		if p.EndTime != nil {
			utc := p.EndTime.UTC()
			p.EndTime = &utc
		}
		e.Trace = &p
	}

	return &e, nil
}

// Encode converts a typed Event back to message bytes. The raw data bytes go
// out exactly as they came in.
func Encode(e *Event) ([]byte, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("encode event: %w", err)
	}
	return data, nil
}

// checkRequired verifies the envelope fields every event must carry. Payload
// level requirements belong to the validator; this gate covers only what the
// pipeline needs for routing and dedup.
func checkRequired(e *Event) error {
	switch {
	case e.EventID == "":
		return NewMissingFieldError("eventId")
	case e.EventType == "":
		return NewMissingFieldError("eventType")
	case e.SchemaVersion == "":
		return NewMissingFieldError("schemaVersion")
	case e.Timestamp.IsZero():
		return NewMissingFieldError("timestamp")
	case e.CorrelationID == "":
		return NewMissingFieldError("correlationId")
	case e.Source.Service == "":
		return NewMissingFieldError("source.service")
	case e.Source.Version == "":
		return NewMissingFieldError("source.version")
	}

	if len(e.Data) == 0 || bytes.Equal(bytes.TrimSpace(e.Data), jsonNull) {
		return NewMissingFieldError("data")
	}

	return nil
}
