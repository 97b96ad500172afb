// Observability Hub - Event-Driven Observability Ingestion Pipeline
// Copyright 2026 Faruk Tunc (frktunc)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/frktunc/observability-hub

package event

import (
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

// DefaultSchemaVersion is the schema version stamped on events created by
// this process.
const DefaultSchemaVersion = "1.0.0"

// Family identifies the payload shape of an event, derived from the first
// segment of its type.
type Family string

// Event families.
const (
	FamilyLog     Family = "log"
	FamilyMetrics Family = "metrics"
	FamilyTrace   Family = "trace"
	FamilyUnknown Family = ""
)

// Log levels accepted in log payloads.
const (
	LevelTrace = "TRACE"
	LevelDebug = "DEBUG"
	LevelInfo  = "INFO"
	LevelWarn  = "WARN"
	LevelError = "ERROR"
	LevelFatal = "FATAL"
)

// Metric types accepted in metrics payloads.
const (
	MetricTypeCounter   = "counter"
	MetricTypeGauge     = "gauge"
	MetricTypeHistogram = "histogram"
	MetricTypeSummary   = "summary"
	MetricTypeTimer     = "timer"
)

// Priorities accepted in event metadata.
const (
	PriorityCritical = "critical"
	PriorityHigh     = "high"
	PriorityNormal   = "normal"
	PriorityLow      = "low"
)

// Environments accepted in event metadata.
const (
	EnvironmentProduction  = "production"
	EnvironmentStaging     = "staging"
	EnvironmentDevelopment = "development"
	EnvironmentTesting     = "testing"
)

// Event is the canonical in-memory form of an observability event. All three
// families share this header; exactly one of Log, Metrics, or Trace is
// populated by the codec, matching Family().
//
// Data holds the original payload bytes verbatim so unknown fields survive a
// round trip through the pipeline into the store.
type Event struct {
	// Identification
	EventID       string    `json:"eventId" validate:"required,uuid4"`
	EventType     string    `json:"eventType" validate:"required,eventtype"`
	SchemaVersion string    `json:"schemaVersion" validate:"required,semver"`
	Timestamp     time.Time `json:"timestamp" validate:"required"`

	// Workflow lineage
	CorrelationID string `json:"correlationId" validate:"required,uuid4"`
	CausationID   string `json:"causationId,omitempty" validate:"omitempty,uuid4"`

	// Producer identity
	Source Source `json:"source"`

	// Distributed tracing context
	Tracing *Tracing `json:"tracing,omitempty"`

	// Delivery metadata
	Metadata Metadata `json:"metadata"`

	// Raw payload, preserved byte-for-byte
	Data json.RawMessage `json:"data"`

	// Typed payload, populated by Decode according to Family()
	Log     *LogPayload     `json:"-" validate:"-"`
	Metrics *MetricsPayload `json:"-" validate:"-"`
	Trace   *TracePayload   `json:"-" validate:"-"`

	// Pre-rendered Source block shared across events from one producer
	sourceJSON []byte
}

// Source identifies the producing service.
type Source struct {
	Service  string `json:"service" validate:"required"`
	Version  string `json:"version" validate:"required,semver"`
	Instance string `json:"instance,omitempty"`
	Region   string `json:"region,omitempty"`
}

// Tracing carries the distributed tracing context of the producing request.
// Baggage is preserved verbatim.
type Tracing struct {
	TraceID      string          `json:"traceId" validate:"required,traceid"`
	SpanID       string          `json:"spanId,omitempty" validate:"omitempty,spanid"`
	ParentSpanID string          `json:"parentSpanId,omitempty" validate:"omitempty,spanid"`
	Flags        int             `json:"flags,omitempty"`
	Baggage      json.RawMessage `json:"baggage,omitempty"`
}

// Metadata carries delivery hints. Tags is free-form and preserved verbatim.
type Metadata struct {
	Priority    string          `json:"priority" validate:"required,oneof=critical high normal low"`
	Environment string          `json:"environment,omitempty" validate:"omitempty,oneof=production staging development testing"`
	Tags        json.RawMessage `json:"tags,omitempty"`
	RetryCount  int             `json:"retryCount,omitempty" validate:"gte=0"`
	SchemaURL   string          `json:"schemaUrl,omitempty"`
}

// LogPayload is the data shape for log.* events.
type LogPayload struct {
	Level      string          `json:"level" validate:"required,oneof=TRACE DEBUG INFO WARN ERROR FATAL"`
	Message    string          `json:"message" validate:"min=1,max=32768"`
	Timestamp  time.Time       `json:"timestamp" validate:"required"`
	Logger     string          `json:"logger,omitempty"`
	Context    json.RawMessage `json:"context,omitempty"`
	Structured *StructuredData `json:"structured,omitempty"`
	Error      *ErrorDetail    `json:"error,omitempty"`
	Source     *CodeLocation   `json:"source,omitempty"`
}

// StructuredData holds machine-readable log attachments.
type StructuredData struct {
	Fields  json.RawMessage `json:"fields,omitempty"`
	Metrics json.RawMessage `json:"metrics,omitempty"`
}

// ErrorDetail describes an error attached to a log event.
type ErrorDetail struct {
	Type        string `json:"type,omitempty"`
	Code        string `json:"code,omitempty"`
	Stack       string `json:"stack,omitempty"`
	Cause       string `json:"cause,omitempty"`
	Fingerprint string `json:"fingerprint,omitempty"`
}

// CodeLocation points to the emitting source line.
type CodeLocation struct {
	File     string `json:"file,omitempty"`
	Line     int    `json:"line,omitempty" validate:"omitempty,gte=1"`
	Function string `json:"function,omitempty"`
	Class    string `json:"class,omitempty"`
}

// MetricsPayload is the data shape for metrics.* events. Value is kept raw
// because it is either a scalar or an aggregated object; use NumberValue or
// AggregateValue for typed access.
type MetricsPayload struct {
	Name       string          `json:"name" validate:"required,metricname,max=255"`
	Type       string          `json:"type" validate:"required,oneof=counter gauge histogram summary timer"`
	Value      json.RawMessage `json:"value" validate:"required,metricvalue"`
	Unit       string          `json:"unit,omitempty"`
	Timestamp  time.Time       `json:"timestamp" validate:"required"`
	Dimensions json.RawMessage `json:"dimensions,omitempty"`
	Buckets    json.RawMessage `json:"buckets,omitempty"`
	Exemplars  json.RawMessage `json:"exemplars,omitempty"`
}

// AggregatedValue is the pre-aggregated form of a metric value.
type AggregatedValue struct {
	Sum         float64            `json:"sum"`
	Count       int64              `json:"count"`
	Min         *float64           `json:"min,omitempty"`
	Max         *float64           `json:"max,omitempty"`
	Avg         *float64           `json:"avg,omitempty"`
	Percentiles map[string]float64 `json:"percentiles,omitempty"`
}

// NumberValue returns the scalar metric value, or false when the value is
// absent or aggregated.
func (p *MetricsPayload) NumberValue() (float64, bool) {
	if len(p.Value) == 0 {
		return 0, false
	}
	var n float64
	if err := json.Unmarshal(p.Value, &n); err != nil {
		return 0, false
	}
	return n, true
}

// AggregateValue returns the aggregated metric value, or false when the value
// is absent or scalar.
func (p *MetricsPayload) AggregateValue() (*AggregatedValue, bool) {
	trimmed := trimLeadingSpace(p.Value)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, false
	}
	var agg AggregatedValue
	if err := json.Unmarshal(p.Value, &agg); err != nil {
		return nil, false
	}
	return &agg, true
}

// TracePayload is the data shape for trace.* events.
type TracePayload struct {
	TraceID       string          `json:"traceId" validate:"required,traceid"`
	SpanID        string          `json:"spanId" validate:"required,spanid"`
	ParentSpanID  string          `json:"parentSpanId,omitempty" validate:"omitempty,spanid"`
	OperationName string          `json:"operationName" validate:"required"`
	StartTime     time.Time       `json:"startTime" validate:"required"`
	EndTime       *time.Time      `json:"endTime,omitempty"`
	Duration      *float64        `json:"duration,omitempty" validate:"omitempty,gte=0"`
	Status        *SpanStatus     `json:"status,omitempty"`
	Kind          string          `json:"kind,omitempty"`
	Tags          json.RawMessage `json:"tags,omitempty"`
	Logs          json.RawMessage `json:"logs,omitempty"`
	Process       json.RawMessage `json:"process,omitempty"`
	References    json.RawMessage `json:"references,omitempty"`
}

// SpanStatus is the terminal status of a span.
type SpanStatus struct {
	Code    string `json:"code" validate:"required"`
	Message string `json:"message,omitempty"`
}

// New creates an event of the given type with a fresh identity: unique event
// and correlation IDs, current UTC timestamp, and the default schema version.
func New(eventType string) *Event {
	return &Event{
		EventID:       uuid.New().String(),
		EventType:     eventType,
		SchemaVersion: DefaultSchemaVersion,
		Timestamp:     time.Now().UTC(),
		CorrelationID: uuid.New().String(),
		Metadata:      Metadata{Priority: PriorityNormal},
	}
}

// Family returns the event family derived from the first segment of the
// event type. Unknown prefixes return FamilyUnknown.
func (e *Event) Family() Family {
	prefix, _, _ := strings.Cut(e.EventType, ".")
	switch Family(prefix) {
	case FamilyLog, FamilyMetrics, FamilyTrace:
		return Family(prefix)
	default:
		return FamilyUnknown
	}
}

// SchemaMajor returns the MAJOR component of the event's schema version.
func (e *Event) SchemaMajor() (int, error) {
	major, _, _ := strings.Cut(e.SchemaVersion, ".")
	return strconv.Atoi(major)
}

// SetSourceJSON attaches a pre-rendered form of Source. Events from the same
// producer share one rendering, so the flush path can skip serializing the
// block per row.
func (e *Event) SetSourceJSON(b []byte) { e.sourceJSON = b }

// SourceJSON returns the serialized Source block, rendering it on the spot
// when no pre-rendered form is attached.
func (e *Event) SourceJSON() (json.RawMessage, error) {
	if len(e.sourceJSON) > 0 {
		return e.sourceJSON, nil
	}
	return json.Marshal(e.Source)
}

// familySubjects maps event families to their broker subject roots.
var familySubjects = map[Family]string{
	FamilyLog:     "logs",
	FamilyMetrics: "metrics",
	FamilyTrace:   "traces",
}

// Subject returns the broker subject for this event.
// Format: <family-root>.<entity>.<action>
// Example: "log.user.created" maps to "logs.user.created".
func (e *Event) Subject() string {
	prefix, rest, found := strings.Cut(e.EventType, ".")
	root, ok := familySubjects[Family(prefix)]
	if !ok {
		root = "events"
	}
	if !found || rest == "" {
		return root
	}
	return root + "." + rest
}

// trimLeadingSpace skips JSON whitespace so the first significant byte can
// be inspected without a full parse.
func trimLeadingSpace(b []byte) []byte {
	for len(b) > 0 && (b[0] == ' ' || b[0] == '\t' || b[0] == '\n' || b[0] == '\r') {
		b = b[1:]
	}
	return b
}
