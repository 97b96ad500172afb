// Observability Hub - Event-Driven Observability Ingestion Pipeline
// Copyright 2026 Faruk Tunc (frktunc)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/frktunc/observability-hub

package event

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"
)

const validLogEvent = `{
	"eventId": "6d9fbf1e-8b2a-4ae0-9e1b-0d6a2f4c19e7",
	"eventType": "log.user.created",
	"schemaVersion": "1.0.0",
	"timestamp": "2024-07-01T12:00:00Z",
	"correlationId": "b3c1a7d2-5e4f-4a6b-8c9d-0e1f2a3b4c5d",
	"source": {"service": "user-service", "version": "1.0.0"},
	"metadata": {"priority": "normal"},
	"data": {"level": "INFO", "message": "hello", "timestamp": "2024-07-01T12:00:00Z"}
}`

const validMetricsEvent = `{
	"eventId": "7e0a1b2c-3d4e-4f5a-8b6c-7d8e9f0a1b2c",
	"eventType": "metrics.cpu.updated",
	"schemaVersion": "1.2.0",
	"timestamp": "2024-07-01T12:00:00.123456789Z",
	"correlationId": "c4d2b8e3-6f5a-4b7c-9d0e-1f2a3b4c5d6e",
	"source": {"service": "node-agent", "version": "2.1.0", "instance": "node-1"},
	"metadata": {"priority": "high", "environment": "production"},
	"data": {"name": "system.cpu.usage", "type": "gauge", "value": 0.73, "unit": "percent", "timestamp": "2024-07-01T12:00:00Z"}
}`

const validTraceEvent = `{
	"eventId": "8f1b2c3d-4e5f-4a6b-9c7d-8e9f0a1b2c3d",
	"eventType": "trace.request.completed",
	"schemaVersion": "1.0.0",
	"timestamp": "2024-07-01T12:00:00Z",
	"correlationId": "d5e3c9f4-7a6b-4c8d-0e1f-2a3b4c5d6e7f",
	"causationId": "6d9fbf1e-8b2a-4ae0-9e1b-0d6a2f4c19e7",
	"source": {"service": "api-gateway", "version": "3.0.1", "region": "eu-west-1"},
	"tracing": {"traceId": "4bf92f3577b34da6a3ce929d0e0e4736", "spanId": "00f067aa0ba902b7"},
	"metadata": {"priority": "normal"},
	"data": {"traceId": "4bf92f3577b34da6a3ce929d0e0e4736", "spanId": "00f067aa0ba902b7", "operationName": "GET /users", "startTime": "2024-07-01T11:59:59Z", "endTime": "2024-07-01T12:00:00Z", "duration": 1000, "status": {"code": "OK"}}
}`

func TestDecode_LogEvent(t *testing.T) {
	e, err := Decode([]byte(validLogEvent))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}

	if e.EventID != "6d9fbf1e-8b2a-4ae0-9e1b-0d6a2f4c19e7" {
		t.Errorf("EventID = %q", e.EventID)
	}
	if e.Family() != FamilyLog {
		t.Errorf("Family() = %q, want log", e.Family())
	}
	if e.Log == nil {
		t.Fatal("Expected Log payload to be populated")
	}
	if e.Metrics != nil || e.Trace != nil {
		t.Error("Expected only the Log variant to be populated")
	}
	if e.Log.Level != "INFO" {
		t.Errorf("Log.Level = %q, want INFO", e.Log.Level)
	}
	if e.Log.Message != "hello" {
		t.Errorf("Log.Message = %q, want hello", e.Log.Message)
	}
	if e.Source.Service != "user-service" {
		t.Errorf("Source.Service = %q, want user-service", e.Source.Service)
	}
	if e.Metadata.Priority != "normal" {
		t.Errorf("Metadata.Priority = %q, want normal", e.Metadata.Priority)
	}
}

func TestDecode_MetricsEvent(t *testing.T) {
	e, err := Decode([]byte(validMetricsEvent))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}

	if e.Family() != FamilyMetrics {
		t.Errorf("Family() = %q, want metrics", e.Family())
	}
	if e.Metrics == nil {
		t.Fatal("Expected Metrics payload to be populated")
	}
	if e.Metrics.Name != "system.cpu.usage" {
		t.Errorf("Metrics.Name = %q", e.Metrics.Name)
	}
	if e.Metrics.Type != MetricTypeGauge {
		t.Errorf("Metrics.Type = %q, want gauge", e.Metrics.Type)
	}

	v, ok := e.Metrics.NumberValue()
	if !ok || v != 0.73 {
		t.Errorf("NumberValue() = %v, %v, want 0.73, true", v, ok)
	}

	// Fractional seconds survive with nanosecond precision.
	if e.Timestamp.Nanosecond() != 123456789 {
		t.Errorf("Timestamp.Nanosecond() = %d, want 123456789", e.Timestamp.Nanosecond())
	}
}

func TestDecode_TraceEvent(t *testing.T) {
	e, err := Decode([]byte(validTraceEvent))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}

	if e.Family() != FamilyTrace {
		t.Errorf("Family() = %q, want trace", e.Family())
	}
	if e.Trace == nil {
		t.Fatal("Expected Trace payload to be populated")
	}
	if e.Trace.OperationName != "GET /users" {
		t.Errorf("Trace.OperationName = %q", e.Trace.OperationName)
	}
	if e.Trace.EndTime == nil {
		t.Fatal("Expected Trace.EndTime to be set")
	}
	if e.Trace.Duration == nil || *e.Trace.Duration != 1000 {
		t.Errorf("Trace.Duration = %v, want 1000", e.Trace.Duration)
	}
	if e.Trace.Status == nil || e.Trace.Status.Code != "OK" {
		t.Errorf("Trace.Status = %+v, want code OK", e.Trace.Status)
	}
	if e.CausationID != "6d9fbf1e-8b2a-4ae0-9e1b-0d6a2f4c19e7" {
		t.Errorf("CausationID = %q", e.CausationID)
	}
	if e.Tracing == nil || e.Tracing.TraceID != "4bf92f3577b34da6a3ce929d0e0e4736" {
		t.Errorf("Tracing = %+v", e.Tracing)
	}
}

func TestDecode_TimestampNormalizedToUTC(t *testing.T) {
	payload := strings.Replace(validLogEvent, "2024-07-01T12:00:00Z", "2024-07-01T14:00:00+02:00", 1)

	e, err := Decode([]byte(payload))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}

	if e.Timestamp.Location() != time.UTC {
		t.Errorf("Timestamp location = %v, want UTC", e.Timestamp.Location())
	}
	want := time.Date(2024, 7, 1, 12, 0, 0, 0, time.UTC)
	if !e.Timestamp.Equal(want) {
		t.Errorf("Timestamp = %v, want %v", e.Timestamp, want)
	}
}

func TestDecode_Malformed(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"truncated object", `{`},
		{"not json at all", `hello world`},
		{"empty input", ``},
		{"wrong envelope type", `{"eventId": 42}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.input))
			if err == nil {
				t.Fatal("Decode() succeeded, want malformed error")
			}

			var de *DecodeError
			if !errors.As(err, &de) {
				t.Fatalf("error type = %T, want *DecodeError", err)
			}
			if de.Kind != KindMalformed {
				t.Errorf("Kind = %v, want Malformed", de.Kind)
			}
			if !strings.Contains(err.Error(), "Malformed") {
				t.Errorf("Error() = %q, want it to contain Malformed", err.Error())
			}
		})
	}
}

func TestDecode_MissingFields(t *testing.T) {
	tests := []struct {
		name     string
		strip    string
		wantPath string
	}{
		{"missing eventId", "eventId", "eventId"},
		{"missing eventType", "eventType", "eventType"},
		{"missing schemaVersion", "schemaVersion", "schemaVersion"},
		{"missing timestamp", "timestamp", "timestamp"},
		{"missing correlationId", "correlationId", "correlationId"},
		{"missing data", "data", "data"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := removeTopLevelField(t, validLogEvent, tt.strip)

			_, err := Decode([]byte(input))
			if err == nil {
				t.Fatal("Decode() succeeded, want missing field error")
			}

			var de *DecodeError
			if !errors.As(err, &de) {
				t.Fatalf("error type = %T, want *DecodeError", err)
			}
			if de.Kind != KindMissingField {
				t.Errorf("Kind = %v, want MissingField", de.Kind)
			}
			if de.Path != tt.wantPath {
				t.Errorf("Path = %q, want %q", de.Path, tt.wantPath)
			}
			if !strings.Contains(err.Error(), "MissingField") {
				t.Errorf("Error() = %q, want it to contain MissingField", err.Error())
			}
		})
	}
}

func TestDecode_MissingSourceFields(t *testing.T) {
	input := strings.Replace(validLogEvent,
		`"source": {"service": "user-service", "version": "1.0.0"}`,
		`"source": {"version": "1.0.0"}`, 1)

	_, err := Decode([]byte(input))
	var de *DecodeError
	if !errors.As(err, &de) {
		t.Fatalf("error = %v, want *DecodeError", err)
	}
	if de.Kind != KindMissingField || de.Path != "source.service" {
		t.Errorf("got kind %v path %q, want MissingField source.service", de.Kind, de.Path)
	}

	input = strings.Replace(validLogEvent,
		`"source": {"service": "user-service", "version": "1.0.0"}`,
		`"source": {"service": "user-service"}`, 1)

	_, err = Decode([]byte(input))
	if !errors.As(err, &de) {
		t.Fatalf("error = %v, want *DecodeError", err)
	}
	if de.Kind != KindMissingField || de.Path != "source.version" {
		t.Errorf("got kind %v path %q, want MissingField source.version", de.Kind, de.Path)
	}
}

func TestDecode_NullData(t *testing.T) {
	input := strings.Replace(validLogEvent,
		`"data": {"level": "INFO", "message": "hello", "timestamp": "2024-07-01T12:00:00Z"}`,
		`"data": null`, 1)

	_, err := Decode([]byte(input))
	var de *DecodeError
	if !errors.As(err, &de) {
		t.Fatalf("error = %v, want *DecodeError", err)
	}
	if de.Kind != KindMissingField || de.Path != "data" {
		t.Errorf("got kind %v path %q, want MissingField data", de.Kind, de.Path)
	}
}

func TestDecode_UnknownEventType(t *testing.T) {
	input := strings.Replace(validLogEvent, "log.user.created", "audit.user.created", 1)

	_, err := Decode([]byte(input))
	if err == nil {
		t.Fatal("Decode() succeeded, want unknown event type error")
	}

	var de *DecodeError
	if !errors.As(err, &de) {
		t.Fatalf("error type = %T, want *DecodeError", err)
	}
	if de.Kind != KindUnknownEventType {
		t.Errorf("Kind = %v, want UnknownEventType", de.Kind)
	}
	if !strings.Contains(err.Error(), "UnknownEventType") {
		t.Errorf("Error() = %q, want it to contain UnknownEventType", err.Error())
	}
	if !strings.Contains(err.Error(), "audit.user.created") {
		t.Errorf("Error() = %q, want it to name the offending type", err.Error())
	}
}

func TestDecode_MalformedPayload(t *testing.T) {
	input := strings.Replace(validLogEvent,
		`"data": {"level": "INFO", "message": "hello", "timestamp": "2024-07-01T12:00:00Z"}`,
		`"data": {"level": 5, "message": "hello", "timestamp": "2024-07-01T12:00:00Z"}`, 1)

	_, err := Decode([]byte(input))
	var de *DecodeError
	if !errors.As(err, &de) {
		t.Fatalf("error = %v, want *DecodeError", err)
	}
	if de.Kind != KindMalformed || de.Path != "data" {
		t.Errorf("got kind %v path %q, want Malformed data", de.Kind, de.Path)
	}
}

func TestDecode_PreservesRawData(t *testing.T) {
	// Unknown payload fields must survive a decode/encode round trip.
	input := strings.Replace(validLogEvent,
		`"data": {"level": "INFO", "message": "hello", "timestamp": "2024-07-01T12:00:00Z"}`,
		`"data": {"level": "INFO", "message": "hello", "timestamp": "2024-07-01T12:00:00Z", "futureField": {"nested": [1, 2, 3]}}`, 1)

	e, err := Decode([]byte(input))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}

	if !strings.Contains(string(e.Data), "futureField") {
		t.Error("Expected raw data to preserve unknown fields")
	}

	out, err := Encode(e)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	if !bytes.Contains(out, []byte("futureField")) {
		t.Error("Expected encoded event to carry unknown payload fields")
	}
	if !bytes.Contains(out, []byte("nested")) {
		t.Error("Expected nested unknown structure to survive")
	}
}

func TestEncode_RoundTrip(t *testing.T) {
	original, err := Decode([]byte(validTraceEvent))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}

	data, err := Encode(original)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}

	decoded, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode(Encode()) error = %v", err)
	}

	if decoded.EventID != original.EventID {
		t.Errorf("EventID = %q, want %q", decoded.EventID, original.EventID)
	}
	if decoded.EventType != original.EventType {
		t.Errorf("EventType = %q, want %q", decoded.EventType, original.EventType)
	}
	if !decoded.Timestamp.Equal(original.Timestamp) {
		t.Errorf("Timestamp = %v, want %v", decoded.Timestamp, original.Timestamp)
	}
	if decoded.Trace == nil || decoded.Trace.SpanID != original.Trace.SpanID {
		t.Error("Trace payload did not survive the round trip")
	}
}

func TestDecodeError_Unwrap(t *testing.T) {
	_, err := Decode([]byte(`{`))
	if err == nil {
		t.Fatal("Decode() succeeded, want error")
	}

	var de *DecodeError
	if !errors.As(err, &de) {
		t.Fatalf("error type = %T, want *DecodeError", err)
	}
	if de.Unwrap() == nil {
		t.Error("Expected malformed error to carry the underlying cause")
	}
}

// removeTopLevelField strips one field from a JSON object literal used in
// tests, by deleting its line.
func removeTopLevelField(t *testing.T, doc, field string) string {
	t.Helper()
	lines := strings.Split(doc, "\n")
	out := make([]string, 0, len(lines))
	removed := false
	for _, line := range lines {
		if strings.Contains(line, `"`+field+`":`) && !removed {
			removed = true
			continue
		}
		out = append(out, line)
	}
	if !removed {
		t.Fatalf("field %q not found in test document", field)
	}
	// Repair a trailing comma left before the closing brace.
	joined := strings.Join(out, "\n")
	joined = strings.Replace(joined, ",\n}", "\n}", 1)
	return joined
}
