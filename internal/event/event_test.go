// Observability Hub - Event-Driven Observability Ingestion Pipeline
// Copyright 2026 Faruk Tunc (frktunc)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/frktunc/observability-hub

package event

import (
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

func TestNew(t *testing.T) {
	e := New("log.user.created")

	if e.EventID == "" {
		t.Error("Expected EventID to be set")
	}
	if _, err := uuid.Parse(e.EventID); err != nil {
		t.Errorf("Expected EventID to be a UUID, got %q", e.EventID)
	}
	if e.EventType != "log.user.created" {
		t.Errorf("Expected EventType=log.user.created, got %s", e.EventType)
	}
	if e.SchemaVersion != DefaultSchemaVersion {
		t.Errorf("Expected SchemaVersion=%s, got %s", DefaultSchemaVersion, e.SchemaVersion)
	}
	if e.Timestamp.IsZero() {
		t.Error("Expected Timestamp to be set")
	}
	if e.Timestamp.Location() != time.UTC {
		t.Errorf("Expected UTC timestamp, got %v", e.Timestamp.Location())
	}
	if _, err := uuid.Parse(e.CorrelationID); err != nil {
		t.Errorf("Expected CorrelationID to be a UUID, got %q", e.CorrelationID)
	}
	if e.Metadata.Priority != PriorityNormal {
		t.Errorf("Expected Priority=normal, got %s", e.Metadata.Priority)
	}
}

func TestEvent_Family(t *testing.T) {
	tests := []struct {
		name      string
		eventType string
		want      Family
	}{
		{"log family", "log.user.created", FamilyLog},
		{"metrics family", "metrics.cpu.updated", FamilyMetrics},
		{"trace family", "trace.request.completed", FamilyTrace},
		{"bare log prefix", "log", FamilyLog},
		{"unknown family", "audit.user.created", FamilyUnknown},
		{"plural logs is not a family", "logs.user.created", FamilyUnknown},
		{"empty type", "", FamilyUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := &Event{EventType: tt.eventType}
			if got := e.Family(); got != tt.want {
				t.Errorf("Family() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestEvent_SchemaMajor(t *testing.T) {
	tests := []struct {
		name    string
		version string
		want    int
		wantErr bool
	}{
		{"version 1", "1.0.0", 1, false},
		{"version 2 with patch", "2.3.1", 2, false},
		{"major only", "3", 3, false},
		{"not a number", "one.0.0", 0, true},
		{"empty", "", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := &Event{SchemaVersion: tt.version}
			got, err := e.SchemaMajor()
			if (err != nil) != tt.wantErr {
				t.Fatalf("SchemaMajor() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("SchemaMajor() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestEvent_Subject(t *testing.T) {
	tests := []struct {
		name      string
		eventType string
		want      string
	}{
		{"log event", "log.user.created", "logs.user.created"},
		{"metrics event", "metrics.cpu.updated", "metrics.cpu.updated"},
		{"trace event", "trace.request.completed", "traces.request.completed"},
		{"bare family", "log", "logs"},
		{"unknown family falls back to events root", "audit.user.created", "events.user.created"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := &Event{EventType: tt.eventType}
			if got := e.Subject(); got != tt.want {
				t.Errorf("Subject() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestMetricsPayload_NumberValue(t *testing.T) {
	tests := []struct {
		name   string
		value  string
		want   float64
		wantOK bool
	}{
		{"integer", "42", 42, true},
		{"float", "0.5", 0.5, true},
		{"negative", "-7.25", -7.25, true},
		{"aggregated object", `{"sum":10,"count":2}`, 0, false},
		{"string", `"fast"`, 0, false},
		{"empty", "", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &MetricsPayload{Value: json.RawMessage(tt.value)}
			got, ok := p.NumberValue()
			if ok != tt.wantOK {
				t.Fatalf("NumberValue() ok = %v, want %v", ok, tt.wantOK)
			}
			if ok && got != tt.want {
				t.Errorf("NumberValue() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMetricsPayload_AggregateValue(t *testing.T) {
	t.Run("aggregated object", func(t *testing.T) {
		p := &MetricsPayload{Value: json.RawMessage(`{"sum":120.5,"count":10,"min":2,"max":40}`)}
		agg, ok := p.AggregateValue()
		if !ok {
			t.Fatal("AggregateValue() ok = false, want true")
		}
		if agg.Sum != 120.5 {
			t.Errorf("Sum = %v, want 120.5", agg.Sum)
		}
		if agg.Count != 10 {
			t.Errorf("Count = %v, want 10", agg.Count)
		}
		if agg.Min == nil || *agg.Min != 2 {
			t.Errorf("Min = %v, want 2", agg.Min)
		}
		if agg.Max == nil || *agg.Max != 40 {
			t.Errorf("Max = %v, want 40", agg.Max)
		}
	})

	t.Run("leading whitespace", func(t *testing.T) {
		p := &MetricsPayload{Value: json.RawMessage("  {\"sum\":1,\"count\":1}")}
		if _, ok := p.AggregateValue(); !ok {
			t.Error("AggregateValue() ok = false, want true")
		}
	})

	t.Run("scalar", func(t *testing.T) {
		p := &MetricsPayload{Value: json.RawMessage("42")}
		if _, ok := p.AggregateValue(); ok {
			t.Error("AggregateValue() ok = true, want false")
		}
	})

	t.Run("percentiles", func(t *testing.T) {
		p := &MetricsPayload{Value: json.RawMessage(`{"sum":10,"count":4,"percentiles":{"p50":2,"p99":9}}`)}
		agg, ok := p.AggregateValue()
		if !ok {
			t.Fatal("AggregateValue() ok = false, want true")
		}
		if agg.Percentiles["p99"] != 9 {
			t.Errorf("Percentiles[p99] = %v, want 9", agg.Percentiles["p99"])
		}
	})
}

func TestEventConstants(t *testing.T) {
	levels := []string{LevelTrace, LevelDebug, LevelInfo, LevelWarn, LevelError, LevelFatal}
	wantLevels := []string{"TRACE", "DEBUG", "INFO", "WARN", "ERROR", "FATAL"}
	for i, l := range levels {
		if l != wantLevels[i] {
			t.Errorf("level constant = %q, want %q", l, wantLevels[i])
		}
	}

	types := []string{MetricTypeCounter, MetricTypeGauge, MetricTypeHistogram, MetricTypeSummary, MetricTypeTimer}
	wantTypes := []string{"counter", "gauge", "histogram", "summary", "timer"}
	for i, mt := range types {
		if mt != wantTypes[i] {
			t.Errorf("metric type constant = %q, want %q", mt, wantTypes[i])
		}
	}

	if PriorityCritical != "critical" || PriorityHigh != "high" || PriorityNormal != "normal" || PriorityLow != "low" {
		t.Error("priority constants do not match wire values")
	}

	if EnvironmentProduction != "production" || EnvironmentTesting != "testing" {
		t.Error("environment constants do not match wire values")
	}
}
