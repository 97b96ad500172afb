// Observability Hub - Event-Driven Observability Ingestion Pipeline
// Copyright 2026 Faruk Tunc (frktunc)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/frktunc/observability-hub

package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/goccy/go-json"
	"github.com/jackc/pgx/v5"

	"github.com/frktunc/observability-hub/internal/dlq"
	"github.com/frktunc/observability-hub/internal/event"
)

// Column lists double as the COPY targets and the conflict-insert
// projection, so they must stay in sync with the migration DDL.
var (
	logColumns = []string{
		"event_id", "correlation_id", "timestamp", "level", "service",
		"message", "context", "error", "structured", "metadata",
	}
	metricColumns = []string{
		"event_id", "correlation_id", "timestamp", "name", "type",
		"value", "unit", "service", "dimensions", "metadata",
	}
	traceColumns = []string{
		"event_id", "correlation_id", "timestamp", "trace_id", "span_id",
		"parent_span_id", "operation_name", "service", "start_time",
		"end_time", "duration_ms", "status", "tags", "metadata",
	}
)

type familyGroup struct {
	table   string
	columns []string
	rows    [][]any
}

// FlushBatch writes a batch to the event tables in one transaction. Rows
// whose event_id already exists are silently absorbed and reported in
// duplicates. On error nothing is committed and every event of the batch
// remains unwritten.
func (s *Store) FlushBatch(ctx context.Context, events []*event.Event) (inserted, duplicates int64, err error) {
	if len(events) == 0 {
		return 0, 0, nil
	}

	groups, err := buildGroups(events)
	if err != nil {
		return 0, 0, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, 0, Classify("begin flush transaction", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	for _, g := range groups {
		n, dups, gerr := flushGroup(ctx, tx, g)
		if gerr != nil {
			err = gerr
			return 0, 0, err
		}
		inserted += n
		duplicates += dups
	}

	if err = tx.Commit(ctx); err != nil {
		err = Classify("commit flush transaction", err)
		return 0, 0, err
	}
	return inserted, duplicates, nil
}

// flushGroup stages one family's rows via COPY, then moves them into the
// real table with conflict absorption. The staging table lives only for the
// transaction, so neither rollback nor commit leaks session state.
func flushGroup(ctx context.Context, tx pgx.Tx, g familyGroup) (int64, int64, error) {
	staging := "staging_" + g.table
	ddl := fmt.Sprintf(
		`CREATE TEMPORARY TABLE %s (LIKE %s INCLUDING DEFAULTS) ON COMMIT DROP`,
		staging, g.table,
	)
	if _, err := tx.Exec(ctx, ddl); err != nil {
		return 0, 0, Classify("create staging table for "+g.table, err)
	}

	copied, err := tx.CopyFrom(ctx, pgx.Identifier{staging}, g.columns, pgx.CopyFromRows(g.rows))
	if err != nil {
		return 0, 0, Classify("bulk copy into "+g.table, err)
	}

	cols := strings.Join(g.columns, ", ")
	tag, err := tx.Exec(ctx, fmt.Sprintf(
		`INSERT INTO %s (%s) SELECT %s FROM %s ON CONFLICT (event_id) DO NOTHING`,
		g.table, cols, cols, staging,
	))
	if err != nil {
		return 0, 0, Classify("insert into "+g.table, err)
	}

	inserted := tag.RowsAffected()
	return inserted, copied - inserted, nil
}

// buildGroups converts events into per-table row sets in a fixed family
// order. Row building happens before the transaction opens so a bad event
// cannot waste a database round trip.
func buildGroups(events []*event.Event) ([]familyGroup, error) {
	byFamily := map[event.Family]*familyGroup{
		event.FamilyLog:     {table: "logs", columns: logColumns},
		event.FamilyMetrics: {table: "metrics", columns: metricColumns},
		event.FamilyTrace:   {table: "traces", columns: traceColumns},
	}

	for _, e := range events {
		g, ok := byFamily[e.Family()]
		if !ok {
			return nil, dlq.NewPermanentErrorWithCategory(dlq.CategoryValidation,
				"build rows", fmt.Errorf("event %s has unknown family %q", e.EventID, e.EventType))
		}
		row, err := buildRow(e)
		if err != nil {
			return nil, dlq.NewPermanentErrorWithCategory(dlq.CategoryValidation,
				"build rows", fmt.Errorf("event %s: %w", e.EventID, err))
		}
		g.rows = append(g.rows, row)
	}

	groups := make([]familyGroup, 0, 3)
	for _, fam := range []event.Family{event.FamilyLog, event.FamilyMetrics, event.FamilyTrace} {
		if g := byFamily[fam]; len(g.rows) > 0 {
			groups = append(groups, *g)
		}
	}
	return groups, nil
}

func buildRow(e *event.Event) ([]any, error) {
	switch e.Family() {
	case event.FamilyLog:
		return logRow(e)
	case event.FamilyMetrics:
		return metricRow(e)
	case event.FamilyTrace:
		return traceRow(e)
	default:
		return nil, fmt.Errorf("unknown family %q", e.EventType)
	}
}

func logRow(e *event.Event) ([]any, error) {
	p := e.Log
	if p == nil {
		return nil, fmt.Errorf("log payload not decoded")
	}
	meta, err := envelopeJSON(e)
	if err != nil {
		return nil, err
	}
	errJSON, err := marshalOptional(p.Error != nil, p.Error)
	if err != nil {
		return nil, err
	}
	structuredJSON, err := marshalOptional(p.Structured != nil, p.Structured)
	if err != nil {
		return nil, err
	}
	return []any{
		e.EventID, e.CorrelationID, e.Timestamp, p.Level, e.Source.Service,
		p.Message, rawJSON(p.Context), errJSON, structuredJSON, meta,
	}, nil
}

func metricRow(e *event.Event) ([]any, error) {
	p := e.Metrics
	if p == nil {
		return nil, fmt.Errorf("metrics payload not decoded")
	}
	meta, err := envelopeJSON(e)
	if err != nil {
		return nil, err
	}
	return []any{
		e.EventID, e.CorrelationID, e.Timestamp, p.Name, p.Type,
		rawJSON(p.Value), textOrNil(p.Unit), e.Source.Service,
		rawJSON(p.Dimensions), meta,
	}, nil
}

func traceRow(e *event.Event) ([]any, error) {
	p := e.Trace
	if p == nil {
		return nil, fmt.Errorf("trace payload not decoded")
	}
	meta, err := envelopeJSON(e)
	if err != nil {
		return nil, err
	}
	statusJSON, err := marshalOptional(p.Status != nil, p.Status)
	if err != nil {
		return nil, err
	}
	var endTime any
	if p.EndTime != nil {
		endTime = *p.EndTime
	}
	var duration any
	if p.Duration != nil {
		duration = *p.Duration
	}
	return []any{
		e.EventID, e.CorrelationID, e.Timestamp, p.TraceID, p.SpanID,
		textOrNil(p.ParentSpanID), p.OperationName, e.Source.Service,
		p.StartTime, endTime, duration, statusJSON, rawJSON(p.Tags), meta,
	}, nil
}

// rowEnvelope is the slice of the event header persisted in each row's
// metadata column, keeping lineage queryable without a join. Source is raw
// so a rendering cached upstream is reused instead of marshaled again.
type rowEnvelope struct {
	EventType     string          `json:"eventType"`
	SchemaVersion string          `json:"schemaVersion"`
	CausationID   string          `json:"causationId,omitempty"`
	Source        json.RawMessage `json:"source"`
	Tracing       *event.Tracing  `json:"tracing,omitempty"`
	Metadata      event.Metadata  `json:"metadata"`
}

func envelopeJSON(e *event.Event) ([]byte, error) {
	src, err := e.SourceJSON()
	if err != nil {
		return nil, fmt.Errorf("marshal source block: %w", err)
	}
	b, err := json.Marshal(rowEnvelope{
		EventType:     e.EventType,
		SchemaVersion: e.SchemaVersion,
		CausationID:   e.CausationID,
		Source:        src,
		Tracing:       e.Tracing,
		Metadata:      e.Metadata,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal envelope metadata: %w", err)
	}
	return b, nil
}

// rawJSON passes raw payload bytes through to a jsonb column, mapping
// absent to NULL.
func rawJSON(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return []byte(raw)
}

func marshalOptional(present bool, v any) (any, error) {
	if !present {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal %T: %w", v, err)
	}
	return b, nil
}

func textOrNil(s string) any {
	if s == "" {
		return nil
	}
	return s
}
