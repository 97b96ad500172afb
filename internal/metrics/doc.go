// Observability Hub - Event-Driven Observability Ingestion Pipeline
// Copyright 2026 Faruk Tunc (frktunc)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/frktunc/observability-hub

/*
Package metrics provides Prometheus metrics collection and export for the collector.

This package implements application instrumentation using the Prometheus client
library, exposing metrics for pipeline throughput, flush performance, cache
efficiency, and failure handling.

# Overview

The package provides metrics for:
  - Message consumption, acknowledgement, and deduplication
  - Validation outcomes by result class
  - Batch flush latency and adaptive batch sizing
  - Dedup and metadata cache hit rates
  - Dead letter queue growth, age, and retry outcomes
  - Broker reconnects and consumer lag
  - Circuit breaker state for the store path

# Metrics Endpoint

Metrics are exposed at the /metrics endpoint in Prometheus text format:

	curl http://localhost:9090/metrics

# Available Metrics

Pipeline:
  - messages_processed_total: Messages pulled from the broker (counter)
  - messages_acked_total: Messages acknowledged (counter)
  - messages_nacked_total: Messages negatively acknowledged (counter)
  - messages_skipped_total: Duplicates skipped by dedup (counter)
  - message_processing_duration_seconds: Per-message latency (histogram)
  - events_validated_total: Validation outcomes (counter)
    Labels: result (valid, invalid, malformed, unsupported_version)

Batch flush:
  - db_flush_success_total: Committed flushes (counter)
  - db_flush_errors_total: Failed flush attempts (counter)
  - db_flush_duration_seconds: Flush latency (histogram)
  - batch_size_optimized: Adaptive batch targets (histogram)
  - batch_processing_time_seconds: Batch open-to-commit time (histogram)
  - batch_events_total: Events durably written (counter)
  - batcher_queue_depth: Ingress queue depth (gauge)

Cache:
  - cache_hits_total, cache_misses_total, cache_errors_total (counters)
    Labels: cache (dedup, metadata)
  - cache_hit_ratio: Metadata cache hit ratio (gauge)

Dead letter queue:
  - dlq_entries_total: Entries written (counter)
    Labels: category (connection, timeout, validation, database, capacity, unknown)
  - dlq_pending_entries: Unresolved entries (gauge)
  - dlq_oldest_entry_age_seconds: Age of oldest unresolved entry (gauge)
  - dlq_retry_attempts_total, dlq_retry_success_total, dlq_retry_failures_total (counters)

Broker:
  - broker_reconnects_total: Reconnect events (counter)
  - broker_consumer_lag: Pending messages on the durable consumer (gauge)

Circuit breaker:
  - circuit_breaker_state: Current state (gauge)
    Labels: name
    Values: 0=closed, 1=half-open, 2=open
  - circuit_breaker_state_transitions_total: Transition counts (counter)
    Labels: name, from_state, to_state

# Usage Example

Recording pipeline outcomes from a worker:

	start := time.Now()
	metrics.RecordProcessed()

	if dup {
	    metrics.RecordSkipped()
	} else {
	    metrics.RecordValidation("valid")
	}

	metrics.RecordProcessingDuration(time.Since(start))

Recording a flush from the batcher:

	flushStart := time.Now()
	err := store.WriteBatch(ctx, events)
	metrics.RecordFlush(time.Since(flushStart), len(events), err)

# Example PromQL Queries

	# Ingest rate
	rate(messages_processed_total[5m])

	# Flush p95 latency
	histogram_quantile(0.95, rate(db_flush_duration_seconds_bucket[5m]))

	# Duplicate ratio
	rate(messages_skipped_total[5m]) / rate(messages_processed_total[5m])

	# DLQ growth by category
	sum by (category) (rate(dlq_entries_total[5m]))

# Alerting Rules

Example Prometheus alerting rules:

	groups:
	  - name: collector
	    rules:
	      - alert: FlushErrorRate
	        expr: |
	          rate(db_flush_errors_total[5m])
	          /
	          (rate(db_flush_success_total[5m]) + rate(db_flush_errors_total[5m]))
	          > 0.05
	        for: 5m
	        annotations:
	          summary: "Flush error rate: {{ $value }}%"

	      - alert: DLQGrowing
	        expr: increase(dlq_entries_total[15m]) > 100
	        for: 15m
	        annotations:
	          summary: "DLQ accepted {{ $value }} entries in 15m"

	      - alert: StoreBreakerOpen
	        expr: circuit_breaker_state{name="store"} == 2
	        for: 2m
	        annotations:
	          summary: "Store circuit breaker open"

# Thread Safety

All metric recording functions are thread-safe and designed for concurrent use
from the worker pool and the batcher. The Prometheus client library handles
synchronization internally.

# Cardinality Management

To prevent high cardinality issues:

  - Error categories are limited to predefined constants
  - Validation results are a closed set
  - Event identifiers, correlation IDs, and service names are never used as labels

# See Also

  - internal/api: HTTP handlers serving /metrics and /health
  - internal/batch: Flush and adaptive sizing instrumentation
  - internal/dlq: Dead letter queue instrumentation
  - https://prometheus.io/docs/practices/naming/: Metric naming conventions
*/
package metrics
