// Observability Hub - Event-Driven Observability Ingestion Pipeline
// Copyright 2026 Faruk Tunc (frktunc)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/frktunc/observability-hub

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus Metrics Integration for Production Observability
// This package provides comprehensive instrumentation for:
// - Message pipeline throughput and ack/nack dispositions
// - Batch flush performance against the relational store
// - Deduplication and metadata cache efficiency
// - Dead letter queue growth and retry outcomes
// - Broker connectivity and circuit breaker state

var (
	// Pipeline Metrics
	MessagesProcessed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "messages_processed_total",
			Help: "Total number of messages pulled from the broker and run through the pipeline",
		},
	)

	MessagesAcked = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "messages_acked_total",
			Help: "Total number of messages acknowledged to the broker",
		},
	)

	MessagesNacked = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "messages_nacked_total",
			Help: "Total number of messages negatively acknowledged for redelivery",
		},
	)

	MessagesSkipped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "messages_skipped_total",
			Help: "Total number of duplicate messages skipped by deduplication",
		},
	)

	MessageProcessingDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "message_processing_duration_seconds",
			Help:    "Duration of per-message pipeline processing in seconds",
			Buckets: prometheus.DefBuckets, // 0.005s, 0.01s, 0.025s, 0.05s, 0.1s, 0.25s, 0.5s, 1s, 2.5s, 5s, 10s
		},
	)

	// Validation Metrics
	EventsValidated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "events_validated_total",
			Help: "Total number of events checked against the envelope and payload rules",
		},
		[]string{"result"}, // "valid", "invalid", "malformed", "unsupported_version"
	)

	// Batch Flush Metrics
	DBFlushSuccess = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "db_flush_success_total",
			Help: "Total number of batch flushes durably committed to the store",
		},
	)

	DBFlushErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "db_flush_errors_total",
			Help: "Total number of failed batch flush attempts",
		},
	)

	DBFlushDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "db_flush_duration_seconds",
			Help:    "Duration of batch flush operations in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	BatchSizeOptimized = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "batch_size_optimized",
			Help:    "Adaptive batch size targets chosen by the optimizer",
			Buckets: []float64{50, 100, 250, 400, 500, 750, 1000, 2500}, // clamp range around the configured base
		},
	)

	BatchProcessingTime = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "batch_processing_time_seconds",
			Help:    "Time from batch opening to durable flush completion in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120}, // retries can stretch a batch well past the flush timeout
		},
	)

	BatchEventsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "batch_events_total",
			Help: "Total number of events written to the store through batch flushes",
		},
	)

	BatcherQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "batcher_queue_depth",
			Help: "Current number of events waiting in the batcher ingress queue",
		},
	)

	// Cache Metrics
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_hits_total",
			Help: "Total number of cache hits",
		},
		[]string{"cache"}, // "dedup", "metadata"
	)

	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_misses_total",
			Help: "Total number of cache misses",
		},
		[]string{"cache"},
	)

	CacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_errors_total",
			Help: "Total number of cache operations that failed and degraded to fail-open",
		},
		[]string{"cache"},
	)

	CacheHitRatio = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "cache_hit_ratio",
			Help: "Hit ratio of the metadata cache over the current observation window",
		},
	)

	// Dead Letter Queue Metrics
	DLQEntries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dlq_entries_total",
			Help: "Total number of messages written to the dead letter table",
		},
		[]string{"category"}, // connection, timeout, validation, database, capacity, unknown
	)

	DLQPendingEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "dlq_pending_entries",
			Help: "Current number of unresolved entries in the dead letter table",
		},
	)

	DLQOldestEntryAge = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "dlq_oldest_entry_age_seconds",
			Help: "Age of the oldest unresolved dead letter entry in seconds",
		},
	)

	DLQRetryAttempts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dlq_retry_attempts_total",
			Help: "Total number of retry attempts for dead letter entries",
		},
	)

	DLQRetrySuccess = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dlq_retry_success_total",
			Help: "Total number of dead letter entries successfully reprocessed",
		},
	)

	DLQRetryFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dlq_retry_failures_total",
			Help: "Total number of failed dead letter retry attempts",
		},
	)

	// Broker Metrics
	BrokerReconnects = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "broker_reconnects_total",
			Help: "Total number of broker reconnect events",
		},
	)

	BrokerConsumerLag = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "broker_consumer_lag",
			Help: "Number of messages pending on the durable consumer",
		},
	)

	// Circuit Breaker Metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_state_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from_state", "to_state"},
	)

	// Archive Metrics
	ArchiveAppended = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "archive_appended_total",
			Help: "Total number of events appended to the columnar archive",
		},
	)

	ArchiveErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "archive_errors_total",
			Help: "Total number of archive append failures",
		},
	)

	// System Metrics
	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "app_info",
			Help: "Application version and build information",
		},
		[]string{"version", "go_version"},
	)

	AppUptime = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "app_uptime_seconds",
			Help: "Application uptime in seconds",
		},
	)
)

// RecordProcessed records a message entering the pipeline
func RecordProcessed() {
	MessagesProcessed.Inc()
}

// RecordAcked records a message acknowledged to the broker
func RecordAcked() {
	MessagesAcked.Inc()
}

// RecordNacked records a message negatively acknowledged for redelivery
func RecordNacked() {
	MessagesNacked.Inc()
}

// RecordSkipped records a duplicate message skipped by deduplication
func RecordSkipped() {
	MessagesSkipped.Inc()
}

// RecordProcessingDuration records the duration of per-message processing
func RecordProcessingDuration(duration time.Duration) {
	MessageProcessingDuration.Observe(duration.Seconds())
}

// RecordValidation records a validation outcome
func RecordValidation(result string) {
	EventsValidated.WithLabelValues(result).Inc()
}

// RecordFlush records a batch flush attempt and its outcome
func RecordFlush(duration time.Duration, batchSize int, err error) {
	DBFlushDuration.Observe(duration.Seconds())
	if err != nil {
		DBFlushErrors.Inc()
		return
	}
	DBFlushSuccess.Inc()
	BatchEventsTotal.Add(float64(batchSize))
}

// RecordBatchTarget records a batch size chosen by the adaptive optimizer
func RecordBatchTarget(target int) {
	BatchSizeOptimized.Observe(float64(target))
}

// RecordBatchProcessingTime records time from batch opening to flush completion
func RecordBatchProcessingTime(duration time.Duration) {
	BatchProcessingTime.Observe(duration.Seconds())
}

// UpdateBatcherQueueDepth updates the batcher ingress queue gauge
func UpdateBatcherQueueDepth(depth int) {
	BatcherQueueDepth.Set(float64(depth))
}

// RecordCacheHit records a cache hit for the given cache
func RecordCacheHit(cache string) {
	CacheHits.WithLabelValues(cache).Inc()
}

// RecordCacheMiss records a cache miss for the given cache
func RecordCacheMiss(cache string) {
	CacheMisses.WithLabelValues(cache).Inc()
}

// RecordCacheError records a failed cache operation for the given cache
func RecordCacheError(cache string) {
	CacheErrors.WithLabelValues(cache).Inc()
}

// UpdateCacheHitRatio updates the metadata cache hit ratio gauge
func UpdateCacheHitRatio(ratio float64) {
	CacheHitRatio.Set(ratio)
}

// RecordDLQEntry records a message being written to the dead letter table
func RecordDLQEntry(category string) {
	DLQEntries.WithLabelValues(category).Inc()
}

// RecordDLQRetry records a dead letter retry attempt and its outcome
func RecordDLQRetry(success bool) {
	DLQRetryAttempts.Inc()
	if success {
		DLQRetrySuccess.Inc()
	} else {
		DLQRetryFailures.Inc()
	}
}

// UpdateDLQGauges updates dead letter gauge metrics with current stats
func UpdateDLQGauges(pendingEntries int64, oldestEntryAge float64) {
	DLQPendingEntries.Set(float64(pendingEntries))
	DLQOldestEntryAge.Set(oldestEntryAge)
}

// RecordBrokerReconnect records a broker reconnect event
func RecordBrokerReconnect() {
	BrokerReconnects.Inc()
}

// UpdateConsumerLag updates the durable consumer lag gauge
func UpdateConsumerLag(lag int64) {
	BrokerConsumerLag.Set(float64(lag))
}

// SetCircuitBreakerState sets the state gauge for the named breaker
func SetCircuitBreakerState(name string, state float64) {
	CircuitBreakerState.WithLabelValues(name).Set(state)
}

// RecordCircuitBreakerTransition records a state transition for the named breaker
func RecordCircuitBreakerTransition(name, fromState, toState string) {
	CircuitBreakerTransitions.WithLabelValues(name, fromState, toState).Inc()
}

// RecordArchiveAppend records an archive append and its outcome
func RecordArchiveAppend(count int, err error) {
	if err != nil {
		ArchiveErrors.Inc()
		return
	}
	ArchiveAppended.Add(float64(count))
}
