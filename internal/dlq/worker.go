// Observability Hub - Event-Driven Observability Ingestion Pipeline
// Copyright 2026 Faruk Tunc (frktunc)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/frktunc/observability-hub

package dlq

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/frktunc/observability-hub/internal/metrics"
)

const (
	// retryScanLimit caps how many entries one pass pulls from the store.
	// Anything beyond it waits for the next tick.
	retryScanLimit = 256

	// Resolved rows are kept for a week so operators can audit what was
	// replayed, then swept hourly.
	resolvedRetention = 7 * 24 * time.Hour
	cleanupInterval   = time.Hour
)

// RetryFunc replays one quarantined entry through the pipeline. A nil
// return means the event is durable again and the entry can be resolved.
type RetryFunc func(ctx context.Context, e *Entry) error

// AutoRetryWorker periodically replays retryable dead letter entries. Runs
// under the supervision tree.
type AutoRetryWorker struct {
	store   Store
	retry   RetryFunc
	policy  *RetryPolicy
	limiter *rate.Limiter

	interval    time.Duration
	lastCleanup time.Time
	logger      zerolog.Logger
	now         func() time.Time
}

// NewAutoRetryWorker builds a retry worker scanning every interval and
// replaying at most perSecond entries per second.
func NewAutoRetryWorker(store Store, retry RetryFunc, policy *RetryPolicy, interval time.Duration, perSecond float64, logger zerolog.Logger) *AutoRetryWorker {
	if policy == nil {
		policy = DefaultRetryPolicy()
	}
	if interval <= 0 {
		interval = 30 * time.Second
	}
	if perSecond <= 0 {
		perSecond = 1
	}
	burst := int(perSecond)
	if burst < 1 {
		burst = 1
	}
	return &AutoRetryWorker{
		store:    store,
		retry:    retry,
		policy:   policy,
		limiter:  rate.NewLimiter(rate.Limit(perSecond), burst),
		interval: interval,
		logger:   logger.With().Str("component", "dlq-retry").Logger(),
		now:      time.Now,
	}
}

// Serve runs the scan loop until ctx is canceled.
func (w *AutoRetryWorker) Serve(ctx context.Context) error {
	w.logger.Info().
		Dur("interval", w.interval).
		Float64("rate_per_second", float64(w.limiter.Limit())).
		Msg("DLQ retry worker started")

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.runOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			w.logger.Info().Msg("DLQ retry worker stopped")
			return ctx.Err()
		case <-ticker.C:
			w.runOnce(ctx)
		}
	}
}

func (w *AutoRetryWorker) String() string { return "dlq-retry-worker" }

func (w *AutoRetryWorker) runOnce(ctx context.Context) {
	w.updateGauges(ctx)
	w.cleanupResolved(ctx)

	entries, err := w.store.PendingRetries(ctx, w.now(), retryScanLimit)
	if err != nil {
		w.logger.Error().Err(err).Msg("Dead letter scan failed")
		return
	}
	if len(entries) == 0 {
		return
	}
	w.logger.Debug().Int("count", len(entries)).Msg("Replaying dead letter entries")

	for _, entry := range entries {
		if err := w.limiter.Wait(ctx); err != nil {
			return
		}
		w.processEntry(ctx, entry)
	}
}

func (w *AutoRetryWorker) processEntry(ctx context.Context, entry *Entry) {
	err := w.retry(ctx, entry)
	entry.markAttempt(err, w.policy, w.now())

	if uerr := w.store.Update(ctx, entry); uerr != nil {
		// The row keeps its old schedule and is picked up again next
		// scan; a duplicate replay is absorbed downstream.
		w.logger.Error().
			Err(uerr).
			Str("message_id", entry.MessageID).
			Msg("Dead letter update failed")
		return
	}

	metrics.RecordDLQRetry(err == nil)
	if err == nil {
		w.logger.Info().
			Str("message_id", entry.MessageID).
			Str("event_id", entry.EventID).
			Int("attempts", entry.RetryCount).
			Msg("Dead letter entry replayed")
		return
	}
	evt := w.logger.Warn().
		Err(err).
		Str("message_id", entry.MessageID).
		Int("retry_count", entry.RetryCount).
		Int("max_retries", entry.MaxRetries)
	if entry.Exhausted() || !entry.Retryable {
		evt.Msg("Dead letter entry gave up")
	} else {
		evt.Time("next_retry_at", entry.NextRetryAt).Msg("Dead letter replay failed")
	}
}

func (w *AutoRetryWorker) updateGauges(ctx context.Context) {
	pending, oldest, err := w.store.UnresolvedStats(ctx)
	if err != nil {
		w.logger.Debug().Err(err).Msg("Dead letter stats unavailable")
		return
	}
	var age float64
	if !oldest.IsZero() {
		age = w.now().Sub(oldest).Seconds()
	}
	metrics.UpdateDLQGauges(pending, age)
}

func (w *AutoRetryWorker) cleanupResolved(ctx context.Context) {
	if w.now().Sub(w.lastCleanup) < cleanupInterval {
		return
	}
	w.lastCleanup = w.now()

	deleted, err := w.store.DeleteResolved(ctx, w.now().Add(-resolvedRetention))
	if err != nil {
		w.logger.Warn().Err(err).Msg("Dead letter cleanup failed")
		return
	}
	if deleted > 0 {
		w.logger.Info().Int64("deleted", deleted).Msg("Swept resolved dead letter entries")
	}
}
