// Observability Hub - Event-Driven Observability Ingestion Pipeline
// Copyright 2026 Faruk Tunc (frktunc)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/frktunc/observability-hub

package dlq

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/frktunc/observability-hub/internal/metrics"
)

const poisonPublishTimeout = 5 * time.Second

// PoisonPublisher mirrors quarantined messages onto the broker's dead
// letter subjects for external tooling. The broker package adapts its
// publisher to this.
type PoisonPublisher interface {
	PublishPoison(ctx context.Context, subject, messageID string, payload []byte) error
}

// Handler quarantines failed messages. The store write is the durability
// boundary: a caller may ack the broker delivery once Quarantine returns
// nil, and must not before.
type Handler struct {
	store  Store
	poison PoisonPublisher
	policy *RetryPolicy
	logger zerolog.Logger

	now func() time.Time
}

// NewHandler builds a quarantine handler. poison may be nil when no dead
// letter subjects are configured.
func NewHandler(store Store, poison PoisonPublisher, policy *RetryPolicy, logger zerolog.Logger) *Handler {
	if policy == nil {
		policy = DefaultRetryPolicy()
	}
	return &Handler{
		store:  store,
		poison: poison,
		policy: policy,
		logger: logger.With().Str("component", "dlq").Logger(),
		now:    time.Now,
	}
}

// Quarantine persists the failure to the dead letter store, retrying with
// backoff on store errors. It returns nil only once the row is durable;
// the caller keeps the delivery unacked otherwise.
func (h *Handler) Quarantine(ctx context.Context, f Failure) error {
	entry := NewEntry(f, h.policy, h.now())

	var saveErr error
	for attempt := 0; attempt < h.policy.MaxRetries; attempt++ {
		if attempt > 0 {
			if err := sleepContext(ctx, h.policy.CalculateBackoff(attempt-1)); err != nil {
				return err
			}
		}
		if saveErr = h.store.Save(ctx, entry); saveErr == nil {
			break
		}
		h.logger.Warn().
			Err(saveErr).
			Str("message_id", f.MessageID).
			Int("attempt", attempt+1).
			Msg("Dead letter store write failed")
	}
	if saveErr != nil {
		return NewRetryableErrorWithCategory(CategoryDatabase, "persist dead letter entry", saveErr)
	}

	metrics.RecordDLQEntry(entry.Category.String())
	h.logger.Warn().
		Str("message_id", f.MessageID).
		Str("event_id", f.EventID).
		Str("subject", f.Subject).
		Str("category", entry.Category.String()).
		Bool("retryable", entry.Retryable).
		Str("error", entry.ErrorMessage).
		Msg("Message quarantined")

	h.publishPoison(f)
	return nil
}

// publishPoison copies the original bytes to dlq.<subject>. Best effort: a
// publish failure loses nothing because the store row already committed.
func (h *Handler) publishPoison(f Failure) {
	if h.poison == nil {
		return
	}

	// Detached from the caller so a shutdown cancellation cannot cut the
	// publish short; the timeout bounds it instead.
	ctx, cancel := context.WithTimeout(context.Background(), poisonPublishTimeout)
	defer cancel()

	if err := h.poison.PublishPoison(ctx, f.Subject, f.MessageID, f.Payload); err != nil {
		h.logger.Warn().
			Err(err).
			Str("message_id", f.MessageID).
			Str("subject", f.Subject).
			Msg("Poison publish failed")
	}
}

// sleepContext waits for d or until ctx is done, whichever comes first.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
