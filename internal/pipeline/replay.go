// Observability Hub - Event-Driven Observability Ingestion Pipeline
// Copyright 2026 Faruk Tunc (frktunc)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/frktunc/observability-hub

package pipeline

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/frktunc/observability-hub/internal/dedup"
	"github.com/frktunc/observability-hub/internal/dlq"
	"github.com/frktunc/observability-hub/internal/event"
	"github.com/frktunc/observability-hub/internal/validation"
)

// Flusher writes events straight to the primary store. Replays bypass the
// batcher so the flush outcome surfaces synchronously to the retry
// scheduler.
type Flusher interface {
	FlushBatch(ctx context.Context, events []*event.Event) (inserted, duplicates int64, err error)
}

// Replayer re-injects quarantined events once the fault that parked them
// clears. Replay deliberately skips the duplicate check: an event that
// reached the batcher was dedup-marked before its batch failed, so the
// short-circuit would discard the only remaining copy. The store key
// constraint absorbs genuine duplicates instead.
type Replayer struct {
	store     Flusher
	validator *validation.Validator
	meta      *dedup.MetadataCache
	logger    zerolog.Logger
}

// NewReplayer builds the replay function backing the dead letter auto-retry
// worker.
func NewReplayer(store Flusher, validator *validation.Validator, meta *dedup.MetadataCache, logger zerolog.Logger) *Replayer {
	return &Replayer{
		store:     store,
		validator: validator,
		meta:      meta,
		logger:    logger.With().Str("component", "replay").Logger(),
	}
}

// Replay decodes, validates, and writes one quarantined payload. A nil
// return means the event is durable in the primary store and the entry can
// be resolved. It satisfies dlq.RetryFunc.
func (r *Replayer) Replay(ctx context.Context, entry *dlq.Entry) error {
	e, err := event.Decode(entry.Payload)
	if err != nil {
		return dlq.NewPermanentErrorWithCategory(dlq.CategoryValidation, "decode event", err)
	}
	if verr := r.validator.Validate(e); verr != nil {
		return dlq.NewPermanentErrorWithCategory(dlq.CategoryValidation, "validate event", verr)
	}
	renderSource(r.meta, e)

	inserted, duplicates, err := r.store.FlushBatch(ctx, []*event.Event{e})
	if err != nil {
		return err
	}

	r.logger.Info().
		Str("message_id", entry.MessageID).
		Str("event_id", e.EventID).
		Int64("inserted", inserted).
		Int64("duplicates", duplicates).
		Msg("Quarantined event replayed")
	return nil
}
