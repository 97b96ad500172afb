// Observability Hub - Event-Driven Observability Ingestion Pipeline
// Copyright 2026 Faruk Tunc (frktunc)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/frktunc/observability-hub

package pipeline

import (
	"context"
	"strings"
	"sync/atomic"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/frktunc/observability-hub/internal/batch"
	"github.com/frktunc/observability-hub/internal/config"
	"github.com/frktunc/observability-hub/internal/dedup"
	"github.com/frktunc/observability-hub/internal/dlq"
	"github.com/frktunc/observability-hub/internal/event"
	"github.com/frktunc/observability-hub/internal/metrics"
	"github.com/frktunc/observability-hub/internal/validation"
)

const (
	defaultDedupTTL     = 24 * time.Hour
	defaultCacheTimeout = 500 * time.Millisecond
)

// Validation outcome labels on the events_validated_total counter.
const (
	resultValid              = "valid"
	resultInvalid            = "invalid"
	resultMalformed          = "malformed"
	resultUnsupportedVersion = "unsupported_version"
)

// Enqueuer accepts events for batched persistence, blocking while the
// batcher ingress is full. The batcher satisfies it.
type Enqueuer interface {
	Enqueue(ctx context.Context, it batch.Item) error
}

// Quarantiner persists poison messages to the dead letter store.
type Quarantiner interface {
	Quarantine(ctx context.Context, f dlq.Failure) error
}

// Processor runs one delivery through the pipeline stages and owns its
// terminal disposition. Poison and duplicates are acked inline; handed-off
// deliveries are settled by the batcher's post-flush callback.
type Processor struct {
	batcher    Enqueuer
	quarantine Quarantiner
	validator  *validation.Validator
	deduper    dedup.Deduper
	meta       *dedup.MetadataCache

	dedupTTL  time.Duration
	opTimeout time.Duration
	logger    zerolog.Logger

	received  atomic.Int64
	handedOff atomic.Int64
	skipped   atomic.Int64
	poisoned  atomic.Int64
}

// Stats is a point-in-time snapshot of processor counters.
type Stats struct {
	// Received counts deliveries entering the pipeline.
	Received int64
	// HandedOff counts events accepted by the batcher.
	HandedOff int64
	// Skipped counts duplicate deliveries acked without a write.
	Skipped int64
	// Poisoned counts undecodable or invalid messages quarantined.
	Poisoned int64
}

// NewProcessor builds the per-delivery pipeline. meta may be nil when no
// metadata cache is configured; rendering then happens per row at flush.
func NewProcessor(batcher Enqueuer, quarantine Quarantiner, validator *validation.Validator, deduper dedup.Deduper, meta *dedup.MetadataCache, cache config.CacheConfig, logger zerolog.Logger) *Processor {
	if cache.DedupTTL <= 0 {
		cache.DedupTTL = defaultDedupTTL
	}
	if cache.Timeout <= 0 {
		cache.Timeout = defaultCacheTimeout
	}
	return &Processor{
		batcher:    batcher,
		quarantine: quarantine,
		validator:  validator,
		deduper:    deduper,
		meta:       meta,
		dedupTTL:   cache.DedupTTL,
		opTimeout:  cache.Timeout,
		logger:     logger.With().Str("component", "pipeline").Logger(),
	}
}

// Process runs one delivery to terminal disposition. It returns once the
// message is acked, nacked, or handed to the batcher with a settle callback
// registered; it never returns with the delivery dangling.
func (p *Processor) Process(ctx context.Context, subject string, msg *message.Message) {
	start := time.Now()
	p.received.Add(1)
	metrics.RecordProcessed()

	e, err := event.Decode(msg.Payload)
	if err != nil {
		metrics.RecordValidation(resultMalformed)
		p.quarantinePoison(ctx, msg, dlq.Failure{
			MessageID: msg.UUID,
			Subject:   subjectRoot(subject),
			Payload:   msg.Payload,
			Err:       dlq.NewPermanentErrorWithCategory(dlq.CategoryValidation, "decode event", err),
		})
		return
	}

	if verr := p.validator.Validate(e); verr != nil {
		metrics.RecordValidation(validationResult(verr))
		p.quarantinePoison(ctx, msg, dlq.Failure{
			MessageID: msg.UUID,
			EventID:   e.EventID,
			Subject:   e.Subject(),
			Payload:   msg.Payload,
			Err:       dlq.NewPermanentErrorWithCategory(dlq.CategoryValidation, "validate event", verr),
		})
		return
	}
	metrics.RecordValidation(resultValid)

	if p.isDuplicate(ctx, e.EventID) {
		p.skipped.Add(1)
		metrics.RecordSkipped()
		p.ack(msg)
		metrics.RecordProcessingDuration(time.Since(start))
		return
	}
	p.markProcessed(ctx, e.EventID)
	renderSource(p.meta, e)

	it := batch.Item{
		Event:     e,
		MessageID: msg.UUID,
		Subject:   e.Subject(),
		Raw:       msg.Payload,
		Done:      p.settle(msg),
	}
	if err := p.batcher.Enqueue(ctx, it); err != nil {
		// Shutdown arrived while blocked on a full batcher. The broker
		// redelivers once the ack deadline lapses.
		p.nack(msg)
		return
	}
	p.handedOff.Add(1)
	metrics.RecordProcessingDuration(time.Since(start))
}

// Stats returns a snapshot of the processor counters.
func (p *Processor) Stats() Stats {
	return Stats{
		Received:  p.received.Load(),
		HandedOff: p.handedOff.Load(),
		Skipped:   p.skipped.Load(),
		Poisoned:  p.poisoned.Load(),
	}
}

// quarantinePoison parks a message that can never succeed and acks it so
// the broker stops redelivering the same bytes. When the park itself fails
// the delivery is released for redelivery instead.
func (p *Processor) quarantinePoison(ctx context.Context, msg *message.Message, f dlq.Failure) {
	if err := p.quarantine.Quarantine(ctx, f); err != nil {
		p.logger.Error().
			Err(err).
			Str("message_id", f.MessageID).
			Msg("Quarantine failed, releasing delivery")
		p.nack(msg)
		return
	}
	p.poisoned.Add(1)
	p.ack(msg)
}

// isDuplicate consults the dedup backend. A degraded backend reports false:
// availability wins, and the store key constraint absorbs what slips
// through.
func (p *Processor) isDuplicate(ctx context.Context, eventID string) bool {
	opCtx, cancel := context.WithTimeout(ctx, p.opTimeout)
	defer cancel()

	dup, err := p.deduper.IsDuplicate(opCtx, eventID)
	if err != nil {
		p.logger.Debug().Err(err).Str("event_id", eventID).Msg("Dedup lookup degraded")
		return false
	}
	return dup
}

// markProcessed is best effort. An unmarked event admits a duplicate
// delivery at worst, which the store absorbs.
func (p *Processor) markProcessed(ctx context.Context, eventID string) {
	opCtx, cancel := context.WithTimeout(ctx, p.opTimeout)
	defer cancel()

	if err := p.deduper.MarkProcessed(opCtx, eventID, p.dedupTTL); err != nil {
		p.logger.Debug().Err(err).Str("event_id", eventID).Msg("Dedup mark failed")
	}
}

// settle builds the post-flush callback for one delivery. A nil error means
// the event is durable in the primary or dead letter store.
func (p *Processor) settle(msg *message.Message) func(error) {
	return func(err error) {
		if err != nil {
			p.nack(msg)
			return
		}
		p.ack(msg)
	}
}

func (p *Processor) ack(msg *message.Message) {
	msg.Ack()
	metrics.RecordAcked()
}

func (p *Processor) nack(msg *message.Message) {
	msg.Nack()
	metrics.RecordNacked()
}

// renderSource attaches the producer's serialized Source block, shared
// through the metadata cache across all events of one producer. The hit
// ratio this traffic generates steers the adaptive batch sizer.
func renderSource(meta *dedup.MetadataCache, e *event.Event) {
	if meta == nil {
		return
	}
	key := dedup.MetaKey(e.Source.Service, e.Source.Version, e.Metadata.Environment, e.Source.Instance)
	block, err := meta.GetOrBuild(key, func() ([]byte, error) {
		return json.Marshal(e.Source)
	})
	if err != nil {
		return
	}
	e.SetSourceJSON(block)
}

// validationResult maps a validation failure onto its counter label.
func validationResult(err error) string {
	if verr, ok := validation.AsValidationError(err); ok && verr.Code == validation.CodeUnsupportedVersion {
		return resultUnsupportedVersion
	}
	return resultInvalid
}

// subjectRoot reduces a subscription pattern to a publishable subject,
// "logs.>" to "logs", for failures with no decoded event to name one.
func subjectRoot(pattern string) string {
	root, _, _ := strings.Cut(pattern, ".")
	return root
}
