// Observability Hub - Event-Driven Observability Ingestion Pipeline
// Copyright 2026 Faruk Tunc (frktunc)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/frktunc/observability-hub

package batch

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/frktunc/observability-hub/internal/config"
	"github.com/frktunc/observability-hub/internal/dlq"
	"github.com/frktunc/observability-hub/internal/event"
	"github.com/frktunc/observability-hub/internal/metrics"
)

const (
	// flushTimeout bounds one write attempt against the store. The attempt
	// context is detached from the serve context so an in-flight
	// transaction can finish during shutdown.
	flushTimeout = 30 * time.Second

	// quarantineTimeout bounds moving one failed batch to the dead letter
	// store.
	quarantineTimeout = time.Minute

	// maxFlushBackoff caps the exponential backoff between flush attempts.
	maxFlushBackoff = time.Minute

	defaultBatchSize     = 500
	defaultBatchTimeout  = 5 * time.Second
	defaultRetryMax      = 5
	defaultRetryInterval = 2 * time.Second
)

// Flusher writes a batch of events to durable storage in one transaction.
type Flusher interface {
	FlushBatch(ctx context.Context, events []*event.Event) (inserted, duplicates int64, err error)
}

// Quarantiner persists failed events outside the primary store.
type Quarantiner interface {
	Quarantine(ctx context.Context, f dlq.Failure) error
}

// Item is one validated event awaiting a durable write, together with what
// is needed to settle its broker delivery afterwards. Event must be
// non-nil.
type Item struct {
	Event *event.Event

	// MessageID is the broker delivery id, used as the dead letter key.
	MessageID string

	// Subject the event arrived on.
	Subject string

	// Raw is the original message payload, preserved for quarantine.
	Raw []byte

	// Done is invoked exactly once when the item settles. A nil error
	// means the event is durable, in the primary store or the dead letter
	// store, and the delivery can be acked. A non-nil error means the
	// event is not durable anywhere and the delivery must be nacked for
	// redelivery.
	Done func(err error)
}

// flushResult carries the per-flush row accounting out of the breaker.
type flushResult struct {
	inserted   int64
	duplicates int64
}

// Batcher accumulates validated events and writes them to the store in
// bulk. It owns every store connection in the pipeline; workers only hand
// events to it. Flushes trigger on size, on the age of the oldest buffered
// event, and on shutdown. A batch that exhausts its flush retries moves to
// the dead letter store as a unit.
type Batcher struct {
	store      Flusher
	quarantine Quarantiner
	sizer      *Sizer
	breaker    *gobreaker.CircuitBreaker[flushResult]
	retry      *dlq.RetryPolicy
	cfg        config.BatchConfig
	in         chan Item
	logger     zerolog.Logger

	received    atomic.Int64
	flushed     atomic.Int64
	quarantined atomic.Int64
	flushErrors atomic.Int64
}

// Stats is a point-in-time snapshot of batcher progress.
type Stats struct {
	Received    int64
	Flushed     int64
	Quarantined int64
	FlushErrors int64
	QueueDepth  int
	QueueCap    int
	Target      int
}

// New builds a batcher. sizer may be nil, which pins the flush threshold
// to cfg.Size.
func New(store Flusher, quarantine Quarantiner, sizer *Sizer, cfg config.BatchConfig, logger zerolog.Logger) *Batcher {
	if cfg.Size <= 0 {
		cfg.Size = defaultBatchSize
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultBatchTimeout
	}
	if cfg.RetryMax <= 0 {
		cfg.RetryMax = defaultRetryMax
	}
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = defaultRetryInterval
	}
	log := logger.With().Str("component", "batch").Logger()
	if sizer == nil {
		sizer = NewSizer(cfg.Size, 0, nil, logger)
	}
	return &Batcher{
		store:      store,
		quarantine: quarantine,
		sizer:      sizer,
		breaker:    newFlushBreaker(log),
		retry:      dlq.NewRetryPolicy(cfg.RetryMax, cfg.RetryInterval, maxFlushBackoff, 2, 0.1),
		cfg:        cfg,
		in:         make(chan Item, 2*cfg.Size),
		logger:     log,
	}
}

// Enqueue hands one item to the batcher, blocking while the ingress
// channel is full. The returned error is non-nil only when ctx ends first;
// the caller still owns the delivery in that case.
func (b *Batcher) Enqueue(ctx context.Context, it Item) error {
	select {
	case b.in <- it:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Serve runs the accumulation loop until ctx ends, then drains the ingress
// channel and makes one final flush attempt. Implements suture.Service.
func (b *Batcher) Serve(ctx context.Context) error {
	b.logger.Info().
		Int("base_size", b.cfg.Size).
		Int("target", b.sizer.Current()).
		Dur("timeout", b.cfg.Timeout).
		Int("queue_capacity", cap(b.in)).
		Msg("batcher started")

	var (
		batch      = make([]Item, 0, b.cfg.Size)
		batchStart time.Time
		timer      *time.Timer
		timerC     <-chan time.Time
	)
	stopTimer := func() {
		if timer != nil {
			timer.Stop()
			timer = nil
			timerC = nil
		}
	}
	defer stopTimer()

	for {
		select {
		case <-ctx.Done():
			batch = b.drain(batch)
			b.finalFlush(batch)
			b.logger.Info().Msg("batcher stopped")
			return ctx.Err()

		case it := <-b.in:
			if len(batch) == 0 {
				batchStart = time.Now()
				timer = time.NewTimer(b.cfg.Timeout)
				timerC = timer.C
			}
			batch = append(batch, it)
			b.received.Add(1)
			metrics.UpdateBatcherQueueDepth(len(b.in))
			if len(batch) >= b.sizer.Target() {
				stopTimer()
				b.flush(ctx, batch, batchStart, "size")
				batch = batch[:0]
			}

		case <-timerC:
			// Armed only while the batch is non-empty.
			stopTimer()
			b.flush(ctx, batch, batchStart, "timeout")
			batch = batch[:0]
		}
	}
}

// String implements suture's service naming.
func (b *Batcher) String() string { return "batcher" }

// Stats reports batcher progress counters.
func (b *Batcher) Stats() Stats {
	return Stats{
		Received:    b.received.Load(),
		Flushed:     b.flushed.Load(),
		Quarantined: b.quarantined.Load(),
		FlushErrors: b.flushErrors.Load(),
		QueueDepth:  len(b.in),
		QueueCap:    cap(b.in),
		Target:      b.sizer.Current(),
	}
}

// flush writes the batch, retrying with exponential backoff. When every
// attempt fails the batch moves to the dead letter store as a unit. Write
// order within the batch matches arrival order.
func (b *Batcher) flush(ctx context.Context, batch []Item, startedAt time.Time, trigger string) {
	events := make([]*event.Event, len(batch))
	for i := range batch {
		events[i] = batch[i].Event
	}

	var (
		res flushResult
		err error
	)
	for attempt := 0; attempt < b.retry.MaxRetries; attempt++ {
		if attempt > 0 {
			if sleepContext(ctx, b.retry.CalculateBackoff(attempt-1)) != nil {
				// Shutting down. The last store error stands and the
				// batch goes to quarantine below.
				break
			}
			b.logger.Warn().
				Err(err).
				Int("attempt", attempt+1).
				Int("batch_size", len(events)).
				Msg("retrying batch flush")
		}

		res, err = b.flushOnce(events)
		if err == nil {
			break
		}
		b.flushErrors.Add(1)
		if dlq.IsPermanentError(err) {
			break
		}
	}

	metrics.RecordBatchProcessingTime(time.Since(startedAt))
	metrics.UpdateBatcherQueueDepth(len(b.in))

	if err != nil {
		b.quarantineBatch(batch, err)
		return
	}
	b.settle(batch, res, trigger)
}

// flushOnce makes one write attempt through the circuit breaker.
func (b *Batcher) flushOnce(events []*event.Event) (flushResult, error) {
	start := time.Now()
	res, err := b.breaker.Execute(func() (flushResult, error) {
		ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
		defer cancel()
		inserted, duplicates, err := b.store.FlushBatch(ctx, events)
		return flushResult{inserted: inserted, duplicates: duplicates}, err
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		// The store was never reached, so no flush attempt is recorded.
		return res, dlq.NewRetryableErrorWithCategory(dlq.CategoryCapacity, "flush rejected by open circuit", err)
	}
	metrics.RecordFlush(time.Since(start), len(events), err)
	return res, err
}

// finalFlush makes a single write attempt for whatever remains buffered at
// shutdown, then quarantines anything the store would not take.
func (b *Batcher) finalFlush(batch []Item) {
	if len(batch) == 0 {
		return
	}
	events := make([]*event.Event, len(batch))
	for i := range batch {
		events[i] = batch[i].Event
	}

	res, err := b.flushOnce(events)
	if err != nil {
		b.flushErrors.Add(1)
		b.logger.Warn().
			Err(err).
			Int("batch_size", len(batch)).
			Msg("shutdown flush failed, quarantining batch")
		b.quarantineBatch(batch, err)
		return
	}
	b.settle(batch, res, "shutdown")
}

// settle acks every item of a successfully written batch.
func (b *Batcher) settle(batch []Item, res flushResult, trigger string) {
	b.flushed.Add(int64(len(batch)))
	if res.duplicates > 0 {
		b.logger.Debug().
			Int64("duplicates", res.duplicates).
			Msg("key conflicts absorbed during flush")
	}
	b.logger.Debug().
		Str("trigger", trigger).
		Int("batch_size", len(batch)).
		Int64("inserted", res.inserted).
		Msg("batch flushed")
	for i := range batch {
		if done := batch[i].Done; done != nil {
			done(nil)
		}
	}
}

// quarantineBatch moves a failed batch to the dead letter store. Each item
// settles individually: durable entries ack, anything the dead letter
// store also refuses is nacked for redelivery. The context is detached so
// a canceled serve loop cannot strand events that can still be
// quarantined.
func (b *Batcher) quarantineBatch(batch []Item, cause error) {
	ctx, cancel := context.WithTimeout(context.Background(), quarantineTimeout)
	defer cancel()

	b.logger.Error().
		Err(cause).
		Int("batch_size", len(batch)).
		Msg("flush attempts exhausted, quarantining batch")

	for i := range batch {
		it := batch[i]
		err := b.quarantine.Quarantine(ctx, dlq.Failure{
			MessageID: it.MessageID,
			EventID:   it.Event.EventID,
			Subject:   it.Subject,
			Payload:   it.Raw,
			Err:       cause,
		})
		if err != nil {
			b.logger.Error().
				Err(err).
				Str("message_id", it.MessageID).
				Msg("quarantine failed, delivery will be redelivered")
		} else {
			b.quarantined.Add(1)
		}
		if it.Done != nil {
			it.Done(err)
		}
	}
}

// drain empties the ingress channel once the workers have stopped sending.
func (b *Batcher) drain(batch []Item) []Item {
	for {
		select {
		case it := <-b.in:
			b.received.Add(1)
			batch = append(batch, it)
		default:
			return batch
		}
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
