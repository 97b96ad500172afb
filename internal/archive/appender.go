// Observability Hub - Event-Driven Observability Ingestion Pipeline
// Copyright 2026 Faruk Tunc (frktunc)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/frktunc/observability-hub

package archive

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/frktunc/observability-hub/internal/event"
	"github.com/frktunc/observability-hub/internal/metrics"
)

const (
	defaultBatchSize     = 500
	defaultFlushInterval = 30 * time.Second
	// flushTimeout bounds a single write. Flush contexts are detached from
	// the caller so shutdown cannot abort an in-flight transaction.
	flushTimeout = 30 * time.Second
	// bufferFactor bounds the buffer at a multiple of the batch size. Past
	// the bound new events are dropped, keeping a broken archive from
	// growing memory without limit.
	bufferFactor = 8
)

// Writer is the archive write port. *Store implements it.
type Writer interface {
	InsertEvents(ctx context.Context, events []*event.Event) error
}

// Stats is a point-in-time snapshot of appender progress.
type Stats struct {
	Received   int64
	Archived   int64
	Dropped    int64
	Flushes    int64
	Errors     int64
	BufferSize int
}

// Appender buffers mirrored events and writes them in batches, on a size
// threshold and on an interval. Append never blocks and never fails; a full
// buffer drops events and counts them.
type Appender struct {
	store    Writer
	size     int
	maxBuf   int
	interval time.Duration
	logger   zerolog.Logger

	mu     sync.Mutex
	buffer []*event.Event

	// flushMu serializes flushes so timer-based and size-triggered flushes
	// cannot interleave writes.
	flushMu sync.Mutex
	flushWg sync.WaitGroup
	closed  atomic.Bool

	received atomic.Int64
	archived atomic.Int64
	dropped  atomic.Int64
	flushes  atomic.Int64
	errors   atomic.Int64
}

// NewAppender builds an appender over store. size is the flush threshold and
// write chunk size; interval is the idle flush period. Non-positive values
// select defaults.
func NewAppender(store Writer, size int, interval time.Duration, logger zerolog.Logger) *Appender {
	if size <= 0 {
		size = defaultBatchSize
	}
	if interval <= 0 {
		interval = defaultFlushInterval
	}
	return &Appender{
		store:    store,
		size:     size,
		maxBuf:   bufferFactor * size,
		interval: interval,
		logger:   logger.With().Str("component", "archive").Logger(),
		buffer:   make([]*event.Event, 0, size),
	}
}

// Append buffers events for archiving. Events offered after shutdown or past
// the buffer bound are dropped.
func (a *Appender) Append(events ...*event.Event) {
	if len(events) == 0 {
		return
	}
	a.received.Add(int64(len(events)))

	if a.closed.Load() {
		a.dropped.Add(int64(len(events)))
		return
	}

	a.mu.Lock()
	room := a.maxBuf - len(a.buffer)
	if room <= 0 {
		a.mu.Unlock()
		a.dropped.Add(int64(len(events)))
		return
	}
	take := events
	if len(take) > room {
		a.dropped.Add(int64(len(take) - room))
		take = take[:room]
	}
	a.buffer = append(a.buffer, take...)
	needsFlush := len(a.buffer) >= a.size
	a.mu.Unlock()

	if needsFlush {
		a.flushWg.Add(1)
		go func() {
			defer a.flushWg.Done()
			a.flush()
		}()
	}
}

// Serve runs the interval flush loop until ctx is canceled, then drains the
// buffer with one final flush.
func (a *Appender) Serve(ctx context.Context) error {
	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	a.logger.Info().
		Int("batch_size", a.size).
		Dur("flush_interval", a.interval).
		Msg("Archive appender started")

	for {
		select {
		case <-ctx.Done():
			a.closed.Store(true)
			a.flushWg.Wait()

			flushCtx, cancel := context.WithTimeout(context.Background(), flushTimeout)
			err := a.flushSync(flushCtx)
			cancel()
			if err != nil {
				a.logger.Warn().Err(err).Msg("Final archive flush failed")
			}
			a.logger.Info().Msg("Archive appender stopped")
			return ctx.Err()
		case <-ticker.C:
			a.flush()
		}
	}
}

// String names the appender in supervisor logs.
func (a *Appender) String() string { return "archive-appender" }

// Stats returns a snapshot of appender progress.
func (a *Appender) Stats() Stats {
	a.mu.Lock()
	bufferSize := len(a.buffer)
	a.mu.Unlock()

	return Stats{
		Received:   a.received.Load(),
		Archived:   a.archived.Load(),
		Dropped:    a.dropped.Load(),
		Flushes:    a.flushes.Load(),
		Errors:     a.errors.Load(),
		BufferSize: bufferSize,
	}
}

// flush runs a detached flush and logs failures. Errors are already counted
// by flushSync.
func (a *Appender) flush() {
	ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
	defer cancel()
	if err := a.flushSync(ctx); err != nil {
		a.logger.Debug().Err(err).Msg("Archive flush failed")
	}
}

// flushSync takes ownership of the buffer and writes it in chunks. A failed
// chunk puts the unwritten remainder back for the next attempt, within the
// buffer bound.
func (a *Appender) flushSync(ctx context.Context) error {
	a.flushMu.Lock()
	defer a.flushMu.Unlock()

	a.mu.Lock()
	if len(a.buffer) == 0 {
		a.mu.Unlock()
		return nil
	}
	events := a.buffer
	a.buffer = make([]*event.Event, 0, a.size)
	a.mu.Unlock()

	for start := 0; start < len(events); start += a.size {
		end := start + a.size
		if end > len(events) {
			end = len(events)
		}
		chunk := events[start:end]

		if err := a.store.InsertEvents(ctx, chunk); err != nil {
			a.errors.Add(1)
			metrics.RecordArchiveAppend(0, err)
			a.restore(events[start:])
			return fmt.Errorf("archive chunk %d-%d: %w", start, end, err)
		}
		a.archived.Add(int64(len(chunk)))
		a.flushes.Add(1)
		metrics.RecordArchiveAppend(len(chunk), nil)
	}
	return nil
}

// restore puts unwritten events back at the front of the buffer so order
// survives a retry. Overflow past the bound is dropped from the newest end.
func (a *Appender) restore(events []*event.Event) {
	a.mu.Lock()
	defer a.mu.Unlock()

	combined := make([]*event.Event, 0, len(events)+len(a.buffer))
	combined = append(combined, events...)
	combined = append(combined, a.buffer...)
	if len(combined) > a.maxBuf {
		a.dropped.Add(int64(len(combined) - a.maxBuf))
		combined = combined[:a.maxBuf]
	}
	a.buffer = combined
}
