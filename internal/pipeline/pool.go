// Observability Hub - Event-Driven Observability Ingestion Pipeline
// Copyright 2026 Faruk Tunc (frktunc)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/frktunc/observability-hub

package pipeline

import (
	"context"
	"fmt"
	"sync"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/rs/zerolog"
)

const defaultWorkers = 20

// Source delivers broker messages per subject. The broker subscriber
// satisfies it.
type Source interface {
	Subscribe(ctx context.Context, subject string) (<-chan *message.Message, error)
}

// delivery carries one message together with the subject it arrived on.
type delivery struct {
	subject string
	msg     *message.Message
}

// Pool owns the broker subscriptions and the fixed worker set that
// processes deliveries. It runs under the supervision tree: a lost
// subscription surfaces as a Serve error so the supervisor resubscribes
// with backoff.
type Pool struct {
	source   Source
	proc     *Processor
	subjects []string
	workers  int
	logger   zerolog.Logger
}

// NewPool builds a pool of workers consuming the given subjects.
func NewPool(source Source, proc *Processor, subjects []string, workers int, logger zerolog.Logger) *Pool {
	if workers <= 0 {
		workers = defaultWorkers
	}
	return &Pool{
		source:   source,
		proc:     proc,
		subjects: subjects,
		workers:  workers,
		logger:   logger.With().Str("component", "worker-pool").Logger(),
	}
}

// Serve subscribes to every subject and processes deliveries until ctx is
// canceled or a subscription closes. On shutdown each worker finishes the
// delivery in hand; everything unacked is redelivered by the broker.
func (p *Pool) Serve(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	deliveries := make(chan delivery)
	lost := make(chan string, len(p.subjects))

	var forwarders sync.WaitGroup
	for _, subject := range p.subjects {
		msgs, err := p.source.Subscribe(ctx, subject)
		if err != nil {
			cancel()
			forwarders.Wait()
			return fmt.Errorf("subscribe %s: %w", subject, err)
		}
		forwarders.Add(1)
		go func(subject string, msgs <-chan *message.Message) {
			defer forwarders.Done()
			p.forward(ctx, subject, msgs, deliveries, lost)
		}(subject, msgs)
	}

	var workers sync.WaitGroup
	for i := 0; i < p.workers; i++ {
		workers.Add(1)
		go func() {
			defer workers.Done()
			p.work(ctx, deliveries)
		}()
	}

	p.logger.Info().
		Int("workers", p.workers).
		Strs("subjects", p.subjects).
		Msg("Worker pool started")

	var failure error
	select {
	case <-ctx.Done():
	case subject := <-lost:
		failure = fmt.Errorf("subscription %s closed by broker", subject)
		cancel()
	}

	forwarders.Wait()
	close(deliveries)
	workers.Wait()

	if failure != nil {
		p.logger.Error().Err(failure).Msg("Worker pool lost its subscription")
		return failure
	}
	p.logger.Info().Msg("Worker pool stopped")
	return ctx.Err()
}

func (p *Pool) String() string { return "worker-pool" }

// Stats returns the counters of the underlying processor.
func (p *Pool) Stats() Stats { return p.proc.Stats() }

// forward moves one subscription's messages into the shared delivery
// channel, tagging each with its subject. A message already pulled when
// shutdown arrives is nacked so the broker redelivers it promptly.
func (p *Pool) forward(ctx context.Context, subject string, msgs <-chan *message.Message, out chan<- delivery, lost chan<- string) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-msgs:
			if !ok {
				lost <- subject
				return
			}
			select {
			case out <- delivery{subject: subject, msg: msg}:
			case <-ctx.Done():
				msg.Nack()
				return
			}
		}
	}
}

// work pulls deliveries one at a time until shutdown or channel close. The
// delivery in hand always runs to terminal disposition.
func (p *Pool) work(ctx context.Context, deliveries <-chan delivery) {
	for {
		select {
		case <-ctx.Done():
			return
		case d, ok := <-deliveries:
			if !ok {
				return
			}
			p.proc.Process(ctx, d.subject, d.msg)
		}
	}
}
