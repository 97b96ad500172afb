// Observability Hub - Event-Driven Observability Ingestion Pipeline
// Copyright 2026 Faruk Tunc (frktunc)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/frktunc/observability-hub

package pipeline

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/frktunc/observability-hub/internal/logging"
)

type fakeSource struct {
	mu     sync.Mutex
	subErr error
	chans  map[string]chan *message.Message
}

func newFakeSource() *fakeSource {
	return &fakeSource{chans: make(map[string]chan *message.Message)}
}

func (f *fakeSource) Subscribe(ctx context.Context, subject string) (<-chan *message.Message, error) {
	if f.subErr != nil {
		return nil, f.subErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	ch := make(chan *message.Message, 16)
	f.chans[subject] = ch
	return ch, nil
}

func (f *fakeSource) push(t *testing.T, subject string, msg *message.Message) {
	t.Helper()
	f.mu.Lock()
	ch, ok := f.chans[subject]
	f.mu.Unlock()
	if !ok {
		t.Fatalf("no subscription for %s", subject)
	}
	ch <- msg
}

func (f *fakeSource) drop(t *testing.T, subject string) {
	t.Helper()
	f.mu.Lock()
	ch, ok := f.chans[subject]
	delete(f.chans, subject)
	f.mu.Unlock()
	if !ok {
		t.Fatalf("no subscription for %s", subject)
	}
	close(ch)
}

func startPool(p *Pool) (context.CancelFunc, chan error) {
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- p.Serve(ctx) }()
	return cancel, errCh
}

func waitServe(t *testing.T, errCh chan error) error {
	t.Helper()
	select {
	case err := <-errCh:
		return err
	case <-time.After(2 * time.Second):
		t.Fatal("pool did not stop in time")
		return nil
	}
}

func waitFor(t *testing.T, d time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestPoolProcessesDeliveriesAcrossSubjects(t *testing.T) {
	enq := &fakeEnqueuer{}
	proc := newTestProcessor(enq, &fakeQuarantiner{}, &fakeDeduper{}, nil)
	src := newFakeSource()
	pool := NewPool(src, proc, []string{"logs.>", "metrics.>"}, 3, logging.NewTestLogger(io.Discard))

	cancel, errCh := startPool(pool)
	defer cancel()

	waitFor(t, time.Second, func() bool {
		src.mu.Lock()
		defer src.mu.Unlock()
		return len(src.chans) == 2
	})

	src.push(t, "logs.>", message.NewMessage("msg-1", logPayload(t, testEventID, "hello")))
	src.push(t, "metrics.>", message.NewMessage("msg-2", metricPayload(t, testEventID2)))

	waitFor(t, time.Second, func() bool { return enq.count() == 2 })

	subjects := map[string]bool{}
	for i := 0; i < 2; i++ {
		subjects[enq.item(t, i).Subject] = true
	}
	if !subjects["logs.checkout.created"] || !subjects["metrics.checkout.collected"] {
		t.Errorf("delivered subjects = %v, want both families", subjects)
	}
	if got := pool.Stats().HandedOff; got != 2 {
		t.Errorf("Stats().HandedOff = %d, want 2", got)
	}

	cancel()
	if err := waitServe(t, errCh); !errors.Is(err, context.Canceled) {
		t.Errorf("Serve() = %v, want context.Canceled", err)
	}
}

func TestPoolSubscribeFailureStopsServe(t *testing.T) {
	src := newFakeSource()
	src.subErr = errors.New("stream offline")
	proc := newTestProcessor(&fakeEnqueuer{}, &fakeQuarantiner{}, &fakeDeduper{}, nil)
	pool := NewPool(src, proc, []string{"logs.>"}, 2, logging.NewTestLogger(io.Discard))

	err := pool.Serve(context.Background())
	if err == nil || !strings.Contains(err.Error(), "subscribe logs.>") {
		t.Errorf("Serve() = %v, want subscribe error", err)
	}
}

func TestPoolReturnsWhenSubscriptionLost(t *testing.T) {
	src := newFakeSource()
	proc := newTestProcessor(&fakeEnqueuer{}, &fakeQuarantiner{}, &fakeDeduper{}, nil)
	pool := NewPool(src, proc, []string{"logs.>", "metrics.>"}, 2, logging.NewTestLogger(io.Discard))

	cancel, errCh := startPool(pool)
	defer cancel()

	waitFor(t, time.Second, func() bool {
		src.mu.Lock()
		defer src.mu.Unlock()
		return len(src.chans) == 2
	})

	// A closed delivery channel means the broker dropped the consumer. Serve
	// must report it so the supervisor resubscribes.
	src.drop(t, "logs.>")

	err := waitServe(t, errCh)
	if err == nil || !strings.Contains(err.Error(), "logs.>") {
		t.Errorf("Serve() = %v, want lost subscription error naming the subject", err)
	}
	if errors.Is(err, context.Canceled) {
		t.Error("lost subscription must not be reported as a normal stop")
	}
}

func TestPoolStopsOnCancel(t *testing.T) {
	src := newFakeSource()
	proc := newTestProcessor(&fakeEnqueuer{}, &fakeQuarantiner{}, &fakeDeduper{}, nil)
	pool := NewPool(src, proc, []string{"logs.>"}, 2, logging.NewTestLogger(io.Discard))

	cancel, errCh := startPool(pool)
	waitFor(t, time.Second, func() bool {
		src.mu.Lock()
		defer src.mu.Unlock()
		return len(src.chans) == 1
	})

	cancel()
	if err := waitServe(t, errCh); !errors.Is(err, context.Canceled) {
		t.Errorf("Serve() = %v, want context.Canceled", err)
	}
}

func TestPoolString(t *testing.T) {
	pool := NewPool(newFakeSource(), nil, nil, 0, logging.NewTestLogger(io.Discard))
	if got := pool.String(); got != "worker-pool" {
		t.Errorf("String() = %q, want worker-pool", got)
	}
}
