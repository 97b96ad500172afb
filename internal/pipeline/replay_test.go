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

	"github.com/frktunc/observability-hub/internal/dedup"
	"github.com/frktunc/observability-hub/internal/dlq"
	"github.com/frktunc/observability-hub/internal/event"
	"github.com/frktunc/observability-hub/internal/logging"
	"github.com/frktunc/observability-hub/internal/validation"
)

type fakeReplayStore struct {
	mu         sync.Mutex
	err        error
	duplicates int64
	batches    [][]*event.Event
}

func (f *fakeReplayStore) FlushBatch(ctx context.Context, events []*event.Event) (int64, int64, error) {
	if f.err != nil {
		return 0, 0, f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := make([]*event.Event, len(events))
	copy(cp, events)
	f.batches = append(f.batches, cp)
	if f.duplicates > 0 {
		return int64(len(events)) - f.duplicates, f.duplicates, nil
	}
	return int64(len(events)), 0, nil
}

func newTestReplayer(store *fakeReplayStore, meta *dedup.MetadataCache) *Replayer {
	return NewReplayer(store, validation.New(1, time.Minute), meta, logging.NewTestLogger(io.Discard))
}

func TestReplayWritesQuarantinedEvent(t *testing.T) {
	store := &fakeReplayStore{}
	r := newTestReplayer(store, nil)

	entry := &dlq.Entry{MessageID: "msg-1", Payload: logPayload(t, testEventID, "hello")}
	if err := r.Replay(context.Background(), entry); err != nil {
		t.Fatalf("Replay() error = %v", err)
	}

	store.mu.Lock()
	defer store.mu.Unlock()
	if len(store.batches) != 1 || len(store.batches[0]) != 1 {
		t.Fatalf("store received %d batches, want one single-event batch", len(store.batches))
	}
	if got := store.batches[0][0].EventID; got != testEventID {
		t.Errorf("replayed EventID = %q, want %s", got, testEventID)
	}
}

func TestReplayAbsorbsDuplicateRow(t *testing.T) {
	store := &fakeReplayStore{duplicates: 1}
	r := newTestReplayer(store, nil)

	entry := &dlq.Entry{MessageID: "msg-1", Payload: logPayload(t, testEventID, "hello")}
	if err := r.Replay(context.Background(), entry); err != nil {
		t.Errorf("Replay() = %v, want nil when the row already exists", err)
	}
}

func TestReplayRejectsPoisonPermanently(t *testing.T) {
	store := &fakeReplayStore{}
	r := newTestReplayer(store, nil)

	entry := &dlq.Entry{MessageID: "msg-1", Payload: []byte(`{"eventId": broken`)}
	err := r.Replay(context.Background(), entry)
	if err == nil || !strings.Contains(err.Error(), "Malformed") {
		t.Errorf("Replay() = %v, want Malformed decode error", err)
	}
	if !dlq.IsPermanentError(err) {
		t.Error("decode failure should stop further retries")
	}
	store.mu.Lock()
	defer store.mu.Unlock()
	if len(store.batches) != 0 {
		t.Errorf("store received %d batches for poison payload, want 0", len(store.batches))
	}
}

func TestReplayRejectsInvalidEventPermanently(t *testing.T) {
	r := newTestReplayer(&fakeReplayStore{}, nil)

	entry := &dlq.Entry{MessageID: "msg-1", Payload: logPayload(t, testEventID, "")}
	err := r.Replay(context.Background(), entry)
	if err == nil || !strings.Contains(err.Error(), "VE_Range") {
		t.Errorf("Replay() = %v, want VE_Range validation error", err)
	}
	if !dlq.IsPermanentError(err) {
		t.Error("validation failure should stop further retries")
	}
}

func TestReplayPropagatesStoreError(t *testing.T) {
	storeErr := dlq.NewRetryableErrorWithCategory(dlq.CategoryConnection, "copy rows", errors.New("connection refused"))
	store := &fakeReplayStore{err: storeErr}
	r := newTestReplayer(store, nil)

	entry := &dlq.Entry{MessageID: "msg-1", Payload: logPayload(t, testEventID, "hello")}
	err := r.Replay(context.Background(), entry)
	if !errors.Is(err, storeErr) {
		t.Errorf("Replay() = %v, want the store error passed through", err)
	}
	if dlq.IsPermanentError(err) {
		t.Error("connection failures should stay retryable")
	}
}

func TestReplayRendersSourceThroughCache(t *testing.T) {
	store := &fakeReplayStore{}
	meta := dedup.NewMetadataCache(time.Hour)
	r := newTestReplayer(store, meta)

	entry := &dlq.Entry{MessageID: "msg-1", Payload: logPayload(t, testEventID, "hello")}
	if err := r.Replay(context.Background(), entry); err != nil {
		t.Fatalf("Replay() error = %v", err)
	}
	if meta.Len() != 1 {
		t.Errorf("metadata cache holds %d entries, want 1", meta.Len())
	}
}
