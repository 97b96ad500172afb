// Observability Hub - Event-Driven Observability Ingestion Pipeline
// Copyright 2026 Faruk Tunc (frktunc)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/frktunc/observability-hub

//go:build integration

package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/frktunc/observability-hub/internal/config"
	"github.com/frktunc/observability-hub/internal/dlq"
	"github.com/frktunc/observability-hub/internal/event"
	"github.com/frktunc/observability-hub/internal/testinfra"
)

func TestStoreAgainstPostgres(t *testing.T) {
	testinfra.SkipIfNoDocker(t)

	ctx := context.Background()
	pg, err := testinfra.StartPostgres(ctx)
	if err != nil {
		t.Fatalf("start postgres: %v", err)
	}
	defer testinfra.CleanupContainer(t, ctx, pg)

	if err := RunMigrations(pg.ConnString); err != nil {
		t.Fatalf("run migrations: %v", err)
	}
	// Reruns must be no-ops once the schema version matches.
	if err := RunMigrations(pg.ConnString); err != nil {
		t.Fatalf("rerun migrations: %v", err)
	}

	store, err := New(ctx, config.DatabaseConfig{URL: pg.ConnString, MaxConns: 4})
	if err != nil {
		t.Fatalf("connect store: %v", err)
	}
	defer store.Close()

	t.Run("flushes a mixed batch across families", func(t *testing.T) {
		inserted, duplicates, err := store.FlushBatch(ctx, []*event.Event{logEvent(), metricsEvent(), traceEvent()})
		if err != nil {
			t.Fatalf("FlushBatch: %v", err)
		}
		if inserted != 3 || duplicates != 0 {
			t.Errorf("inserted/duplicates = %d/%d, want 3/0", inserted, duplicates)
		}
	})

	t.Run("absorbs replayed event ids through the primary key", func(t *testing.T) {
		inserted, duplicates, err := store.FlushBatch(ctx, []*event.Event{logEvent()})
		if err != nil {
			t.Fatalf("FlushBatch: %v", err)
		}
		if inserted != 0 || duplicates != 1 {
			t.Errorf("inserted/duplicates = %d/%d, want 0/1", inserted, duplicates)
		}
	})

	t.Run("mixes new and replayed rows in one batch", func(t *testing.T) {
		fresh := logEvent()
		fresh.EventID = "1a2b3c4d-5e6f-4a8b-9c0d-1e2f3a4b5c6d"
		inserted, duplicates, err := store.FlushBatch(ctx, []*event.Event{fresh, metricsEvent()})
		if err != nil {
			t.Fatalf("FlushBatch: %v", err)
		}
		if inserted != 1 || duplicates != 1 {
			t.Errorf("inserted/duplicates = %d/%d, want 1/1", inserted, duplicates)
		}
	})

	t.Run("round-trips dead letter entries", func(t *testing.T) {
		dlqStore := NewDLQStore(store)
		now := time.Now().UTC()

		entry := dlq.NewEntry(dlq.Failure{
			MessageID: "msg-integration-1",
			EventID:   "2b3c4d5e-6f7a-4b9c-8d0e-1f2a3b4c5d6e",
			Subject:   "logs.checkout.created",
			Payload:   []byte(`{"eventId": broken`),
			Err:       dlq.NewRetryableError("copy rows", errors.New("connection reset")),
		}, dlq.DefaultRetryPolicy(), now)

		if err := dlqStore.Save(ctx, entry); err != nil {
			t.Fatalf("Save: %v", err)
		}

		got, err := dlqStore.Get(ctx, "msg-integration-1")
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if got.EventID != entry.EventID || got.Subject != entry.Subject {
			t.Errorf("entry = %+v, want identity of saved entry", got)
		}
		if string(got.Payload) != `{"eventId": broken` {
			t.Errorf("payload = %q", got.Payload)
		}
		if !got.Retryable || got.Category != dlq.CategoryConnection {
			t.Errorf("retryable/category = %v/%v", got.Retryable, got.Category)
		}

		pending, oldest, err := dlqStore.UnresolvedStats(ctx)
		if err != nil {
			t.Fatalf("UnresolvedStats: %v", err)
		}
		if pending != 1 {
			t.Errorf("pending = %d, want 1", pending)
		}
		if oldest.IsZero() {
			t.Error("oldest is zero for a pending entry")
		}

		due, err := dlqStore.PendingRetries(ctx, now.Add(time.Hour), 10)
		if err != nil {
			t.Fatalf("PendingRetries: %v", err)
		}
		if len(due) != 1 {
			t.Fatalf("due entries = %d, want 1", len(due))
		}

		got.Resolved = true
		if err := dlqStore.Update(ctx, got); err != nil {
			t.Fatalf("Update: %v", err)
		}

		pending, _, err = dlqStore.UnresolvedStats(ctx)
		if err != nil {
			t.Fatalf("UnresolvedStats after resolve: %v", err)
		}
		if pending != 0 {
			t.Errorf("pending after resolve = %d, want 0", pending)
		}

		deleted, err := dlqStore.DeleteResolved(ctx, now.Add(time.Hour))
		if err != nil {
			t.Fatalf("DeleteResolved: %v", err)
		}
		if deleted != 1 {
			t.Errorf("deleted = %d, want 1", deleted)
		}
	})

	t.Run("ping reports a live pool", func(t *testing.T) {
		if err := store.Ping(ctx); err != nil {
			t.Errorf("Ping: %v", err)
		}
	})
}
