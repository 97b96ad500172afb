// Observability Hub - Event-Driven Observability Ingestion Pipeline
// Copyright 2026 Faruk Tunc (frktunc)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/frktunc/observability-hub

package dedup

import (
	"context"
	"testing"
	"time"

	"github.com/frktunc/observability-hub/internal/config"
)

func setupBadger(t *testing.T) *Badger {
	t.Helper()

	d, err := NewBadger(config.CacheConfig{Path: t.TempDir()})
	if err != nil {
		t.Fatalf("NewBadger() error = %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })

	return d
}

func TestBadger_MarkAndDetect(t *testing.T) {
	d := setupBadger(t)
	ctx := context.Background()
	const id = "6d9fbf1e-8b2a-4ae0-9e1b-0d6a2f4c19e7"

	dup, err := d.IsDuplicate(ctx, id)
	if err != nil {
		t.Fatalf("IsDuplicate() error = %v", err)
	}
	if dup {
		t.Error("IsDuplicate() = true before any mark")
	}

	if err := d.MarkProcessed(ctx, id, 24*time.Hour); err != nil {
		t.Fatalf("MarkProcessed() error = %v", err)
	}

	dup, err = d.IsDuplicate(ctx, id)
	if err != nil {
		t.Fatalf("IsDuplicate() error = %v", err)
	}
	if !dup {
		t.Error("IsDuplicate() = false after mark")
	}
}

func TestBadger_MarkExpires(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping TTL expiry wait in short mode")
	}

	d := setupBadger(t)
	ctx := context.Background()
	const id = "7e0a1b2c-3d4e-4f5a-8b6c-7d8e9f0a1b2c"

	// Badger TTLs have one-second resolution.
	if err := d.MarkProcessed(ctx, id, time.Second); err != nil {
		t.Fatalf("MarkProcessed() error = %v", err)
	}

	time.Sleep(2 * time.Second)

	dup, err := d.IsDuplicate(ctx, id)
	if err != nil {
		t.Fatalf("IsDuplicate() error = %v", err)
	}
	if dup {
		t.Error("IsDuplicate() = true after TTL expiry")
	}
}

func TestBadger_SurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	const id = "8f1b2c3d-4e5f-4a6b-9c7d-8e9f0a1b2c3d"

	d, err := NewBadger(config.CacheConfig{Path: dir})
	if err != nil {
		t.Fatalf("NewBadger() error = %v", err)
	}
	if err := d.MarkProcessed(ctx, id, 24*time.Hour); err != nil {
		t.Fatalf("MarkProcessed() error = %v", err)
	}
	if err := d.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	d, err = NewBadger(config.CacheConfig{Path: dir})
	if err != nil {
		t.Fatalf("NewBadger() reopen error = %v", err)
	}
	defer d.Close()

	dup, err := d.IsDuplicate(ctx, id)
	if err != nil {
		t.Fatalf("IsDuplicate() error = %v", err)
	}
	if !dup {
		t.Error("IsDuplicate() = false after reopen, want mark to persist")
	}
}

func TestBadger_PingAfterClose(t *testing.T) {
	d, err := NewBadger(config.CacheConfig{Path: t.TempDir()})
	if err != nil {
		t.Fatalf("NewBadger() error = %v", err)
	}

	if err := d.Ping(context.Background()); err != nil {
		t.Errorf("Ping() error = %v on open database", err)
	}

	if err := d.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	if err := d.Ping(context.Background()); err == nil {
		t.Error("Ping() error = nil on closed database")
	}
}
