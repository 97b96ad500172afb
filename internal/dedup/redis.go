// Observability Hub - Event-Driven Observability Ingestion Pipeline
// Copyright 2026 Faruk Tunc (frktunc)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/frktunc/observability-hub

package dedup

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/frktunc/observability-hub/internal/config"
	"github.com/frktunc/observability-hub/internal/logging"
	"github.com/frktunc/observability-hub/internal/metrics"
)

// cacheName labels dedup cache metrics.
const cacheName = "dedup"

// Redis is the shared-cache backend. Marks live under "dedup:" keys so the
// instance can be shared with other tenants.
type Redis struct {
	client  *redis.Client
	timeout time.Duration
}

// NewRedis connects to the Redis instance named by cfg.URL and verifies it
// with a ping. The connection is pooled and shared by all workers.
func NewRedis(cfg config.CacheConfig) (*Redis, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse cache URL: %w", err)
	}
	if cfg.Timeout > 0 {
		opts.ReadTimeout = cfg.Timeout
		opts.WriteTimeout = cfg.Timeout
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	logging.Info().
		Str("addr", opts.Addr).
		Dur("op_timeout", cfg.Timeout).
		Msg("Redis dedup cache connected")

	return &Redis{client: client, timeout: cfg.Timeout}, nil
}

// IsDuplicate reports whether a live mark exists for eventID. Backend errors
// degrade to "not duplicate" and are counted.
func (r *Redis) IsDuplicate(ctx context.Context, eventID string) (bool, error) {
	ctx, cancel := r.opContext(ctx)
	defer cancel()

	n, err := r.client.Exists(ctx, keyPrefix+eventID).Result()
	if err != nil {
		metrics.RecordCacheError(cacheName)
		return false, fmt.Errorf("dedup lookup: %w", err)
	}
	if n > 0 {
		metrics.RecordCacheHit(cacheName)
		return true, nil
	}
	metrics.RecordCacheMiss(cacheName)
	return false, nil
}

// MarkProcessed sets the mark with SETNX semantics. Losing the race to a
// concurrent worker is fine: the mark exists either way.
func (r *Redis) MarkProcessed(ctx context.Context, eventID string, ttl time.Duration) error {
	ctx, cancel := r.opContext(ctx)
	defer cancel()

	if err := r.client.SetNX(ctx, keyPrefix+eventID, 1, ttl).Err(); err != nil {
		metrics.RecordCacheError(cacheName)
		return fmt.Errorf("dedup mark: %w", err)
	}
	return nil
}

// Ping verifies the connection.
func (r *Redis) Ping(ctx context.Context) error {
	ctx, cancel := r.opContext(ctx)
	defer cancel()
	return r.client.Ping(ctx).Err()
}

// Close releases the connection pool.
func (r *Redis) Close() error {
	return r.client.Close()
}

// opContext bounds a single cache operation so a slow cache cannot stall the
// pipeline.
func (r *Redis) opContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, r.timeout)
}
