// Observability Hub - Event-Driven Observability Ingestion Pipeline
// Copyright 2026 Faruk Tunc (frktunc)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/frktunc/observability-hub

package dedup

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/frktunc/observability-hub/internal/metrics"
)

// metadataCacheName labels metadata cache metrics.
const metadataCacheName = "metadata"

// maxMetadataEntries bounds the in-memory map. Producer identities are
// low-cardinality in practice; the cap only guards against misbehaving
// producers that mint unique versions or instance names.
const maxMetadataEntries = 16384

// MetaKey builds the cache key for a producer identity. Service, version,
// and environment name the producer; instance pins the key to one emitting
// process so a cached rendering never leaks across instances.
// Format: meta:{service}:{version}:{environment}:{instance}.
func MetaKey(service, version, environment, instance string) string {
	return fmt.Sprintf("meta:%s:%s:%s:%s", service, version, environment, instance)
}

type metaEntry struct {
	value     []byte
	expiresAt time.Time
}

// MetadataCache is a read-through cache for serialized source metadata.
// Events from the same producer repeat the same (service, version,
// environment) triple thousands of times; caching the rendered form skips
// re-serialization on the flush path.
//
// Entries are immutable after insertion. The hit ratio is tracked with
// atomics and sampled by the batcher as a proxy for per-event work.
type MetadataCache struct {
	mu      sync.RWMutex
	entries map[string]metaEntry

	ttl    time.Duration
	hits   atomic.Int64
	misses atomic.Int64

	now func() time.Time
}

// NewMetadataCache builds a cache whose entries live for ttl.
func NewMetadataCache(ttl time.Duration) *MetadataCache {
	return &MetadataCache{
		entries: make(map[string]metaEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

// GetOrBuild returns the cached value for key, invoking build and storing its
// result on miss. Expired entries count as misses and are rebuilt in place.
// Build errors are returned without caching.
func (c *MetadataCache) GetOrBuild(key string, build func() ([]byte, error)) ([]byte, error) {
	now := c.now()

	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if ok && now.Before(entry.expiresAt) {
		c.hits.Add(1)
		metrics.RecordCacheHit(metadataCacheName)
		return entry.value, nil
	}

	c.misses.Add(1)
	metrics.RecordCacheMiss(metadataCacheName)

	value, err := build()
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	if len(c.entries) >= maxMetadataEntries {
		c.evictExpiredLocked(now)
	}
	if len(c.entries) < maxMetadataEntries {
		c.entries[key] = metaEntry{value: value, expiresAt: now.Add(c.ttl)}
	}
	c.mu.Unlock()

	return value, nil
}

// HitRatio returns hits/(hits+misses) over the cache's lifetime, or 0 before
// any lookup. The value is also exported as a gauge.
func (c *MetadataCache) HitRatio() float64 {
	hits := c.hits.Load()
	total := hits + c.misses.Load()
	if total == 0 {
		return 0
	}
	ratio := float64(hits) / float64(total)
	metrics.UpdateCacheHitRatio(ratio)
	return ratio
}

// Len returns the number of live entries, expired or not.
func (c *MetadataCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *MetadataCache) evictExpiredLocked(now time.Time) {
	for key, entry := range c.entries {
		if now.After(entry.expiresAt) {
			delete(c.entries, key)
		}
	}
}
