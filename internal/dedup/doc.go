// Observability Hub - Event-Driven Observability Ingestion Pipeline
// Copyright 2026 Faruk Tunc (frktunc)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/frktunc/observability-hub

// Package dedup provides best-effort duplicate suppression for event
// deliveries, plus a small read-through cache for repeated source metadata.
//
// Duplicate detection is advisory. Backends answer two questions: has this
// event ID been processed before (IsDuplicate), and remember that it has been
// now (MarkProcessed, an atomic set-if-absent with TTL). When the backing
// cache is unreachable the pipeline proceeds as if the event were new and the
// degradation is counted; the primary store's key on event_id is the
// authoritative guard against double writes.
//
// Three backends exist:
//   - redis: a shared Redis instance, for multi-collector deployments.
//   - badger: an embedded BadgerDB keyspace with native TTL, for
//     single-instance deployments without external infrastructure.
//   - noop: dedup disabled, every event is treated as new.
//
// The metadata cache is in-process and independent of the dedup backend. Its
// hit ratio doubles as a cheap proxy for workload repetitiveness, which the
// batcher samples when adapting its target batch size.
package dedup
