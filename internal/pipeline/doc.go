// Observability Hub - Event-Driven Observability Ingestion Pipeline
// Copyright 2026 Faruk Tunc (frktunc)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/frktunc/observability-hub

// Package pipeline runs broker deliveries through the ingestion stages.
//
// A Pool owns one subscription per subject and a fixed set of workers.
// Forwarders fan every subscription into a shared unbuffered channel; each
// worker pulls one delivery at a time and hands it to the Processor, which
// decodes, validates, duplicate-checks, and enqueues the event into the
// batcher.
//
// Terminal disposition of a delivery follows at-least-once rules:
//
//   - poison (undecodable or invalid) quarantines to the dead letter store,
//     then acks, so the same bytes are never redelivered
//   - duplicates ack without a write
//   - everything else is settled by the batcher's post-flush callback: ack
//     once the event is durable in the primary or dead letter store, nack
//     for redelivery otherwise
//
// The unbuffered hand-off channel is the backpressure valve: when every
// worker is blocked on a full batcher, forwarders stop pulling and unacked
// deliveries accumulate on the broker up to the prefetch window.
//
// A Replayer re-injects quarantined events for the dead letter auto-retry
// worker, writing straight through the store so the outcome surfaces
// synchronously to the retry scheduler.
package pipeline
