// Observability Hub - Event-Driven Observability Ingestion Pipeline
// Copyright 2026 Faruk Tunc (frktunc)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/frktunc/observability-hub

// Package dlq implements the dead letter path: the pipeline's error
// taxonomy, durable quarantine of messages that cannot be processed, and a
// background worker that re-injects retryable entries.
//
// # Error taxonomy
//
// Every failure the pipeline can hit is wrapped as either a RetryableError
// (transient infrastructure: broker, store, cache, timeouts) or a
// PermanentError (poison input: decode and validation failures). Both carry
// an ErrorCategory used for routing and metrics. Code that disposes of a
// message asks IsPermanentError/IsRetryableError rather than inspecting
// causes.
//
// # Quarantine
//
// Handler.Quarantine persists the original message bytes with the failure
// description to the dead letter store. The write is synchronous and retried
// with backoff: a delivery may only be acked to the broker once its data is
// durable somewhere, and for failed messages the dead letter row is that
// somewhere. After the row commits, a copy of the original bytes is published
// to dlq.<subject> for external tooling; that publish is best effort.
//
// # Auto retry
//
// AutoRetryWorker periodically scans for unresolved retryable entries whose
// next_retry_at has passed and replays them through the pipeline, paced by a
// rate limiter. Successful replays mark the row resolved; failures push
// next_retry_at out with exponential backoff until max_retries is reached,
// after which the row is kept for operators but no longer retried.
package dlq
