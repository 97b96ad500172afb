// Observability Hub - Event-Driven Observability Ingestion Pipeline
// Copyright 2026 Faruk Tunc (frktunc)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/frktunc/observability-hub

// Package batch accumulates validated events and writes them to the store
// in bulk.
//
// The batcher is the only pipeline component that touches the store. It
// owns one goroutine that receives items from a bounded ingress channel,
// flushes when the batch reaches the adaptive target size or when the
// oldest buffered event reaches the batch timeout, and makes one final
// best-effort flush at shutdown. Within a batch, write order matches
// arrival order.
//
// Failed flushes retry with exponential backoff behind a circuit breaker.
// A batch that exhausts its retries moves to the dead letter store as a
// unit, and each delivery then settles through its Done callback: acked
// when the event is durable anywhere, nacked for redelivery otherwise.
//
// The Sizer recomputes the flush threshold at most once per interval from
// the metadata cache hit ratio, bounded to half and twice the configured
// base size.
package batch
