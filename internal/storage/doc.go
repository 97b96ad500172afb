// Observability Hub - Event-Driven Observability Ingestion Pipeline
// Copyright 2026 Faruk Tunc (frktunc)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/frktunc/observability-hub

// Package storage is the PostgreSQL primary store for ingested events.
//
// Events land in one table per family (logs, metrics, traces), each with a
// primary key on event_id. That key is the idempotence backstop: whatever
// slips past the advisory dedup cache is absorbed here.
//
// Batch writes stream through the COPY protocol into a transaction-scoped
// staging table and land with INSERT ... ON CONFLICT (event_id) DO NOTHING,
// so a flush is one round trip of bulk data plus one set-based insert, and
// duplicate rows inside or across batches degrade to a count instead of an
// error.
//
// Store errors are classified into the pipeline's retryable/permanent
// taxonomy by Classify, keyed on PostgreSQL error classes. The package also
// implements dlq.Store on the same pool, and schema management runs through
// embedded golang-migrate SQL at startup.
package storage
