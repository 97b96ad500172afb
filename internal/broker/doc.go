// Observability Hub - Event-Driven Observability Ingestion Pipeline
// Copyright 2026 Faruk Tunc (frktunc)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/frktunc/observability-hub

// Package broker owns everything that speaks NATS JetStream.
//
// It provides four pieces:
//
//   - EmbeddedServer: an optional in-process NATS server with JetStream,
//     for single-binary deployments and tests.
//   - StreamInitializer: idempotent provisioning of the event stream and
//     the dead letter stream before any publisher or subscriber connects.
//   - Subscriber: a durable queue consumer built on watermill-nats. The
//     prefetch window (MaxAckPending) is the pipeline's backpressure
//     valve; reconnection is delegated to the nats.go client.
//   - Publisher: a JetStream publisher used for the dead letter poison
//     copies, with message id tracking so republished copies deduplicate
//     server side.
//
// Both connection-holding types log through a watermill adapter that
// forwards into zerolog, so broker client noise lands in the same
// structured stream as everything else.
package broker
