// Observability Hub - Event-Driven Observability Ingestion Pipeline
// Copyright 2026 Faruk Tunc (frktunc)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/frktunc/observability-hub

// Package testinfra manages Docker containers for integration tests.
//
// The fixtures use testcontainers-go to run real Postgres and Redis
// instances, so the storage and dedup layers are tested against actual
// wire behavior instead of mocks. All fixtures live behind the
// `integration` build tag:
//
//	go test -tags integration ./...
//
// Tests skip gracefully when Docker is unavailable:
//
//	func TestFlushAgainstPostgres(t *testing.T) {
//	    testinfra.SkipIfNoDocker(t)
//	    ctx := context.Background()
//	    pg, err := testinfra.StartPostgres(ctx)
//	    if err != nil {
//	        t.Fatal(err)
//	    }
//	    defer testinfra.CleanupContainer(t, ctx, pg)
//	    // connect with pg.ConnString ...
//	}
//
// First runs download the container images; later runs use the cache.
package testinfra
