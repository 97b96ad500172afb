// Observability Hub - Event-Driven Observability Ingestion Pipeline
// Copyright 2026 Faruk Tunc (frktunc)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/frktunc/observability-hub

// Package migrations embeds the versioned schema for golang-migrate.
// Migrations are append-only once released; never edit an applied file.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
