// Observability Hub - Event-Driven Observability Ingestion Pipeline
// Copyright 2026 Faruk Tunc (frktunc)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/frktunc/observability-hub

// Package archive mirrors flushed events into a local DuckDB file for ad-hoc
// analytics. The mirror is strictly off the ack path: events are buffered by
// an appender and written fire-and-forget, so an archive outage costs only
// archive rows, never deliveries.
package archive

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"
	"github.com/rs/zerolog"

	"github.com/frktunc/observability-hub/internal/event"
)

// schema is one denormalized table tuned for scanning, not for lookups.
// payload keeps the original data block verbatim so the archive answers
// questions the relational schema was never designed for.
const schema = `
CREATE TABLE IF NOT EXISTS events (
	event_id       VARCHAR PRIMARY KEY,
	event_type     VARCHAR NOT NULL,
	family         VARCHAR NOT NULL,
	occurred_at    TIMESTAMP NOT NULL,
	correlation_id VARCHAR NOT NULL,
	service        VARCHAR NOT NULL,
	environment    VARCHAR,
	payload        VARCHAR NOT NULL,
	archived_at    TIMESTAMP NOT NULL
)`

const insertEvent = `
INSERT INTO events
	(event_id, event_type, family, occurred_at, correlation_id, service, environment, payload, archived_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (event_id) DO NOTHING`

// Store is the DuckDB-backed archive.
type Store struct {
	db     *sql.DB
	logger zerolog.Logger
}

// Open opens or creates the archive database at path and ensures the schema.
// Extension autoloading is disabled so opening never touches the network.
func Open(path string, logger zerolog.Logger) (*Store, error) {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("create archive directory %s: %w", dir, err)
		}
	}

	connStr := fmt.Sprintf("%s?access_mode=read_write&autoinstall_known_extensions=false&autoload_known_extensions=false", path)
	db, err := sql.Open("duckdb", connStr)
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	// The archive has a single writer goroutine.
	db.SetMaxOpenConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		closeQuietly(db)
		return nil, fmt.Errorf("ping archive: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		closeQuietly(db)
		return nil, fmt.Errorf("ensure archive schema: %w", err)
	}

	log := logger.With().Str("component", "archive").Logger()
	log.Info().Str("path", path).Msg("Archive opened")
	return &Store{db: db, logger: log}, nil
}

// InsertEvents writes the batch in one transaction. Rows already archived
// are skipped by the primary key.
func (s *Store) InsertEvents(ctx context.Context, events []*event.Event) error {
	if len(events) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin archive tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, insertEvent)
	if err != nil {
		return fmt.Errorf("prepare archive insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	archivedAt := time.Now().UTC()
	for _, e := range events {
		_, err := stmt.ExecContext(ctx,
			e.EventID,
			e.EventType,
			string(e.Family()),
			e.Timestamp,
			e.CorrelationID,
			e.Source.Service,
			e.Metadata.Environment,
			string(e.Data),
			archivedAt,
		)
		if err != nil {
			return fmt.Errorf("archive event %s: %w", e.EventID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit archive tx: %w", err)
	}
	return nil
}

// Count returns the number of archived events.
func (s *Store) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM events`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count archive events: %w", err)
	}
	return n, nil
}

// Close closes the archive database.
func (s *Store) Close() error {
	return s.db.Close()
}

func closeQuietly(db *sql.DB) {
	_ = db.Close()
}
