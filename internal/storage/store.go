// Observability Hub - Event-Driven Observability Ingestion Pipeline
// Copyright 2026 Faruk Tunc (frktunc)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/frktunc/observability-hub

package storage

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/frktunc/observability-hub/internal/config"
	"github.com/frktunc/observability-hub/internal/logging"
)

const connectTimeout = 10 * time.Second

// Store wraps the pgx connection pool serving both the event tables and the
// dead letter table.
type Store struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

// New connects to PostgreSQL and verifies the connection. The pool is sized
// from DB_MAX_CONNS; lifetime and idle limits keep long-running ingestion
// from pinning stale connections.
func New(ctx context.Context, cfg config.DatabaseConfig) (*Store, error) {
	pc, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	if cfg.MaxConns > 0 {
		pc.MaxConns = int32(cfg.MaxConns)
	}
	if pc.MaxConns >= 4 {
		pc.MinConns = pc.MaxConns / 4
	}
	pc.MaxConnLifetime = time.Hour
	pc.MaxConnIdleTime = 5 * time.Minute
	pc.HealthCheckPeriod = 30 * time.Second

	connectCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(connectCtx, pc)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}
	if err := pool.Ping(connectCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	logging.Info().
		Str("database", pc.ConnConfig.Database).
		Str("host", pc.ConnConfig.Host).
		Int32("max_conns", pc.MaxConns).
		Msg("Primary store connected")

	return &Store{
		pool:   pool,
		logger: logging.With().Str("component", "storage").Logger(),
	}, nil
}

// Close releases the connection pool. Blocks until checked-out connections
// are returned.
func (s *Store) Close() {
	s.pool.Close()
	s.logger.Info().Msg("Primary store closed")
}

// Ping verifies a round trip to the database.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Stat returns a snapshot of pool usage for health reporting.
func (s *Store) Stat() *pgxpool.Stat {
	return s.pool.Stat()
}

// closeQuietly closes a resource in an error path where the Close error is
// not actionable.
func closeQuietly(c io.Closer) {
	if c != nil {
		_ = c.Close()
	}
}
