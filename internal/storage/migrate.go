// Observability Hub - Event-Driven Observability Ingestion Pipeline
// Copyright 2026 Faruk Tunc (frktunc)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/frktunc/observability-hub

package storage

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	migratepgx "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/jackc/pgx/v5/stdlib" // database/sql driver for the migration connection

	"github.com/frktunc/observability-hub/internal/logging"
	"github.com/frktunc/observability-hub/migrations"
)

// RunMigrations applies pending schema migrations embedded in the binary.
// It opens its own short-lived connection so the pool never observes a
// half-migrated schema. Safe to run on every start.
func RunMigrations(databaseURL string) error {
	src, err := iofs.New(migrations.FS, ".")
	if err != nil {
		return fmt.Errorf("load embedded migrations: %w", err)
	}

	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return fmt.Errorf("open migration connection: %w", err)
	}

	driver, err := migratepgx.WithInstance(db, &migratepgx.Config{})
	if err != nil {
		closeQuietly(db)
		return fmt.Errorf("init migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "pgx5", driver)
	if err != nil {
		closeQuietly(db)
		return fmt.Errorf("init migrator: %w", err)
	}
	defer func() {
		// Close tears down both the source and the migration connection.
		if srcErr, dbErr := m.Close(); srcErr != nil || dbErr != nil {
			logging.Warn().
				AnErr("source_error", srcErr).
				AnErr("db_error", dbErr).
				Msg("Migrator close reported errors")
		}
	}()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}

	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("read schema version: %w", err)
	}
	logging.Info().
		Uint("schema_version", version).
		Bool("dirty", dirty).
		Msg("Database schema up to date")
	return nil
}
