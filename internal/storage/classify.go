// Observability Hub - Event-Driven Observability Ingestion Pipeline
// Copyright 2026 Faruk Tunc (frktunc)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/frktunc/observability-hub

package storage

import (
	"context"
	"errors"
	"io"
	"net"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/frktunc/observability-hub/internal/dlq"
)

// Classify wraps a store error with retry semantics. Unknown failures stay
// retryable: the PK on event_id makes reattempting a flush safe, so only
// errors that provably cannot heal are marked permanent.
func Classify(op string, err error) error {
	if err == nil {
		return nil
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return classifyPgError(op, pgErr)
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return dlq.NewRetryableErrorWithCategory(dlq.CategoryTimeout, op, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) || errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return dlq.NewRetryableErrorWithCategory(dlq.CategoryConnection, op, err)
	}
	if pgconn.SafeToRetry(err) {
		return dlq.NewRetryableErrorWithCategory(dlq.CategoryConnection, op, err)
	}

	return dlq.NewRetryableError(op, err)
}

// classifyPgError maps PostgreSQL error classes onto the taxonomy.
//
//	08xxx  connection exception            -> retryable connection
//	57xxx  operator intervention/shutdown  -> retryable connection
//	53xxx  insufficient resources          -> retryable capacity
//	40xxx  serialization/deadlock rollback -> retryable database
//	25xxx  invalid transaction state       -> retryable database
//	22/23/42  data, constraint, syntax     -> permanent database
func classifyPgError(op string, pgErr *pgconn.PgError) error {
	if len(pgErr.Code) < 2 {
		return dlq.NewRetryableErrorWithCategory(dlq.CategoryDatabase, op, pgErr)
	}

	if pgErr.Code == pgUniqueViolation {
		return dlq.NewPermanentErrorWithCategory(dlq.CategoryDatabase, op+": duplicate key", pgErr)
	}

	switch pgErr.Code[:2] {
	case "08", "57":
		return dlq.NewRetryableErrorWithCategory(dlq.CategoryConnection, op, pgErr)
	case "53":
		return dlq.NewRetryableErrorWithCategory(dlq.CategoryCapacity, op, pgErr)
	case "40", "25":
		return dlq.NewRetryableErrorWithCategory(dlq.CategoryDatabase, op, pgErr)
	case "22", "23", "42":
		return dlq.NewPermanentErrorWithCategory(dlq.CategoryDatabase, op, pgErr)
	default:
		return dlq.NewRetryableErrorWithCategory(dlq.CategoryDatabase, op, pgErr)
	}
}

const pgUniqueViolation = "23505"

// IsUniqueViolation reports whether err is a PostgreSQL unique constraint
// violation. The flush path absorbs conflicts with ON CONFLICT, so this
// surfaces only from plain inserts.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}
