// Observability Hub - Event-Driven Observability Ingestion Pipeline
// Copyright 2026 Faruk Tunc (frktunc)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/frktunc/observability-hub

package batch

import (
	"time"

	"github.com/rs/zerolog"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/frktunc/observability-hub/internal/dlq"
	"github.com/frktunc/observability-hub/internal/metrics"
)

const (
	breakerName             = "store-flush"
	breakerFailureThreshold = 5
	breakerOpenTimeout      = 30 * time.Second
	breakerHalfOpenRequests = 1
)

// newFlushBreaker builds the circuit breaker guarding bulk writes.
// Permanent errors count as successes: a poison batch says nothing about
// store health.
func newFlushBreaker(logger zerolog.Logger) *gobreaker.CircuitBreaker[flushResult] {
	settings := gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: breakerHalfOpenRequests,
		Timeout:     breakerOpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= breakerFailureThreshold
		},
		IsSuccessful: func(err error) bool {
			return err == nil || dlq.IsPermanentError(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("circuit breaker state changed")
			metrics.RecordCircuitBreakerTransition(name, from.String(), to.String())
			metrics.SetCircuitBreakerState(name, breakerStateValue(to))
		},
	}
	return gobreaker.NewCircuitBreaker[flushResult](settings)
}

// breakerStateValue maps gobreaker states onto the gauge scale used by the
// circuit breaker metric: closed 0, half-open 1, open 2.
func breakerStateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}
