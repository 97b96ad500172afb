// Observability Hub - Event-Driven Observability Ingestion Pipeline
// Copyright 2026 Faruk Tunc (frktunc)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/frktunc/observability-hub

// Package api serves the collector's operational HTTP surface: Prometheus
// metrics plus the liveness and readiness endpoints orchestrators probe.
// The ingestion path itself never passes through HTTP.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/frktunc/observability-hub/internal/health"
	"github.com/frktunc/observability-hub/internal/logging"
)

// Handler owns the route handlers and the health checker they report from.
type Handler struct {
	checker   *health.Checker
	logger    zerolog.Logger
	startTime time.Time
}

// NewHandler creates a Handler reporting from the given checker.
func NewHandler(checker *health.Checker, logger zerolog.Logger) *Handler {
	return &Handler{
		checker:   checker,
		logger:    logger.With().Str("component", "api").Logger(),
		startTime: time.Now(),
	}
}

// Routes assembles the chi router with the standard middleware stack.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(requestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(requestLogger(h.logger))

	r.Route("/health", func(r chi.Router) {
		r.Get("/", h.Health)
		r.Get("/live", h.HealthLive)
		r.Get("/ready", h.HealthReady)
	})
	r.Handle("/metrics", promhttp.Handler())

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		respondError(w, http.StatusNotFound, "NOT_FOUND", "Resource not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		respondError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed")
	})

	return r
}

// requestID wraps chi's RequestID middleware and mirrors the ID into the
// logging context and the X-Request-ID response header.
func requestID(next http.Handler) http.Handler {
	chiRequestID := chimiddleware.RequestID(next)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = logging.GenerateCorrelationID()
			r.Header.Set("X-Request-ID", id)
		}

		ctx := logging.ContextWithCorrelationID(r.Context(), id)
		w.Header().Set("X-Request-ID", id)
		chiRequestID.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requestLogger records completed requests at debug level. Probe and scrape
// endpoints fire every few seconds, which rules out info.
func requestLogger(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			logger.Debug().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Dur("elapsed", time.Since(start)).
				Str("request_id", logging.CorrelationIDFromContext(r.Context())).
				Msg("Request completed")
		})
	}
}
