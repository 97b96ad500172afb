// Observability Hub - Event-Driven Observability Ingestion Pipeline
// Copyright 2026 Faruk Tunc (frktunc)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/frktunc/observability-hub

package api

import (
	"context"
	"net/http"
	"time"
)

// checkTimeout bounds one full health sweep. Individual probes carry their
// own shorter timeout inside the checker.
const checkTimeout = 10 * time.Second

// Health returns the aggregate component report. Degraded components keep
// the 200 status; only an unhealthy component flips it to 503.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), checkTimeout)
	defer cancel()

	report := h.checker.CheckAll(ctx)

	status := http.StatusOK
	if !report.Healthy {
		status = http.StatusServiceUnavailable
	}

	respondJSON(w, status, &Response{
		Status: "success",
		Data:   report,
	})
}

// HealthLive answers liveness probes. It returns 200 whenever the process
// can serve HTTP at all; dependency state belongs to readiness.
func (h *Handler) HealthLive(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, &Response{
		Status: "success",
		Data: map[string]interface{}{
			"alive":  true,
			"uptime": time.Since(h.startTime).Seconds(),
		},
	})
}

// HealthReady answers readiness probes from the same aggregate the full
// health endpoint reports.
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), checkTimeout)
	defer cancel()

	report := h.checker.CheckAll(ctx)

	status := http.StatusOK
	state := "ready"
	if !report.Healthy {
		status = http.StatusServiceUnavailable
		state = "not_ready"
	}

	respondJSON(w, status, &Response{
		Status: "success",
		Data: map[string]interface{}{
			"ready":  report.Healthy,
			"status": state,
			"health": report.Status,
		},
	})
}
