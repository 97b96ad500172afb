// Observability Hub - Event-Driven Observability Ingestion Pipeline
// Copyright 2026 Faruk Tunc (frktunc)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/frktunc/observability-hub

package api

import (
	"net/http"
	"time"

	"github.com/goccy/go-json"
)

// Response is the envelope returned by every endpoint except /metrics,
// which speaks the Prometheus exposition format instead.
type Response struct {
	Status   string      `json:"status"`
	Data     interface{} `json:"data,omitempty"`
	Metadata Metadata    `json:"metadata"`
	Error    *Error      `json:"error,omitempty"`
}

// Metadata carries per-response bookkeeping.
type Metadata struct {
	Timestamp time.Time `json:"timestamp"`
}

// Error describes a failed request in machine-readable form.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// respondJSON writes resp with the given HTTP status. Probe endpoints are
// polled continuously, so responses are marked uncacheable.
func respondJSON(w http.ResponseWriter, status int, resp *Response) {
	if resp.Metadata.Timestamp.IsZero() {
		resp.Metadata.Timestamp = time.Now().UTC()
	}

	body, err := json.Marshal(resp)
	if err != nil {
		http.Error(w, `{"status":"error","error":{"code":"ENCODING_FAILED"}}`, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

// respondError writes a failure envelope with the given code and message.
func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, &Response{
		Status: "error",
		Error:  &Error{Code: code, Message: message},
	})
}
