// Observability Hub - Event-Driven Observability Ingestion Pipeline
// Copyright 2026 Faruk Tunc (frktunc)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/frktunc/observability-hub

package logging

import (
	"context"
	"log/slog"

	"github.com/rs/zerolog"
)

// SlogHandler bridges slog records onto a zerolog logger so that
// slog-consuming libraries (the supervision tree's sutureslog hook) share
// the process log stream.
//
// Attributes added via WithAttrs are folded into the wrapped logger's
// context once, not replayed per record; group names become dotted key
// prefixes since zerolog output is flat JSON.
type SlogHandler struct {
	logger zerolog.Logger
	prefix string
}

// NewSlogHandler wraps the global logger.
func NewSlogHandler() *SlogHandler {
	return &SlogHandler{logger: Logger()}
}

// NewSlogHandlerWithLogger wraps a specific zerolog logger.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewSlogHandlerWithLogger(logger zerolog.Logger) *SlogHandler {
	return &SlogHandler{logger: logger}
}

// NewSlogLogger returns an slog.Logger writing through the global zerolog
// logger, suitable for handing to sutureslog.
func NewSlogLogger() *slog.Logger {
	return slog.New(NewSlogHandler())
}

// Enabled reports whether records at level would be emitted by the wrapped
// logger.
func (h *SlogHandler) Enabled(_ context.Context, level slog.Level) bool {
	// zerolog drops events below either the instance level or the global
	// level, so both gates have to pass for the record to come out.
	zl := slogToZerologLevel(level)
	return h.logger.GetLevel() <= zl && zerolog.GlobalLevel() <= zl
}

// Handle emits one record at the corresponding zerolog level.
//
//nolint:gocritic // slog.Record is passed by value per slog.Handler
func (h *SlogHandler) Handle(_ context.Context, record slog.Record) error {
	event := h.logger.WithLevel(slogToZerologLevel(record.Level))

	if n := record.NumAttrs(); n > 0 {
		fields := make(map[string]any, n)
		record.Attrs(func(attr slog.Attr) bool {
			flattenAttr(fields, h.prefix, attr)
			return true
		})
		event = event.Fields(fields)
	}

	event.Msg(record.Message)
	return nil
}

// WithAttrs bakes the attributes into the wrapped logger's context.
func (h *SlogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	fields := make(map[string]any, len(attrs))
	for _, attr := range attrs {
		flattenAttr(fields, h.prefix, attr)
	}
	return &SlogHandler{
		logger: h.logger.With().Fields(fields).Logger(),
		prefix: h.prefix,
	}
}

// WithGroup extends the dotted key prefix applied to subsequent attributes.
func (h *SlogHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	prefix := name
	if h.prefix != "" {
		prefix = h.prefix + "." + name
	}
	return &SlogHandler{logger: h.logger, prefix: prefix}
}

// flattenAttr resolves attr and stores it under its group-qualified key.
// Group values recurse with the group name appended to the prefix.
func flattenAttr(dst map[string]any, prefix string, attr slog.Attr) {
	key := attr.Key
	if prefix != "" {
		key = prefix + "." + key
	}

	value := attr.Value.Resolve()
	if value.Kind() == slog.KindGroup {
		for _, member := range value.Group() {
			flattenAttr(dst, key, member)
		}
		return
	}
	dst[key] = value.Any()
}

// slogToZerologLevel maps slog levels onto zerolog's scale; anything below
// debug falls through to trace.
func slogToZerologLevel(level slog.Level) zerolog.Level {
	switch {
	case level >= slog.LevelError:
		return zerolog.ErrorLevel
	case level >= slog.LevelWarn:
		return zerolog.WarnLevel
	case level >= slog.LevelInfo:
		return zerolog.InfoLevel
	case level >= slog.LevelDebug:
		return zerolog.DebugLevel
	default:
		return zerolog.TraceLevel
	}
}
