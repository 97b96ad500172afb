// Observability Hub - Event-Driven Observability Ingestion Pipeline
// Copyright 2026 Faruk Tunc (frktunc)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/frktunc/observability-hub

package archive

import (
	"context"

	"github.com/frktunc/observability-hub/internal/event"
)

// Flusher matches the batch stage's store port.
type Flusher interface {
	FlushBatch(ctx context.Context, events []*event.Event) (inserted int64, duplicates int64, err error)
}

// TeeFlusher forwards batches to the primary store and mirrors committed
// ones into the appender. The mirror can neither fail nor delay the primary
// write, so the ack path is untouched by archive state.
type TeeFlusher struct {
	primary  Flusher
	appender *Appender
}

// NewTeeFlusher wraps primary with an archive mirror.
func NewTeeFlusher(primary Flusher, appender *Appender) *TeeFlusher {
	return &TeeFlusher{primary: primary, appender: appender}
}

// FlushBatch implements the batch stage's store port.
func (t *TeeFlusher) FlushBatch(ctx context.Context, events []*event.Event) (int64, int64, error) {
	inserted, duplicates, err := t.primary.FlushBatch(ctx, events)
	if err != nil {
		return inserted, duplicates, err
	}
	t.appender.Append(events...)
	return inserted, duplicates, nil
}
