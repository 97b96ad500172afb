// Observability Hub - Event-Driven Observability Ingestion Pipeline
// Copyright 2026 Faruk Tunc (frktunc)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/frktunc/observability-hub

package broker

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/rs/zerolog"
)

func TestWatermillLoggerWritesStructuredFields(t *testing.T) {
	var buf bytes.Buffer
	wm := newWatermillLogger(zerolog.New(&buf))

	wm.Info("broker connected", watermill.LogFields{"url": "nats://127.0.0.1:4222"})

	out := buf.String()
	for _, want := range []string{
		`"level":"info"`,
		`"component":"broker"`,
		`"url":"nats://127.0.0.1:4222"`,
		`"message":"broker connected"`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("log line missing %s: %s", want, out)
		}
	}
}

func TestWatermillLoggerRecordsError(t *testing.T) {
	var buf bytes.Buffer
	wm := newWatermillLogger(zerolog.New(&buf))

	wm.Error("publish failed", errors.New("connection refused"), nil)

	out := buf.String()
	if !strings.Contains(out, `"error":"connection refused"`) {
		t.Errorf("log line missing error: %s", out)
	}
	if !strings.Contains(out, `"level":"error"`) {
		t.Errorf("log line missing level: %s", out)
	}
}

func TestWatermillLoggerWithCarriesFields(t *testing.T) {
	var buf bytes.Buffer
	wm := newWatermillLogger(zerolog.New(&buf))

	wm.With(watermill.LogFields{"stream": "EVENTS"}).Info("consumer bound", nil)

	out := buf.String()
	if !strings.Contains(out, `"stream":"EVENTS"`) {
		t.Errorf("log line missing carried field: %s", out)
	}
}
