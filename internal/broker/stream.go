// Observability Hub - Event-Driven Observability Ingestion Pipeline
// Copyright 2026 Faruk Tunc (frktunc)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/frktunc/observability-hub

package broker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog"

	"github.com/frktunc/observability-hub/internal/config"
)

const (
	// deadLetterStreamSuffix is appended to the event stream name to form
	// the stream capturing poison copies.
	deadLetterStreamSuffix = "_DLQ"

	// deadLetterSubjects is the subject space the poison publisher writes to.
	deadLetterSubjects = "dlq.>"

	// duplicateWindow is the server-side deduplication window. It backs up
	// the cache-based dedup stage for redeliveries inside the window.
	duplicateWindow = 2 * time.Minute
)

// JetStreamContext is the subset of jetstream.JetStream the initializer
// uses. Tests substitute a fake.
type JetStreamContext interface {
	Stream(ctx context.Context, name string) (jetstream.Stream, error)
	CreateStream(ctx context.Context, cfg jetstream.StreamConfig) (jetstream.Stream, error)
	UpdateStream(ctx context.Context, cfg jetstream.StreamConfig) (jetstream.Stream, error)
}

// StreamInitializer provisions the event stream and the dead letter stream
// before publishers and subscribers bind to them. EnsureStreams is
// idempotent: it creates streams that are missing and updates ones whose
// configuration drifted.
type StreamInitializer struct {
	js     JetStreamContext
	cfg    config.BrokerConfig
	logger zerolog.Logger
}

// NewStreamInitializer builds an initializer for the configured stream.
func NewStreamInitializer(js JetStreamContext, cfg config.BrokerConfig, logger zerolog.Logger) (*StreamInitializer, error) {
	if js == nil {
		return nil, errors.New("jetstream context required")
	}
	if cfg.Stream == "" {
		return nil, errors.New("stream name required")
	}
	if len(cfg.Subjects) == 0 {
		return nil, errors.New("at least one subject required")
	}
	return &StreamInitializer{
		js:     js,
		cfg:    cfg,
		logger: logger.With().Str("component", "broker").Logger(),
	}, nil
}

// EnsureStreams provisions the event stream and the dead letter stream.
func (s *StreamInitializer) EnsureStreams(ctx context.Context) error {
	if err := s.ensure(ctx, s.eventStreamConfig()); err != nil {
		return err
	}
	return s.ensure(ctx, s.deadLetterStreamConfig())
}

// DeadLetterStream returns the name of the stream capturing poison copies.
func (s *StreamInitializer) DeadLetterStream() string {
	return s.cfg.Stream + deadLetterStreamSuffix
}

// Healthy reports whether the event stream is reachable.
func (s *StreamInitializer) Healthy(ctx context.Context) error {
	if _, err := s.js.Stream(ctx, s.cfg.Stream); err != nil {
		return fmt.Errorf("stream %s unavailable: %w", s.cfg.Stream, err)
	}
	return nil
}

// ConsumerLag sums the undelivered message counts across all consumers of
// the event stream.
func (s *StreamInitializer) ConsumerLag(ctx context.Context) (int64, error) {
	stream, err := s.js.Stream(ctx, s.cfg.Stream)
	if err != nil {
		return 0, fmt.Errorf("get stream %s: %w", s.cfg.Stream, err)
	}

	var lag int64
	lister := stream.ListConsumers(ctx)
	for info := range lister.Info() {
		lag += int64(info.NumPending)
	}
	if err := lister.Err(); err != nil {
		return 0, fmt.Errorf("list consumers of %s: %w", s.cfg.Stream, err)
	}
	return lag, nil
}

func (s *StreamInitializer) eventStreamConfig() jetstream.StreamConfig {
	return jetstream.StreamConfig{
		Name:        s.cfg.Stream,
		Subjects:    s.cfg.Subjects,
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      time.Duration(s.cfg.RetentionDays) * 24 * time.Hour,
		Duplicates:  duplicateWindow,
		Storage:     jetstream.FileStorage,
		Discard:     jetstream.DiscardOld,
		AllowDirect: true,
	}
}

func (s *StreamInitializer) deadLetterStreamConfig() jetstream.StreamConfig {
	return jetstream.StreamConfig{
		Name:        s.DeadLetterStream(),
		Subjects:    []string{deadLetterSubjects},
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      time.Duration(s.cfg.RetentionDays) * 24 * time.Hour,
		Duplicates:  duplicateWindow,
		Storage:     jetstream.FileStorage,
		Discard:     jetstream.DiscardOld,
		AllowDirect: true,
	}
}

// ensure creates the stream when absent and updates it when present, so
// configuration drift heals on restart.
func (s *StreamInitializer) ensure(ctx context.Context, cfg jetstream.StreamConfig) error {
	_, err := s.js.Stream(ctx, cfg.Name)
	switch {
	case err == nil:
		if _, err := s.js.UpdateStream(ctx, cfg); err != nil {
			return fmt.Errorf("update stream %s: %w", cfg.Name, err)
		}
		s.logger.Info().
			Str("stream", cfg.Name).
			Strs("subjects", cfg.Subjects).
			Msg("stream configuration updated")
		return nil

	case errors.Is(err, jetstream.ErrStreamNotFound):
		if _, err := s.js.CreateStream(ctx, cfg); err != nil {
			return fmt.Errorf("create stream %s: %w", cfg.Name, err)
		}
		s.logger.Info().
			Str("stream", cfg.Name).
			Strs("subjects", cfg.Subjects).
			Dur("max_age", cfg.MaxAge).
			Msg("stream created")
		return nil

	default:
		return fmt.Errorf("check stream %s: %w", cfg.Name, err)
	}
}
