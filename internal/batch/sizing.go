// Observability Hub - Event-Driven Observability Ingestion Pipeline
// Copyright 2026 Faruk Tunc (frktunc)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/frktunc/observability-hub

package batch

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/frktunc/observability-hub/internal/metrics"
)

const (
	// defaultResizeInterval is the minimum time between target recomputes.
	defaultResizeInterval = 30 * time.Second

	// Hit ratio bands. Strictly above the high band grows the target,
	// strictly below the low band shrinks it, anything between holds the
	// configured base.
	highHitRatio = 0.7
	lowHitRatio  = 0.3

	growFactor   = 1.5
	shrinkFactor = 0.8
)

// Sizer adapts the flush threshold to the metadata cache hit ratio. The
// target is recomputed at most once per interval and is always within
// [base/2, base*2], never below one.
type Sizer struct {
	base     int
	interval time.Duration
	hitRatio func() float64
	logger   zerolog.Logger
	now      func() time.Time

	mu         sync.Mutex
	target     int
	lastUpdate time.Time
}

// NewSizer builds a sizer around base. hitRatio may be nil, which pins the
// target to base.
func NewSizer(base int, interval time.Duration, hitRatio func() float64, logger zerolog.Logger) *Sizer {
	if base <= 0 {
		base = defaultBatchSize
	}
	if interval <= 0 {
		interval = defaultResizeInterval
	}
	s := &Sizer{
		base:       base,
		interval:   interval,
		hitRatio:   hitRatio,
		logger:     logger.With().Str("component", "batch-sizer").Logger(),
		now:        time.Now,
		target:     base,
		lastUpdate: time.Now(),
	}
	metrics.RecordBatchTarget(base)
	return s
}

// Target returns the current flush threshold, recomputing it from the
// cache hit ratio when the resize interval has elapsed.
func (s *Sizer) Target() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.hitRatio == nil || s.now().Sub(s.lastUpdate) < s.interval {
		return s.target
	}
	s.lastUpdate = s.now()

	ratio := s.hitRatio()
	next := s.base
	switch {
	case ratio > highHitRatio:
		next = int(float64(s.base) * growFactor)
	case ratio < lowHitRatio:
		next = int(float64(s.base) * shrinkFactor)
	}
	if lo := s.base / 2; next < lo {
		next = lo
	}
	if hi := s.base * 2; next > hi {
		next = hi
	}
	if next < 1 {
		next = 1
	}

	if next != s.target {
		s.logger.Info().
			Float64("hit_ratio", ratio).
			Int("previous", s.target).
			Int("target", next).
			Msg("batch target resized")
		metrics.RecordBatchTarget(next)
		s.target = next
	}
	return s.target
}

// Current returns the flush threshold without recomputing it.
func (s *Sizer) Current() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.target
}

// Base returns the configured base size.
func (s *Sizer) Base() int { return s.base }
