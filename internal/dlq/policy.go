// Observability Hub - Event-Driven Observability Ingestion Pipeline
// Copyright 2026 Faruk Tunc (frktunc)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/frktunc/observability-hub

package dlq

import (
	"math"
	"math/rand"
	"sync"
	"time"
)

// RetryPolicy controls how many times a failed operation is reattempted and
// how far apart the attempts are spaced.
type RetryPolicy struct {
	MaxRetries        int
	InitialBackoff    time.Duration
	MaxBackoff        time.Duration
	BackoffMultiplier float64
	// JitterFraction spreads retries of entries that failed together.
	// 0.1 means each backoff is perturbed by up to +/-10%.
	JitterFraction float64

	rng   *rand.Rand
	rngMu sync.Mutex
}

// NewRetryPolicy returns a policy with a time-seeded jitter source.
func NewRetryPolicy(maxRetries int, initial, max time.Duration, multiplier, jitter float64) *RetryPolicy {
	return NewRetryPolicyWithSeed(maxRetries, initial, max, multiplier, jitter, 0)
}

// NewRetryPolicyWithSeed returns a policy with a deterministic jitter source
// when seed is non-zero. Tests use a fixed seed for reproducible schedules.
func NewRetryPolicyWithSeed(maxRetries int, initial, max time.Duration, multiplier, jitter float64, seed int64) *RetryPolicy {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &RetryPolicy{
		MaxRetries:        maxRetries,
		InitialBackoff:    initial,
		MaxBackoff:        max,
		BackoffMultiplier: multiplier,
		JitterFraction:    jitter,
		rng:               rand.New(rand.NewSource(seed)),
	}
}

// DefaultRetryPolicy matches the pipeline defaults: five attempts starting
// two seconds apart, doubling up to five minutes, with 10% jitter.
func DefaultRetryPolicy() *RetryPolicy {
	return NewRetryPolicy(5, 2*time.Second, 5*time.Minute, 2.0, 0.1)
}

// CalculateBackoff returns the wait before the attempt following retryCount
// prior failures. retryCount 0 yields roughly InitialBackoff.
func (p *RetryPolicy) CalculateBackoff(retryCount int) time.Duration {
	if retryCount < 0 {
		retryCount = 0
	}
	backoff := float64(p.InitialBackoff) * math.Pow(p.BackoffMultiplier, float64(retryCount))
	if backoff > float64(p.MaxBackoff) {
		backoff = float64(p.MaxBackoff)
	}

	if p.JitterFraction > 0 && p.rng != nil {
		p.rngMu.Lock()
		jitter := backoff * p.JitterFraction * (p.rng.Float64()*2 - 1)
		p.rngMu.Unlock()
		backoff += jitter
	}

	if backoff < 0 {
		backoff = 0
	}
	return time.Duration(backoff)
}

// ShouldRetry reports whether another attempt is allowed after retryCount
// failures ending in err. Permanent errors are never retried.
func (p *RetryPolicy) ShouldRetry(retryCount int, err error) bool {
	if retryCount >= p.MaxRetries {
		return false
	}
	if IsPermanentError(err) {
		return false
	}
	return true
}
