// Observability Hub - Event-Driven Observability Ingestion Pipeline
// Copyright 2026 Faruk Tunc (frktunc)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/frktunc/observability-hub

package dlq

import (
	"errors"
	"testing"
	"time"
)

func TestCalculateBackoffGrowth(t *testing.T) {
	// Zero jitter keeps the schedule exact.
	p := NewRetryPolicyWithSeed(5, 2*time.Second, 5*time.Minute, 2.0, 0, 1)

	tests := []struct {
		retryCount int
		want       time.Duration
	}{
		{0, 2 * time.Second},
		{1, 4 * time.Second},
		{2, 8 * time.Second},
		{3, 16 * time.Second},
		{10, 5 * time.Minute}, // capped
	}
	for _, tt := range tests {
		if got := p.CalculateBackoff(tt.retryCount); got != tt.want {
			t.Errorf("CalculateBackoff(%d) = %v, want %v", tt.retryCount, got, tt.want)
		}
	}
}

func TestCalculateBackoffJitterBounds(t *testing.T) {
	p := NewRetryPolicyWithSeed(5, 10*time.Second, time.Hour, 2.0, 0.1, 42)

	for i := 0; i < 100; i++ {
		got := p.CalculateBackoff(1)
		lo, hi := 18*time.Second, 22*time.Second
		if got < lo || got > hi {
			t.Fatalf("CalculateBackoff(1) = %v, want within [%v, %v]", got, lo, hi)
		}
	}
}

func TestCalculateBackoffNegativeCount(t *testing.T) {
	p := NewRetryPolicyWithSeed(5, 2*time.Second, time.Minute, 2.0, 0, 1)
	if got := p.CalculateBackoff(-3); got != 2*time.Second {
		t.Errorf("CalculateBackoff(-3) = %v, want %v", got, 2*time.Second)
	}
}

func TestShouldRetry(t *testing.T) {
	p := NewRetryPolicyWithSeed(3, time.Second, time.Minute, 2.0, 0, 1)

	tests := []struct {
		name       string
		retryCount int
		err        error
		want       bool
	}{
		{"first failure", 0, NewRetryableError("flush", nil), true},
		{"under budget", 2, errors.New("plain"), true},
		{"budget spent", 3, NewRetryableError("flush", nil), false},
		{"over budget", 7, NewRetryableError("flush", nil), false},
		{"permanent", 0, NewPermanentError("decode", nil), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := p.ShouldRetry(tt.retryCount, tt.err); got != tt.want {
				t.Errorf("ShouldRetry(%d, %v) = %v, want %v", tt.retryCount, tt.err, got, tt.want)
			}
		})
	}
}

func TestDefaultRetryPolicy(t *testing.T) {
	p := DefaultRetryPolicy()
	if p.MaxRetries != 5 {
		t.Errorf("MaxRetries = %d, want 5", p.MaxRetries)
	}
	if p.InitialBackoff != 2*time.Second {
		t.Errorf("InitialBackoff = %v, want 2s", p.InitialBackoff)
	}
	if p.BackoffMultiplier != 2.0 {
		t.Errorf("BackoffMultiplier = %v, want 2.0", p.BackoffMultiplier)
	}
}
