// Observability Hub - Event-Driven Observability Ingestion Pipeline
// Copyright 2026 Faruk Tunc (frktunc)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/frktunc/observability-hub

package health

import (
	"context"
	"sync"
	"time"
)

// Status is the aggregated health state reported by CheckAll.
type Status string

const (
	// StatusHealthy indicates all components are functioning normally.
	StatusHealthy Status = "healthy"
	// StatusDegraded indicates some components are experiencing issues but
	// still operational.
	StatusDegraded Status = "degraded"
	// StatusUnhealthy indicates critical components are failing.
	StatusUnhealthy Status = "unhealthy"
)

// DefaultTimeout bounds a single probe when no timeout is configured.
const DefaultTimeout = 5 * time.Second

// Component is the health of a single pipeline component.
type Component struct {
	// Healthy indicates whether the component is functioning.
	Healthy bool `json:"healthy"`
	// Degraded indicates the component is operational but experiencing
	// issues. A degraded component never fails readiness.
	Degraded bool `json:"degraded,omitempty"`
	// Name is the component identifier, set by the checker from the
	// registration name.
	Name string `json:"name"`
	// Message provides additional context about the health state.
	Message string `json:"message,omitempty"`
	// Error contains failure details if unhealthy.
	Error string `json:"error,omitempty"`
	// LastCheck is when the probe ran.
	LastCheck time.Time `json:"last_check"`
	// Details contains component-specific counters and timestamps.
	Details map[string]interface{} `json:"details,omitempty"`
}

// Probe is implemented by components that support health checking.
type Probe interface {
	Check(ctx context.Context) Component
}

// ProbeFunc adapts a function to the Probe interface.
type ProbeFunc func(ctx context.Context) Component

// Check implements Probe.
func (f ProbeFunc) Check(ctx context.Context) Component { return f(ctx) }

// Report is the aggregated health of all registered components.
type Report struct {
	// Healthy is false when any component is unhealthy. Degraded components
	// do not clear it.
	Healthy bool `json:"healthy"`
	// Status is the worst state observed across components.
	Status Status `json:"status"`
	// Timestamp is when this report was assembled.
	Timestamp time.Time `json:"timestamp"`
	// Components holds individual component health keyed by name.
	Components map[string]Component `json:"components"`
}

// Checker runs registered probes and aggregates their results.
type Checker struct {
	timeout time.Duration
	mu      sync.RWMutex
	probes  map[string]Probe
}

// NewChecker builds a checker. timeout bounds each probe individually;
// values <= 0 fall back to DefaultTimeout.
func NewChecker(timeout time.Duration) *Checker {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Checker{
		timeout: timeout,
		probes:  make(map[string]Probe),
	}
}

// Register adds a component probe under name. Registering the same name
// twice replaces the earlier probe.
func (c *Checker) Register(name string, p Probe) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.probes[name] = p
}

// CheckAll probes every registered component in parallel and aggregates the
// results. Each probe runs under its own timeout; a probe that neither
// returns nor honors its context is abandoned and reported as timed out.
func (c *Checker) CheckAll(ctx context.Context) Report {
	c.mu.RLock()
	probes := make(map[string]Probe, len(c.probes))
	for name, p := range c.probes {
		probes[name] = p
	}
	c.mu.RUnlock()

	report := Report{
		Healthy:    true,
		Status:     StatusHealthy,
		Timestamp:  time.Now(),
		Components: make(map[string]Component, len(probes)),
	}

	var wg sync.WaitGroup
	var mu sync.Mutex

	for name, probe := range probes {
		wg.Add(1)
		go func(name string, probe Probe) {
			defer wg.Done()

			checkCtx, cancel := context.WithTimeout(ctx, c.timeout)
			defer cancel()

			resultCh := make(chan Component, 1)
			go func() {
				resultCh <- probe.Check(checkCtx)
			}()

			var result Component
			select {
			case result = <-resultCh:
			case <-checkCtx.Done():
				result = Component{
					Healthy: false,
					Error:   "health check timeout",
				}
			}
			result.Name = name
			result.LastCheck = time.Now()

			mu.Lock()
			report.Components[name] = result
			if !result.Healthy {
				report.Healthy = false
				report.Status = StatusUnhealthy
			} else if result.Degraded && report.Status == StatusHealthy {
				report.Status = StatusDegraded
			}
			mu.Unlock()
		}(name, probe)
	}

	wg.Wait()
	return report
}
