// Observability Hub - Event-Driven Observability Ingestion Pipeline
// Copyright 2026 Faruk Tunc (frktunc)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/frktunc/observability-hub

package health

import (
	"context"
	"time"

	"github.com/frktunc/observability-hub/internal/batch"
	"github.com/frktunc/observability-hub/internal/metrics"
	"github.com/frktunc/observability-hub/internal/pipeline"
)

const (
	// defaultLagDegraded is the consumer backlog at which the broker probe
	// reports degraded when no threshold is configured.
	defaultLagDegraded = 10000
	// defaultDLQDegraded is the unresolved quarantine depth at which the
	// dead letter probe reports degraded when no threshold is configured.
	defaultDLQDegraded = 1000
	// poisonRateDegraded is the poison fraction above which the pipeline
	// probe reports degraded.
	poisonRateDegraded = 0.1
	// poisonRateMinSample is how many deliveries must be seen before the
	// poison fraction is meaningful.
	poisonRateMinSample = 100
)

// Pinger is the connectivity probe shared by the primary store and the
// dedup cache.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingProbe reports unhealthy when the target does not answer a ping.
func PingProbe(target Pinger, okMessage string) Probe {
	return ProbeFunc(func(ctx context.Context) Component {
		if err := target.Ping(ctx); err != nil {
			return Component{Healthy: false, Error: err.Error()}
		}
		return Component{Healthy: true, Message: okMessage}
	})
}

// StreamProbe reports JetStream stream and consumer state.
type StreamProbe interface {
	Healthy(ctx context.Context) error
	ConsumerLag(ctx context.Context) (int64, error)
}

// BrokerProbe checks the event stream and its consumer backlog. The observed
// lag feeds the consumer lag gauge; a backlog at or above degradedLag reports
// degraded. degradedLag <= 0 selects the default threshold.
func BrokerProbe(probe StreamProbe, degradedLag int64) Probe {
	if degradedLag <= 0 {
		degradedLag = defaultLagDegraded
	}
	return ProbeFunc(func(ctx context.Context) Component {
		if err := probe.Healthy(ctx); err != nil {
			return Component{Healthy: false, Error: err.Error()}
		}

		lag, err := probe.ConsumerLag(ctx)
		if err != nil {
			return Component{
				Healthy:  true,
				Degraded: true,
				Message:  "stream reachable, consumer lag unavailable",
			}
		}
		metrics.UpdateConsumerLag(lag)

		details := map[string]interface{}{"consumer_lag": lag}
		if lag >= degradedLag {
			return Component{
				Healthy:  true,
				Degraded: true,
				Message:  "consumer backlog is growing",
				Details:  details,
			}
		}
		return Component{Healthy: true, Message: "stream is operational", Details: details}
	})
}

// BatcherProbe reports the accumulation stage. An ingress queue past half
// its capacity reports degraded.
func BatcherProbe(stats func() batch.Stats) Probe {
	return ProbeFunc(func(ctx context.Context) Component {
		s := stats()
		details := map[string]interface{}{
			"received":     s.Received,
			"flushed":      s.Flushed,
			"quarantined":  s.Quarantined,
			"flush_errors": s.FlushErrors,
			"queue_depth":  s.QueueDepth,
			"queue_cap":    s.QueueCap,
			"target_size":  s.Target,
		}
		if s.QueueCap > 0 && s.QueueDepth > s.QueueCap/2 {
			return Component{
				Healthy:  true,
				Degraded: true,
				Message:  "ingress queue is filling up",
				Details:  details,
			}
		}
		return Component{Healthy: true, Message: "batcher is operational", Details: details}
	})
}

// PipelineProbe reports the consume stage. A sustained poison fraction above
// one in ten deliveries reports degraded.
func PipelineProbe(stats func() pipeline.Stats) Probe {
	return ProbeFunc(func(ctx context.Context) Component {
		s := stats()
		details := map[string]interface{}{
			"received":   s.Received,
			"handed_off": s.HandedOff,
			"skipped":    s.Skipped,
			"poisoned":   s.Poisoned,
		}
		if s.Received > poisonRateMinSample {
			rate := float64(s.Poisoned) / float64(s.Received)
			if rate > poisonRateDegraded {
				return Component{
					Healthy:  true,
					Degraded: true,
					Message:  "high poison rate",
					Details:  details,
				}
			}
		}
		return Component{Healthy: true, Message: "workers are processing", Details: details}
	})
}

// DLQProbe reports the quarantine backlog. An unresolved depth at or above
// degradedPending reports degraded; a failing depth query reports unhealthy
// because the quarantine shares the primary store. degradedPending <= 0
// selects the default threshold.
func DLQProbe(stats func(ctx context.Context) (int64, time.Time, error), degradedPending int64) Probe {
	if degradedPending <= 0 {
		degradedPending = defaultDLQDegraded
	}
	return ProbeFunc(func(ctx context.Context) Component {
		pending, oldest, err := stats(ctx)
		if err != nil {
			return Component{Healthy: false, Error: err.Error()}
		}

		details := map[string]interface{}{"pending": pending}
		if !oldest.IsZero() {
			details["oldest_entry"] = oldest.Format(time.RFC3339)
			details["oldest_entry_age"] = time.Since(oldest).String()
		}
		if pending >= degradedPending {
			return Component{
				Healthy:  true,
				Degraded: true,
				Message:  "dead letter backlog is growing",
				Details:  details,
			}
		}
		return Component{Healthy: true, Message: "quarantine is draining", Details: details}
	})
}
