// Observability Hub - Event-Driven Observability Ingestion Pipeline
// Copyright 2026 Faruk Tunc (frktunc)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/frktunc/observability-hub

package broker

import (
	"context"
	"fmt"
	"strings"
	"time"

	wmNats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	natsgo "github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/frktunc/observability-hub/internal/config"
	"github.com/frktunc/observability-hub/internal/metrics"
)

const (
	reconnectWait          = 2 * time.Second
	subscriberCloseTimeout = 30 * time.Second
)

// Subscriber is a durable JetStream queue consumer. Each subscribed
// subject binds a durable consumer under the configured durable prefix, so
// progress survives restarts and redeliveries resume where the previous
// process stopped.
//
// MaxAckPending is the prefetch window: the broker never holds more
// unacked deliveries than the worker pool can absorb.
type Subscriber struct {
	subscriber message.Subscriber
	logger     zerolog.Logger
}

// NewSubscriber connects to the broker and prepares durable consumption.
// maxAckPending is normally pool size times the prefetch multiplier.
func NewSubscriber(cfg config.BrokerConfig, maxAckPending int, logger zerolog.Logger) (*Subscriber, error) {
	if maxAckPending <= 0 {
		maxAckPending = 1
	}
	ackWait := cfg.AckWait
	if ackWait <= 0 {
		ackWait = 30 * time.Second
	}
	maxDeliver := cfg.MaxDeliver
	if maxDeliver <= 0 {
		maxDeliver = 5
	}

	log := logger.With().Str("component", "broker").Logger()
	wmLog := newWatermillLogger(logger)

	subOpts := []natsgo.SubOpt{
		natsgo.BindStream(cfg.Stream),
		natsgo.MaxDeliver(maxDeliver),
		natsgo.MaxAckPending(maxAckPending),
		natsgo.AckWait(ackWait),
		natsgo.DeliverAll(),
	}

	wmConfig := wmNats.SubscriberConfig{
		URL:              cfg.URL,
		QueueGroupPrefix: cfg.QueueGroup,
		// Parallelism lives in the pipeline worker pool; one subscription
		// per subject keeps the receive path simple.
		SubscribersCount: 1,
		AckWaitTimeout:   ackWait,
		CloseTimeout:     subscriberCloseTimeout,
		NatsOptions:      connectOptions(log),
		Unmarshaler:      &wmNats.NATSMarshaler{},
		JetStream: wmNats.JetStreamConfig{
			AutoProvision:     false,
			AckAsync:          false,
			SubscribeOptions:  subOpts,
			DurablePrefix:     cfg.DurableName,
			DurableCalculator: durableName,
		},
	}

	sub, err := wmNats.NewSubscriber(wmConfig, wmLog)
	if err != nil {
		return nil, fmt.Errorf("create broker subscriber: %w", err)
	}

	log.Info().
		Str("url", cfg.URL).
		Str("stream", cfg.Stream).
		Str("durable_prefix", cfg.DurableName).
		Str("queue_group", cfg.QueueGroup).
		Int("max_ack_pending", maxAckPending).
		Dur("ack_wait", ackWait).
		Int("max_deliver", maxDeliver).
		Msg("broker subscriber ready")

	return &Subscriber{subscriber: sub, logger: log}, nil
}

// Subscribe opens a durable consumer on subject and returns its delivery
// channel. The channel closes when ctx ends or the subscriber closes.
func (s *Subscriber) Subscribe(ctx context.Context, subject string) (<-chan *message.Message, error) {
	msgs, err := s.subscriber.Subscribe(ctx, subject)
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", subject, err)
	}
	return msgs, nil
}

// Close stops all subscriptions and disconnects.
func (s *Subscriber) Close() error {
	return s.subscriber.Close()
}

// durableName derives the durable consumer name for one subscribed subject.
// Durable names cannot contain dots or wildcard characters, so the subject
// tokens are folded in with dashes, e.g. ("collector", "logs.>") ->
// "collector-logs". Each subject gets its own name; consumer progress is
// tracked per subject.
func durableName(prefix, subject string) string {
	if prefix == "" {
		return ""
	}
	name := prefix
	for _, token := range strings.Split(subject, ".") {
		if token == "" || token == ">" || token == "*" {
			continue
		}
		name += "-" + token
	}
	return name
}

// connectOptions builds the shared nats.go connection options: retry until
// the broker appears, reconnect forever, and surface connection churn in
// the log stream and the reconnect counter.
func connectOptions(log zerolog.Logger) []natsgo.Option {
	return []natsgo.Option{
		natsgo.RetryOnFailedConnect(true),
		natsgo.MaxReconnects(-1),
		natsgo.ReconnectWait(reconnectWait),
		natsgo.DisconnectErrHandler(func(_ *natsgo.Conn, err error) {
			if err != nil {
				log.Warn().Err(err).Msg("broker connection lost")
			}
		}),
		natsgo.ReconnectHandler(func(nc *natsgo.Conn) {
			metrics.RecordBrokerReconnect()
			log.Info().Str("url", nc.ConnectedUrl()).Msg("broker connection restored")
		}),
		natsgo.ErrorHandler(func(_ *natsgo.Conn, sub *natsgo.Subscription, err error) {
			e := log.Error().Err(err)
			if sub != nil {
				e = e.Str("subject", sub.Subject)
			}
			e.Msg("broker async error")
		}),
	}
}
