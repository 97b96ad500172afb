// Observability Hub - Event-Driven Observability Ingestion Pipeline
// Copyright 2026 Faruk Tunc (frktunc)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/frktunc/observability-hub

package broker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	wmNats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	natsgo "github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/frktunc/observability-hub/internal/config"
)

const (
	publishRetryAttempts = 3
	publishRetryWait     = 100 * time.Millisecond

	// poisonPrefix is prepended to the original subject when a dead letter
	// copy is published, e.g. logs.app.created -> dlq.logs.app.created.
	poisonPrefix = "dlq."

	// poisonUnknownSubject is used when the failure carries no subject,
	// which happens for payloads that never decoded far enough to have one.
	poisonUnknownSubject = "dlq.unknown"
)

// Publisher publishes to JetStream with message id tracking, so a message
// republished with the same id deduplicates inside the stream's duplicate
// window. Its main consumer is the dead letter handler's poison publish.
type Publisher struct {
	publisher message.Publisher
	logger    zerolog.Logger

	mu     sync.Mutex
	closed bool
}

// NewPublisher connects a JetStream publisher. Streams must already be
// provisioned; the publisher never auto-creates them.
func NewPublisher(cfg config.BrokerConfig, logger zerolog.Logger) (*Publisher, error) {
	log := logger.With().Str("component", "broker").Logger()

	wmConfig := wmNats.PublisherConfig{
		URL:         cfg.URL,
		NatsOptions: connectOptions(log),
		Marshaler:   &wmNats.NATSMarshaler{},
		JetStream: wmNats.JetStreamConfig{
			AutoProvision: false,
			TrackMsgId:    true,
			PublishOptions: []natsgo.PubOpt{
				natsgo.RetryAttempts(publishRetryAttempts),
				natsgo.RetryWait(publishRetryWait),
			},
		},
	}

	pub, err := wmNats.NewPublisher(wmConfig, newWatermillLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("create broker publisher: %w", err)
	}

	return &Publisher{publisher: pub, logger: log}, nil
}

// Publish sends one message to subject. The message UUID doubles as the
// JetStream message id unless one is already set.
func (p *Publisher) Publish(subject string, msg *message.Message) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return errors.New("publisher is closed")
	}
	p.mu.Unlock()

	if msg.Metadata.Get(natsgo.MsgIdHdr) == "" {
		msg.Metadata.Set(natsgo.MsgIdHdr, msg.UUID)
	}
	return p.publisher.Publish(subject, msg)
}

// PublishPoison publishes the original payload of a dead-lettered message
// under the dlq prefix. The broker message id is the original delivery id,
// so repeated quarantines of the same message collapse into one poison
// copy.
func (p *Publisher) PublishPoison(_ context.Context, subject, messageID string, payload []byte) error {
	id := messageID
	if id == "" {
		id = watermill.NewUUID()
	}
	msg := message.NewMessage(id, payload)
	msg.Metadata.Set("original_subject", subject)
	return p.Publish(PoisonSubject(subject), msg)
}

// Close disconnects the publisher. Safe to call more than once.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	return p.publisher.Close()
}

// PoisonSubject maps an event subject onto its dead letter subject.
func PoisonSubject(subject string) string {
	if subject == "" {
		return poisonUnknownSubject
	}
	return poisonPrefix + subject
}
