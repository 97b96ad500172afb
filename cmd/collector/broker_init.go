// Observability Hub - Event-Driven Observability Ingestion Pipeline
// Copyright 2026 Faruk Tunc (frktunc)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/frktunc/observability-hub

package main

import (
	"context"
	"fmt"
	"time"

	natsgo "github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog"

	"github.com/frktunc/observability-hub/internal/broker"
	"github.com/frktunc/observability-hub/internal/config"
	"github.com/frktunc/observability-hub/internal/logging"
)

// brokerComponents holds the broker-side components for lifecycle
// management. initBroker builds them in dependency order; Shutdown releases
// them in reverse.
type brokerComponents struct {
	server     *broker.EmbeddedServer
	conn       *natsgo.Conn
	streams    *broker.StreamInitializer
	publisher  *broker.Publisher
	subscriber *broker.Subscriber
}

// initBroker starts the embedded server when configured, provisions the
// event and dead letter streams, and builds the poison publisher and the
// durable queue subscriber. On failure the components built so far are shut
// down before the error returns.
func initBroker(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*brokerComponents, error) {
	c := &brokerComponents{}

	// The embedded server supersedes BROKER_URL for every client below.
	brokerCfg := cfg.Broker
	if brokerCfg.Embedded {
		server, err := broker.NewEmbeddedServer(brokerCfg)
		if err != nil {
			return nil, err
		}
		c.server = server
		brokerCfg.URL = server.ClientURL()
	} else {
		logging.Info().Str("url", brokerCfg.URL).Msg("Using external broker")
	}

	// This connection serves stream provisioning and the health probe. The
	// publisher and subscriber own their connections through watermill.
	conn, err := natsgo.Connect(brokerCfg.URL,
		natsgo.RetryOnFailedConnect(true),
		natsgo.MaxReconnects(-1),
		natsgo.ReconnectWait(2*time.Second),
	)
	if err != nil {
		c.Shutdown(context.Background())
		return nil, fmt.Errorf("connect to broker: %w", err)
	}
	c.conn = conn

	js, err := jetstream.New(conn)
	if err != nil {
		c.Shutdown(context.Background())
		return nil, fmt.Errorf("create jetstream context: %w", err)
	}

	streams, err := broker.NewStreamInitializer(js, brokerCfg, logger)
	if err != nil {
		c.Shutdown(context.Background())
		return nil, fmt.Errorf("create stream initializer: %w", err)
	}
	if err := streams.EnsureStreams(ctx); err != nil {
		c.Shutdown(context.Background())
		return nil, fmt.Errorf("ensure streams: %w", err)
	}
	c.streams = streams

	publisher, err := broker.NewPublisher(brokerCfg, logger)
	if err != nil {
		c.Shutdown(context.Background())
		return nil, fmt.Errorf("create publisher: %w", err)
	}
	c.publisher = publisher

	subscriber, err := broker.NewSubscriber(brokerCfg, cfg.MaxAckPending(), logger)
	if err != nil {
		c.Shutdown(context.Background())
		return nil, fmt.Errorf("create subscriber: %w", err)
	}
	c.subscriber = subscriber

	logging.Info().
		Str("stream", brokerCfg.Stream).
		Strs("subjects", brokerCfg.Subjects).
		Str("durable_prefix", brokerCfg.DurableName).
		Int("max_ack_pending", cfg.MaxAckPending()).
		Msg("Broker initialized")
	return c, nil
}

// Shutdown releases broker components in reverse construction order:
// subscriber, publisher, connection, embedded server. Safe to call on a
// partially initialized struct.
func (c *brokerComponents) Shutdown(ctx context.Context) {
	if c == nil {
		return
	}
	if c.subscriber != nil {
		if err := c.subscriber.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing subscriber")
		}
		c.subscriber = nil
	}
	if c.publisher != nil {
		if err := c.publisher.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing publisher")
		}
		c.publisher = nil
	}
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	if c.server != nil {
		if err := c.server.Shutdown(ctx); err != nil {
			logging.Error().Err(err).Msg("Error stopping embedded broker")
		}
		c.server = nil
	}
}
