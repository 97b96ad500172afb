// Observability Hub - Event-Driven Observability Ingestion Pipeline
// Copyright 2026 Faruk Tunc (frktunc)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/frktunc/observability-hub

package broker

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats-server/v2/server"

	"github.com/frktunc/observability-hub/internal/config"
	"github.com/frktunc/observability-hub/internal/logging"
)

const (
	serverReadyTimeout = 30 * time.Second

	// maxPayload bounds one broker message. Generously above the event
	// schema's 32KB message cap to leave room for envelope and metadata.
	maxPayload = 8 * 1024 * 1024
)

// EmbeddedServer runs an in-process NATS server with JetStream enabled.
// It exists for single-binary deployments and tests; production clusters
// point BROKER_URL at an external server instead.
type EmbeddedServer struct {
	server    *server.Server
	clientURL string
}

// NewEmbeddedServer creates and starts the embedded server, blocking until
// it accepts connections or the ready timeout expires.
func NewEmbeddedServer(cfg config.BrokerConfig) (*EmbeddedServer, error) {
	opts := &server.Options{
		ServerName:         "observability-hub",
		JetStream:          true,
		StoreDir:           cfg.StoreDir,
		JetStreamMaxMemory: cfg.MaxMemory,
		JetStreamMaxStore:  cfg.MaxStore,
		MaxPayload:         maxPayload,
		NoSigs:             true,
	}

	ns, err := server.NewServer(opts)
	if err != nil {
		return nil, fmt.Errorf("create embedded broker: %w", err)
	}
	ns.ConfigureLogger()

	go ns.Start()

	if !ns.ReadyForConnections(serverReadyTimeout) {
		ns.Shutdown()
		return nil, fmt.Errorf("embedded broker not ready within %s", serverReadyTimeout)
	}

	logging.Info().
		Str("client_url", ns.ClientURL()).
		Str("store_dir", cfg.StoreDir).
		Msg("embedded broker started")

	return &EmbeddedServer{
		server:    ns,
		clientURL: ns.ClientURL(),
	}, nil
}

// ClientURL returns the URL clients connect to. It supersedes BROKER_URL
// while the embedded server runs.
func (s *EmbeddedServer) ClientURL() string {
	return s.clientURL
}

// Running reports whether the server is accepting connections.
func (s *EmbeddedServer) Running() bool {
	return s.server.Running()
}

// Shutdown stops the server, waiting for completion unless ctx ends first.
func (s *EmbeddedServer) Shutdown(ctx context.Context) error {
	s.server.Shutdown()

	done := make(chan struct{})
	go func() {
		s.server.WaitForShutdown()
		close(done)
	}()

	select {
	case <-done:
		logging.Info().Msg("embedded broker stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
