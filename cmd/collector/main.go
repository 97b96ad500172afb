// Observability Hub - Event-Driven Observability Ingestion Pipeline
// Copyright 2026 Faruk Tunc (frktunc)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/frktunc/observability-hub

package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/frktunc/observability-hub/internal/api"
	"github.com/frktunc/observability-hub/internal/archive"
	"github.com/frktunc/observability-hub/internal/batch"
	"github.com/frktunc/observability-hub/internal/config"
	"github.com/frktunc/observability-hub/internal/dedup"
	"github.com/frktunc/observability-hub/internal/dlq"
	"github.com/frktunc/observability-hub/internal/health"
	"github.com/frktunc/observability-hub/internal/logging"
	"github.com/frktunc/observability-hub/internal/pipeline"
	"github.com/frktunc/observability-hub/internal/storage"
	"github.com/frktunc/observability-hub/internal/supervisor"
	"github.com/frktunc/observability-hub/internal/supervisor/services"
	"github.com/frktunc/observability-hub/internal/validation"
)

const (
	// httpShutdownTimeout bounds draining in-flight HTTP requests.
	httpShutdownTimeout = 10 * time.Second

	// teardownTimeout bounds the post-supervisor resource teardown.
	teardownTimeout = 30 * time.Second
)

//nolint:gocyclo // Main initialization function with sequential setup steps
func main() {
	// Load configuration first to get logging settings
	cfg, err := config.Load()
	if err != nil {
		// Use default logger for config errors (config not yet available)
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})
	logger := logging.Logger()

	logging.Info().
		Str("broker_url", cfg.Broker.URL).
		Bool("broker_embedded", cfg.Broker.Embedded).
		Str("cache_backend", cfg.ResolveCacheBackend()).
		Bool("archive_enabled", cfg.Archive.Enabled).
		Int("workers", cfg.Workers.PoolSize).
		Msg("Configuration loaded")

	// Migrations run before the pool opens so the schema is in place for
	// the first flush.
	if cfg.Database.Migrate {
		if err := storage.RunMigrations(cfg.Database.URL); err != nil {
			logging.Fatal().Err(err).Msg("Failed to run migrations")
		}
		logging.Info().Msg("Migrations applied")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := storage.New(ctx, cfg.Database)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to connect to database")
	}

	// A dedup backend that cannot start degrades to disabled rather than
	// blocking ingestion; the store primary key remains the duplicate guard.
	deduper, err := dedup.New(cfg.Cache, cfg.ResolveCacheBackend())
	if err != nil {
		logging.Warn().Err(err).Msg("Dedup cache unavailable, continuing without cross-instance dedup")
		deduper = dedup.NewNoop()
	}
	meta := dedup.NewMetadataCache(cfg.Cache.MetadataTTL)

	// The archive mirrors committed batches. When disabled the batcher
	// writes straight to the store.
	var flusher batch.Flusher = store
	var archiveStore *archive.Store
	var appender *archive.Appender
	if cfg.Archive.Enabled {
		archiveStore, err = archive.Open(cfg.Archive.Path, logger)
		if err != nil {
			store.Close()
			logging.Fatal().Err(err).Msg("Failed to open archive")
		}
		appender = archive.NewAppender(archiveStore, cfg.Batch.Size, cfg.Archive.FlushInterval, logger)
		flusher = archive.NewTeeFlusher(store, appender)
		logging.Info().Str("path", cfg.Archive.Path).Msg("Archive enabled")
	}

	brokerComps, err := initBroker(ctx, cfg, logger)
	if err != nil {
		store.Close()
		logging.Fatal().Err(err).Msg("Failed to initialize broker")
	}

	// Pipeline stages. The quarantine handler is shared by the workers
	// (poison messages) and the batcher (exhausted batches).
	dlqStore := storage.NewDLQStore(store)
	quarantine := dlq.NewHandler(dlqStore, brokerComps.publisher, nil, logger)
	validator := validation.New(cfg.Validation.SchemaMajor, cfg.Validation.ClockSkewTolerance)
	sizer := batch.NewSizer(cfg.Batch.Size, 0, meta.HitRatio, logger)
	batcher := batch.New(flusher, quarantine, sizer, cfg.Batch, logger)
	proc := pipeline.NewProcessor(batcher, quarantine, validator, deduper, meta, cfg.Cache, logger)
	pool := pipeline.NewPool(brokerComps.subscriber, proc, cfg.Broker.Subjects, cfg.Workers.PoolSize, logger)

	// Replay bypasses dedup and the batcher; the store primary key absorbs
	// anything already inserted.
	replayer := pipeline.NewReplayer(flusher, validator, meta, logger)
	var retryWorker *dlq.AutoRetryWorker
	if cfg.DLQ.RetryEnabled {
		retryWorker = dlq.NewAutoRetryWorker(dlqStore, replayer.Replay, nil, cfg.DLQ.RetryInterval, cfg.DLQ.RetryRate, logger)
	}

	checker := health.NewChecker(0)
	checker.Register("database", health.PingProbe(store, "database is reachable"))
	if cfg.CacheEnabled() {
		checker.Register("cache", health.PingProbe(deduper, "cache is reachable"))
	}
	checker.Register("broker", health.BrokerProbe(brokerComps.streams, 0))
	checker.Register("batcher", health.BatcherProbe(batcher.Stats))
	checker.Register("pipeline", health.PipelineProbe(pool.Stats))
	checker.Register("dlq", health.DLQProbe(dlqStore.UnresolvedStats, 0))

	handler := api.NewHandler(checker, logger)
	server := &http.Server{
		Addr:         cfg.MetricsAddr(),
		Handler:      handler.Routes(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	tree, err := supervisor.NewTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	if err != nil {
		brokerComps.Shutdown(context.Background())
		store.Close()
		logging.Fatal().Err(err).Msg("Failed to create supervisor tree")
	}

	if appender != nil {
		tree.AddDataService(appender)
	}
	if retryWorker != nil {
		tree.AddDataService(retryWorker)
	}
	tree.AddMessagingService(batcher)
	tree.AddMessagingService(pool)
	tree.AddAPIService(services.NewHTTPServerService(server, httpShutdownTimeout))
	logging.Info().Str("addr", server.Addr).Msg("HTTP listener service added")

	// Setup signal handling
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	logging.Info().Msg("Starting collector")
	errCh := tree.ServeBackground(ctx)

	// Wait for the supervisor to finish, from a signal or its own failure.
	runtimeFailure := false
	select {
	case <-ctx.Done():
		logging.Info().Msg("Context canceled, waiting for services to stop")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree failed")
			runtimeFailure = true
		}
	}

	// Wait for the error channel to close (supervisor finished)
	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor shutdown error")
			runtimeFailure = true
		}
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	for _, svc := range unstopped {
		logging.Warn().Str("service", svc.Name).Msg("Service failed to stop within timeout")
	}

	// Reverse-order teardown: broker first so nothing new arrives, then the
	// stores the pipeline was writing to.
	teardownCtx, teardownCancel := context.WithTimeout(context.Background(), teardownTimeout)
	defer teardownCancel()
	brokerComps.Shutdown(teardownCtx)
	if archiveStore != nil {
		if err := archiveStore.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing archive")
		}
	}
	if err := deduper.Close(); err != nil {
		logging.Error().Err(err).Msg("Error closing dedup cache")
	}
	store.Close()

	if runtimeFailure {
		logging.Error().Msg("Collector stopped after runtime failure")
		os.Exit(2)
	}
	logging.Info().Msg("Collector stopped gracefully")
}
