// Observability Hub - Event-Driven Observability Ingestion Pipeline
// Copyright 2026 Faruk Tunc (frktunc)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/frktunc/observability-hub

package config

import (
	"fmt"
	"time"
)

// Broker limits.
const (
	brokerMinPrefetchMultiplier = 1
	brokerMaxPrefetchMultiplier = 100
	brokerMinAckWait            = 1 * time.Second
	brokerMaxAckWait            = 10 * time.Minute
	brokerMinMaxDeliver         = 1
	brokerMaxMaxDeliver         = 100
	brokerMinRetentionDays      = 1
	brokerMaxRetentionDays      = 365
)

// Database limits.
const (
	dbMinConns = 1
	dbMaxConns = 1000
)

// Cache limits.
const (
	cacheMinTimeout = 10 * time.Millisecond
	cacheMaxTimeout = 10 * time.Second
	cacheMinTTL     = 1 * time.Minute
	cacheMaxTTL     = 7 * 24 * time.Hour
)

// Batch limits.
const (
	batchMinSize          = 1
	batchMaxSize          = 10000
	batchMinTimeout       = 100 * time.Millisecond
	batchMaxTimeout       = 5 * time.Minute
	batchMinRetryMax      = 1
	batchMaxRetryMax      = 10
	batchMinRetryInterval = 100 * time.Millisecond
	batchMaxRetryInterval = 1 * time.Minute
)

// Worker limits.
const (
	workersMinPoolSize = 1
	workersMaxPoolSize = 256
)

// Validation limits.
const (
	maxClockSkewTolerance = 1 * time.Hour
)

// DLQ limits.
const (
	dlqMinRetryInterval = 1 * time.Second
	dlqMaxRetryInterval = 1 * time.Hour
	dlqMaxRetryRate     = 1000
)

// validLogLevels defines accepted log level values.
var validLogLevels = map[string]bool{
	"trace": true,
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// validLogFormats defines accepted log format values.
var validLogFormats = map[string]bool{
	"json":    true,
	"console": true,
}

// validCacheBackends defines accepted CACHE_BACKEND values.
var validCacheBackends = map[string]bool{
	CacheBackendAuto:     true,
	CacheBackendRedis:    true,
	CacheBackendEmbedded: true,
	CacheBackendDisabled: true,
}

// Validate checks all configuration values and returns the first error found.
// Error messages name the environment variable so operators can fix the
// deployment without reading source.
func (c *Config) Validate() error {
	if err := c.validateBroker(); err != nil {
		return err
	}
	if err := c.validateDatabase(); err != nil {
		return err
	}
	if err := c.validateCache(); err != nil {
		return err
	}
	if err := c.validateBatch(); err != nil {
		return err
	}
	if err := c.validateWorkers(); err != nil {
		return err
	}
	if err := c.validateServer(); err != nil {
		return err
	}
	if err := c.validateValidation(); err != nil {
		return err
	}
	if err := c.validateArchive(); err != nil {
		return err
	}
	if err := c.validateDLQ(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateBroker() error {
	if err := validateNATSURL(c.Broker.URL); err != nil {
		return err
	}

	if c.Broker.Embedded && c.Broker.StoreDir == "" {
		return fmt.Errorf("BROKER_STORE_DIR is required when BROKER_EMBEDDED is true")
	}

	if c.Broker.Stream == "" {
		return fmt.Errorf("BROKER_STREAM must not be empty")
	}

	if len(c.Broker.Subjects) == 0 {
		return fmt.Errorf("BROKER_SUBJECTS must list at least one subject filter")
	}
	for _, subject := range c.Broker.Subjects {
		if subject == "" {
			return fmt.Errorf("BROKER_SUBJECTS must not contain empty entries")
		}
	}

	if c.Broker.DurableName == "" {
		return fmt.Errorf("BROKER_DURABLE_NAME must not be empty")
	}

	if c.Broker.QueueGroup == "" {
		return fmt.Errorf("BROKER_QUEUE_GROUP must not be empty")
	}

	if c.Broker.PrefetchMultiplier < brokerMinPrefetchMultiplier || c.Broker.PrefetchMultiplier > brokerMaxPrefetchMultiplier {
		return fmt.Errorf("BROKER_PREFETCH_MULTIPLIER must be between %d and %d, got %d",
			brokerMinPrefetchMultiplier, brokerMaxPrefetchMultiplier, c.Broker.PrefetchMultiplier)
	}

	if c.Broker.AckWait < brokerMinAckWait || c.Broker.AckWait > brokerMaxAckWait {
		return fmt.Errorf("BROKER_ACK_WAIT must be between %v and %v, got %v",
			brokerMinAckWait, brokerMaxAckWait, c.Broker.AckWait)
	}

	if c.Broker.MaxDeliver < brokerMinMaxDeliver || c.Broker.MaxDeliver > brokerMaxMaxDeliver {
		return fmt.Errorf("BROKER_MAX_DELIVER must be between %d and %d, got %d",
			brokerMinMaxDeliver, brokerMaxMaxDeliver, c.Broker.MaxDeliver)
	}

	if c.Broker.RetentionDays < brokerMinRetentionDays || c.Broker.RetentionDays > brokerMaxRetentionDays {
		return fmt.Errorf("BROKER_RETENTION_DAYS must be between %d and %d, got %d",
			brokerMinRetentionDays, brokerMaxRetentionDays, c.Broker.RetentionDays)
	}

	if c.Broker.MaxMemory <= 0 {
		return fmt.Errorf("BROKER_MAX_MEMORY must be positive, got %d", c.Broker.MaxMemory)
	}

	if c.Broker.MaxStore <= 0 {
		return fmt.Errorf("BROKER_MAX_STORE must be positive, got %d", c.Broker.MaxStore)
	}

	return nil
}

func (c *Config) validateDatabase() error {
	if err := validatePostgresURL(c.Database.URL); err != nil {
		return err
	}

	if c.Database.MaxConns < dbMinConns || c.Database.MaxConns > dbMaxConns {
		return fmt.Errorf("DB_MAX_CONNS must be between %d and %d, got %d",
			dbMinConns, dbMaxConns, c.Database.MaxConns)
	}

	return nil
}

func (c *Config) validateCache() error {
	if !validCacheBackends[c.Cache.Backend] {
		return fmt.Errorf("CACHE_BACKEND must be one of auto, redis, embedded, disabled, got %q", c.Cache.Backend)
	}

	if err := validateRedisURL(c.Cache.URL); err != nil {
		return err
	}

	if c.Cache.Backend == CacheBackendRedis && c.Cache.URL == "" {
		return fmt.Errorf("CACHE_URL is required when CACHE_BACKEND is redis")
	}

	if c.Cache.Backend == CacheBackendEmbedded && c.Cache.Path == "" {
		return fmt.Errorf("CACHE_PATH is required when CACHE_BACKEND is embedded")
	}

	if c.Cache.Timeout < cacheMinTimeout || c.Cache.Timeout > cacheMaxTimeout {
		return fmt.Errorf("CACHE_TIMEOUT must be between %v and %v, got %v",
			cacheMinTimeout, cacheMaxTimeout, c.Cache.Timeout)
	}

	if c.Cache.DedupTTL < cacheMinTTL || c.Cache.DedupTTL > cacheMaxTTL {
		return fmt.Errorf("DEDUP_TTL must be between %v and %v, got %v",
			cacheMinTTL, cacheMaxTTL, c.Cache.DedupTTL)
	}

	if c.Cache.MetadataTTL < cacheMinTTL || c.Cache.MetadataTTL > cacheMaxTTL {
		return fmt.Errorf("METADATA_TTL must be between %v and %v, got %v",
			cacheMinTTL, cacheMaxTTL, c.Cache.MetadataTTL)
	}

	return nil
}

func (c *Config) validateBatch() error {
	if c.Batch.Size < batchMinSize || c.Batch.Size > batchMaxSize {
		return fmt.Errorf("BATCH_SIZE must be between %d and %d, got %d",
			batchMinSize, batchMaxSize, c.Batch.Size)
	}

	if c.Batch.Timeout < batchMinTimeout || c.Batch.Timeout > batchMaxTimeout {
		return fmt.Errorf("BATCH_TIMEOUT must be between %v and %v, got %v",
			batchMinTimeout, batchMaxTimeout, c.Batch.Timeout)
	}

	if c.Batch.RetryMax < batchMinRetryMax || c.Batch.RetryMax > batchMaxRetryMax {
		return fmt.Errorf("RETRY_MAX must be between %d and %d, got %d",
			batchMinRetryMax, batchMaxRetryMax, c.Batch.RetryMax)
	}

	if c.Batch.RetryInterval < batchMinRetryInterval || c.Batch.RetryInterval > batchMaxRetryInterval {
		return fmt.Errorf("RETRY_INTERVAL must be between %v and %v, got %v",
			batchMinRetryInterval, batchMaxRetryInterval, c.Batch.RetryInterval)
	}

	return nil
}

func (c *Config) validateWorkers() error {
	if c.Workers.PoolSize < workersMinPoolSize || c.Workers.PoolSize > workersMaxPoolSize {
		return fmt.Errorf("WORKER_POOL_SIZE must be between %d and %d, got %d",
			workersMinPoolSize, workersMaxPoolSize, c.Workers.PoolSize)
	}
	return nil
}

func (c *Config) validateServer() error {
	if c.Server.MetricsPort < 1 || c.Server.MetricsPort > 65535 {
		return fmt.Errorf("METRICS_PORT must be between 1 and 65535, got %d", c.Server.MetricsPort)
	}
	if c.Server.MetricsHost == "" {
		return fmt.Errorf("METRICS_HOST must not be empty")
	}
	return nil
}

func (c *Config) validateValidation() error {
	if c.Validation.ClockSkewTolerance < 0 || c.Validation.ClockSkewTolerance > maxClockSkewTolerance {
		return fmt.Errorf("CLOCK_SKEW_TOLERANCE must be between 0 and %v, got %v",
			maxClockSkewTolerance, c.Validation.ClockSkewTolerance)
	}
	if c.Validation.SchemaMajor < 1 {
		return fmt.Errorf("SCHEMA_MAJOR must be at least 1, got %d", c.Validation.SchemaMajor)
	}
	return nil
}

func (c *Config) validateArchive() error {
	if !c.Archive.Enabled {
		return nil
	}
	if c.Archive.Path == "" {
		return fmt.Errorf("ARCHIVE_PATH is required when ARCHIVE_ENABLED is true")
	}
	if c.Archive.FlushInterval <= 0 {
		return fmt.Errorf("ARCHIVE_FLUSH_INTERVAL must be positive, got %v", c.Archive.FlushInterval)
	}
	return nil
}

func (c *Config) validateDLQ() error {
	if !c.DLQ.RetryEnabled {
		return nil
	}
	if c.DLQ.RetryInterval < dlqMinRetryInterval || c.DLQ.RetryInterval > dlqMaxRetryInterval {
		return fmt.Errorf("DLQ_RETRY_INTERVAL must be between %v and %v, got %v",
			dlqMinRetryInterval, dlqMaxRetryInterval, c.DLQ.RetryInterval)
	}
	if c.DLQ.RetryRate <= 0 || c.DLQ.RetryRate > dlqMaxRetryRate {
		return fmt.Errorf("DLQ_RETRY_RATE must be between 0 and %d, got %v",
			dlqMaxRetryRate, c.DLQ.RetryRate)
	}
	return nil
}

func (c *Config) validateLogging() error {
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("LOG_LEVEL must be one of trace, debug, info, warn, error, got %q", c.Logging.Level)
	}
	if !validLogFormats[c.Logging.Format] {
		return fmt.Errorf("LOG_FORMAT must be one of json, console, got %q", c.Logging.Format)
	}
	return nil
}
