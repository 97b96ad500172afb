// Observability Hub - Event-Driven Observability Ingestion Pipeline
// Copyright 2026 Faruk Tunc (frktunc)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/frktunc/observability-hub

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths are the locations checked for a config file, in order.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/observability-hub/config.yaml",
	"/etc/observability-hub/config.yml",
}

// ConfigPathEnvVar overrides config file discovery with an explicit path.
const ConfigPathEnvVar = "CONFIG_PATH"

// sliceConfigPaths lists config keys whose values may arrive as
// comma-separated strings from environment variables and need splitting
// into slices before unmarshaling.
var sliceConfigPaths = []string{
	"broker.subjects",
}

// defaultConfig returns the built-in defaults applied before any file or
// environment overrides.
func defaultConfig() *Config {
	return &Config{
		Broker: BrokerConfig{
			URL:                "nats://127.0.0.1:4222",
			Embedded:           false,
			StoreDir:           "/data/broker/jetstream",
			MaxMemory:          1 << 30,  // 1GB
			MaxStore:           10 << 30, // 10GB
			Stream:             "EVENTS",
			Subjects:           []string{"logs.>", "metrics.>", "traces.>", "events.>"},
			DurableName:        "collector",
			QueueGroup:         "collectors",
			PrefetchMultiplier: 1,
			AckWait:            30 * time.Second,
			MaxDeliver:         5,
			RetentionDays:      7,
		},
		Database: DatabaseConfig{
			URL:      "",
			MaxConns: 25,
			Migrate:  true,
		},
		Cache: CacheConfig{
			URL:         "",
			Backend:     CacheBackendAuto,
			Path:        "/data/dedup",
			Timeout:     500 * time.Millisecond,
			DedupTTL:    24 * time.Hour,
			MetadataTTL: time.Hour,
		},
		Batch: BatchConfig{
			Size:          500,
			Timeout:       5 * time.Second,
			RetryMax:      5,
			RetryInterval: 2 * time.Second,
		},
		Workers: WorkersConfig{
			PoolSize: 20,
		},
		Server: ServerConfig{
			MetricsPort: 9090,
			MetricsHost: "0.0.0.0",
		},
		Validation: ValidationConfig{
			ClockSkewTolerance: 60 * time.Second,
			SchemaMajor:        1,
		},
		Archive: ArchiveConfig{
			Enabled:       false,
			Path:          "/data/archive.duckdb",
			FlushInterval: 10 * time.Second,
		},
		DLQ: DLQConfig{
			RetryEnabled:  true,
			RetryInterval: time.Minute,
			RetryRate:     10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// LoadWithKoanf loads configuration using the Koanf library with layered sources:
//  1. Defaults from defaultConfig()
//  2. Optional YAML config file (see findConfigFile)
//  3. Environment variables (see envTransformFunc for the mapping)
//
// After all layers merge, slice-valued keys set via environment variables are
// split on commas, the result is unmarshaled into Config, and Validate() runs.
func LoadWithKoanf() (*Config, error) {
	k := koanf.New(".")

	// Layer 1: defaults.
	defaults := defaultConfig()
	if err := k.Load(structs.Provider(defaults, "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load default config: %w", err)
	}

	// Layer 2: optional config file.
	configPath := findConfigFile()
	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// Layer 3: environment variables.
	envProvider := env.Provider("", ".", envTransformFunc)
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	// Env values for slice keys arrive as comma-separated strings.
	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile returns the config file path to load, or "" for none.
// CONFIG_PATH wins when set; otherwise DefaultConfigPaths are probed in order.
func findConfigFile() string {
	if path := os.Getenv(ConfigPathEnvVar); path != "" {
		return path
	}

	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// processSliceFields converts comma-separated string values into string
// slices for the keys in sliceConfigPaths. Values already loaded as slices
// (from defaults or YAML) are left untouched.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		val := k.Get(path)
		if val == nil {
			continue
		}

		// Already a slice from defaults or YAML.
		if _, ok := val.([]interface{}); ok {
			continue
		}
		if _, ok := val.([]string); ok {
			continue
		}

		strVal, ok := val.(string)
		if !ok || strVal == "" {
			continue
		}

		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if len(trimmed) > 0 {
			if err := k.Set(path, trimmed); err != nil {
				return fmt.Errorf("failed to set %s: %w", path, err)
			}
		}
	}
	return nil
}

// envKeyMap maps environment variable names (lowercased) to config paths.
// Only variables listed here are consumed; everything else in the process
// environment is ignored.
var envKeyMap = map[string]string{
	// Broker
	"broker_url":                 "broker.url",
	"broker_embedded":            "broker.embedded_server",
	"broker_store_dir":           "broker.store_dir",
	"broker_max_memory":          "broker.max_memory",
	"broker_max_store":           "broker.max_store",
	"broker_stream":              "broker.stream",
	"broker_subjects":            "broker.subjects",
	"broker_durable_name":        "broker.durable_name",
	"broker_queue_group":         "broker.queue_group",
	"broker_prefetch_multiplier": "broker.prefetch_multiplier",
	"broker_ack_wait":            "broker.ack_wait",
	"broker_max_deliver":         "broker.max_deliver",
	"broker_retention_days":      "broker.retention_days",

	// Database
	"db_url":       "database.url",
	"db_max_conns": "database.max_conns",
	"db_migrate":   "database.migrate",

	// Cache
	"cache_url":     "cache.url",
	"cache_backend": "cache.backend",
	"cache_path":    "cache.path",
	"cache_timeout": "cache.timeout",
	"dedup_ttl":     "cache.dedup_ttl",
	"metadata_ttl":  "cache.metadata_ttl",

	// Batch
	"batch_size":     "batch.size",
	"batch_timeout":  "batch.timeout",
	"retry_max":      "batch.retry_max",
	"retry_interval": "batch.retry_interval",

	// Workers
	"worker_pool_size": "workers.pool_size",

	// Server
	"metrics_port": "server.metrics_port",
	"metrics_host": "server.metrics_host",

	// Validation
	"clock_skew_tolerance": "validation.clock_skew_tolerance",
	"schema_major":         "validation.schema_major",

	// Archive
	"archive_enabled":        "archive.enabled",
	"archive_path":           "archive.path",
	"archive_flush_interval": "archive.flush_interval",

	// DLQ
	"dlq_retry_enabled":  "dlq.retry_enabled",
	"dlq_retry_interval": "dlq.retry_interval",
	"dlq_retry_rate":     "dlq.retry_rate",

	// Logging
	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",
}

// envTransformFunc maps an environment variable name to its config path.
// Returning "" drops the variable so unrelated process environment never
// leaks into the config tree.
func envTransformFunc(key string) string {
	return envKeyMap[strings.ToLower(key)]
}
