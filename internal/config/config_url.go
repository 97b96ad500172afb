// Observability Hub - Event-Driven Observability Ingestion Pipeline
// Copyright 2026 Faruk Tunc (frktunc)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/frktunc/observability-hub

package config

import (
	"fmt"
	"net/url"
	"strings"
)

// validNATSSchemes lists URL schemes accepted for the broker connection.
var validNATSSchemes = map[string]bool{
	"nats": true,
	"tls":  true,
	"ws":   true,
	"wss":  true,
}

// validPostgresSchemes lists URL schemes accepted for the primary store DSN.
var validPostgresSchemes = map[string]bool{
	"postgres":   true,
	"postgresql": true,
}

// validRedisSchemes lists URL schemes accepted for the cache connection.
var validRedisSchemes = map[string]bool{
	"redis":  true,
	"rediss": true,
	"unix":   true,
}

// validateNATSURL checks that the broker URL is well-formed and uses a
// supported scheme. Comma-separated cluster URLs are validated individually.
func validateNATSURL(rawURL string) error {
	if rawURL == "" {
		return fmt.Errorf("BROKER_URL must not be empty")
	}

	for _, candidate := range strings.Split(rawURL, ",") {
		candidate = strings.TrimSpace(candidate)
		if candidate == "" {
			continue
		}

		parsed, err := url.Parse(candidate)
		if err != nil {
			return fmt.Errorf("BROKER_URL is not a valid URL: %w", err)
		}

		if !validNATSSchemes[parsed.Scheme] {
			return fmt.Errorf("BROKER_URL scheme %q is not supported (use nats, tls, ws, or wss)", parsed.Scheme)
		}

		if parsed.Host == "" {
			return fmt.Errorf("BROKER_URL must include a host")
		}
	}

	return nil
}

// validatePostgresURL checks that the database DSN is well-formed and uses a
// supported scheme.
func validatePostgresURL(rawURL string) error {
	if rawURL == "" {
		return fmt.Errorf("DB_URL is required")
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("DB_URL is not a valid URL: %w", err)
	}

	if !validPostgresSchemes[parsed.Scheme] {
		return fmt.Errorf("DB_URL scheme %q is not supported (use postgres or postgresql)", parsed.Scheme)
	}

	if parsed.Host == "" {
		return fmt.Errorf("DB_URL must include a host")
	}

	return nil
}

// validateRedisURL checks that the cache URL is well-formed and uses a
// supported scheme. An empty URL is permitted; it disables the cache.
func validateRedisURL(rawURL string) error {
	if rawURL == "" {
		return nil
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("CACHE_URL is not a valid URL: %w", err)
	}

	if !validRedisSchemes[parsed.Scheme] {
		return fmt.Errorf("CACHE_URL scheme %q is not supported (use redis, rediss, or unix)", parsed.Scheme)
	}

	if parsed.Scheme != "unix" && parsed.Host == "" {
		return fmt.Errorf("CACHE_URL must include a host")
	}

	return nil
}
