// Copyright (c) 2026 Tablegate. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package config handles application-wide settings and environment parsing.

It leverages 'caarlos0/env' to map OS environment variables into a strongly-typed
Go struct, providing early validation and default values.

Usage:

	cfg, err := config.Load()
	if err != nil {
	    log.Fatal(err)
	}

Architecture:

  - Immutability: Once loaded, configuration is read-only.
  - DI-Friendly: Passed to core components (DB, Redis) via constructors.
  - Zero Hidden State: No global variables are used to store config.

This ensures the application is Twelve-Factor compliant by storing config in the env.
*/
package config

import (
	"fmt"
	"strings"

	"github.com/caarlos0/env/v11"
)

// # Configuration Schema

// Config holds all runtime configuration for the Tablegate API server.
//
// The database URL is the only required binding. Redis is optional: when
// REDIS_URL is empty the control and data planes fall back to in-process
// stores and the gateway still works end-to-end.
type Config struct {

	// Server settings
	ServerPort  string `env:"SERVER_PORT"  envDefault:"8080"`
	Environment string `env:"ENVIRONMENT"  envDefault:"development"`
	Debug       bool   `env:"DEBUG"        envDefault:"false"`

	// Relational Database (PostgreSQL)
	DatabaseURL string `env:"DATABASE_URL,required"`

	// DBSchema is the PostgreSQL schema whose tables are exposed at /api/<table>.
	DBSchema string `env:"DB_SCHEMA" envDefault:"public"`

	// PrimaryKeyColumn names the column treated as the primary key when a
	// table contains it. Single-row routes (/{id}) require it.
	PrimaryKeyColumn string `env:"PRIMARY_KEY_COLUMN" envDefault:"id"`

	// SoftDeleteColumns is a comma-separated candidate list. The first
	// candidate present in a table becomes its soft-delete marker.
	SoftDeleteColumns string `env:"SOFT_DELETE_COLUMNS" envDefault:"deleted_at,is_deleted"`

	// Key-Value Cache (Redis). Optional.
	RedisURL string `env:"REDIS_URL"`

	// Data-plane cache tuning.
	DataCacheTTLSeconds int    `env:"DATA_CACHE_TTL_SECONDS" envDefault:"60"`
	DataCacheHost       string `env:"DATA_CACHE_HOST"        envDefault:"https://cache.tablegate.internal"`

	// BootstrapPath points at a directory of SQL migrations that seed a demo
	// schema. Empty disables the bootstrap step entirely.
	BootstrapPath string `env:"BOOTSTRAP_PATH"`

	// Cross-Origin Resource Sharing
	ExtraOrigins string `env:"EXTRA_ORIGINS"`
}

// # Configuration Loading

// Load parses environment variables into a [Config] struct.
func Load() (*Config, error) {

	// Initialize an empty config struct
	cfg := &Config{}

	// Use the 'env' package to map environment variables to struct fields.
	// This will fail if any field marked with 'required' is missing.
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config: failed to parse environment variables: %w", err)
	}

	if cfg.DataCacheTTLSeconds <= 0 {
		return nil, fmt.Errorf("config: DATA_CACHE_TTL_SECONDS must be positive, got %d", cfg.DataCacheTTLSeconds)
	}

	return cfg, nil
}

// IsDevelopment reports whether the server is running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction reports whether the server is running in production mode.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// HasRedis reports whether an external cache binding was configured.
func (c *Config) HasRedis() bool {
	return c.RedisURL != ""
}

// SoftDeleteCandidates returns the parsed soft-delete column candidates.
func (c *Config) SoftDeleteCandidates() []string {
	var out []string
	for _, part := range strings.Split(c.SoftDeleteColumns, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// Origins returns the parsed extra CORS origins.
func (c *Config) Origins() []string {
	var out []string
	for _, part := range strings.Split(c.ExtraOrigins, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
