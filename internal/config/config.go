// Rumisync - Rumi Livestock Telemetry Connector
// Copyright 2026 Rumisync Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rumisync/rumisync

// Package config provides layered configuration loading and validation.
//
// Precedence: environment variables > config file > built-in defaults.
package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// DefaultRumiBaseURL is the production vendor API endpoint, used when no
// per-integration override is configured.
const DefaultRumiBaseURL = "https://innogando-backend-prod-01.innogando.com"

// Config is the root configuration for the connector.
type Config struct {
	Server  ServerConfig  `koanf:"server"`
	Rumi    RumiConfig    `koanf:"rumi"`
	Sync    SyncConfig    `koanf:"sync"`
	State   StateConfig   `koanf:"state"`
	NATS    NATSConfig    `koanf:"nats"`
	Sink    SinkConfig    `koanf:"sink"`
	Logging LoggingConfig `koanf:"logging"`
}

// ServerConfig holds the HTTP action-endpoint listener settings.
type ServerConfig struct {
	Host    string        `koanf:"host"`
	Port    int           `koanf:"port" validate:"min=1,max=65535"`
	Timeout time.Duration `koanf:"timeout"`
}

// RumiConfig holds vendor API access settings.
type RumiConfig struct {
	// BaseURL overrides the default vendor endpoint for all integrations.
	BaseURL string `koanf:"base_url" validate:"omitempty,url"`

	// Timeout is the per-request HTTP timeout. The vendor can be slow on
	// large history windows; the production value is 120s.
	Timeout time.Duration `koanf:"timeout" validate:"min=1s"`

	// RateLimit caps client-side requests per second against the vendor.
	// Zero disables the limiter.
	RateLimit float64 `koanf:"rate_limit" validate:"min=0"`

	// Breaker enables circuit breaker protection around vendor calls.
	Breaker bool `koanf:"breaker"`
}

// SyncConfig controls the incremental sync engine.
type SyncConfig struct {
	// DefaultLookbackDays is the initial window for farms with no cursor.
	DefaultLookbackDays int `koanf:"default_lookback_days" validate:"min=1,max=5"`

	// BatchSize is the number of canonical observations per sink delivery.
	BatchSize int `koanf:"batch_size" validate:"min=1"`

	// RosterTTL is how long a farm's animal roster stays cached.
	RosterTTL time.Duration `koanf:"roster_ttl" validate:"min=1m"`

	// Retry policy for transient vendor failures.
	RetryAttempts     int           `koanf:"retry_attempts" validate:"min=1"`
	RetryInitialDelay time.Duration `koanf:"retry_initial_delay"`
	RetryMaxJitter    time.Duration `koanf:"retry_max_jitter"`
	RetryMaxDelay     time.Duration `koanf:"retry_max_delay"`
}

// StateConfig holds the key-value state backend settings.
type StateConfig struct {
	// Path is the Badger data directory.
	Path string `koanf:"path"`

	// InMemory runs Badger without persistence. Testing only.
	InMemory bool `koanf:"in_memory"`
}

// NATSConfig holds the action-trigger transport settings.
type NATSConfig struct {
	Enabled       bool   `koanf:"enabled"`
	URL           string `koanf:"url"`
	SubjectPrefix string `koanf:"subject_prefix"`
	QueueGroup    string `koanf:"queue_group"`
}

// SinkConfig holds the downstream ingestion platform settings.
type SinkConfig struct {
	URL     string        `koanf:"url" validate:"required,url"`
	Token   string        `koanf:"token"`
	Timeout time.Duration `koanf:"timeout"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn error"`
	Format string `koanf:"format" validate:"oneof=json console"`
	Caller bool   `koanf:"caller"`
}

// Validate checks the configuration for invalid or missing values.
func (c *Config) Validate() error {
	v := validator.New()
	if err := v.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// RumiBaseURL returns the configured vendor base URL, or the production
// default when unset.
func (c *Config) RumiBaseURL() string {
	if c.Rumi.BaseURL != "" {
		return c.Rumi.BaseURL
	}
	return DefaultRumiBaseURL
}
