// Rumisync - Rumi Livestock Telemetry Connector
// Copyright 2026 Rumisync Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rumisync/rumisync

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

// DefaultConfigPaths lists the paths where config files are searched in
// order of priority. The first file found wins.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/rumisync/config.yaml",
	"/etc/rumisync/config.yml",
}

// ConfigPathEnvVar is the environment variable that can override the config
// file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// defaultConfig returns a Config with all default values. Defaults are
// applied first, then overridden by config file and env vars.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:    "0.0.0.0",
			Port:    8080,
			Timeout: 30 * time.Second,
		},
		Rumi: RumiConfig{
			BaseURL:   "", // Empty means DefaultRumiBaseURL
			Timeout:   120 * time.Second,
			RateLimit: 10,
			Breaker:   false,
		},
		Sync: SyncConfig{
			DefaultLookbackDays: 2,
			BatchSize:           200,
			RosterTTL:           12 * time.Hour,
			RetryAttempts:       5,
			RetryInitialDelay:   4 * time.Second,
			RetryMaxJitter:      5 * time.Second,
			RetryMaxDelay:       32 * time.Second,
		},
		State: StateConfig{
			Path:     "/data/rumisync/state",
			InMemory: false,
		},
		NATS: NATSConfig{
			Enabled:       true,
			URL:           "nats://127.0.0.1:4222",
			SubjectPrefix: "rumisync.actions",
			QueueGroup:    "rumisync-workers",
		},
		Sink: SinkConfig{
			URL:     "http://127.0.0.1:9090",
			Token:   "",
			Timeout: 30 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// Load loads configuration using Koanf v2 with layered sources:
//  1. Defaults: built-in values from defaultConfig
//  2. Config file: optional YAML file (if one exists)
//  3. Environment variables: override any setting
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// RUMI_BASE_URL -> rumi.base_url, SYNC_BATCH_SIZE -> sync.batch_size
	envProvider := env.Provider("", ".", envTransformFunc)
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile searches for a config file in the default paths.
// Returns the path of the first file found, or empty string if none exists.
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// envTransformFunc maps environment variable names to koanf config paths.
// Unmapped variables are skipped so that unrelated environment variables do
// not pollute the configuration.
func envTransformFunc(key string) string {
	key = strings.ToLower(key)

	envMappings := map[string]string{
		"http_host":    "server.host",
		"http_port":    "server.port",
		"http_timeout": "server.timeout",

		"rumi_base_url":   "rumi.base_url",
		"rumi_timeout":    "rumi.timeout",
		"rumi_rate_limit": "rumi.rate_limit",
		"rumi_breaker":    "rumi.breaker",

		"sync_default_lookback_days": "sync.default_lookback_days",
		"sync_batch_size":            "sync.batch_size",
		"sync_roster_ttl":            "sync.roster_ttl",
		"sync_retry_attempts":        "sync.retry_attempts",
		"sync_retry_initial_delay":   "sync.retry_initial_delay",
		"sync_retry_max_jitter":      "sync.retry_max_jitter",
		"sync_retry_max_delay":       "sync.retry_max_delay",

		"state_path":      "state.path",
		"state_in_memory": "state.in_memory",

		"nats_enabled":        "nats.enabled",
		"nats_url":            "nats.url",
		"nats_subject_prefix": "nats.subject_prefix",
		"nats_queue_group":    "nats.queue_group",

		"sink_url":     "sink.url",
		"sink_token":   "sink.token",
		"sink_timeout": "sink.timeout",

		"log_level":  "logging.level",
		"log_format": "logging.format",
		"log_caller": "logging.caller",
	}

	if mapped, ok := envMappings[key]; ok {
		return mapped
	}
	return ""
}
