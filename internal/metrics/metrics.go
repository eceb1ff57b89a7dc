// Rumisync - Rumi Livestock Telemetry Connector
// Copyright 2026 Rumisync Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rumisync/rumisync

// Package metrics provides Prometheus metrics collection for observability.
//
// Metrics are exposed at the /metrics endpoint in Prometheus text format.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Vendor API Metrics
	VendorAPIRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rumi_api_requests_total",
			Help: "Total number of vendor API requests",
		},
		[]string{"operation", "status"},
	)

	VendorAPIRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rumi_api_retries_total",
			Help: "Total number of retried vendor API calls",
		},
		[]string{"operation"},
	)

	// Sync Cycle Metrics
	SyncDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sync_cycle_duration_seconds",
			Help:    "Duration of per-farm sync cycles in seconds",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600},
		},
	)

	ObservationsExtracted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sync_observations_extracted_total",
			Help: "Total number of observations accepted by the downstream sink",
		},
	)

	SyncErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sync_errors_total",
			Help: "Total number of sync errors",
		},
		[]string{"error_type"}, // "unauthorized", "not_found", "vendor_api", "delivery", "worker", "internal"
	)

	SyncBatchSize = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sync_batch_size",
			Help:    "Number of canonical observations per dispatched batch",
			Buckets: []float64{1, 10, 25, 50, 100, 200},
		},
	)

	FarmsTriggered = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sync_farms_triggered_total",
			Help: "Total number of per-farm work items triggered",
		},
	)

	// Enrichment Cache Metrics
	RosterCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "roster_cache_hits_total",
			Help: "Total number of animal roster cache hits",
		},
	)

	RosterCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "roster_cache_misses_total",
			Help: "Total number of animal roster cache misses (vendor fetch required)",
		},
	)

	// Circuit Breaker Metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=open, 2=half-open)",
		},
		[]string{"name"},
	)
)
