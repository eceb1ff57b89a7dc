// Rumisync - Rumi Livestock Telemetry Connector
// Copyright 2026 Rumisync Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rumisync/rumisync

// Package sync orchestrates the three integration actions: credential
// verification, the farm fan-out that schedules per-farm work, and the
// per-farm fetch cycle that pulls, transforms and delivers observations.
package sync

import (
	"time"

	"github.com/rumisync/rumisync/internal/cursor"
	"github.com/rumisync/rumisync/internal/enrich"
	"github.com/rumisync/rumisync/internal/pipeline"
	"github.com/rumisync/rumisync/internal/rumi"
	"github.com/rumisync/rumisync/internal/scheduler"
	"github.com/rumisync/rumisync/internal/sink"
)

// Action names, used as scheduler subjects and log fields.
const (
	ActionAuth                  = "auth"
	ActionPullObservations      = "pull_observations"
	ActionFetchFarmObservations = "fetch_farm_observations"
)

// Credentials identifies one configured integration against the vendor.
type Credentials struct {
	UserID string `json:"user_id" validate:"required"`
	Token  string `json:"token"   validate:"required"`
}

// FarmWork is the per-farm fetch assignment produced by the pull action
// and consumed by the fetch action. It carries everything a worker needs,
// so workers stay stateless between items.
type FarmWork struct {
	FarmID    string    `json:"farm_id"`
	FarmName  string    `json:"farm_name"`
	UserID    string    `json:"user_id"`
	Token     string    `json:"token"`
	Start     time.Time `json:"start"`
	Stop      time.Time `json:"stop"`
	Locations string    `json:"locations"`
}

// Config carries the sync tunables.
type Config struct {
	// DefaultLookbackDays bounds the first sync window of a farm with no
	// stored cursor.
	DefaultLookbackDays int
	// BatchSize caps the records per downstream delivery.
	BatchSize int
}

// Runner executes the integration actions against injected collaborators.
type Runner struct {
	api       rumi.API
	cursors   *cursor.Store
	roster    *enrich.Cache
	sink      sink.Sink
	scheduler scheduler.Scheduler
	cfg       Config

	// now is the cycle clock, injectable for deterministic tests.
	now func() time.Time
}

// NewRunner wires a runner from its collaborators. Zero config values fall
// back to the shipped defaults.
func NewRunner(api rumi.API, cursors *cursor.Store, roster *enrich.Cache, snk sink.Sink, sched scheduler.Scheduler, cfg Config) *Runner {
	if cfg.DefaultLookbackDays <= 0 {
		cfg.DefaultLookbackDays = 2
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = pipeline.DefaultBatchSize
	}
	return &Runner{
		api:       api,
		cursors:   cursors,
		roster:    roster,
		sink:      snk,
		scheduler: sched,
		cfg:       cfg,
		now:       time.Now,
	}
}
