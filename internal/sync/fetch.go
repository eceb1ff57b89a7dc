// Rumisync - Rumi Livestock Telemetry Connector
// Copyright 2026 Rumisync Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rumisync/rumisync

package sync

import (
	"context"
	"fmt"
	"time"

	"github.com/rumisync/rumisync/internal/logging"
	"github.com/rumisync/rumisync/internal/metrics"
	"github.com/rumisync/rumisync/internal/pipeline"
	"github.com/rumisync/rumisync/internal/rumi"
)

// FetchFarmObservations runs one per-farm sync cycle: pull the window's
// location history, enrich against the roster, deliver in batches, then
// advance the cursor. Returns the number of observations extracted.
//
// The cursor is written only after every batch of the cycle has been
// delivered, so a failed cycle leaves it untouched and the next pull
// re-reads the same window.
func (r *Runner) FetchFarmObservations(ctx context.Context, integrationID string, work FarmWork) (int, error) {
	started := r.now()
	defer func() {
		metrics.SyncDuration.Observe(time.Since(started).Seconds())
	}()

	log := logging.With().
		Str("integration_id", integrationID).
		Str("farm_id", work.FarmID).
		Logger()

	observations, err := r.api.ListObservations(ctx, rumi.ObservationQuery{
		FarmID:    work.FarmID,
		UserID:    work.UserID,
		Token:     work.Token,
		Start:     work.Start,
		Stop:      work.Stop,
		Locations: work.Locations,
	})
	if err != nil {
		metrics.SyncErrors.WithLabelValues(errorType(err)).Inc()
		return 0, fmt.Errorf("list observations for farm %s: %w", work.FarmID, err)
	}
	if len(observations) == 0 {
		log.Info().
			Time("start", work.Start).
			Time("stop", work.Stop).
			Msg("No observations in window")
		return 0, nil
	}

	roster, err := r.roster.GetOrFetch(ctx, integrationID, work.FarmID, func(ctx context.Context) (rumi.Roster, error) {
		return r.api.ListAnimals(ctx, work.FarmID, work.UserID, work.Token)
	})
	if err != nil {
		metrics.SyncErrors.WithLabelValues(errorType(err)).Inc()
		return 0, fmt.Errorf("fetch roster for farm %s: %w", work.FarmID, err)
	}

	farm := pipeline.FarmContext{ID: work.FarmID, Name: work.FarmName}
	idx := pipeline.IndexRoster(roster)

	records := make([]pipeline.CanonicalObservation, len(observations))
	latest := observations[0].Time
	for i, obs := range observations {
		records[i] = pipeline.Transform(farm, idx, obs)
		if obs.Time.After(latest) {
			latest = obs.Time
		}
	}

	extracted := 0
	for _, batch := range pipeline.Batch(records, r.cfg.BatchSize) {
		metrics.SyncBatchSize.Observe(float64(len(batch)))
		accepted, err := r.sink.Deliver(ctx, batch, integrationID)
		if err != nil {
			metrics.SyncErrors.WithLabelValues("delivery").Inc()
			return extracted, fmt.Errorf("deliver observations for farm %s: %w", work.FarmID, err)
		}
		extracted += len(accepted)
	}

	if err := r.cursors.Set(ctx, integrationID, work.FarmID, latest); err != nil {
		return extracted, err
	}

	metrics.ObservationsExtracted.Add(float64(extracted))
	log.Info().
		Int("observations", len(observations)).
		Int("extracted", extracted).
		Str("cursor", rumi.FormatTime(latest)).
		Msg("Farm sync cycle completed")
	return extracted, nil
}

// errorType buckets an error for the sync error counter.
func errorType(err error) string {
	switch {
	case rumi.IsUnauthorized(err):
		return "unauthorized"
	case rumi.IsNotFound(err):
		return "not_found"
	case rumi.IsRetryable(err):
		return "vendor_api"
	default:
		return "internal"
	}
}
