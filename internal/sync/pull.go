// Rumisync - Rumi Livestock Telemetry Connector
// Copyright 2026 Rumisync Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rumisync/rumisync

package sync

import (
	"context"
	"fmt"

	"github.com/rumisync/rumisync/internal/logging"
	"github.com/rumisync/rumisync/internal/metrics"
)

// PullObservations lists the integration's farms and schedules one fetch
// work item per farm. Returns the number of farms triggered.
//
// Each farm's window starts at its stored cursor, or now minus the
// lookback when no cursor exists yet, and stops at the current time. A
// lookbackDays of zero selects the configured default.
func (r *Runner) PullObservations(ctx context.Context, integrationID string, creds Credentials, lookbackDays int) (int, error) {
	if lookbackDays <= 0 {
		lookbackDays = r.cfg.DefaultLookbackDays
	}

	farms, err := r.api.ListFarms(ctx, creds.UserID, creds.Token)
	if err != nil {
		metrics.SyncErrors.WithLabelValues(errorType(err)).Inc()
		return 0, fmt.Errorf("list farms for integration %s: %w", integrationID, err)
	}
	if len(farms) == 0 {
		logging.Warn().
			Str("integration_id", integrationID).
			Msg("No farms for integration, nothing to schedule")
		return 0, nil
	}

	stop := r.now().UTC()
	triggered := 0
	for _, farm := range farms {
		start, ok, err := r.cursors.Get(ctx, integrationID, farm.ID)
		if err != nil {
			return triggered, err
		}
		if !ok {
			start = stop.AddDate(0, 0, -lookbackDays)
			logging.Info().
				Str("integration_id", integrationID).
				Str("farm_id", farm.ID).
				Int("lookback_days", lookbackDays).
				Msg("No cursor for farm, using lookback window")
		}

		work := FarmWork{
			FarmID:    farm.ID,
			FarmName:  farm.Name,
			UserID:    creds.UserID,
			Token:     creds.Token,
			Start:     start,
			Stop:      stop,
			Locations: "all",
		}
		if err := r.scheduler.Trigger(ctx, integrationID, ActionFetchFarmObservations, work); err != nil {
			return triggered, fmt.Errorf("schedule fetch for farm %s: %w", farm.ID, err)
		}

		metrics.FarmsTriggered.Inc()
		triggered++
	}

	logging.Info().
		Str("integration_id", integrationID).
		Int("farms_triggered", triggered).
		Msg("Per-farm fetches scheduled")
	return triggered, nil
}
