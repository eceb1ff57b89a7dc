// Rumisync - Rumi Livestock Telemetry Connector
// Copyright 2026 Rumisync Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rumisync/rumisync

// Package enrich caches the per-farm animal roster used to decorate raw
// observations with stable identifiers and classification.
package enrich

import (
	"context"
	"fmt"
	"time"

	"github.com/goccy/go-json"

	"github.com/rumisync/rumisync/internal/logging"
	"github.com/rumisync/rumisync/internal/metrics"
	"github.com/rumisync/rumisync/internal/rumi"
	"github.com/rumisync/rumisync/internal/state"
)

// actionID is the state namespace roster entries live under. Fixed for
// compatibility with previously stored state.
const actionID = "fetch_farm_observations"

// DefaultTTL is how long a cached roster stays fresh.
const DefaultTTL = 12 * time.Hour

// FetchFunc fetches a farm's roster from the vendor on a cache miss.
type FetchFunc func(ctx context.Context) (rumi.Roster, error)

// Cache is a time-bounded roster cache keyed per (integration, farm).
// Entries are independent: a miss for one farm never touches another
// farm's entry.
type Cache struct {
	backend state.Store
	ttl     time.Duration
}

// NewCache creates a roster cache on the given state backend. A zero ttl
// selects DefaultTTL.
func NewCache(backend state.Store, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{backend: backend, ttl: ttl}
}

// GetOrFetch returns the cached roster for a farm, or invokes fetch and
// caches the result with the configured expiry. A fetch failure propagates
// unchanged and nothing is cached.
func (c *Cache) GetOrFetch(ctx context.Context, integrationID, farmID string, fetch FetchFunc) (rumi.Roster, error) {
	value, ok, err := c.backend.Get(ctx, integrationID, actionID, farmID)
	if err != nil {
		return nil, fmt.Errorf("read roster cache for farm %s: %w", farmID, err)
	}
	if ok {
		var roster rumi.Roster
		if err := json.Unmarshal(value, &roster); err == nil {
			metrics.RosterCacheHits.Inc()
			logging.Debug().Str("farm_id", farmID).Msg("Roster cache hit")
			return roster, nil
		}
		// Undecodable entry: treat as a miss and refetch.
		logging.Warn().Str("farm_id", farmID).Msg("Discarding undecodable roster cache entry")
	}

	metrics.RosterCacheMisses.Inc()
	roster, err := fetch(ctx)
	if err != nil {
		return nil, err
	}

	encoded, err := json.Marshal(roster)
	if err != nil {
		return nil, fmt.Errorf("encode roster for farm %s: %w", farmID, err)
	}
	if err := c.backend.Set(ctx, integrationID, actionID, farmID, encoded, c.ttl); err != nil {
		return nil, fmt.Errorf("write roster cache for farm %s: %w", farmID, err)
	}

	logging.Debug().Str("farm_id", farmID).Dur("ttl", c.ttl).Msg("Roster cached")
	return roster, nil
}
