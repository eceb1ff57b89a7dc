// Rumisync - Rumi Livestock Telemetry Connector
// Copyright 2026 Rumisync Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rumisync/rumisync

// Package cursor tracks the per-farm high-water-mark of the last
// successfully delivered observation window.
package cursor

import (
	"context"
	"fmt"
	"time"

	"github.com/goccy/go-json"

	"github.com/rumisync/rumisync/internal/rumi"
	"github.com/rumisync/rumisync/internal/state"
)

// actionID is the state namespace cursors live under. The value is fixed
// for compatibility with previously stored state.
const actionID = "pull_observations"

// cursorState is the stored wire shape of a cursor.
type cursorState struct {
	UpdatedAt string `json:"updated_at"`
}

// Store persists one cursor per (integration, farm). Cursors never expire
// and are never deleted; each successful cycle overwrites the previous one.
type Store struct {
	backend state.Store
}

// NewStore creates a cursor store on the given state backend.
func NewStore(backend state.Store) *Store {
	return &Store{backend: backend}
}

// Get returns the stored cursor for a farm, with ok reporting whether one
// exists. Absent on first sync.
func (s *Store) Get(ctx context.Context, integrationID, farmID string) (time.Time, bool, error) {
	value, ok, err := s.backend.Get(ctx, integrationID, actionID, farmID)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("read cursor for farm %s: %w", farmID, err)
	}
	if !ok {
		return time.Time{}, false, nil
	}

	var cs cursorState
	if err := json.Unmarshal(value, &cs); err != nil {
		return time.Time{}, false, fmt.Errorf("decode cursor for farm %s: %w", farmID, err)
	}

	t, err := rumi.ParseTime(cs.UpdatedAt)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("decode cursor for farm %s: %w", farmID, err)
	}
	return t, true, nil
}

// Set overwrites the cursor for a farm. Called exactly once per cycle,
// only after every batch of the cycle has been dispatched successfully.
func (s *Store) Set(ctx context.Context, integrationID, farmID string, t time.Time) error {
	value, err := json.Marshal(cursorState{UpdatedAt: rumi.FormatTime(t)})
	if err != nil {
		return fmt.Errorf("encode cursor for farm %s: %w", farmID, err)
	}
	if err := s.backend.Set(ctx, integrationID, actionID, farmID, value, 0); err != nil {
		return fmt.Errorf("write cursor for farm %s: %w", farmID, err)
	}
	return nil
}
