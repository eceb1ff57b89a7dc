// Rumisync - Rumi Livestock Telemetry Connector
// Copyright 2026 Rumisync Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rumisync/rumisync

// Package state provides the namespaced key-value state backend shared by
// the cursor store and the enrichment cache.
//
// Keys are namespaced by (integration, action, source) so that independent
// farms and actions never collide. Values are opaque bytes; callers own the
// serialization. The Store is always constructed explicitly and passed in,
// never a process-wide singleton.
package state

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Store is a namespaced key-value store with optional per-entry expiry.
type Store interface {
	// Get returns the value stored under (integrationID, actionID, sourceID),
	// with ok reporting whether a live (non-expired) entry exists.
	Get(ctx context.Context, integrationID, actionID, sourceID string) (value []byte, ok bool, err error)

	// Set stores value under (integrationID, actionID, sourceID).
	// A zero ttl means the entry never expires.
	Set(ctx context.Context, integrationID, actionID, sourceID string, value []byte, ttl time.Duration) error
}

// Key builds the storage key for a (integration, action, source) triple.
func Key(integrationID, actionID, sourceID string) string {
	return fmt.Sprintf("state:%s:%s:%s", integrationID, actionID, sourceID)
}

// MemoryStore is an in-memory Store for tests. The clock is injectable so
// TTL expiry can be tested without sleeping.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry

	// Now reports the current time; defaults to time.Now.
	Now func() time.Time
}

type memoryEntry struct {
	value     []byte
	expiresAt time.Time // zero = never expires
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]memoryEntry),
		Now:     time.Now,
	}
}

// Get implements Store.
func (s *MemoryStore) Get(_ context.Context, integrationID, actionID, sourceID string) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.entries[Key(integrationID, actionID, sourceID)]
	if !ok {
		return nil, false, nil
	}
	if !entry.expiresAt.IsZero() && s.Now().After(entry.expiresAt) {
		return nil, false, nil
	}
	return entry.value, true, nil
}

// Set implements Store.
func (s *MemoryStore) Set(_ context.Context, integrationID, actionID, sourceID string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry := memoryEntry{value: append([]byte(nil), value...)}
	if ttl > 0 {
		entry.expiresAt = s.Now().Add(ttl)
	}
	s.entries[Key(integrationID, actionID, sourceID)] = entry
	return nil
}
