// Rumisync - Rumi Livestock Telemetry Connector
// Copyright 2026 Rumisync Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rumisync/rumisync

// Package scheduler fans sync work out to background workers. The pull
// action enqueues one work item per farm; workers pick items up and run
// the per-farm fetch cycle independently.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

// WorkItem is the envelope published for each triggered action run.
type WorkItem struct {
	ID            string          `json:"id"`
	IntegrationID string          `json:"integration_id"`
	Action        string          `json:"action"`
	TriggeredAt   time.Time       `json:"triggered_at"`
	Config        json.RawMessage `json:"config"`
}

// DecodeConfig unmarshals the item's action config into dst.
func (w WorkItem) DecodeConfig(dst any) error {
	if err := json.Unmarshal(w.Config, dst); err != nil {
		return fmt.Errorf("decode %s work item %s: %w", w.Action, w.ID, err)
	}
	return nil
}

// Scheduler enqueues action runs for asynchronous execution.
type Scheduler interface {
	Trigger(ctx context.Context, integrationID, action string, cfg any) error
}

// newWorkItem builds the envelope for one action run.
func newWorkItem(integrationID, action string, cfg any) (WorkItem, error) {
	encoded, err := json.Marshal(cfg)
	if err != nil {
		return WorkItem{}, fmt.Errorf("encode %s config: %w", action, err)
	}
	return WorkItem{
		ID:            uuid.NewString(),
		IntegrationID: integrationID,
		Action:        action,
		TriggeredAt:   time.Now().UTC(),
		Config:        encoded,
	}, nil
}

// MemoryScheduler records triggered work items in memory. Used in tests
// and as a degraded single-process mode when no broker is configured.
type MemoryScheduler struct {
	mu    sync.Mutex
	items []WorkItem
}

var _ Scheduler = (*MemoryScheduler)(nil)

// NewMemoryScheduler creates an empty in-memory scheduler.
func NewMemoryScheduler() *MemoryScheduler {
	return &MemoryScheduler{}
}

// Trigger implements Scheduler.
func (m *MemoryScheduler) Trigger(_ context.Context, integrationID, action string, cfg any) error {
	item, err := newWorkItem(integrationID, action, cfg)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items = append(m.items, item)
	return nil
}

// Items returns a copy of everything triggered so far.
func (m *MemoryScheduler) Items() []WorkItem {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]WorkItem, len(m.items))
	copy(out, m.items)
	return out
}
