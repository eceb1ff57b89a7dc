// Rumisync - Rumi Livestock Telemetry Connector
// Copyright 2026 Rumisync Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rumisync/rumisync

// Package pipeline maps raw vendor observations onto the canonical records
// delivered downstream, and partitions them into bounded batches.
//
// The transform is pure: the same (farm, roster, observation) triple always
// yields the same canonical record.
package pipeline

import (
	"fmt"
	"time"

	"github.com/rumisync/rumisync/internal/rumi"
)

// SourceType is the fixed record type of every canonical observation.
const SourceType = "tracking-device"

// SubjectTypeUnassigned classifies observations from devices with no
// roster entry. New or unregistered devices are an expected steady-state
// condition, not an error.
const SubjectTypeUnassigned = "unassigned"

// FarmContext is the farm identity attached to every canonical record.
type FarmContext struct {
	ID   string
	Name string
}

// Location is a latitude/longitude pair.
type Location struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// CanonicalObservation is the transformed record sent downstream.
type CanonicalObservation struct {
	SourceName  string         `json:"source_name"`
	Source      string         `json:"source"`
	Type        string         `json:"type"`
	SubjectType string         `json:"subject_type"`
	RecordedAt  time.Time      `json:"recorded_at"`
	Location    Location       `json:"location"`
	Additional  map[string]any `json:"additional"`
}

// indexedAnimal is a roster entry tagged with its category.
type indexedAnimal struct {
	category string
	animal   rumi.Animal
}

// RosterIndex is a lookup from vendor tracker id to roster entry, built
// once per sync cycle.
type RosterIndex map[string]indexedAnimal

// indexOrder fixes the category iteration order so that duplicate tracker
// ids resolve deterministically (later categories win).
var indexOrder = []string{rumi.CategoryBull, rumi.CategoryCow, rumi.CategoryCalf}

// IndexRoster builds a tracker-id lookup over a categorized roster.
func IndexRoster(roster rumi.Roster) RosterIndex {
	idx := make(RosterIndex)
	for _, category := range indexOrder {
		for _, animal := range roster[category] {
			if id := animal.RumiID(); id != "" {
				idx[id] = indexedAnimal{category: category, animal: animal}
			}
		}
	}
	return idx
}

// Transform maps one raw observation onto its canonical record.
//
// A matched device takes its identity and classification from the roster
// entry; an unmatched device falls back to tag/device naming with subject
// type "unassigned". Never fails: an unknown device is valid input.
func Transform(farm FarmContext, idx RosterIndex, obs rumi.Observation) CanonicalObservation {
	additional := map[string]any{
		"farm_id":   farm.ID,
		"farm_name": farm.Name,
	}

	sourceName := fmt.Sprintf("%s (%s)", obs.OfficialTag, obs.DeviceName)
	subjectType := SubjectTypeUnassigned

	if entry, ok := idx[obs.DeviceName]; ok {
		name := entry.animal.Name()
		if name == "" {
			name = obs.OfficialTag
		}
		sourceName = fmt.Sprintf("%s (%s)", name, entry.animal.RumiID())
		subjectType = "rumi-" + entry.category

		for key, value := range entry.animal {
			if nonEmpty(value) {
				additional[key] = value
			}
		}
		// Set after the field copy: the roster category wins over any
		// vendor-supplied "type" field in the animal record.
		additional["type"] = entry.category
		additional["subject_name"] = sourceName
	}

	return CanonicalObservation{
		SourceName:  sourceName,
		Source:      obs.OfficialTag,
		Type:        SourceType,
		SubjectType: subjectType,
		RecordedAt:  obs.Time,
		Location:    Location{Lat: obs.Lat, Lon: obs.Lon},
		Additional:  additional,
	}
}

// nonEmpty reports whether an enrichment field carries a value worth
// forwarding downstream.
func nonEmpty(v any) bool {
	switch val := v.(type) {
	case nil:
		return false
	case string:
		return val != ""
	case bool:
		return val
	case float64:
		return val != 0
	case int:
		return val != 0
	case []any:
		return len(val) > 0
	case map[string]any:
		return len(val) > 0
	default:
		return true
	}
}
