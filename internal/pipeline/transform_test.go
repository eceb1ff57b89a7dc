// Rumisync - Rumi Livestock Telemetry Connector
// Copyright 2026 Rumisync Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rumisync/rumisync

package pipeline

import (
	"reflect"
	"testing"
	"time"

	"github.com/rumisync/rumisync/internal/rumi"
)

var testFarm = FarmContext{ID: "farm-1", Name: "Granxa do Sul"}

func testRoster() rumi.Roster {
	return rumi.Roster{
		rumi.CategoryCow: {
			{"rumi_id": "RUMI01", "name": "Luna", "official_tag": "ES001", "weight": 412.5},
		},
		rumi.CategoryBull: {
			{"rumi_id": "RUMI02", "name": "Toro"},
		},
	}
}

func TestTransformMatchedDevice(t *testing.T) {
	idx := IndexRoster(testRoster())
	obs := rumi.Observation{
		Lat:         42.8782,
		Lon:         -8.5448,
		Time:        time.Date(2024, 6, 1, 10, 30, 0, 0, time.UTC),
		DeviceName:  "RUMI01",
		OfficialTag: "ES001",
	}

	got := Transform(testFarm, idx, obs)

	if got.SourceName != "Luna (RUMI01)" {
		t.Errorf("SourceName = %q", got.SourceName)
	}
	if got.Source != "ES001" {
		t.Errorf("Source = %q", got.Source)
	}
	if got.Type != SourceType {
		t.Errorf("Type = %q", got.Type)
	}
	if got.SubjectType != "rumi-cow" {
		t.Errorf("SubjectType = %q", got.SubjectType)
	}
	if !got.RecordedAt.Equal(obs.Time) {
		t.Errorf("RecordedAt = %v", got.RecordedAt)
	}
	if got.Location.Lat != 42.8782 || got.Location.Lon != -8.5448 {
		t.Errorf("Location = %+v", got.Location)
	}

	if got.Additional["farm_id"] != "farm-1" || got.Additional["farm_name"] != "Granxa do Sul" {
		t.Errorf("farm context = %+v", got.Additional)
	}
	if got.Additional["type"] != rumi.CategoryCow {
		t.Errorf("type = %v", got.Additional["type"])
	}
	if got.Additional["subject_name"] != "Luna (RUMI01)" {
		t.Errorf("subject_name = %v", got.Additional["subject_name"])
	}
	if got.Additional["weight"] != 412.5 {
		t.Errorf("weight = %v", got.Additional["weight"])
	}
}

func TestTransformUnmatchedDevice(t *testing.T) {
	idx := IndexRoster(testRoster())
	obs := rumi.Observation{
		Lat:         43.0,
		Lon:         -8.0,
		Time:        time.Date(2024, 6, 1, 11, 0, 0, 0, time.UTC),
		DeviceName:  "RUMI99",
		OfficialTag: "ES999",
	}

	got := Transform(testFarm, idx, obs)

	if got.SourceName != "ES999 (RUMI99)" {
		t.Errorf("SourceName = %q", got.SourceName)
	}
	if got.SubjectType != SubjectTypeUnassigned {
		t.Errorf("SubjectType = %q", got.SubjectType)
	}
	if _, ok := got.Additional["subject_name"]; ok {
		t.Error("unmatched observation must not carry subject_name")
	}
	// Farm context is still attached.
	if got.Additional["farm_id"] != "farm-1" {
		t.Errorf("farm_id = %v", got.Additional["farm_id"])
	}
}

func TestTransformMatchedWithoutNameFallsBackToTag(t *testing.T) {
	roster := rumi.Roster{
		rumi.CategoryCalf: {{"rumi_id": "RUMI07"}},
	}
	obs := rumi.Observation{DeviceName: "RUMI07", OfficialTag: "ES007"}

	got := Transform(testFarm, IndexRoster(roster), obs)
	if got.SourceName != "ES007 (RUMI07)" {
		t.Errorf("SourceName = %q", got.SourceName)
	}
	if got.SubjectType != "rumi-calf" {
		t.Errorf("SubjectType = %q", got.SubjectType)
	}
}

func TestTransformDropsEmptyEnrichmentFields(t *testing.T) {
	roster := rumi.Roster{
		rumi.CategoryCow: {{
			"rumi_id": "RUMI01",
			"name":    "Luna",
			"nif":     "",
			"notes":   nil,
			"alerts":  []any{},
		}},
	}
	obs := rumi.Observation{DeviceName: "RUMI01", OfficialTag: "ES001"}

	got := Transform(testFarm, IndexRoster(roster), obs)
	for _, key := range []string{"nif", "notes", "alerts"} {
		if _, ok := got.Additional[key]; ok {
			t.Errorf("empty field %q forwarded downstream", key)
		}
	}
	if got.Additional["name"] != "Luna" {
		t.Errorf("name = %v", got.Additional["name"])
	}
}

func TestTransformCategoryOverridesVendorTypeField(t *testing.T) {
	roster := rumi.Roster{
		rumi.CategoryCow: {{"rumi_id": "RUMI01", "name": "Luna", "type": "beef"}},
	}
	obs := rumi.Observation{DeviceName: "RUMI01", OfficialTag: "ES001"}

	got := Transform(testFarm, IndexRoster(roster), obs)
	if got.Additional["type"] != rumi.CategoryCow {
		t.Errorf("type = %v, want roster category %q", got.Additional["type"], rumi.CategoryCow)
	}
	if got.SubjectType != "rumi-cow" {
		t.Errorf("SubjectType = %q", got.SubjectType)
	}
}

func TestTransformDeterministic(t *testing.T) {
	idx := IndexRoster(testRoster())
	obs := rumi.Observation{
		Lat:         42.1,
		Lon:         -8.1,
		Time:        time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC),
		DeviceName:  "RUMI02",
		OfficialTag: "ES002",
	}

	first := Transform(testFarm, idx, obs)
	second := Transform(testFarm, idx, obs)
	if !reflect.DeepEqual(first, second) {
		t.Errorf("transform not deterministic:\n%+v\n%+v", first, second)
	}
}

func TestIndexRosterDuplicateTrackerResolution(t *testing.T) {
	roster := rumi.Roster{
		rumi.CategoryBull: {{"rumi_id": "RUMI01", "name": "Toro"}},
		rumi.CategoryCow:  {{"rumi_id": "RUMI01", "name": "Luna"}},
	}

	// The category order is fixed, so the same duplicate always resolves
	// the same way: cow is indexed after bull and wins.
	for i := 0; i < 10; i++ {
		idx := IndexRoster(roster)
		entry, ok := idx["RUMI01"]
		if !ok {
			t.Fatal("RUMI01 missing from index")
		}
		if entry.animal.Name() != "Luna" {
			t.Fatalf("duplicate resolved to %q, want Luna", entry.animal.Name())
		}
	}
}

func TestIndexRosterSkipsEntriesWithoutTrackerID(t *testing.T) {
	roster := rumi.Roster{
		rumi.CategoryCow: {{"name": "Untagged"}},
	}
	idx := IndexRoster(roster)
	if len(idx) != 0 {
		t.Errorf("index = %v, want empty", idx)
	}
}
