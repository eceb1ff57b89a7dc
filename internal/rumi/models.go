// Rumisync - Rumi Livestock Telemetry Connector
// Copyright 2026 Rumisync Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rumisync/rumisync

package rumi

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
)

// TimeLayout is the vendor's explicit timestamp format. It is also the
// canonical serialization format for cursors, matching what the vendor
// expects in the history endpoint's start/stop parameters.
const TimeLayout = "2006-01-02T15:04:05.000000Z"

// locationDelimiter separates latitude and longitude in the vendor's
// single-string location encoding.
const locationDelimiter = "::"

// Roster categories. The vendor exposes the animal roster as three separate
// sub-resources, one per category.
const (
	CategoryBull = "bull"
	CategoryCow  = "cow"
	CategoryCalf = "calf"
)

// Farm is a vendor-managed site containing tracked animals.
type Farm struct {
	ID   string  `json:"_id"`
	Name string  `json:"name"`
	NIF  *string `json:"nif,omitempty"`
	Rega *string `json:"rega,omitempty"`
}

// Observation is one geo-located reading from a tracked device.
//
// The wire shape is normalized on decode: the vendor's "lat::lon" location
// string is split into float coordinates, and the timestamp is normalized
// to UTC (see ParseTime for the strategy).
type Observation struct {
	Lat         float64
	Lon         float64
	Time        time.Time
	DeviceName  string
	OfficialTag string
}

// rawObservation is the vendor wire shape of an observation.
type rawObservation struct {
	Location    string `json:"_location"`
	Time        string `json:"_time"`
	DeviceName  string `json:"device_name"`
	OfficialTag string `json:"official_tag"`
}

// UnmarshalJSON decodes and validates a vendor observation.
func (o *Observation) UnmarshalJSON(data []byte) error {
	var raw rawObservation
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	lat, lon, err := ParseLocation(raw.Location)
	if err != nil {
		return err
	}

	t, err := ParseTime(raw.Time)
	if err != nil {
		return err
	}

	o.Lat = lat
	o.Lon = lon
	o.Time = t
	o.DeviceName = raw.DeviceName
	o.OfficialTag = raw.OfficialTag
	return nil
}

// ParseLocation splits a "<lat>::<lon>" string into float coordinates.
// A missing delimiter or a non-numeric half is a parse failure.
func ParseLocation(s string) (lat, lon float64, err error) {
	left, right, found := strings.Cut(s, locationDelimiter)
	if !found {
		return 0, 0, fmt.Errorf("malformed location %q: missing %q delimiter", s, locationDelimiter)
	}

	lat, err = strconv.ParseFloat(left, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("malformed location %q: bad latitude: %w", s, err)
	}

	lon, err = strconv.ParseFloat(right, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("malformed location %q: bad longitude: %w", s, err)
	}

	return lat, lon, nil
}

// naiveTimeLayouts are timestamp shapes the vendor has been observed to emit
// without a zone designator. Naive values are assumed UTC.
var naiveTimeLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
}

// ParseTime normalizes a vendor timestamp to UTC.
//
// The vendor has emitted two inconsistent shapes across API versions; the
// explicit fixed format is canonical here. The strategy is deterministic,
// first match wins:
//  1. the fixed layout "2006-01-02T15:04:05.000000Z" (UTC by construction)
//  2. RFC 3339 with an explicit offset (identity normalization to UTC)
//  3. a naive value without zone designator, assumed UTC
func ParseTime(s string) (time.Time, error) {
	if t, err := time.Parse(TimeLayout, s); err == nil {
		return t.UTC(), nil
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.UTC(), nil
	}
	for _, layout := range naiveTimeLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("malformed timestamp %q", s)
}

// FormatTime serializes a timestamp in the vendor's explicit format.
// Used for the history endpoint's start/stop parameters and for cursors.
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

// Animal is per-animal metadata keyed by vendor field names. The vendor's
// roster schema varies between deployments, so the record is kept as a
// generic map; well-known fields have accessors.
type Animal map[string]any

// RumiID returns the vendor-assigned tracker id of the animal.
func (a Animal) RumiID() string { return a.stringField("rumi_id") }

// Name returns the animal's display name, if present.
func (a Animal) Name() string { return a.stringField("name") }

func (a Animal) stringField(key string) string {
	if v, ok := a[key].(string); ok {
		return v
	}
	return ""
}

// Roster is a farm's animal metadata, partitioned by category
// (bull, cow, calf). Categories the vendor returned empty are absent.
type Roster map[string][]Animal
