// Rumisync - Rumi Livestock Telemetry Connector
// Copyright 2026 Rumisync Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rumisync/rumisync

package rumi

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rumisync/rumisync/internal/logging"
)

func testClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, 5*time.Second, fastPolicy(3), 0)
}

func TestListFarms(t *testing.T) {
	var gotAuth, gotPath string
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		w.Write([]byte(`[{"_id": "farm-1", "name": "Granxa do Sul"}, {"_id": "farm-2", "name": "Norte"}]`))
	}))

	farms, err := client.ListFarms(t.Context(), "user-9", "secret-token")
	if err != nil {
		t.Fatalf("ListFarms failed: %v", err)
	}

	if gotAuth != "Token secret-token" {
		t.Errorf("Authorization = %q, want token scheme", gotAuth)
	}
	if gotPath != "/users/user-9/farms" {
		t.Errorf("path = %q", gotPath)
	}
	if len(farms) != 2 || farms[0].ID != "farm-1" || farms[1].Name != "Norte" {
		t.Errorf("farms = %+v", farms)
	}
}

func TestListFarmsEmptyBody(t *testing.T) {
	for _, body := range []string{"", "null", "[]"} {
		t.Run("body "+body, func(t *testing.T) {
			client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.Write([]byte(body))
			}))

			farms, err := client.ListFarms(t.Context(), "user-9", "tok")
			if err != nil {
				t.Fatalf("ListFarms failed: %v", err)
			}
			if len(farms) != 0 {
				t.Errorf("farms = %+v, want empty", farms)
			}
		})
	}
}

func TestListFarmsUnauthorizedNotRetried(t *testing.T) {
	var calls atomic.Int32
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		http.Error(w, "bad token", http.StatusUnauthorized)
	}))

	_, err := client.ListFarms(t.Context(), "user-9", "bad")
	if !IsUnauthorized(err) {
		t.Fatalf("err = %v, want UnauthorizedError", err)
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1 (401 must not be retried)", calls.Load())
	}
}

func TestListFarmsNotFoundNotRetried(t *testing.T) {
	var calls atomic.Int32
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		http.Error(w, "no such user", http.StatusNotFound)
	}))

	_, err := client.ListFarms(t.Context(), "ghost", "tok")
	if !IsNotFound(err) {
		t.Fatalf("err = %v, want NotFoundError", err)
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1 (404 must not be retried)", calls.Load())
	}
}

func TestListFarmsServerErrorRetried(t *testing.T) {
	var calls atomic.Int32
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			http.Error(w, "flaky", http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`[{"_id": "farm-1", "name": "Sul"}]`))
	}))

	farms, err := client.ListFarms(t.Context(), "user-9", "tok")
	if err != nil {
		t.Fatalf("ListFarms failed after retries: %v", err)
	}
	if calls.Load() != 3 {
		t.Errorf("calls = %d, want 3", calls.Load())
	}
	if len(farms) != 1 {
		t.Errorf("farms = %+v", farms)
	}
}

func TestListObservationsQueryParameters(t *testing.T) {
	var gotQuery map[string]string
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = map[string]string{
			"start":     r.URL.Query().Get("start"),
			"stop":      r.URL.Query().Get("stop"),
			"locations": r.URL.Query().Get("locations"),
			"user_id":   r.URL.Query().Get("user_id"),
		}
		w.Write([]byte(`[
			{"_location": "42.1::-8.2", "_time": "2024-06-01T10:00:00.000000Z", "device_name": "RUMI01", "official_tag": "ES001"},
			{"_location": "42.2::-8.3", "_time": "2024-06-01T11:00:00.000000Z", "device_name": "RUMI02", "official_tag": "ES002"}
		]`))
	}))

	obs, err := client.ListObservations(t.Context(), ObservationQuery{
		FarmID:    "farm-1",
		UserID:    "user-9",
		Token:     "tok",
		Start:     time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
		Stop:      time.Date(2024, 6, 2, 0, 0, 0, 0, time.UTC),
		Locations: "all",
	})
	if err != nil {
		t.Fatalf("ListObservations failed: %v", err)
	}

	if gotQuery["start"] != "2024-06-01T00:00:00.000000Z" {
		t.Errorf("start = %q", gotQuery["start"])
	}
	if gotQuery["stop"] != "2024-06-02T00:00:00.000000Z" {
		t.Errorf("stop = %q", gotQuery["stop"])
	}
	if gotQuery["locations"] != "all" || gotQuery["user_id"] != "user-9" {
		t.Errorf("query = %+v", gotQuery)
	}
	if len(obs) != 2 || obs[0].DeviceName != "RUMI01" || obs[1].Lat != 42.2 {
		t.Errorf("observations = %+v", obs)
	}
}

func TestListAnimalsMergesCategories(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/farms/farm-1/bulls":
			w.Write([]byte(`[{"rumi_id": "RUMI01", "name": "Toro"}]`))
		case "/farms/farm-1/cows":
			w.Write([]byte(`[{"rumi_id": "RUMI02", "name": "Luna"}, {"rumi_id": "RUMI03", "name": "Mel"}]`))
		case "/farms/farm-1/calves":
			w.Write([]byte(`[]`))
		default:
			http.NotFound(w, r)
		}
	}))

	roster, err := client.ListAnimals(t.Context(), "farm-1", "user-9", "tok")
	if err != nil {
		t.Fatalf("ListAnimals failed: %v", err)
	}

	if len(roster[CategoryBull]) != 1 || roster[CategoryBull][0].RumiID() != "RUMI01" {
		t.Errorf("bulls = %+v", roster[CategoryBull])
	}
	if len(roster[CategoryCow]) != 2 {
		t.Errorf("cows = %+v", roster[CategoryCow])
	}
	// An empty category is omitted entirely.
	if _, ok := roster[CategoryCalf]; ok {
		t.Errorf("calf category present, want omitted: %+v", roster[CategoryCalf])
	}
}

func TestListAnimalsPropagatesFailure(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/farms/farm-1/cows" {
			http.Error(w, "bad token", http.StatusUnauthorized)
			return
		}
		w.Write([]byte(`[{"rumi_id": "RUMI01"}]`))
	}))

	_, err := client.ListAnimals(t.Context(), "farm-1", "user-9", "tok")
	if !IsUnauthorized(err) {
		t.Fatalf("err = %v, want UnauthorizedError", err)
	}
}

func TestClientLogsErrorResponseBody(t *testing.T) {
	var buf bytes.Buffer
	orig := logging.Logger()
	logging.SetLogger(logging.NewTestLogger(&buf))
	t.Cleanup(func() { logging.SetLogger(orig) })

	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "token expired upstream", http.StatusUnauthorized)
	}))

	_, err := client.ListFarms(t.Context(), "user-9", "bad")
	if !IsUnauthorized(err) {
		t.Fatalf("err = %v, want UnauthorizedError", err)
	}

	logged := buf.String()
	if !strings.Contains(logged, "token expired upstream") {
		t.Errorf("error response body not logged: %s", logged)
	}
	if !strings.Contains(logged, `"status":401`) {
		t.Errorf("status code not logged: %s", logged)
	}
}

func TestClientRateLimitSpacesRequests(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`[]`))
	}))
	t.Cleanup(srv.Close)

	// 50 rps with burst 1: the second and third request each wait ~20ms.
	client := NewClient(srv.URL, 5*time.Second, fastPolicy(1), 50)

	start := time.Now()
	for i := 0; i < 3; i++ {
		if _, err := client.ListFarms(t.Context(), "user-9", "tok"); err != nil {
			t.Fatalf("ListFarms failed: %v", err)
		}
	}
	if elapsed := time.Since(start); elapsed < 40*time.Millisecond {
		t.Errorf("3 requests took %v, want at least 40ms of limiter pacing", elapsed)
	}
}

func TestListObservationsMalformedRecordFails(t *testing.T) {
	var calls atomic.Int32
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.Write([]byte(`[{"_location": "broken", "_time": "2024-06-01T10:00:00.000000Z", "device_name": "d", "official_tag": "t"}]`))
	}))

	_, err := client.ListObservations(t.Context(), ObservationQuery{FarmID: "farm-1", Locations: "all"})
	if err == nil {
		t.Fatal("expected decode error")
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1 (parse failures are permanent)", calls.Load())
	}
}
