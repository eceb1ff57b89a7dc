// Rumisync - Rumi Livestock Telemetry Connector
// Copyright 2026 Rumisync Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rumisync/rumisync

package rumi

import (
	"context"
	"errors"
	"testing"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
)

type scriptedAPI struct {
	farms    []Farm
	farmsErr error
	calls    int
}

func (s *scriptedAPI) ListFarms(context.Context, string, string) ([]Farm, error) {
	s.calls++
	return s.farms, s.farmsErr
}

func (s *scriptedAPI) ListObservations(context.Context, ObservationQuery) ([]Observation, error) {
	return nil, nil
}

func (s *scriptedAPI) ListAnimals(context.Context, string, string, string) (Roster, error) {
	return Roster{}, nil
}

func TestBreakerPassesThroughSuccess(t *testing.T) {
	api := &scriptedAPI{farms: []Farm{{ID: "farm-1", Name: "Sul"}}}
	b := NewBreakerClient(api)

	farms, err := b.ListFarms(t.Context(), "user-9", "tok")
	if err != nil {
		t.Fatalf("ListFarms failed: %v", err)
	}
	if len(farms) != 1 || farms[0].ID != "farm-1" {
		t.Errorf("farms = %+v", farms)
	}
}

func TestBreakerOpensOnSustainedFailure(t *testing.T) {
	api := &scriptedAPI{farmsErr: &StatusError{StatusCode: 503}}
	b := NewBreakerClient(api)

	// Below the 10-request minimum the breaker stays closed.
	for i := 0; i < 10; i++ {
		_, err := b.ListFarms(t.Context(), "user-9", "tok")
		var statusErr *StatusError
		if !errors.As(err, &statusErr) {
			t.Fatalf("call %d: err = %v, want StatusError", i, err)
		}
	}

	_, err := b.ListFarms(t.Context(), "user-9", "tok")
	if !errors.Is(err, gobreaker.ErrOpenState) {
		t.Fatalf("err = %v, want open breaker", err)
	}
	if api.calls != 10 {
		t.Errorf("vendor calls = %d, want 10 (open breaker must short-circuit)", api.calls)
	}
}

func TestBreakerAttemptsRecoveryAfterTimeout(t *testing.T) {
	api := &scriptedAPI{farmsErr: &StatusError{StatusCode: 503}}
	b := newBreakerClient(api, time.Minute, 50*time.Millisecond)

	for i := 0; i < 10; i++ {
		_, _ = b.ListFarms(t.Context(), "user-9", "tok")
	}
	if _, err := b.ListFarms(t.Context(), "user-9", "tok"); !errors.Is(err, gobreaker.ErrOpenState) {
		t.Fatalf("err = %v, want open breaker", err)
	}

	// Before the recovery timeout the breaker still short-circuits; after
	// it, a half-open probe reaches the vendor again.
	api.farmsErr = nil
	api.farms = []Farm{{ID: "farm-1", Name: "Sul"}}
	time.Sleep(80 * time.Millisecond)

	farms, err := b.ListFarms(t.Context(), "user-9", "tok")
	if err != nil {
		t.Fatalf("probe after recovery timeout failed: %v", err)
	}
	if len(farms) != 1 {
		t.Errorf("farms = %+v", farms)
	}
}

func TestBreakerClearsCountsEachInterval(t *testing.T) {
	api := &scriptedAPI{farmsErr: &StatusError{StatusCode: 503}}
	b := newBreakerClient(api, 20*time.Millisecond, time.Minute)

	// Failures spread across measurement intervals never accumulate to the
	// 10-request trip minimum, so the breaker stays closed.
	for i := 0; i < 12; i++ {
		_, err := b.ListFarms(t.Context(), "user-9", "tok")
		var statusErr *StatusError
		if !errors.As(err, &statusErr) {
			t.Fatalf("call %d: err = %v, want StatusError", i, err)
		}
		time.Sleep(25 * time.Millisecond)
	}
	if api.calls != 12 {
		t.Errorf("vendor calls = %d, want 12 (breaker must stay closed)", api.calls)
	}
}

func TestBreakerIgnoresCredentialFailures(t *testing.T) {
	api := &scriptedAPI{farmsErr: &UnauthorizedError{Message: "Unauthorized access", Err: &StatusError{StatusCode: 401}}}
	b := NewBreakerClient(api)

	// Credential rejections are the caller's problem, not the vendor's
	// availability; they must never open the breaker.
	for i := 0; i < 20; i++ {
		if _, err := b.ListFarms(t.Context(), "user-9", "bad"); !IsUnauthorized(err) {
			t.Fatalf("call %d: err = %v, want UnauthorizedError", i, err)
		}
	}
	if api.calls != 20 {
		t.Errorf("vendor calls = %d, want 20", api.calls)
	}
}
