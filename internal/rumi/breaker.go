// Rumisync - Rumi Livestock Telemetry Connector
// Copyright 2026 Rumisync Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rumisync/rumisync

package rumi

import (
	"context"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/rumisync/rumisync/internal/logging"
	"github.com/rumisync/rumisync/internal/metrics"
)

// Ensure BreakerClient implements API
var _ API = (*BreakerClient)(nil)

// BreakerClient wraps an API implementation with a circuit breaker to
// prevent hammering the vendor while it is down.
//
// Unauthorized and NotFound responses count as successes for breaker
// purposes: the vendor answered, the credentials are the problem.
type BreakerClient struct {
	api  API
	cb   *gobreaker.CircuitBreaker[any]
	name string
}

// NewBreakerClient wraps api with a circuit breaker.
// Breaker configuration:
//   - Max 3 concurrent requests in half-open state
//   - 1 minute measurement window
//   - 2 minute timeout before attempting recovery
//   - Opens after 60% failure rate with minimum 10 requests
func NewBreakerClient(api API) *BreakerClient {
	return newBreakerClient(api, time.Minute, 2*time.Minute)
}

// newBreakerClient takes the measurement interval and recovery timeout
// explicitly so tests can exercise state transitions without minute-long
// sleeps.
func newBreakerClient(api API, interval, timeout time.Duration) *BreakerClient {
	const cbName = "rumi-api"

	metrics.CircuitBreakerState.WithLabelValues(cbName).Set(0) // 0 = closed

	cb := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        cbName,
		MaxRequests: 3,
		Interval:    interval,
		Timeout:     timeout,

		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 10 {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= 0.6
		},

		IsSuccessful: func(err error) bool {
			return err == nil || IsUnauthorized(err) || IsNotFound(err)
		},

		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Circuit breaker state change")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToGauge(to))
		},
	})

	return &BreakerClient{api: api, cb: cb, name: cbName}
}

func stateToGauge(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateOpen:
		return 1
	case gobreaker.StateHalfOpen:
		return 2
	default:
		return 0
	}
}

// ListFarms implements API.
func (b *BreakerClient) ListFarms(ctx context.Context, userID, token string) ([]Farm, error) {
	result, err := b.cb.Execute(func() (any, error) {
		return b.api.ListFarms(ctx, userID, token)
	})
	if err != nil {
		return nil, err
	}
	return result.([]Farm), nil
}

// ListObservations implements API.
func (b *BreakerClient) ListObservations(ctx context.Context, q ObservationQuery) ([]Observation, error) {
	result, err := b.cb.Execute(func() (any, error) {
		return b.api.ListObservations(ctx, q)
	})
	if err != nil {
		return nil, err
	}
	return result.([]Observation), nil
}

// ListAnimals implements API.
func (b *BreakerClient) ListAnimals(ctx context.Context, farmID, userID, token string) (Roster, error) {
	result, err := b.cb.Execute(func() (any, error) {
		return b.api.ListAnimals(ctx, farmID, userID, token)
	})
	if err != nil {
		return nil, err
	}
	return result.(Roster), nil
}
