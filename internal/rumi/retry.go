// Rumisync - Rumi Livestock Telemetry Connector
// Copyright 2026 Rumisync Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rumisync/rumisync

package rumi

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/rumisync/rumisync/internal/logging"
	"github.com/rumisync/rumisync/internal/metrics"
)

// RetryPolicy is a bounded exponential-backoff policy for transient vendor
// failures. It is explicit and injected at every call site so the policy is
// unit-testable independent of the calls it wraps.
//
// Only errors classified retryable by IsRetryable are retried; 401/404 and
// parse failures propagate immediately.
type RetryPolicy struct {
	// MaxAttempts is the total attempt budget, including the first call.
	MaxAttempts int

	// InitialDelay is the wait before the first retry; it doubles on each
	// subsequent retry up to MaxDelay.
	InitialDelay time.Duration

	// MaxJitter is the upper bound of the uniform random jitter added to
	// every wait.
	MaxJitter time.Duration

	// MaxDelay caps the exponential delay (jitter excluded).
	MaxDelay time.Duration
}

// DefaultRetryPolicy matches the vendor integration's production settings:
// initial 4s, jitter up to 5s, capped at 32s, five attempts.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:  5,
		InitialDelay: 4 * time.Second,
		MaxJitter:    5 * time.Second,
		MaxDelay:     32 * time.Second,
	}
}

// Do executes fn with the policy applied. The context is used for
// cancellation during backoff waits. When the attempt budget is exhausted
// the last error propagates unchanged.
func (p RetryPolicy) Do(ctx context.Context, operation string, fn func() error) error {
	var err error
	delay := p.InitialDelay

	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		err = fn()
		if err == nil {
			return nil
		}
		if !IsRetryable(err) {
			return err
		}
		if attempt == p.MaxAttempts {
			break
		}

		wait := delay + p.jitter()
		logging.Warn().
			Err(err).
			Str("operation", operation).
			Int("attempt", attempt).
			Int("max_attempts", p.MaxAttempts).
			Dur("delay", wait).
			Msg("Retrying vendor API call")
		metrics.VendorAPIRetries.WithLabelValues(operation).Inc()

		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return ctx.Err()
		}

		delay *= 2
		if delay > p.MaxDelay {
			delay = p.MaxDelay
		}
	}

	return err
}

func (p RetryPolicy) jitter() time.Duration {
	if p.MaxJitter <= 0 {
		return 0
	}
	return rand.N(p.MaxJitter)
}
