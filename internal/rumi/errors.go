// Rumisync - Rumi Livestock Telemetry Connector
// Copyright 2026 Rumisync Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rumisync/rumisync

package rumi

import (
	"errors"
	"fmt"
	"net/http"
)

// UnauthorizedError reports an HTTP 401 from the vendor API. It is fatal for
// the current operation and never retried.
type UnauthorizedError struct {
	Message string
	Err     error
}

func (e *UnauthorizedError) Error() string {
	return fmt.Sprintf("%d: %s, Error: %v", http.StatusUnauthorized, e.Message, e.Err)
}

func (e *UnauthorizedError) Unwrap() error { return e.Err }

// NotFoundError reports an HTTP 404 from the vendor API, typically an
// unknown user id. Fatal, never retried.
type NotFoundError struct {
	Message string
	Err     error
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%d: %s, Error: %v", http.StatusNotFound, e.Message, e.Err)
}

func (e *NotFoundError) Unwrap() error { return e.Err }

// StatusError reports any other HTTP error status. Retryable.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("vendor API returned status %d: %s", e.StatusCode, e.Body)
}

// TransportError reports a transport-level failure (connection error,
// timeout). Retryable.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("vendor API transport failure: %v", e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// IsUnauthorized reports whether err is an UnauthorizedError.
func IsUnauthorized(err error) bool {
	var target *UnauthorizedError
	return errors.As(err, &target)
}

// IsNotFound reports whether err is a NotFoundError.
func IsNotFound(err error) bool {
	var target *NotFoundError
	return errors.As(err, &target)
}

// IsRetryable reports whether err is a transient failure worth retrying.
// Only non-401/404 HTTP status errors and transport failures qualify;
// parse and validation failures are permanent.
func IsRetryable(err error) bool {
	// Unauthorized and NotFound wrap the underlying StatusError for
	// diagnostics; check them first so they stay non-retryable.
	if IsUnauthorized(err) || IsNotFound(err) {
		return false
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return true
	}
	var transportErr *TransportError
	return errors.As(err, &transportErr)
}
