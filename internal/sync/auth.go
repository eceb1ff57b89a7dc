// Rumisync - Rumi Livestock Telemetry Connector
// Copyright 2026 Rumisync Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rumisync/rumisync

package sync

import (
	"context"
	"errors"

	"github.com/goccy/go-json"

	"github.com/rumisync/rumisync/internal/logging"
	"github.com/rumisync/rumisync/internal/rumi"
)

// AuthStatus classifies the outcome of a credential check.
type AuthStatus int

const (
	// StatusAuthorized: the credentials resolved to at least one farm.
	StatusAuthorized AuthStatus = iota
	// StatusBadCredentials: the vendor answered but returned no farms, so
	// the account is unusable for syncing.
	StatusBadCredentials
	// StatusInvalidToken: the vendor rejected the API token (HTTP 401).
	StatusInvalidToken
	// StatusInvalidUser: the vendor does not know the user id (HTTP 404).
	StatusInvalidUser
	// StatusAPIError: the vendor returned some other HTTP error.
	StatusAPIError
)

// AuthResult is the outcome of the auth action, shaped for the action
// response body.
type AuthResult struct {
	Status     AuthStatus
	StatusCode int
}

// Valid reports whether the credentials can be used for syncing.
func (r AuthResult) Valid() bool {
	return r.Status == StatusAuthorized
}

// MarshalJSON renders the action response body. The shape varies with the
// outcome, matching what integration operators already consume.
func (r AuthResult) MarshalJSON() ([]byte, error) {
	switch r.Status {
	case StatusAuthorized:
		return json.Marshal(map[string]any{"valid_credentials": true})
	case StatusBadCredentials:
		return json.Marshal(map[string]any{
			"valid_credentials": false,
			"message":           "Bad credentials",
		})
	case StatusInvalidToken:
		return json.Marshal(map[string]any{
			"valid_credentials": false,
			"status_code":       r.StatusCode,
			"message":           "Invalid token",
		})
	case StatusInvalidUser:
		return json.Marshal(map[string]any{
			"valid_credentials": false,
			"status_code":       r.StatusCode,
			"message":           "Invalid user_id",
		})
	default:
		return json.Marshal(map[string]any{
			"error":       true,
			"status_code": r.StatusCode,
		})
	}
}

// Authenticate verifies integration credentials by listing the user's
// farms. HTTP-level rejections are reported as structured results, not
// errors; only transport failures (after retries) return a non-nil error.
func (r *Runner) Authenticate(ctx context.Context, integrationID string, creds Credentials) (AuthResult, error) {
	farms, err := r.api.ListFarms(ctx, creds.UserID, creds.Token)
	if err != nil {
		var unauthorized *rumi.UnauthorizedError
		if errors.As(err, &unauthorized) {
			logging.Warn().
				Str("integration_id", integrationID).
				Msg("Auth failed: vendor rejected token")
			return AuthResult{Status: StatusInvalidToken, StatusCode: 401}, nil
		}

		var notFound *rumi.NotFoundError
		if errors.As(err, &notFound) {
			logging.Warn().
				Str("integration_id", integrationID).
				Msg("Auth failed: vendor does not know user")
			return AuthResult{Status: StatusInvalidUser, StatusCode: 404}, nil
		}

		var status *rumi.StatusError
		if errors.As(err, &status) {
			logging.Error().
				Str("integration_id", integrationID).
				Int("status", status.StatusCode).
				Msg("Auth failed: vendor API error")
			return AuthResult{Status: StatusAPIError, StatusCode: status.StatusCode}, nil
		}

		return AuthResult{}, err
	}

	if len(farms) == 0 {
		logging.Warn().
			Str("integration_id", integrationID).
			Msg("Auth failed: credentials resolve to no farms")
		return AuthResult{Status: StatusBadCredentials}, nil
	}

	logging.Info().
		Str("integration_id", integrationID).
		Int("farms", len(farms)).
		Msg("Credentials verified")
	return AuthResult{Status: StatusAuthorized}, nil
}
