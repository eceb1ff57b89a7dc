// Rumisync - Rumi Livestock Telemetry Connector
// Copyright 2026 Rumisync Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rumisync/rumisync

package rumi

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/time/rate"

	"github.com/rumisync/rumisync/internal/logging"
	"github.com/rumisync/rumisync/internal/metrics"
)

// maxErrorBodySize limits how much of an error response body is read for
// diagnostics, preventing unbounded allocation on large error responses.
const maxErrorBodySize = 64 * 1024 // 64KB

// API defines the vendor operations used by the sync engine.
//
// Implemented by Client for production and by mocks for testing; all
// methods are safe for concurrent use.
type API interface {
	ListFarms(ctx context.Context, userID, token string) ([]Farm, error)
	ListObservations(ctx context.Context, q ObservationQuery) ([]Observation, error)
	ListAnimals(ctx context.Context, farmID, userID, token string) (Roster, error)
}

// ObservationQuery holds the parameters of a location-history fetch.
type ObservationQuery struct {
	FarmID    string
	UserID    string
	Token     string
	Start     time.Time
	Stop      time.Time
	Locations string // "all" unless a device subset is requested
}

// Client is the HTTP implementation of the vendor API.
//
// Every request carries the integration's bearer token
// ("Authorization: Token {token}") and a fixed request timeout; transient
// failures are retried per the injected RetryPolicy. An HTTP 401 surfaces
// as UnauthorizedError and 404 as NotFoundError, neither retried. Requests
// are paced by a client-side rate limiter so retries and roster fan-outs
// cannot hammer the vendor.
type Client struct {
	baseURL    string
	httpClient *http.Client
	retry      RetryPolicy
	limiter    *rate.Limiter
}

var _ API = (*Client)(nil)

// NewClient creates a vendor API client for the given base URL. An rps of
// zero disables client-side rate limiting.
func NewClient(baseURL string, timeout time.Duration, retry RetryPolicy, rps float64) *Client {
	var limiter *rate.Limiter
	if rps > 0 {
		limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		retry:      retry,
		limiter:    limiter,
	}
}

// ListFarms returns the farms owned by the given user. An empty response
// body yields an empty result, not an error.
func (c *Client) ListFarms(ctx context.Context, userID, token string) ([]Farm, error) {
	var farms []Farm
	err := c.retry.Do(ctx, "list_farms", func() error {
		farms = nil
		reqURL := fmt.Sprintf("%s/users/%s/farms", c.baseURL, url.PathEscape(userID))
		return c.get(ctx, "list_farms", reqURL, nil, token, &farms)
	})
	if err != nil {
		return nil, err
	}
	return farms, nil
}

// ListObservations returns the location history of a farm within the query
// window, oldest first as returned by the vendor.
func (c *Client) ListObservations(ctx context.Context, q ObservationQuery) ([]Observation, error) {
	params := url.Values{}
	params.Set("start", FormatTime(q.Start))
	params.Set("stop", FormatTime(q.Stop))
	params.Set("locations", q.Locations)
	params.Set("user_id", q.UserID)

	var observations []Observation
	err := c.retry.Do(ctx, "list_observations", func() error {
		observations = nil
		reqURL := fmt.Sprintf("%s/farms/%s/rumi/location/history", c.baseURL, url.PathEscape(q.FarmID))
		return c.get(ctx, "list_observations", reqURL, params, q.Token, &observations)
	})
	if err != nil {
		return nil, err
	}
	return observations, nil
}

// rosterResources maps roster categories to their vendor sub-resources, in
// fetch order.
var rosterResources = []struct {
	category string
	resource string
}{
	{CategoryBull, "bulls"},
	{CategoryCow, "cows"},
	{CategoryCalf, "calves"},
}

// ListAnimals fetches the three roster sub-resources of a farm and merges
// them into one categorized roster. A category the vendor returns empty is
// omitted from the result, not treated as an error.
func (c *Client) ListAnimals(ctx context.Context, farmID, userID, token string) (Roster, error) {
	params := url.Values{}
	params.Set("user_id", userID)

	var roster Roster
	err := c.retry.Do(ctx, "list_animals", func() error {
		roster = make(Roster)
		for _, r := range rosterResources {
			var animals []Animal
			reqURL := fmt.Sprintf("%s/farms/%s/%s", c.baseURL, url.PathEscape(farmID), r.resource)
			if err := c.get(ctx, "list_animals", reqURL, params, token, &animals); err != nil {
				return err
			}
			if len(animals) > 0 {
				roster[r.category] = animals
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return roster, nil
}

// get issues one authenticated GET request and decodes the JSON body into
// out. Empty and "null" bodies leave out untouched (empty result).
func (c *Client) get(ctx context.Context, operation, reqURL string, params url.Values, token string, out any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
	}

	if len(params) > 0 {
		reqURL = reqURL + "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
	if err != nil {
		return fmt.Errorf("create request failed: %w", err)
	}
	req.Header.Set("Authorization", "Token "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.VendorAPIRequests.WithLabelValues(operation, "transport_error").Inc()
		return &TransportError{Err: err}
	}
	defer resp.Body.Close()

	metrics.VendorAPIRequests.WithLabelValues(operation, strconv.Itoa(resp.StatusCode)).Inc()

	if resp.StatusCode >= http.StatusBadRequest {
		return classifyErrorResponse(operation, resp)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &TransportError{Err: err}
	}

	body = bytes.TrimSpace(body)
	if len(body) == 0 || bytes.Equal(body, []byte("null")) {
		return nil
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", operation, err)
	}
	return nil
}

// classifyErrorResponse logs the error body and maps the status code onto
// the error taxonomy: 401 Unauthorized and 404 NotFound are fatal, anything
// else is a retryable StatusError.
func classifyErrorResponse(operation string, resp *http.Response) error {
	body := readBodyForError(resp.Body)
	logging.Error().
		Str("operation", operation).
		Int("status", resp.StatusCode).
		Str("body", string(body)).
		Msg("Vendor API error response")

	statusErr := &StatusError{StatusCode: resp.StatusCode, Body: string(body)}
	switch resp.StatusCode {
	case http.StatusUnauthorized:
		return &UnauthorizedError{Message: "Unauthorized access", Err: statusErr}
	case http.StatusNotFound:
		return &NotFoundError{Message: "User not found", Err: statusErr}
	default:
		return statusErr
	}
}

// readBodyForError reads the response body for error reporting (max 64KB).
// Returns a placeholder if reading fails.
func readBodyForError(r io.Reader) []byte {
	body, err := io.ReadAll(io.LimitReader(r, maxErrorBodySize))
	if err != nil {
		return []byte("(failed to read response body)")
	}
	if len(body) == maxErrorBodySize {
		return append(body, []byte("\n... (truncated)")...)
	}
	return body
}
