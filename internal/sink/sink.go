// Rumisync - Rumi Livestock Telemetry Connector
// Copyright 2026 Rumisync Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rumisync/rumisync

// Package sink delivers batches of canonical observations to the
// downstream event-ingestion platform.
package sink

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/goccy/go-json"

	"github.com/rumisync/rumisync/internal/pipeline"
)

// Sink accepts batches of canonical observations. The returned slice holds
// the ids of the records the platform accepted; its length is the
// authoritative accepted count for the batch.
type Sink interface {
	Deliver(ctx context.Context, batch []pipeline.CanonicalObservation, integrationID string) ([]string, error)
}

// HTTPSink posts batches to the ingestion platform's observations endpoint.
type HTTPSink struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

var _ Sink = (*HTTPSink)(nil)

// NewHTTPSink creates a sink for the given ingestion platform endpoint.
func NewHTTPSink(baseURL, token string, timeout time.Duration) *HTTPSink {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPSink{
		baseURL:    baseURL,
		token:      token,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// deliverResponse is the platform's acknowledgement wire shape.
type deliverResponse struct {
	Accepted []string `json:"accepted"`
}

// Deliver implements Sink. A non-2xx response or transport failure is an
// error; the caller decides whether the cycle is abandoned.
func (s *HTTPSink) Deliver(ctx context.Context, batch []pipeline.CanonicalObservation, integrationID string) ([]string, error) {
	body, err := json.Marshal(batch)
	if err != nil {
		return nil, fmt.Errorf("encode observation batch: %w", err)
	}

	reqURL := fmt.Sprintf("%s/v1/observations?integration_id=%s", s.baseURL, url.QueryEscape(integrationID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create delivery request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("deliver batch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("deliver batch: ingestion platform returned status %d: %s", resp.StatusCode, detail)
	}

	var ack deliverResponse
	if err := json.NewDecoder(resp.Body).Decode(&ack); err != nil {
		return nil, fmt.Errorf("decode delivery acknowledgement: %w", err)
	}
	return ack.Accepted, nil
}
