// Rumisync - Rumi Livestock Telemetry Connector
// Copyright 2026 Rumisync Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rumisync/rumisync

// Package server exposes the integration actions over HTTP alongside
// health and metrics endpoints.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rumisync/rumisync/internal/logging"
	syncaction "github.com/rumisync/rumisync/internal/sync"
)

// Server is the HTTP front end for the action runner.
type Server struct {
	runner   *syncaction.Runner
	validate *validator.Validate
	srv      *http.Server
}

// New builds the server and its routes.
func New(host string, port int, timeout time.Duration, runner *syncaction.Runner) *Server {
	s := &Server{
		runner:   runner,
		validate: validator.New(),
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if timeout > 0 {
		r.Use(middleware.Timeout(timeout))
	}

	r.Get("/healthz", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	r.Route("/v1/actions", func(r chi.Router) {
		r.Post("/auth", s.handleAuth)
		r.Post("/pull-observations", s.handlePullObservations)
		r.Post("/fetch-farm-observations", s.handleFetchFarmObservations)
	})

	s.srv = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", host, port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler exposes the route tree, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.srv.Handler
}

// ListenAndServe blocks serving requests until Shutdown is called.
func (s *Server) ListenAndServe() error {
	logging.Info().Str("addr", s.srv.Addr).Msg("Action server listening")
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("action server: %w", err)
	}
	return nil
}

// Shutdown stops the server, waiting for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

// authRequest is the body of the auth action.
type authRequest struct {
	IntegrationID string `json:"integration_id" validate:"required"`
	UserID        string `json:"user_id"        validate:"required"`
	Token         string `json:"token"          validate:"required"`
}

func (s *Server) handleAuth(w http.ResponseWriter, r *http.Request) {
	var req authRequest
	if !s.decodeRequest(w, r, &req) {
		return
	}

	result, err := s.runner.Authenticate(r.Context(), req.IntegrationID, syncaction.Credentials{
		UserID: req.UserID,
		Token:  req.Token,
	})
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, result)
}

// pullRequest is the body of the pull-observations action.
type pullRequest struct {
	IntegrationID string `json:"integration_id" validate:"required"`
	UserID        string `json:"user_id"        validate:"required"`
	Token         string `json:"token"          validate:"required"`
	LookbackDays  int    `json:"lookback_days"  validate:"min=0,max=5"`
}

func (s *Server) handlePullObservations(w http.ResponseWriter, r *http.Request) {
	var req pullRequest
	if !s.decodeRequest(w, r, &req) {
		return
	}

	triggered, err := s.runner.PullObservations(r.Context(), req.IntegrationID, syncaction.Credentials{
		UserID: req.UserID,
		Token:  req.Token,
	}, req.LookbackDays)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"farms_triggered": triggered})
}

// fetchRequest is the body of the fetch-farm-observations action. Normally
// produced by the pull action; exposed over HTTP for replay and debugging.
type fetchRequest struct {
	IntegrationID string              `json:"integration_id" validate:"required"`
	Work          syncaction.FarmWork `json:"work"`
}

func (s *Server) handleFetchFarmObservations(w http.ResponseWriter, r *http.Request) {
	var req fetchRequest
	if !s.decodeRequest(w, r, &req) {
		return
	}
	if req.Work.FarmID == "" {
		s.respondJSON(w, http.StatusBadRequest, map[string]any{"error": "work.farm_id is required"})
		return
	}

	extracted, err := s.runner.FetchFarmObservations(r.Context(), req.IntegrationID, req.Work)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"observations_extracted": extracted})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

// decodeRequest parses and validates a JSON request body, writing the
// error response itself when the body is unusable.
func (s *Server) decodeRequest(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		s.respondJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid JSON body"})
		return false
	}
	if err := s.validate.Struct(dst); err != nil {
		s.respondJSON(w, http.StatusBadRequest, map[string]any{"error": err.Error()})
		return false
	}
	return true
}

func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error) {
	logging.Error().
		Err(err).
		Str("request_id", middleware.GetReqID(r.Context())).
		Str("path", r.URL.Path).
		Msg("Action failed")
	s.respondJSON(w, http.StatusBadGateway, map[string]any{"error": err.Error()})
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logging.Error().Err(err).Msg("Failed to encode response")
	}
}
