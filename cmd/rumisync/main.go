// Rumisync - Rumi Livestock Telemetry Connector
// Copyright 2026 Rumisync Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rumisync/rumisync

// Command rumisync runs the connector: the HTTP action endpoints, the
// NATS-backed worker pool, and the state store they share.
package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/rumisync/rumisync/internal/config"
	"github.com/rumisync/rumisync/internal/cursor"
	"github.com/rumisync/rumisync/internal/enrich"
	"github.com/rumisync/rumisync/internal/logging"
	"github.com/rumisync/rumisync/internal/rumi"
	"github.com/rumisync/rumisync/internal/scheduler"
	"github.com/rumisync/rumisync/internal/server"
	"github.com/rumisync/rumisync/internal/sink"
	"github.com/rumisync/rumisync/internal/state"
	syncaction "github.com/rumisync/rumisync/internal/sync"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})
	logging.Info().Msg("Starting rumisync")

	db, err := state.OpenBadger(cfg.State.Path, cfg.State.InMemory)
	if err != nil {
		logging.Fatal().Err(err).Str("path", cfg.State.Path).Msg("Failed to open state store")
	}
	defer db.Close()
	store := state.NewBadgerStore(db)

	var api rumi.API = rumi.NewClient(cfg.RumiBaseURL(), cfg.Rumi.Timeout, rumi.RetryPolicy{
		MaxAttempts:  cfg.Sync.RetryAttempts,
		InitialDelay: cfg.Sync.RetryInitialDelay,
		MaxJitter:    cfg.Sync.RetryMaxJitter,
		MaxDelay:     cfg.Sync.RetryMaxDelay,
	}, cfg.Rumi.RateLimit)
	if cfg.Rumi.Breaker {
		api = rumi.NewBreakerClient(api)
	}

	var sched scheduler.Scheduler
	var nc *nats.Conn
	if cfg.NATS.Enabled {
		nc, err = nats.Connect(cfg.NATS.URL,
			nats.Name("rumisync"),
			nats.MaxReconnects(-1),
			nats.ReconnectWait(2*time.Second),
		)
		if err != nil {
			logging.Fatal().Err(err).Str("url", cfg.NATS.URL).Msg("Failed to connect to NATS")
		}
		defer nc.Close()
		sched = scheduler.NewNATSScheduler(nc, cfg.NATS.SubjectPrefix)
	} else {
		logging.Warn().Msg("NATS disabled, pull triggers will only be recorded in memory")
		sched = scheduler.NewMemoryScheduler()
	}

	runner := syncaction.NewRunner(
		api,
		cursor.NewStore(store),
		enrich.NewCache(store, cfg.Sync.RosterTTL),
		sink.NewHTTPSink(cfg.Sink.URL, cfg.Sink.Token, cfg.Sink.Timeout),
		sched,
		syncaction.Config{
			DefaultLookbackDays: cfg.Sync.DefaultLookbackDays,
			BatchSize:           cfg.Sync.BatchSize,
		},
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var consumer *scheduler.Consumer
	if nc != nil {
		consumer = scheduler.NewConsumer(nc, cfg.NATS.SubjectPrefix, cfg.NATS.QueueGroup, cfg.Rumi.Timeout+time.Minute, workHandler(runner))
		if err := consumer.Start(ctx); err != nil {
			logging.Fatal().Err(err).Msg("Failed to start worker consumer")
		}
	}

	srv := server.New(cfg.Server.Host, cfg.Server.Port, cfg.Server.Timeout, runner)
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logging.Info().Msg("Shutdown signal received")
	case err := <-errCh:
		if err != nil {
			logging.Error().Err(err).Msg("Action server stopped")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if consumer != nil {
		if err := consumer.Stop(); err != nil {
			logging.Error().Err(err).Msg("Failed to drain worker consumer")
		}
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logging.Error().Err(err).Msg("Failed to shut down action server")
	}
	logging.Info().Msg("Stopped rumisync")
}

// workHandler dispatches dequeued work items to their action.
func workHandler(runner *syncaction.Runner) scheduler.Handler {
	return func(ctx context.Context, item scheduler.WorkItem) error {
		switch item.Action {
		case syncaction.ActionFetchFarmObservations:
			var work syncaction.FarmWork
			if err := item.DecodeConfig(&work); err != nil {
				return err
			}
			_, err := runner.FetchFarmObservations(ctx, item.IntegrationID, work)
			return err
		case syncaction.ActionPullObservations:
			var creds syncaction.Credentials
			if err := item.DecodeConfig(&creds); err != nil {
				return err
			}
			_, err := runner.PullObservations(ctx, item.IntegrationID, creds, 0)
			return err
		default:
			logging.Warn().Str("action", item.Action).Str("work_id", item.ID).Msg("Ignoring unknown action")
			return nil
		}
	}
}
