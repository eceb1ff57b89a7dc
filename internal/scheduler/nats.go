// Rumisync - Rumi Livestock Telemetry Connector
// Copyright 2026 Rumisync Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rumisync/rumisync

package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/nats-io/nats.go"

	"github.com/rumisync/rumisync/internal/logging"
	"github.com/rumisync/rumisync/internal/metrics"
)

// NATSScheduler publishes work items to NATS subjects of the form
// "<prefix>.<action>". Workers in the same queue group share the load.
type NATSScheduler struct {
	conn          *nats.Conn
	subjectPrefix string
}

var _ Scheduler = (*NATSScheduler)(nil)

// NewNATSScheduler creates a scheduler publishing on the given connection.
func NewNATSScheduler(conn *nats.Conn, subjectPrefix string) *NATSScheduler {
	return &NATSScheduler{conn: conn, subjectPrefix: subjectPrefix}
}

// Trigger implements Scheduler.
func (s *NATSScheduler) Trigger(_ context.Context, integrationID, action string, cfg any) error {
	item, err := newWorkItem(integrationID, action, cfg)
	if err != nil {
		return err
	}

	payload, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("encode work item %s: %w", item.ID, err)
	}

	subject := s.subjectPrefix + "." + action
	if err := s.conn.Publish(subject, payload); err != nil {
		return fmt.Errorf("publish work item %s to %s: %w", item.ID, subject, err)
	}

	logging.Debug().
		Str("work_id", item.ID).
		Str("subject", subject).
		Str("integration_id", integrationID).
		Msg("Work item published")
	return nil
}

// Handler executes one dequeued work item.
type Handler func(ctx context.Context, item WorkItem) error

// Consumer runs work items published by a NATSScheduler. Consumers sharing
// a queue group split the subject's traffic between them.
type Consumer struct {
	conn          *nats.Conn
	subjectPrefix string
	queueGroup    string
	handler       Handler
	timeout       time.Duration

	sub *nats.Subscription
}

// NewConsumer creates a worker consuming every action subject under the
// prefix. A zero timeout disables the per-item deadline.
func NewConsumer(conn *nats.Conn, subjectPrefix, queueGroup string, timeout time.Duration, handler Handler) *Consumer {
	return &Consumer{
		conn:          conn,
		subjectPrefix: subjectPrefix,
		queueGroup:    queueGroup,
		handler:       handler,
		timeout:       timeout,
	}
}

// Start subscribes and begins dispatching work items. Each item runs in
// its own goroutine so a slow farm cannot stall the queue.
func (c *Consumer) Start(ctx context.Context) error {
	subject := c.subjectPrefix + ".>"
	sub, err := c.conn.QueueSubscribe(subject, c.queueGroup, func(msg *nats.Msg) {
		var item WorkItem
		if err := json.Unmarshal(msg.Data, &item); err != nil {
			logging.Error().Err(err).Str("subject", msg.Subject).Msg("Discarding undecodable work item")
			return
		}
		go c.run(ctx, item)
	})
	if err != nil {
		return fmt.Errorf("subscribe to %s: %w", subject, err)
	}

	c.sub = sub
	logging.Info().Str("subject", subject).Str("queue_group", c.queueGroup).Msg("Worker consumer started")
	return nil
}

func (c *Consumer) run(ctx context.Context, item WorkItem) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	start := time.Now()
	if err := c.handler(ctx, item); err != nil {
		metrics.SyncErrors.WithLabelValues("worker").Inc()
		logging.Error().
			Err(err).
			Str("work_id", item.ID).
			Str("action", item.Action).
			Str("integration_id", item.IntegrationID).
			Dur("elapsed", time.Since(start)).
			Msg("Work item failed")
		return
	}

	logging.Debug().
		Str("work_id", item.ID).
		Str("action", item.Action).
		Dur("elapsed", time.Since(start)).
		Msg("Work item completed")
}

// Stop drains the subscription so in-flight deliveries finish.
func (c *Consumer) Stop() error {
	if c.sub == nil {
		return nil
	}
	if err := c.sub.Drain(); err != nil {
		return fmt.Errorf("drain worker subscription: %w", err)
	}
	return nil
}
