// Driftline - Predictive Retention and Engagement Analytics
// Copyright 2026 Driftline Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/driftline/driftline

// Package analytics publishes the engine's analytics events over a
// Watermill in-process pub/sub. The engine is one process today; the
// GoChannel transport keeps the seam where a broker-backed publisher can
// be swapped in without touching emitters.
//
// Events emitted by the predictive components:
//   - churn_risk_analyzed
//   - subscription_value_analyzed
//   - churn_intervention_triggered
package analytics

import (
	"context"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/driftline/driftline/internal/metrics"
)

// Topic is the single topic all analytics events are published to.
// The event name travels in the payload and message metadata.
const Topic = "analytics.events"

// metadataEventName is the message metadata key carrying the event name.
const metadataEventName = "event_name"

// Event is one analytics event with its required properties.
type Event struct {
	Name       string         `json:"name"`
	Properties map[string]any `json:"properties"`
	EmittedAt  time.Time      `json:"emitted_at"`
}

// Bus publishes and consumes analytics events.
type Bus struct {
	pubsub *gochannel.GoChannel
	logger zerolog.Logger
}

// NewBus creates an in-process analytics bus.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewBus(logger zerolog.Logger) *Bus {
	wmLogger := newLoggerAdapter(logger)
	return &Bus{
		pubsub: gochannel.NewGoChannel(gochannel.Config{
			OutputChannelBuffer: 64,
		}, wmLogger),
		logger: logger.With().Str("component", "analytics").Logger(),
	}
}

// Emit publishes one event. Marshal or publish failures are returned to
// the caller but emitters treat them as non-fatal: a lost analytics event
// never aborts an analysis.
func (b *Bus) Emit(ctx context.Context, name string, props map[string]any) error {
	evt := Event{
		Name:       name,
		Properties: props,
		EmittedAt:  time.Now(),
	}

	payload, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal analytics event: %w", err)
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.Metadata.Set(metadataEventName, name)
	msg.SetContext(ctx)

	if err := b.pubsub.Publish(Topic, msg); err != nil {
		return fmt.Errorf("publish analytics event: %w", err)
	}

	metrics.EventsPublished.WithLabelValues(name).Inc()
	return nil
}

// Serve subscribes to the event topic and logs every event as an audit
// trail. It blocks until the context is canceled, which makes the bus a
// suture.Service.
func (b *Bus) Serve(ctx context.Context) error {
	msgs, err := b.pubsub.Subscribe(ctx, Topic)
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", Topic, err)
	}

	for {
		select {
		case msg, ok := <-msgs:
			if !ok {
				return ctx.Err()
			}
			b.logEvent(msg)
			msg.Ack()
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// String implements fmt.Stringer for supervisor logging.
func (b *Bus) String() string {
	return "analytics-bus"
}

func (b *Bus) logEvent(msg *message.Message) {
	var evt Event
	if err := json.Unmarshal(msg.Payload, &evt); err != nil {
		b.logger.Warn().Err(err).Str("message_id", msg.UUID).Msg("undecodable analytics event")
		return
	}
	b.logger.Info().
		Str("event", evt.Name).
		Interface("properties", evt.Properties).
		Msg("analytics event")
}

// Close shuts down the underlying pub/sub.
func (b *Bus) Close() error {
	return b.pubsub.Close()
}
