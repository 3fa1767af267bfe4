// Driftline - Predictive Retention and Engagement Analytics
// Copyright 2026 Driftline Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/driftline/driftline

package valuation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/driftline/driftline/internal/metrics"
	"github.com/driftline/driftline/internal/models"
	"github.com/driftline/driftline/internal/telemetry"
)

// ErrValuationFailed marks a value analysis that could not obtain its
// inputs. No value model is cached when this is returned.
var ErrValuationFailed = errors.New("subscription value analysis failed")

// EventSubscriptionValueAnalyzed is emitted after every successful
// value analysis.
const EventSubscriptionValueAnalyzed = "subscription_value_analyzed"

// ValueModelStore is the predictive-store surface the modeler needs.
// Satisfied by *store.Store.
type ValueModelStore interface {
	UpsertValueModel(ctx context.Context, model *models.SubscriptionValueModel) error
}

// EventEmitter publishes analytics events. Satisfied by *analytics.Bus.
type EventEmitter interface {
	Emit(ctx context.Context, name string, props map[string]any) error
}

// Modeler builds per-user subscription value models.
type Modeler struct {
	telemetry telemetry.Provider
	subs      telemetry.SubscriptionProvider
	store     ValueModelStore
	events    EventEmitter
	logger    zerolog.Logger

	now func() time.Time
}

// NewModeler creates a subscription value modeler.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewModeler(
	tp telemetry.Provider,
	sp telemetry.SubscriptionProvider,
	vs ValueModelStore,
	events EventEmitter,
	logger zerolog.Logger,
) *Modeler {
	return &Modeler{
		telemetry: tp,
		subs:      sp,
		store:     vs,
		events:    events,
		logger:    logger.With().Str("component", "value-modeler").Logger(),
		now:       time.Now,
	}
}

// Model computes and stores the subscription value model for a user.
// Telemetry or subscription fetch failure is fatal to the call.
func (m *Modeler) Model(ctx context.Context, userID string) (*models.SubscriptionValueModel, error) {
	start := time.Now()
	defer func() {
		metrics.AnalysisDuration.WithLabelValues("valuation").Observe(time.Since(start).Seconds())
	}()

	snap, err := m.telemetry.Snapshot(ctx, userID)
	if err != nil {
		metrics.AnalysisErrors.WithLabelValues("valuation").Inc()
		return nil, fmt.Errorf("%w: user %s: %v", ErrValuationFailed, userID, err)
	}

	sub, err := m.subs.Subscription(ctx, userID)
	if err != nil {
		metrics.AnalysisErrors.WithLabelValues("valuation").Inc()
		return nil, fmt.Errorf("%w: user %s: %v", ErrValuationFailed, userID, err)
	}

	perceived := PerceivedValue(snap)
	gaps := ValueGaps(sub.Tier, snap)

	model := &models.SubscriptionValueModel{
		UserID:         userID,
		CurrentTier:    sub.Tier,
		PerceivedValue: perceived,
		Usage:          snap.UsageMetrics(),
		Gaps:           gaps,
		Upgrade:        UpgradeRecommendation(sub.Tier, gaps),
		Retention:      RetentionRecommendations(perceived, snap),
		ChurnRisk:      ChurnRisk(perceived, snap),
		LifetimeValue:  LifetimeValue(sub.Tier, snap),
		UpdatedAt:      m.now(),
	}

	if err := m.store.UpsertValueModel(ctx, model); err != nil {
		metrics.AnalysisErrors.WithLabelValues("valuation").Inc()
		return nil, fmt.Errorf("store value model: %w", err)
	}

	m.emitAnalyzed(ctx, model)

	m.logger.Info().
		Str("user_id", userID).
		Str("tier", string(model.CurrentTier)).
		Int("perceived_value", model.PerceivedValue).
		Int("churn_risk", model.ChurnRisk).
		Float64("lifetime_value", model.LifetimeValue).
		Msg("subscription value analyzed")

	return model, nil
}

func (m *Modeler) emitAnalyzed(ctx context.Context, model *models.SubscriptionValueModel) {
	if m.events == nil {
		return
	}

	err := m.events.Emit(ctx, EventSubscriptionValueAnalyzed, map[string]any{
		"user_id":             model.UserID,
		"current_tier":        string(model.CurrentTier),
		"perceived_value":     model.PerceivedValue,
		"churn_risk":          model.ChurnRisk,
		"upgrade_recommended": model.Upgrade != nil,
	})
	if err != nil {
		m.logger.Warn().Err(err).Str("user_id", model.UserID).Msg("analytics emit failed")
	}
}
