// Driftline - Predictive Retention and Engagement Analytics
// Copyright 2026 Driftline Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/driftline/driftline

package intervention

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/driftline/driftline/internal/metrics"
	"github.com/driftline/driftline/internal/models"
	"github.com/driftline/driftline/internal/telemetry"
)

// EventInterventionTriggered is emitted after every recorded intervention.
const EventInterventionTriggered = "churn_intervention_triggered"

// Loyalty and discount parameters are fixed campaign values.
const (
	discountPercent = 50
	discountScope   = "renewal"
	loyaltyPoints   = 1000
	loyaltyReason   = "retention_intervention"
)

// InterventionStore records dispatched interventions. Satisfied by
// *store.Store.
type InterventionStore interface {
	// RecordIntervention appends the record to the user's profile history
	// and the global intervention history.
	RecordIntervention(ctx context.Context, rec *models.ChurnIntervention) error
}

// EventEmitter publishes analytics events. Satisfied by *analytics.Bus.
type EventEmitter interface {
	Emit(ctx context.Context, name string, props map[string]any) error
}

// Orchestrator turns a high-risk churn profile into a personalized,
// dispatched, and recorded retention intervention.
type Orchestrator struct {
	catalog  *Catalog
	channels Channels
	store    InterventionStore
	subs     telemetry.SubscriptionProvider
	events   EventEmitter
	logger   zerolog.Logger

	now   func() time.Time
	newID func() string
}

// NewOrchestrator creates an intervention orchestrator.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewOrchestrator(
	catalog *Catalog,
	channels Channels,
	is InterventionStore,
	sp telemetry.SubscriptionProvider,
	events EventEmitter,
	logger zerolog.Logger,
) *Orchestrator {
	return &Orchestrator{
		catalog:  catalog,
		channels: channels,
		store:    is,
		subs:     sp,
		events:   events,
		logger:   logger.With().Str("component", "intervention-orchestrator").Logger(),
		now:      time.Now,
		newID:    func() string { return uuid.NewString() },
	}
}

// Trigger selects a strategy, personalizes content, dispatches through the
// matching channel, and records the intervention.
//
// Dispatch is lenient: a failed channel call is logged and counted but the
// intervention is still recorded, so reconciliation can follow up on it.
// Only a store write failure fails the call.
func (o *Orchestrator) Trigger(ctx context.Context, profile *models.ChurnRiskProfile) (*models.ChurnIntervention, error) {
	var strategy *models.PreventionStrategy
	if o.catalog != nil {
		strategy = o.catalog.Select(profile.Category)
	}

	kind := interventionTypeFor(profile.Category, strategy)
	content := o.buildContent(ctx, profile)

	rec := &models.ChurnIntervention{
		ID:                  o.newID(),
		UserID:              profile.UserID,
		Type:                kind,
		Category:            profile.Category,
		ExecutedAt:          o.now(),
		Content:             content,
		Outcome:             models.OutcomePending,
		Effectiveness:       0,
		FollowUpRequired:    true,
		RiskScoreAtDispatch: profile.RiskScore,
	}

	o.dispatch(ctx, rec)

	if err := o.store.RecordIntervention(ctx, rec); err != nil {
		return nil, fmt.Errorf("record intervention: %w", err)
	}

	metrics.InterventionsTriggered.WithLabelValues(string(kind), string(profile.Category)).Inc()
	o.emitTriggered(ctx, rec)

	o.logger.Info().
		Str("user_id", rec.UserID).
		Str("intervention_id", rec.ID).
		Str("type", string(kind)).
		Str("category", string(rec.Category)).
		Int("risk_score", rec.RiskScoreAtDispatch).
		Msg("intervention triggered")

	return rec, nil
}

// interventionTypeFor fixes the channel per risk category: critical cases
// get a human, high cases get a discount, and everything else follows the
// selected strategy's leading tactic.
func interventionTypeFor(category models.RiskCategory, strategy *models.PreventionStrategy) models.InterventionType {
	switch category {
	case models.RiskCritical:
		return models.InterventionPersonalOutreach
	case models.RiskHigh:
		return models.InterventionDiscountOffer
	}
	if strategy != nil && len(strategy.Tactics) > 0 {
		return strategy.Tactics[0]
	}
	return models.InterventionFeatureHighlight
}

// buildContent personalizes the message with the user's display name and
// their top two risk factors. A failed subscription lookup falls back to
// the user ID; content generation never fails a trigger.
func (o *Orchestrator) buildContent(ctx context.Context, profile *models.ChurnRiskProfile) models.InterventionContent {
	name := profile.UserID
	if o.subs != nil {
		if sub, err := o.subs.Subscription(ctx, profile.UserID); err == nil && sub.DisplayName != "" {
			name = sub.DisplayName
		}
	}

	concerns := make([]string, 0, 2)
	for i, f := range profile.Factors {
		if i == 2 {
			break
		}
		concerns = append(concerns, f.Description)
	}

	return models.InterventionContent{
		Title:        fmt.Sprintf("%s, we want you back on the water", name),
		Message:      fmt.Sprintf("We noticed: %s. Let's fix that together.", strings.Join(concerns, "; ")),
		CallToAction: "Open Driftline",
		Incentive:    incentiveFor(profile.Category),
	}
}

func incentiveFor(category models.RiskCategory) string {
	switch category {
	case models.RiskCritical:
		return "Complimentary 1:1 session with a sailing coach"
	case models.RiskHigh:
		return "50% off your next renewal"
	case models.RiskMedium:
		return "1,000 bonus loyalty points"
	default:
		return "Temporary access to VIP features"
	}
}

func (o *Orchestrator) dispatch(ctx context.Context, rec *models.ChurnIntervention) {
	var err error
	switch rec.Type {
	case models.InterventionPersonalOutreach:
		// Human channel: the record itself queues the outreach, nothing
		// is dispatched automatically.
		o.logger.Info().Str("user_id", rec.UserID).Msg("personal outreach queued for support team")
		return
	case models.InterventionDiscountOffer:
		var code string
		code, err = o.channels.Discount.Issue(ctx, rec.UserID, discountPercent, discountScope)
		if err == nil {
			rec.Content.Incentive = fmt.Sprintf("%s (code %s)", rec.Content.Incentive, code)
		}
	case models.InterventionLoyaltyAward:
		err = o.channels.Loyalty.Award(ctx, rec.UserID, loyaltyPoints, loyaltyReason)
	case models.InterventionFeatureHighlight:
		// In-app surface: the recorded content is rendered on the user's
		// next session, nothing is dispatched externally.
		o.logger.Info().Str("user_id", rec.UserID).Msg("feature highlight staged in-app")
		return
	case models.InterventionPushNotification:
		err = o.channels.Push.Send(ctx, rec.UserID, rec.Content)
	}

	if err != nil {
		metrics.InterventionDispatchFailures.WithLabelValues(string(rec.Type)).Inc()
		o.logger.Error().Err(err).
			Str("user_id", rec.UserID).
			Str("type", string(rec.Type)).
			Msg("intervention dispatch failed, recording anyway")
	}
}

func (o *Orchestrator) emitTriggered(ctx context.Context, rec *models.ChurnIntervention) {
	if o.events == nil {
		return
	}

	err := o.events.Emit(ctx, EventInterventionTriggered, map[string]any{
		"user_id":           rec.UserID,
		"intervention_type": string(rec.Type),
		"risk_category":     string(rec.Category),
		"risk_score":        rec.RiskScoreAtDispatch,
	})
	if err != nil {
		o.logger.Warn().Err(err).Str("user_id", rec.UserID).Msg("analytics emit failed")
	}
}
