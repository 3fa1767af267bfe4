// Driftline - Predictive Retention and Engagement Analytics
// Copyright 2026 Driftline Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/driftline/driftline

package churn

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

// ErrAnalysisFailed marks an analysis that could not obtain its inputs.
// No profile is written when this is returned; a stale cache entry is
// worse than no entry.
var ErrAnalysisFailed = errors.New("churn analysis failed")

// EventChurnRiskAnalyzed is emitted after every successful analysis.
const EventChurnRiskAnalyzed = "churn_risk_analyzed"

// ProfileStore is the predictive-store surface the analyzer needs.
// Satisfied by *store.Store.
type ProfileStore interface {
	// UpsertChurnProfile writes the profile under the user's lock,
	// preserving the append-only intervention history of any prior
	// profile for the same user.
	UpsertChurnProfile(ctx context.Context, profile *models.ChurnRiskProfile) error
}

// Orchestrator triggers a retention intervention for a high-risk profile.
// Satisfied by *intervention.Orchestrator.
type Orchestrator interface {
	Trigger(ctx context.Context, profile *models.ChurnRiskProfile) (*models.ChurnIntervention, error)
}

// StrategySource lists the prevention strategies applicable to a category.
// Satisfied by *intervention.Catalog.
type StrategySource interface {
	ApplicableIDs(category models.RiskCategory) []string
}

// EventEmitter publishes analytics events. Satisfied by *analytics.Bus.
type EventEmitter interface {
	Emit(ctx context.Context, name string, props map[string]any) error
}

// Analyzer computes churn risk profiles and triggers interventions for
// high and critical categories.
type Analyzer struct {
	telemetry    telemetry.Provider
	subs         telemetry.SubscriptionProvider
	store        ProfileStore
	orchestrator Orchestrator
	strategies   StrategySource
	events       EventEmitter
	logger       zerolog.Logger

	// now is swappable for deterministic tests.
	now func() time.Time
}

// NewAnalyzer creates a churn risk analyzer. orchestrator may be nil when
// intervention triggering is disabled (batch refresh without side effects
// is not a supported mode; pass a real orchestrator in production).
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewAnalyzer(
	tp telemetry.Provider,
	sp telemetry.SubscriptionProvider,
	ps ProfileStore,
	orch Orchestrator,
	strategies StrategySource,
	events EventEmitter,
	logger zerolog.Logger,
) *Analyzer {
	return &Analyzer{
		telemetry:    tp,
		subs:         sp,
		store:        ps,
		orchestrator: orch,
		strategies:   strategies,
		events:       events,
		logger:       logger.With().Str("component", "churn-analyzer").Logger(),
		now:          time.Now,
	}
}

// Analyze computes and stores the churn risk profile for a user.
//
// Telemetry or subscription fetch failures are fatal to the call and
// leave the store untouched. High and critical profiles trigger an
// intervention synchronously before Analyze returns.
func (a *Analyzer) Analyze(ctx context.Context, userID string) (*models.ChurnRiskProfile, error) {
	start := time.Now()
	defer func() {
		metrics.AnalysisDuration.WithLabelValues("churn").Observe(time.Since(start).Seconds())
	}()

	snap, err := a.telemetry.Snapshot(ctx, userID)
	if err != nil {
		metrics.AnalysisErrors.WithLabelValues("churn").Inc()
		return nil, fmt.Errorf("%w: user %s: %v", ErrAnalysisFailed, userID, err)
	}

	sub, err := a.subs.Subscription(ctx, userID)
	if err != nil {
		metrics.AnalysisErrors.WithLabelValues("churn").Inc()
		return nil, fmt.Errorf("%w: user %s: %v", ErrAnalysisFailed, userID, err)
	}

	profile := a.buildProfile(userID, snap, sub.Tier)

	if err := a.store.UpsertChurnProfile(ctx, profile); err != nil {
		metrics.AnalysisErrors.WithLabelValues("churn").Inc()
		return nil, fmt.Errorf("store churn profile: %w", err)
	}

	a.emitAnalyzed(ctx, profile)

	if profile.Category == models.RiskHigh || profile.Category == models.RiskCritical {
		a.triggerIntervention(ctx, profile)
	}

	a.logger.Info().
		Str("user_id", userID).
		Int("risk_score", profile.RiskScore).
		Str("category", string(profile.Category)).
		Int("confidence", profile.Confidence).
		Msg("churn risk analyzed")

	return profile, nil
}

func (a *Analyzer) buildProfile(userID string, snap *telemetry.Snapshot, tier models.Tier) *models.ChurnRiskProfile {
	now := a.now()
	factors := ComputeFactors(snap, tier)
	score := RiskScore(factors)
	category := models.CategoryForScore(score)

	var strategies []string
	if a.strategies != nil {
		strategies = a.strategies.ApplicableIDs(category)
	}

	return &models.ChurnRiskProfile{
		UserID:             userID,
		RiskScore:          score,
		Category:           category,
		Factors:            factors,
		PredictedChurnDate: PredictChurnDate(now, category, factors),
		Confidence:         Confidence(snap),
		UpdatedAt:          now,
		Interventions:      []models.ChurnIntervention{},
		Strategies:         strategies,
	}
}

func (a *Analyzer) emitAnalyzed(ctx context.Context, profile *models.ChurnRiskProfile) {
	if a.events == nil {
		return
	}

	top := make([]string, 0, 3)
	for i, f := range profile.Factors {
		if i == 3 {
			break
		}
		top = append(top, string(f.Kind))
	}

	err := a.events.Emit(ctx, EventChurnRiskAnalyzed, map[string]any{
		"user_id":       profile.UserID,
		"risk_score":    profile.RiskScore,
		"risk_category": string(profile.Category),
		"top_factors":   top,
	})
	if err != nil {
		a.logger.Warn().Err(err).Str("user_id", profile.UserID).Msg("analytics emit failed")
	}
}

func (a *Analyzer) triggerIntervention(ctx context.Context, profile *models.ChurnRiskProfile) {
	if a.orchestrator == nil {
		return
	}

	rec, err := a.orchestrator.Trigger(ctx, profile)
	if err != nil {
		a.logger.Error().Err(err).Str("user_id", profile.UserID).Msg("intervention trigger failed")
		return
	}

	// The orchestrator records the intervention in the store; mirror it
	// on the returned profile so callers see the fresh history.
	profile.Interventions = append(profile.Interventions, *rec)
}
