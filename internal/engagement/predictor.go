// Driftline - Predictive Retention and Engagement Analytics
// Copyright 2026 Driftline Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/driftline/driftline

package engagement

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/driftline/driftline/internal/churn"
	"github.com/driftline/driftline/internal/metrics"
	"github.com/driftline/driftline/internal/models"
	"github.com/driftline/driftline/internal/telemetry"
)

// ErrPredictionFailed marks a prediction that could not obtain telemetry.
// No prediction is cached when this is returned.
var ErrPredictionFailed = errors.New("engagement prediction failed")

// PredictionStore is the predictive-store surface the predictor needs.
// Satisfied by *store.Store.
type PredictionStore interface {
	UpsertEngagementPrediction(ctx context.Context, prediction *models.UserEngagementPrediction) error
}

// Predictor forecasts per-user engagement over a fixed 30-day horizon.
type Predictor struct {
	telemetry telemetry.Provider
	store     PredictionStore
	logger    zerolog.Logger

	now func() time.Time
}

// NewPredictor creates an engagement predictor.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewPredictor(tp telemetry.Provider, ps PredictionStore, logger zerolog.Logger) *Predictor {
	return &Predictor{
		telemetry: tp,
		store:     ps,
		logger:    logger.With().Str("component", "engagement-predictor").Logger(),
		now:       time.Now,
	}
}

// Predict computes and stores the engagement prediction for a user.
// Telemetry fetch failure is fatal to the call and caches nothing.
func (p *Predictor) Predict(ctx context.Context, userID string) (*models.UserEngagementPrediction, error) {
	start := time.Now()
	defer func() {
		metrics.AnalysisDuration.WithLabelValues("engagement").Observe(time.Since(start).Seconds())
	}()

	snap, err := p.telemetry.Snapshot(ctx, userID)
	if err != nil {
		metrics.AnalysisErrors.WithLabelValues("engagement").Inc()
		return nil, fmt.Errorf("%w: user %s: %v", ErrPredictionFailed, userID, err)
	}

	drivers := BuildDrivers(snap)
	score := Score(drivers)

	prediction := &models.UserEngagementPrediction{
		UserID:      userID,
		Forecast:    ForecastForScore(score),
		Score:       score,
		Drivers:     drivers,
		Actions:     RecommendActions(drivers),
		Confidence:  churn.Confidence(snap),
		HorizonDays: HorizonDays,
		GeneratedAt: p.now(),
	}

	if err := p.store.UpsertEngagementPrediction(ctx, prediction); err != nil {
		metrics.AnalysisErrors.WithLabelValues("engagement").Inc()
		return nil, fmt.Errorf("store engagement prediction: %w", err)
	}

	p.logger.Info().
		Str("user_id", userID).
		Int("score", score).
		Str("forecast", string(prediction.Forecast)).
		Int("actions", len(prediction.Actions)).
		Msg("engagement predicted")

	return prediction, nil
}
