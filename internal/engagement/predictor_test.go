// Driftline - Predictive Retention and Engagement Analytics
// Copyright 2026 Driftline Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/driftline/driftline

package engagement

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"github.com/driftline/driftline/internal/models"
	"github.com/driftline/driftline/internal/telemetry"
)

type mockPredictionStore struct {
	upserts []*models.UserEngagementPrediction
	err     error
}

func (m *mockPredictionStore) UpsertEngagementPrediction(_ context.Context, p *models.UserEngagementPrediction) error {
	if m.err != nil {
		return m.err
	}
	m.upserts = append(m.upserts, p)
	return nil
}

func TestPredictStoresPrediction(t *testing.T) {
	provider := telemetry.NewStaticProvider()
	provider.Snapshots["sailor-1"] = &telemetry.Snapshot{
		UserID:            "sailor-1",
		WeatherChecks:     8,
		RaceLogs:          3,
		SocialConnections: 12,
		AccountAgeDays:    120,
	}
	store := &mockPredictionStore{}

	p := NewPredictor(provider, store, zerolog.Nop())

	prediction, err := p.Predict(context.Background(), "sailor-1")
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}

	if prediction.HorizonDays != HorizonDays {
		t.Errorf("horizon = %d, want %d", prediction.HorizonDays, HorizonDays)
	}
	if prediction.Score < 0 || prediction.Score > 100 {
		t.Errorf("score = %d, outside [0,100]", prediction.Score)
	}
	if prediction.Forecast != ForecastForScore(prediction.Score) {
		t.Errorf("forecast %s inconsistent with score %d", prediction.Forecast, prediction.Score)
	}
	if len(prediction.Drivers) != 3 {
		t.Errorf("drivers = %d, want 3", len(prediction.Drivers))
	}
	if len(store.upserts) != 1 {
		t.Errorf("store upserts = %d, want 1", len(store.upserts))
	}
}

func TestPredictTelemetryFailureIsFatal(t *testing.T) {
	provider := telemetry.NewStaticProvider()
	store := &mockPredictionStore{}

	p := NewPredictor(provider, store, zerolog.Nop())

	_, err := p.Predict(context.Background(), "ghost")
	if !errors.Is(err, ErrPredictionFailed) {
		t.Fatalf("err = %v, want ErrPredictionFailed", err)
	}
	if len(store.upserts) != 0 {
		t.Errorf("store written despite fetch failure")
	}
}
