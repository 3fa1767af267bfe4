// Driftline - Predictive Retention and Engagement Analytics
// Copyright 2026 Driftline Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/driftline/driftline

package store

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/driftline/driftline/internal/models"
)

func TestBadgerRoundTrip(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	storage, err := OpenBadger(dir, zerolog.Nop())
	if err != nil {
		t.Fatalf("OpenBadger: %v", err)
	}

	executed := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)
	rec := models.NewRecord()
	rec.Profiles["sailor-1"] = &models.ChurnRiskProfile{
		UserID:    "sailor-1",
		RiskScore: 62,
		Category:  models.RiskHigh,
		Factors: []models.ChurnFactor{
			{Kind: models.FactorValuePerception, Weight: 0.30, Value: 0.9, Trend: models.TrendStable, Description: "Perceived value risk for the free tier"},
		},
		PredictedChurnDate: executed.AddDate(0, 0, 45),
		Confidence:         80,
		UpdatedAt:          executed,
		Interventions:      []models.ChurnIntervention{},
		Strategies:         []string{"winback-discount"},
	}
	rec.History = append(rec.History, models.ChurnIntervention{
		ID: "iv-1", UserID: "sailor-1",
		Type: models.InterventionDiscountOffer, Category: models.RiskHigh,
		ExecutedAt: executed,
		Content: models.InterventionContent{
			Title: "Alex, we want you back on the water", Message: "m", CallToAction: "Open Driftline", Incentive: "50% off",
		},
		Outcome: models.OutcomePending, FollowUpRequired: true, RiskScoreAtDispatch: 62,
	})

	if err := storage.Save(ctx, rec); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := storage.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	// Reopen and verify the snapshot survived field for field.
	storage, err = OpenBadger(dir, zerolog.Nop())
	if err != nil {
		t.Fatalf("OpenBadger (reopen): %v", err)
	}
	defer storage.Close()

	loaded, err := storage.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	profile, ok := loaded.Profiles["sailor-1"]
	if !ok {
		t.Fatal("profile missing after reload")
	}
	if profile.RiskScore != 62 || profile.Category != models.RiskHigh || profile.Confidence != 80 {
		t.Errorf("profile scalars = %+v", profile)
	}
	if !profile.UpdatedAt.Equal(executed) {
		t.Errorf("updated at = %s, want %s", profile.UpdatedAt, executed)
	}
	if len(profile.Factors) != 1 || profile.Factors[0].Kind != models.FactorValuePerception {
		t.Errorf("factors = %+v", profile.Factors)
	}
	if len(profile.Strategies) != 1 || profile.Strategies[0] != "winback-discount" {
		t.Errorf("strategies = %v", profile.Strategies)
	}

	if len(loaded.History) != 1 {
		t.Fatalf("history = %d records, want 1", len(loaded.History))
	}
	iv := loaded.History[0]
	if iv.ID != "iv-1" || iv.Outcome != models.OutcomePending || !iv.FollowUpRequired || iv.RiskScoreAtDispatch != 62 {
		t.Errorf("intervention = %+v", iv)
	}
	if iv.Content.Title != "Alex, we want you back on the water" {
		t.Errorf("content title = %q", iv.Content.Title)
	}
}

func TestBadgerLoadEmpty(t *testing.T) {
	storage, err := OpenBadger(t.TempDir(), zerolog.Nop())
	if err != nil {
		t.Fatalf("OpenBadger: %v", err)
	}
	defer storage.Close()

	rec, err := storage.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(rec.Profiles) != 0 || len(rec.Predictions) != 0 || len(rec.ValueModels) != 0 || len(rec.History) != 0 {
		t.Errorf("fresh database not empty: %+v", rec)
	}
}
