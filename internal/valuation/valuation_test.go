// Driftline - Predictive Retention and Engagement Analytics
// Copyright 2026 Driftline Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/driftline/driftline

package valuation

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"github.com/driftline/driftline/internal/models"
	"github.com/driftline/driftline/internal/telemetry"
)

func TestPerceivedValue(t *testing.T) {
	tests := []struct {
		name string
		snap *telemetry.Snapshot
		want int
	}{
		{"baseline", &telemetry.Snapshot{}, 60},
		{"heavy sessions", &telemetry.Snapshot{SessionDuration: 400}, 80},
		{"weather power user", &telemetry.Snapshot{WeatherChecksPerSession: 5}, 75},
		{"social", &telemetry.Snapshot{SocialInteractions: 15}, 70},
		{
			"everything capped at 100",
			&telemetry.Snapshot{SessionDuration: 400, WeatherChecksPerSession: 5, SocialInteractions: 15},
			100,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := PerceivedValue(tt.snap); got != tt.want {
				t.Errorf("PerceivedValue = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestValueGapsFreeTierWeatherUser(t *testing.T) {
	gaps := ValueGaps(models.TierFree, &telemetry.Snapshot{WeatherChecksPerSession: 6})

	if len(gaps) != 1 {
		t.Fatalf("got %d gaps, want 1", len(gaps))
	}
	gap := gaps[0]
	if gap.Feature != "Premium Weather Alerts" {
		t.Errorf("feature = %q", gap.Feature)
	}
	if gap.RequiredTier != models.TierBasic {
		t.Errorf("required tier = %s, want basic", gap.RequiredTier)
	}
	if gap.ConversionProbability != 70 || gap.UsageIntent != 85 {
		t.Errorf("conversion/intent = %d/%d, want 70/85", gap.ConversionProbability, gap.UsageIntent)
	}
}

func TestValueGapsNoneForEliteOrLightUsage(t *testing.T) {
	if gaps := ValueGaps(models.TierElite, &telemetry.Snapshot{WeatherChecksPerSession: 9, SocialInteractions: 50}); len(gaps) != 0 {
		t.Errorf("elite tier produced %d gaps, want 0", len(gaps))
	}
	if gaps := ValueGaps(models.TierFree, &telemetry.Snapshot{WeatherChecksPerSession: 2}); len(gaps) != 0 {
		t.Errorf("light usage produced %d gaps, want 0", len(gaps))
	}
}

func TestUpgradeRecommendationRequiresConvertingGap(t *testing.T) {
	converting := []models.ValueGap{{Feature: "Premium Weather Alerts", ConversionProbability: 70}}
	rec := UpgradeRecommendation(models.TierFree, converting)
	if rec == nil {
		t.Fatal("expected recommendation for converting gap")
	}
	if rec.TargetTier != models.TierBasic {
		t.Errorf("target tier = %s, want basic", rec.TargetTier)
	}
	if rec.Confidence != 75 {
		t.Errorf("confidence = %d, want 75", rec.Confidence)
	}
	if len(rec.Reasoning) != 1 {
		t.Errorf("reasoning lines = %d, want 1", len(rec.Reasoning))
	}

	weak := []models.ValueGap{{Feature: "VIP Social Features", ConversionProbability: 45}}
	if rec := UpgradeRecommendation(models.TierBasic, weak); rec != nil {
		t.Errorf("recommendation for non-converting gap: %+v", rec)
	}
	if rec := UpgradeRecommendation(models.TierBasic, nil); rec != nil {
		t.Errorf("recommendation with no gaps: %+v", rec)
	}
}

func TestRetentionRecommendations(t *testing.T) {
	recs := RetentionRecommendations(50, &telemetry.Snapshot{
		FeatureUtilization: map[string]float64{"weather": 0.8, "racing": 0.0},
	})
	if len(recs) != 2 {
		t.Fatalf("got %d recommendations, want 2", len(recs))
	}
	if recs[0].Kind != "value_demonstration" || recs[1].Kind != "feature_education" {
		t.Errorf("kinds = %s/%s", recs[0].Kind, recs[1].Kind)
	}

	healthy := RetentionRecommendations(80, &telemetry.Snapshot{
		FeatureUtilization: map[string]float64{"weather": 0.8, "racing": 0.5, "social": 0.3},
	})
	if len(healthy) != 0 {
		t.Errorf("got %d recommendations for healthy user, want 0", len(healthy))
	}
}

func TestChurnRisk(t *testing.T) {
	tests := []struct {
		name      string
		perceived int
		snap      *telemetry.Snapshot
		want      int
	}{
		{"healthy", 80, &telemetry.Snapshot{SessionFrequency: 4, SessionDuration: 300}, 50},
		{"very low value", 30, &telemetry.Snapshot{SessionFrequency: 4, SessionDuration: 300}, 80},
		{"low value infrequent short", 50, &telemetry.Snapshot{SessionFrequency: 1, SessionDuration: 60}, 95},
		{"everything capped", 30, &telemetry.Snapshot{}, 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ChurnRisk(tt.perceived, tt.snap); got != tt.want {
				t.Errorf("ChurnRisk = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestLifetimeValue(t *testing.T) {
	tests := []struct {
		name string
		tier models.Tier
		snap *telemetry.Snapshot
		want float64
	}{
		{"free", models.TierFree, &telemetry.Snapshot{SessionDuration: 999, SocialInteractions: 99}, 0},
		{"basic baseline", models.TierBasic, &telemetry.Snapshot{}, 120},
		{"professional heavy sessions", models.TierProfessional, &telemetry.Snapshot{SessionDuration: 400}, 450},
		{"elite both boosts", models.TierElite, &telemetry.Snapshot{SessionDuration: 400, SocialInteractions: 25}, 1170},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := LifetimeValue(tt.tier, tt.snap)
			if diff := got - tt.want; diff > 1e-9 || diff < -1e-9 {
				t.Errorf("LifetimeValue = %.2f, want %.2f", got, tt.want)
			}
		})
	}
}

type mockValueStore struct {
	upserts []*models.SubscriptionValueModel
}

func (m *mockValueStore) UpsertValueModel(_ context.Context, v *models.SubscriptionValueModel) error {
	m.upserts = append(m.upserts, v)
	return nil
}

type mockValueEmitter struct{ events []string }

func (m *mockValueEmitter) Emit(_ context.Context, name string, _ map[string]any) error {
	m.events = append(m.events, name)
	return nil
}

func TestModelStoresAndEmits(t *testing.T) {
	provider := telemetry.NewStaticProvider()
	provider.Snapshots["sailor-1"] = &telemetry.Snapshot{
		UserID:                  "sailor-1",
		SessionDuration:         400,
		WeatherChecksPerSession: 6,
		SessionFrequency:        3,
	}
	provider.Subscriptions["sailor-1"] = &telemetry.Subscription{
		UserID: "sailor-1", Tier: models.TierFree, Status: "active",
	}

	vs := &mockValueStore{}
	emitter := &mockValueEmitter{}

	m := NewModeler(provider, provider, vs, emitter, zerolog.Nop())

	model, err := m.Model(context.Background(), "sailor-1")
	if err != nil {
		t.Fatalf("Model: %v", err)
	}

	if model.CurrentTier != models.TierFree {
		t.Errorf("tier = %s, want free", model.CurrentTier)
	}
	if model.Upgrade == nil {
		t.Error("expected upgrade recommendation for free weather power user")
	}
	if len(vs.upserts) != 1 {
		t.Errorf("store upserts = %d, want 1", len(vs.upserts))
	}
	if len(emitter.events) != 1 || emitter.events[0] != EventSubscriptionValueAnalyzed {
		t.Errorf("events = %v", emitter.events)
	}
}

func TestModelFetchFailureIsFatal(t *testing.T) {
	provider := telemetry.NewStaticProvider()
	vs := &mockValueStore{}

	m := NewModeler(provider, provider, vs, nil, zerolog.Nop())

	_, err := m.Model(context.Background(), "ghost")
	if !errors.Is(err, ErrValuationFailed) {
		t.Fatalf("err = %v, want ErrValuationFailed", err)
	}
	if len(vs.upserts) != 0 {
		t.Errorf("store written despite fetch failure")
	}
}
