// Driftline - Predictive Retention and Engagement Analytics
// Copyright 2026 Driftline Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/driftline/driftline

// Package valuation models perceived subscription value against actual
// usage: value gaps, upgrade/retention recommendations, and a lifetime
// value projection. The arithmetic is pure; the Modeler wraps it with
// telemetry I/O and store writes.
package valuation

import (
	"fmt"

	"github.com/driftline/driftline/internal/models"
	"github.com/driftline/driftline/internal/telemetry"
)

// upgradeIncentive is the fixed discount attached to upgrade
// recommendations.
const upgradeIncentive = "25% off the first three months"

// PerceivedValue estimates how much value the user currently gets from
// the subscription: 60 base, bumped by heavy sessions, weather usage, and
// social activity, capped at 100.
func PerceivedValue(snap *telemetry.Snapshot) int {
	v := 60
	if snap.SessionDuration > 300 {
		v += 20
	}
	if snap.WeatherChecksPerSession > 3 {
		v += 15
	}
	if snap.SocialInteractions > 10 {
		v += 10
	}
	return models.ClampInt(v, 0, 100)
}

// ValueGaps identifies tier-gated features the user's usage suggests they
// want. Each rule follows the usage-threshold -> fixed-parameters pattern.
func ValueGaps(tier models.Tier, snap *telemetry.Snapshot) []models.ValueGap {
	gaps := []models.ValueGap{}

	if tier == models.TierFree && snap.WeatherChecksPerSession > 5 {
		gaps = append(gaps, models.ValueGap{
			Feature:               "Premium Weather Alerts",
			RequiredTier:          models.TierBasic,
			HasAccess:             false,
			UsageIntent:           85,
			ValueScore:            80,
			ConversionProbability: 70,
		})
	}

	if tier != models.TierElite && snap.SocialInteractions > 20 {
		gaps = append(gaps, models.ValueGap{
			Feature:               "VIP Social Features",
			RequiredTier:          models.TierElite,
			HasAccess:             false,
			UsageIntent:           70,
			ValueScore:            75,
			ConversionProbability: 45,
		})
	}

	return gaps
}

// UpgradeRecommendation suggests the next tier up when at least one gap
// converts with probability above 60. Returns nil otherwise.
func UpgradeRecommendation(tier models.Tier, gaps []models.ValueGap) *models.UpgradeRecommendation {
	var reasoning []string
	for _, g := range gaps {
		if g.ConversionProbability > 60 {
			reasoning = append(reasoning, fmt.Sprintf("High interest in %s (%d%% conversion likelihood)", g.Feature, g.ConversionProbability))
		}
	}
	if len(reasoning) == 0 {
		return nil
	}

	return &models.UpgradeRecommendation{
		TargetTier: tier.Next(),
		Confidence: 75,
		Reasoning:  reasoning,
		Incentive:  upgradeIncentive,
	}
}

// RetentionRecommendations suggests retention actions for low perceived
// value or shallow feature adoption.
func RetentionRecommendations(perceivedValue int, snap *telemetry.Snapshot) []models.RetentionRecommendation {
	recs := []models.RetentionRecommendation{}

	if perceivedValue < 60 {
		recs = append(recs, models.RetentionRecommendation{
			Kind:           "value_demonstration",
			Description:    "Walk the user through the features their sailing pattern would benefit from",
			ExpectedImpact: 20,
		})
	}

	used := 0
	for _, u := range snap.FeatureUtilization {
		if u > 0 {
			used++
		}
	}
	if used < 3 {
		recs = append(recs, models.RetentionRecommendation{
			Kind:           "feature_education",
			Description:    "Introduce unused features through in-app guides",
			ExpectedImpact: 25,
		})
	}

	return recs
}

// ChurnRisk scores subscription-specific churn risk: 50 base plus
// penalties for low perceived value, infrequent sessions, and short
// sessions, capped at 100.
func ChurnRisk(perceivedValue int, snap *telemetry.Snapshot) int {
	risk := 50
	switch {
	case perceivedValue < 40:
		risk += 30
	case perceivedValue < 60:
		risk += 15
	}
	if snap.SessionFrequency < 2 {
		risk += 20
	}
	if snap.SessionDuration < 120 {
		risk += 10
	}
	return models.ClampInt(risk, 0, 100)
}

// LifetimeValue projects total remaining revenue: a fixed tier base with
// independent multiplicative boosts for heavy sessions (x1.5) and strong
// social activity (x1.3).
func LifetimeValue(tier models.Tier, snap *telemetry.Snapshot) float64 {
	var base float64
	switch tier {
	case models.TierBasic:
		base = 120
	case models.TierProfessional:
		base = 300
	case models.TierElite:
		base = 600
	default: // free
		base = 0
	}

	ltv := base
	if snap.SessionDuration > 300 {
		ltv *= 1.5
	}
	if snap.SocialInteractions > 20 {
		ltv *= 1.3
	}
	return ltv
}
