// Driftline - Predictive Retention and Engagement Analytics
// Copyright 2026 Driftline Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/driftline/driftline

// Package churn scores a subscriber's likelihood of churning.
//
// The scoring core is a fixed weighted-linear formula over normalized
// factors, kept as pure functions so the arithmetic is independently
// testable; the Analyzer wraps them with telemetry I/O, store writes,
// and intervention triggering.
package churn

import (
	"fmt"
	"math"
	"time"

	"github.com/driftline/driftline/internal/models"
	"github.com/driftline/driftline/internal/telemetry"
)

// Factor weights. They sum to 1.0; value perception dominates because
// perceived value is the strongest churn signal in the historical data.
const (
	WeightUsageDecline       = 0.25
	WeightEngagementDrop     = 0.20
	WeightFeatureAbandonment = 0.15
	WeightValuePerception    = 0.30
	WeightOnboardingGap      = 0.10
)

// onboardingPlaceholder stands in until onboarding completion telemetry
// exists. TODO: replace with the onboarding funnel fields once the
// telemetry service exposes them.
const onboardingPlaceholder = 0.2

// Days-to-churn baselines per risk category.
const (
	daysOutCritical = 14
	daysOutHigh     = 45
	daysOutMedium   = 90
	daysOutLow      = 180
)

// ComputeFactors derives the five churn factors from a telemetry snapshot
// and subscription tier. Missing fields degrade to neutral zero values;
// the result is always five factors sorted descending by contribution
// (weight x value).
func ComputeFactors(snap *telemetry.Snapshot, tier models.Tier) []models.ChurnFactor {
	factors := []models.ChurnFactor{
		usageDeclineFactor(snap),
		engagementDropFactor(snap),
		featureAbandonmentFactor(snap),
		valuePerceptionFactor(tier),
		onboardingFactor(),
	}
	sortFactors(factors)
	return factors
}

func usageDeclineFactor(snap *telemetry.Snapshot) models.ChurnFactor {
	var value float64
	if snap.PriorSessionDuration > 0 {
		value = math.Max(0, (snap.PriorSessionDuration-snap.SessionDuration)/snap.PriorSessionDuration)
	}
	value = models.ClampFloat(value, 0, 1)

	trend := models.TrendImproving
	switch {
	case value > 0.3:
		trend = models.TrendDeclining
	case value > 0.1:
		trend = models.TrendStable
	}

	return models.ChurnFactor{
		Kind:        models.FactorUsageDecline,
		Weight:      WeightUsageDecline,
		Value:       value,
		Trend:       trend,
		Description: fmt.Sprintf("Average session time down %.0f%% from the prior period", value*100),
	}
}

func engagementDropFactor(snap *telemetry.Snapshot) models.ChurnFactor {
	value := models.ClampFloat(math.Max(0, (snap.PriorEngagementScore-snap.EngagementScore)/100), 0, 1)

	trend := models.TrendImproving
	switch {
	case value > 0.4:
		trend = models.TrendDeclining
	case value > 0.2:
		trend = models.TrendStable
	}

	return models.ChurnFactor{
		Kind:        models.FactorEngagementDrop,
		Weight:      WeightEngagementDrop,
		Value:       value,
		Trend:       trend,
		Description: fmt.Sprintf("Engagement score dropped %.0f points since the prior period", value*100),
	}
}

func featureAbandonmentFactor(snap *telemetry.Snapshot) models.ChurnFactor {
	var value float64
	if snap.TotalFeatureCount > 0 {
		value = 1 - float64(snap.ActiveFeatureCount)/float64(snap.TotalFeatureCount)
	}
	value = models.ClampFloat(value, 0, 1)

	trend := models.TrendImproving
	switch {
	case value > 0.6:
		trend = models.TrendDeclining
	case value > 0.3:
		trend = models.TrendStable
	}

	return models.ChurnFactor{
		Kind:        models.FactorFeatureAbandonment,
		Weight:      WeightFeatureAbandonment,
		Value:       value,
		Trend:       trend,
		Description: fmt.Sprintf("%d of %d features unused", snap.TotalFeatureCount-snap.ActiveFeatureCount, snap.TotalFeatureCount),
	}
}

// valuePerceptionFactor maps tier to a fixed perceived-value risk. Free
// users score high by convention: a free subscription costs nothing, so
// its perceived value offers no retention anchor at all.
func valuePerceptionFactor(tier models.Tier) models.ChurnFactor {
	var value float64
	switch tier {
	case models.TierElite:
		value = 0.8
	case models.TierProfessional:
		value = 0.7
	case models.TierBasic:
		value = 0.6
	default: // free
		value = 0.9
	}

	return models.ChurnFactor{
		Kind:        models.FactorValuePerception,
		Weight:      WeightValuePerception,
		Value:       value,
		Trend:       models.TrendStable,
		Description: fmt.Sprintf("Perceived value risk for the %s tier", string(tier)),
	}
}

func onboardingFactor() models.ChurnFactor {
	return models.ChurnFactor{
		Kind:        models.FactorOnboardingGap,
		Weight:      WeightOnboardingGap,
		Value:       onboardingPlaceholder,
		Trend:       models.TrendStable,
		Description: "Onboarding completion signal unavailable, assumed mostly complete",
	}
}

// sortFactors orders factors descending by contribution. Insertion sort:
// the factor set is tiny and the sort must be stable so equal
// contributions keep their computation order.
func sortFactors(factors []models.ChurnFactor) {
	for i := 1; i < len(factors); i++ {
		for j := i; j > 0 && factors[j].Contribution() > factors[j-1].Contribution(); j-- {
			factors[j], factors[j-1] = factors[j-1], factors[j]
		}
	}
}

// RiskScore combines weighted factors into an integer score in [0,100].
func RiskScore(factors []models.ChurnFactor) int {
	var weighted, totalWeight float64
	for _, f := range factors {
		weighted += f.Weight * f.Value * 100
		totalWeight += f.Weight
	}
	if totalWeight == 0 {
		return 0
	}
	return models.ClampInt(int(math.Round(weighted/totalWeight)), 0, 100)
}

// PredictChurnDate projects the churn date from the risk category's
// baseline, pulled in by 30% when usage decline is severe (>0.7).
func PredictChurnDate(now time.Time, category models.RiskCategory, factors []models.ChurnFactor) time.Time {
	days := float64(baseDaysOut(category))
	for _, f := range factors {
		if f.Kind == models.FactorUsageDecline && f.Value > 0.7 {
			days = math.Round(days * 0.7)
			break
		}
	}
	return now.AddDate(0, 0, int(days))
}

func baseDaysOut(category models.RiskCategory) int {
	switch category {
	case models.RiskCritical:
		return daysOutCritical
	case models.RiskHigh:
		return daysOutHigh
	case models.RiskMedium:
		return daysOutMedium
	default:
		return daysOutLow
	}
}

// Confidence scores how much to trust an analysis: base 75, +1 per
// observed telemetry field (cap +15), -20 for accounts younger than 30
// days, clamped to [40,100].
func Confidence(snap *telemetry.Snapshot) int {
	c := 75
	fields := snap.FieldsPresent()
	if fields > 15 {
		fields = 15
	}
	c += fields
	if snap.AccountAgeDays < 30 {
		c -= 20
	}
	return models.ClampInt(c, 40, 100)
}
