// Driftline - Predictive Retention and Engagement Analytics
// Copyright 2026 Driftline Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/driftline/driftline

// Package engagement forecasts a user's short-term engagement trajectory
// from a fixed set of behavioral drivers.
package engagement

import (
	"math"

	"github.com/driftline/driftline/internal/models"
	"github.com/driftline/driftline/internal/telemetry"
)

// HorizonDays is the fixed prediction horizon.
const HorizonDays = 30

// driverSpec fixes the importance, impact, and optimal range for one
// behavioral driver. Current values come from telemetry.
type driverSpec struct {
	kind       models.DriverKind
	importance float64
	impact     float64
	optimalMin float64
	optimalMax float64
	current    func(*telemetry.Snapshot) float64
}

// The driver set. Racing activity is the strongest signal: users who log
// races keep sailing, and users who keep sailing keep subscribing.
var driverSpecs = []driverSpec{
	{
		kind:       models.DriverWeatherUsage,
		importance: 0.8,
		impact:     0.9,
		optimalMin: 3,
		optimalMax: 10,
		current:    func(s *telemetry.Snapshot) float64 { return s.WeatherChecks },
	},
	{
		kind:       models.DriverRacingActivity,
		importance: 0.9,
		impact:     0.95,
		optimalMin: 1,
		optimalMax: 5,
		current:    func(s *telemetry.Snapshot) float64 { return s.RaceLogs },
	},
	{
		kind:       models.DriverSocialInteraction,
		importance: 0.6,
		impact:     0.7,
		optimalMin: 5,
		optimalMax: 20,
		current:    func(s *telemetry.Snapshot) float64 { return s.SocialConnections },
	},
}

// BuildDrivers measures the fixed driver set against a telemetry snapshot.
func BuildDrivers(snap *telemetry.Snapshot) []models.EngagementDriver {
	drivers := make([]models.EngagementDriver, 0, len(driverSpecs))
	for _, ds := range driverSpecs {
		cur := ds.current(snap)

		trend := models.TrendStable
		switch {
		case cur < ds.optimalMin:
			trend = models.TrendDeclining
		case cur > ds.optimalMax:
			trend = models.TrendImproving
		}

		drivers = append(drivers, models.EngagementDriver{
			Kind:         ds.kind,
			Impact:       ds.impact,
			Trend:        trend,
			Importance:   ds.importance,
			CurrentValue: cur,
			OptimalMin:   ds.optimalMin,
			OptimalMax:   ds.optimalMax,
		})
	}
	return drivers
}

// Score combines drivers into an engagement score in [0,100].
// Each driver contributes importance x min(1, current/optimalMax) x impact;
// raising a driver toward its optimal maximum never lowers the score.
func Score(drivers []models.EngagementDriver) int {
	var weighted, totalImportance float64
	for _, d := range drivers {
		progress := 0.0
		if d.OptimalMax > 0 {
			progress = math.Min(1, d.CurrentValue/d.OptimalMax)
		}
		weighted += d.Importance * progress * d.Impact * 100
		totalImportance += d.Importance
	}
	if totalImportance == 0 {
		return 0
	}
	return models.ClampInt(int(math.Round(weighted/totalImportance)), 0, 100)
}

// ForecastForScore labels the engagement trajectory for a score.
func ForecastForScore(score int) models.EngagementForecast {
	switch {
	case score < 30:
		return models.ForecastChurning
	case score < 50:
		return models.ForecastDeclining
	case score < 75:
		return models.ForecastStable
	default:
		return models.ForecastIncreasing
	}
}

// actionCatalog maps each driver kind to its fixed recommended action.
var actionCatalog = map[models.DriverKind]models.RecommendedAction{
	models.DriverWeatherUsage: {
		Driver:         models.DriverWeatherUsage,
		Description:    "Enable departure-window weather alerts for saved routes",
		ExpectedImpact: 15,
		Effort:         "low",
		Timing:         "immediate",
		Priority:       3,
	},
	models.DriverRacingActivity: {
		Driver:         models.DriverRacingActivity,
		Description:    "Suggest an upcoming local regatta and prompt a race log",
		ExpectedImpact: 20,
		Effort:         "medium",
		Timing:         "within_week",
		Priority:       5,
	},
	models.DriverSocialInteraction: {
		Driver:         models.DriverSocialInteraction,
		Description:    "Prompt crew invites and sailing-club connections",
		ExpectedImpact: 10,
		Effort:         "low",
		Timing:         "within_week",
		Priority:       2,
	},
}

// RecommendActions emits one action per driver that is below its optimal
// minimum or carries weak impact (<0.5), sorted descending by priority.
func RecommendActions(drivers []models.EngagementDriver) []models.RecommendedAction {
	actions := make([]models.RecommendedAction, 0, len(drivers))
	for _, d := range drivers {
		if d.CurrentValue >= d.OptimalMin && d.Impact >= 0.5 {
			continue
		}
		if action, ok := actionCatalog[d.Kind]; ok {
			actions = append(actions, action)
		}
	}

	// Insertion sort, stable, small slice.
	for i := 1; i < len(actions); i++ {
		for j := i; j > 0 && actions[j].Priority > actions[j-1].Priority; j-- {
			actions[j], actions[j-1] = actions[j-1], actions[j]
		}
	}
	return actions
}
