// Driftline - Predictive Retention and Engagement Analytics
// Copyright 2026 Driftline Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/driftline/driftline

// Package intervention selects and dispatches automated retention
// interventions from a static strategy catalog.
package intervention

import "github.com/driftline/driftline/internal/models"

// Catalog holds the static set of prevention strategies. It is built once
// and never mutated at runtime.
type Catalog struct {
	strategies []models.PreventionStrategy
}

// NewCatalog creates a catalog from an explicit strategy list, preserving
// order: earlier entries win success-rate ties.
func NewCatalog(strategies []models.PreventionStrategy) *Catalog {
	return &Catalog{strategies: strategies}
}

// DefaultCatalog returns the built-in strategy set. Success rates and
// score impacts come from the historical intervention campaign review.
func DefaultCatalog() *Catalog {
	return NewCatalog([]models.PreventionStrategy{
		{
			ID:             "concierge-outreach",
			Name:           "Concierge Outreach",
			Description:    "Personal contact from the support team with a tailored win-back offer",
			Targets:        []models.RiskCategory{models.RiskCritical},
			Tactics:        []models.InterventionType{models.InterventionPersonalOutreach},
			Priority:       1,
			SuccessRate:    0.78,
			AvgScoreImpact: 30,
		},
		{
			ID:             "winback-discount",
			Name:           "Win-back Discount",
			Description:    "Time-limited renewal discount for users about to lapse",
			Targets:        []models.RiskCategory{models.RiskHigh, models.RiskCritical},
			Tactics:        []models.InterventionType{models.InterventionDiscountOffer},
			Priority:       1,
			SuccessRate:    0.71,
			AvgScoreImpact: 25,
		},
		{
			ID:             "value-reinforcement",
			Name:           "Value Reinforcement",
			Description:    "Highlight the features the user's sailing pattern would benefit from",
			Targets:        []models.RiskCategory{models.RiskMedium, models.RiskHigh},
			Tactics:        []models.InterventionType{models.InterventionFeatureHighlight, models.InterventionPushNotification},
			Priority:       2,
			SuccessRate:    0.62,
			AvgScoreImpact: 18,
		},
		{
			ID:             "habit-rebuild",
			Name:           "Habit Rebuild",
			Description:    "Re-establish a usage habit through timely departure-window nudges",
			Targets:        []models.RiskCategory{models.RiskMedium},
			Tactics:        []models.InterventionType{models.InterventionPushNotification},
			Priority:       2,
			SuccessRate:    0.58,
			AvgScoreImpact: 12,
		},
		{
			ID:             "loyalty-boost",
			Name:           "Loyalty Boost",
			Description:    "Reward continued use with bonus loyalty points",
			Targets:        []models.RiskCategory{models.RiskLow, models.RiskMedium},
			Tactics:        []models.InterventionType{models.InterventionLoyaltyAward},
			Priority:       3,
			SuccessRate:    0.55,
			AvgScoreImpact: 10,
		},
	})
}

// Select returns the applicable strategy with the highest historical
// success rate. Ties go to the strategy appearing first in the catalog.
// Returns nil when nothing targets the category.
func (c *Catalog) Select(category models.RiskCategory) *models.PreventionStrategy {
	var best *models.PreventionStrategy
	for i := range c.strategies {
		s := &c.strategies[i]
		if !s.AppliesTo(category) {
			continue
		}
		if best == nil || s.SuccessRate > best.SuccessRate {
			best = s
		}
	}
	if best == nil {
		return nil
	}
	cp := *best
	return &cp
}

// ApplicableIDs lists the IDs of every strategy targeting the category,
// in catalog order.
func (c *Catalog) ApplicableIDs(category models.RiskCategory) []string {
	ids := []string{}
	for _, s := range c.strategies {
		if s.AppliesTo(category) {
			ids = append(ids, s.ID)
		}
	}
	return ids
}

// Strategies returns a copy of the full catalog.
func (c *Catalog) Strategies() []models.PreventionStrategy {
	return append([]models.PreventionStrategy(nil), c.strategies...)
}
