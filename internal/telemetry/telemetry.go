// Driftline - Predictive Retention and Engagement Analytics
// Copyright 2026 Driftline Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/driftline/driftline

// Package telemetry defines the usage/engagement snapshot consumed by the
// predictive components and the provider interfaces at the subsystem
// boundary. Providers are external collaborators; only their contracts
// live here, plus a plain HTTP client implementation.
package telemetry

import (
	"context"

	"github.com/driftline/driftline/internal/models"
)

// Snapshot is one user's usage and engagement telemetry.
//
// Zero values are valid: factor and driver calculations degrade missing
// fields to neutral zeros instead of failing, so a sparse snapshot still
// produces a score.
type Snapshot struct {
	UserID string `json:"user_id"`

	// Session behavior.
	SessionDuration      float64 `json:"session_duration"`       // seconds, current average
	PriorSessionDuration float64 `json:"prior_session_duration"` // seconds, prior-period average
	SessionFrequency     float64 `json:"session_frequency"`      // sessions per week

	// Engagement scoring inputs.
	EngagementScore      float64 `json:"engagement_score"`       // 0-100, current
	PriorEngagementScore float64 `json:"prior_engagement_score"` // 0-100, prior period

	// Feature adoption.
	ActiveFeatureCount int                `json:"active_feature_count"`
	TotalFeatureCount  int                `json:"total_feature_count"`
	FeatureUtilization map[string]float64 `json:"feature_utilization"`

	// Behavioral drivers (weekly counts).
	WeatherChecks     float64 `json:"weather_checks"`
	RaceLogs          float64 `json:"race_logs"`
	SocialConnections float64 `json:"social_connections"`

	// Per-session and social intensity.
	WeatherChecksPerSession float64 `json:"weather_checks_per_session"`
	SocialInteractions      float64 `json:"social_interactions"`

	// Activity flags.
	DailyActive   bool `json:"daily_active"`
	WeeklyActive  bool `json:"weekly_active"`
	MonthlyActive bool `json:"monthly_active"`

	// Account context.
	AccountAgeDays int `json:"account_age_days"`
}

// FieldsPresent counts the distinct telemetry fields carrying a signal.
// Feeds the confidence formula: more observed fields, higher confidence.
func (s *Snapshot) FieldsPresent() int {
	n := 0
	for _, v := range []float64{
		s.SessionDuration, s.PriorSessionDuration, s.SessionFrequency,
		s.EngagementScore, s.PriorEngagementScore,
		s.WeatherChecks, s.RaceLogs, s.SocialConnections,
		s.WeatherChecksPerSession, s.SocialInteractions,
	} {
		if v > 0 {
			n++
		}
	}
	if s.ActiveFeatureCount > 0 {
		n++
	}
	if s.TotalFeatureCount > 0 {
		n++
	}
	if len(s.FeatureUtilization) > 0 {
		n++
	}
	for _, b := range []bool{s.DailyActive, s.WeeklyActive, s.MonthlyActive} {
		if b {
			n++
		}
	}
	return n
}

// UsageMetrics converts the snapshot into the verbatim usage view embedded
// in a subscription value model.
func (s *Snapshot) UsageMetrics() models.UsageMetrics {
	fu := make(map[string]float64, len(s.FeatureUtilization))
	for k, v := range s.FeatureUtilization {
		fu[k] = v
	}
	return models.UsageMetrics{
		DailyActive:             s.DailyActive,
		WeeklyActive:            s.WeeklyActive,
		MonthlyActive:           s.MonthlyActive,
		FeatureUtilization:      fu,
		SessionDuration:         s.SessionDuration,
		SessionFrequency:        s.SessionFrequency,
		WeatherChecksPerSession: s.WeatherChecksPerSession,
		SocialInteractions:      s.SocialInteractions,
	}
}

// Subscription is a user's current billing status.
type Subscription struct {
	UserID      string      `json:"user_id"`
	Tier        models.Tier `json:"tier"`
	Status      string      `json:"status"`
	DisplayName string      `json:"display_name"`
}

// Provider fetches per-user telemetry snapshots.
type Provider interface {
	Snapshot(ctx context.Context, userID string) (*Snapshot, error)
}

// SubscriptionProvider fetches per-user subscription status.
type SubscriptionProvider interface {
	Subscription(ctx context.Context, userID string) (*Subscription, error)
}
