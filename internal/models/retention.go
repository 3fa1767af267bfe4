// Driftline - Predictive Retention and Engagement Analytics
// Copyright 2026 Driftline Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/driftline/driftline

package models

import "time"

// Tier identifies a subscription level, ordered from free to elite.
type Tier string

const (
	TierFree         Tier = "free"
	TierBasic        Tier = "basic"
	TierProfessional Tier = "professional"
	TierElite        Tier = "elite"
)

// Next returns the next tier up in the fixed upgrade order.
// Elite is the top tier and returns itself.
func (t Tier) Next() Tier {
	switch t {
	case TierFree:
		return TierBasic
	case TierBasic:
		return TierProfessional
	case TierProfessional:
		return TierElite
	default:
		return TierElite
	}
}

// Valid reports whether the tier is one of the known levels.
func (t Tier) Valid() bool {
	switch t {
	case TierFree, TierBasic, TierProfessional, TierElite:
		return true
	default:
		return false
	}
}

// RiskCategory classifies a churn risk score.
type RiskCategory string

const (
	RiskLow      RiskCategory = "low"
	RiskMedium   RiskCategory = "medium"
	RiskHigh     RiskCategory = "high"
	RiskCritical RiskCategory = "critical"
)

// CategoryForScore maps a risk score (0-100) to its category.
// Boundaries are exact: >=80 critical, >=60 high, >=35 medium, else low.
func CategoryForScore(score int) RiskCategory {
	switch {
	case score >= 80:
		return RiskCritical
	case score >= 60:
		return RiskHigh
	case score >= 35:
		return RiskMedium
	default:
		return RiskLow
	}
}

// Trend describes the qualitative direction of a measured signal.
type Trend string

const (
	TrendDeclining Trend = "declining"
	TrendStable    Trend = "stable"
	TrendImproving Trend = "improving"
)

// FactorKind identifies a churn risk factor.
type FactorKind string

const (
	FactorUsageDecline       FactorKind = "usage_decline"
	FactorEngagementDrop     FactorKind = "engagement_drop"
	FactorFeatureAbandonment FactorKind = "feature_abandonment"
	FactorValuePerception    FactorKind = "value_perception"
	FactorOnboardingGap      FactorKind = "onboarding_incomplete"

	// Reserved kinds, not computed by the current factor set.
	FactorSupportIssues      FactorKind = "support_issues"
	FactorCompetitorActivity FactorKind = "competitor_activity"
	FactorPaymentIssues      FactorKind = "payment_issues"
)

// ChurnFactor is one weighted signal contributing to a churn risk score.
type ChurnFactor struct {
	Kind        FactorKind `json:"kind"`
	Weight      float64    `json:"weight"`
	Value       float64    `json:"value"` // normalized 0..1
	Trend       Trend      `json:"trend"`
	Description string     `json:"description"`
}

// Contribution returns weight x value, the factor's share of the score.
func (f ChurnFactor) Contribution() float64 {
	return f.Weight * f.Value
}

// ChurnRiskProfile is the per-user churn risk artifact.
//
// Scalar fields are overwritten on every analysis; Interventions is
// append-only and survives re-analysis.
type ChurnRiskProfile struct {
	UserID             string              `json:"user_id"`
	RiskScore          int                 `json:"risk_score"` // 0-100
	Category           RiskCategory        `json:"category"`
	Factors            []ChurnFactor       `json:"factors"` // descending by weight x value
	PredictedChurnDate time.Time           `json:"predicted_churn_date"`
	Confidence         int                 `json:"confidence"` // 40-100
	UpdatedAt          time.Time           `json:"updated_at"`
	Interventions      []ChurnIntervention `json:"interventions"`
	Strategies         []string            `json:"strategies"` // applicable prevention strategy IDs
}

// Clone returns a deep copy of the profile.
func (p *ChurnRiskProfile) Clone() *ChurnRiskProfile {
	if p == nil {
		return nil
	}
	cp := *p
	cp.Factors = append([]ChurnFactor(nil), p.Factors...)
	cp.Interventions = append([]ChurnIntervention(nil), p.Interventions...)
	cp.Strategies = append([]string(nil), p.Strategies...)
	return &cp
}

// InterventionType identifies the channel an intervention goes through.
type InterventionType string

const (
	InterventionPersonalOutreach InterventionType = "personal_outreach"
	InterventionDiscountOffer    InterventionType = "discount_offer"
	InterventionFeatureHighlight InterventionType = "feature_highlight"
	InterventionPushNotification InterventionType = "push_notification"
	InterventionLoyaltyAward     InterventionType = "loyalty_award"
)

// InterventionOutcome is the observed result of an intervention.
type InterventionOutcome string

const (
	OutcomePending  InterventionOutcome = "pending"
	OutcomePositive InterventionOutcome = "positive"
	OutcomeNeutral  InterventionOutcome = "neutral"
	OutcomeNegative InterventionOutcome = "negative"
)

// InterventionContent is the personalized copy dispatched to the user.
type InterventionContent struct {
	Title        string `json:"title"`
	Message      string `json:"message"`
	CallToAction string `json:"call_to_action"`
	Incentive    string `json:"incentive"`
}

// ChurnIntervention records one dispatched retention action.
//
// Immutable once created except Outcome and Effectiveness, which the
// hourly reconciliation task updates.
type ChurnIntervention struct {
	ID                  string              `json:"id"`
	UserID              string              `json:"user_id"`
	Type                InterventionType    `json:"type"`
	Category            RiskCategory        `json:"category"`
	ExecutedAt          time.Time           `json:"executed_at"`
	Content             InterventionContent `json:"content"`
	Outcome             InterventionOutcome `json:"outcome"`
	Effectiveness       int                 `json:"effectiveness"` // 0-100
	FollowUpRequired    bool                `json:"follow_up_required"`
	RiskScoreAtDispatch int                 `json:"risk_score_at_dispatch"`
}

// PreventionStrategy is a named bundle of retention tactics targeted at
// one or more risk categories. The catalog is static configuration.
type PreventionStrategy struct {
	ID             string             `json:"id"`
	Name           string             `json:"name"`
	Description    string             `json:"description"`
	Targets        []RiskCategory     `json:"targets"`
	Tactics        []InterventionType `json:"tactics"` // ordered
	Priority       int                `json:"priority"`
	SuccessRate    float64            `json:"success_rate"`     // historical, 0..1
	AvgScoreImpact int                `json:"avg_score_impact"` // average risk-score reduction
}

// AppliesTo reports whether the strategy targets the given category.
func (s PreventionStrategy) AppliesTo(cat RiskCategory) bool {
	for _, t := range s.Targets {
		if t == cat {
			return true
		}
	}
	return false
}

// EngagementForecast labels the predicted engagement trajectory.
type EngagementForecast string

const (
	ForecastIncreasing EngagementForecast = "increasing"
	ForecastStable     EngagementForecast = "stable"
	ForecastDeclining  EngagementForecast = "declining"
	ForecastChurning   EngagementForecast = "churning"
)

// DriverKind identifies a behavioral engagement driver.
type DriverKind string

const (
	DriverWeatherUsage      DriverKind = "weather_usage"
	DriverRacingActivity    DriverKind = "racing_activity"
	DriverSocialInteraction DriverKind = "social_interaction"
)

// EngagementDriver is one measured behavioral signal with its optimal range.
type EngagementDriver struct {
	Kind         DriverKind `json:"kind"`
	Impact       float64    `json:"impact"` // -1..1
	Trend        Trend      `json:"trend"`
	Importance   float64    `json:"importance"` // 0..1
	CurrentValue float64    `json:"current_value"`
	OptimalMin   float64    `json:"optimal_min"`
	OptimalMax   float64    `json:"optimal_max"`
}

// RecommendedAction is one suggested engagement intervention, keyed to the
// driver whose signal is below optimal.
type RecommendedAction struct {
	Driver         DriverKind `json:"driver"`
	Description    string     `json:"description"`
	ExpectedImpact int        `json:"expected_impact"` // engagement points
	Effort         string     `json:"effort"`
	Timing         string     `json:"timing"`
	Priority       int        `json:"priority"`
}

// UserEngagementPrediction is the per-user engagement trajectory forecast.
// Overwritten in full on each prediction call.
type UserEngagementPrediction struct {
	UserID      string              `json:"user_id"`
	Forecast    EngagementForecast  `json:"forecast"`
	Score       int                 `json:"score"` // 0-100
	Drivers     []EngagementDriver  `json:"drivers"`
	Actions     []RecommendedAction `json:"actions"` // descending by priority
	Confidence  int                 `json:"confidence"`
	HorizonDays int                 `json:"horizon_days"` // fixed 30
	GeneratedAt time.Time           `json:"generated_at"`
}

// Clone returns a deep copy of the prediction.
func (p *UserEngagementPrediction) Clone() *UserEngagementPrediction {
	if p == nil {
		return nil
	}
	cp := *p
	cp.Drivers = append([]EngagementDriver(nil), p.Drivers...)
	cp.Actions = append([]RecommendedAction(nil), p.Actions...)
	return &cp
}

// UsageMetrics is the usage snapshot embedded in a value model, copied
// verbatim from telemetry.
type UsageMetrics struct {
	DailyActive             bool               `json:"daily_active"`
	WeeklyActive            bool               `json:"weekly_active"`
	MonthlyActive           bool               `json:"monthly_active"`
	FeatureUtilization      map[string]float64 `json:"feature_utilization"`
	SessionDuration         float64            `json:"session_duration"`  // seconds
	SessionFrequency        float64            `json:"session_frequency"` // per week
	WeatherChecksPerSession float64            `json:"weather_checks_per_session"`
	SocialInteractions      float64            `json:"social_interactions"`
}

// ValueGap is a tier-gated feature a user appears to want but cannot access.
type ValueGap struct {
	Feature               string `json:"feature"`
	RequiredTier          Tier   `json:"required_tier"`
	HasAccess             bool   `json:"has_access"`
	UsageIntent           int    `json:"usage_intent"`           // 0-100
	ValueScore            int    `json:"value_score"`            // 0-100
	ConversionProbability int    `json:"conversion_probability"` // 0-100
}

// UpgradeRecommendation suggests the next tier up, with reasoning per
// qualifying value gap.
type UpgradeRecommendation struct {
	TargetTier Tier     `json:"target_tier"`
	Confidence int      `json:"confidence"`
	Reasoning  []string `json:"reasoning"`
	Incentive  string   `json:"incentive"`
}

// RetentionRecommendation suggests a retention action for an at-risk
// subscription.
type RetentionRecommendation struct {
	Kind           string `json:"kind"`
	Description    string `json:"description"`
	ExpectedImpact int    `json:"expected_impact"`
}

// SubscriptionValueModel compares tier-gated features against actual usage.
type SubscriptionValueModel struct {
	UserID         string                    `json:"user_id"`
	CurrentTier    Tier                      `json:"current_tier"`
	PerceivedValue int                       `json:"perceived_value"` // 0-100
	Usage          UsageMetrics              `json:"usage"`
	Gaps           []ValueGap                `json:"gaps"`
	Upgrade        *UpgradeRecommendation    `json:"upgrade,omitempty"`
	Retention      []RetentionRecommendation `json:"retention"`
	ChurnRisk      int                       `json:"churn_risk"` // 0-100
	LifetimeValue  float64                   `json:"lifetime_value"`
	UpdatedAt      time.Time                 `json:"updated_at"`
}

// Clone returns a deep copy of the value model.
func (m *SubscriptionValueModel) Clone() *SubscriptionValueModel {
	if m == nil {
		return nil
	}
	cp := *m
	cp.Gaps = append([]ValueGap(nil), m.Gaps...)
	cp.Retention = append([]RetentionRecommendation(nil), m.Retention...)
	if m.Upgrade != nil {
		u := *m.Upgrade
		u.Reasoning = append([]string(nil), m.Upgrade.Reasoning...)
		cp.Upgrade = &u
	}
	if m.Usage.FeatureUtilization != nil {
		fu := make(map[string]float64, len(m.Usage.FeatureUtilization))
		for k, v := range m.Usage.FeatureUtilization {
			fu[k] = v
		}
		cp.Usage.FeatureUtilization = fu
	}
	return &cp
}

// ModelPerformance holds offline evaluation metrics for a predictive model.
type ModelPerformance struct {
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1        float64 `json:"f1"`
	AUC       float64 `json:"auc"`
}

// PredictiveModel is introspection metadata for one heuristic model.
// The registry is seeded at construction and never retrained at runtime.
type PredictiveModel struct {
	Name          string           `json:"name"`
	Version       string           `json:"version"`
	Accuracy      float64          `json:"accuracy"`
	LastTrainedAt time.Time        `json:"last_trained_at"`
	Features      []string         `json:"features"`
	Performance   ModelPerformance `json:"performance"`
}

// Record is the single persisted snapshot of the predictive store.
// It round-trips through the durable storage provider in full.
type Record struct {
	Profiles    map[string]*ChurnRiskProfile         `json:"churn_risk_profiles"`
	Predictions map[string]*UserEngagementPrediction `json:"engagement_predictions"`
	ValueModels map[string]*SubscriptionValueModel   `json:"subscription_value_models"`
	History     []ChurnIntervention                  `json:"intervention_history"`
}

// NewRecord returns an empty, fully initialized record.
func NewRecord() *Record {
	return &Record{
		Profiles:    make(map[string]*ChurnRiskProfile),
		Predictions: make(map[string]*UserEngagementPrediction),
		ValueModels: make(map[string]*SubscriptionValueModel),
		History:     []ChurnIntervention{},
	}
}

// ClampInt clamps v to [lo, hi].
func ClampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// ClampFloat clamps v to [lo, hi].
func ClampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
