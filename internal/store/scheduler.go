// Driftline - Predictive Retention and Engagement Analytics
// Copyright 2026 Driftline Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/driftline/driftline

package store

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/driftline/driftline/internal/metrics"
	"github.com/driftline/driftline/internal/models"
)

// Outcome thresholds for reconciliation, in risk-score points relative to
// the score at dispatch. A drop of at least 10 counts as positive, a rise
// of at least 5 as negative, anything between as neutral.
const (
	positiveDropThreshold = 10
	negativeRiseThreshold = 5
)

// ChurnAnalyzer refreshes one user's churn profile. Satisfied by
// *churn.Analyzer.
type ChurnAnalyzer interface {
	Analyze(ctx context.Context, userID string) (*models.ChurnRiskProfile, error)
}

// EngagementPredictor refreshes one user's engagement prediction.
// Satisfied by *engagement.Predictor.
type EngagementPredictor interface {
	Predict(ctx context.Context, userID string) (*models.UserEngagementPrediction, error)
}

// Clock abstracts time for the scheduler so tests can drive ticks
// deterministically.
type Clock interface {
	Now() time.Time
	NewTicker(d time.Duration) Ticker
}

// Ticker is the subset of time.Ticker the scheduler needs.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) NewTicker(d time.Duration) Ticker { return &realTicker{time.NewTicker(d)} }

type realTicker struct{ t *time.Ticker }

func (t *realTicker) C() <-chan time.Time { return t.t.C }
func (t *realTicker) Stop()               { t.t.Stop() }

// SchedulerConfig fixes the cadences of the three background tasks.
type SchedulerConfig struct {
	ChurnInterval      time.Duration
	EngagementInterval time.Duration
	ReconcileInterval  time.Duration
	FollowUpWindow     time.Duration
}

// Scheduler runs the background refresh and reconciliation loops:
// churn profiles every ChurnInterval, engagement predictions every
// EngagementInterval, and intervention outcome reconciliation every
// ReconcileInterval.
//
// Task failures are isolated per user and per tick: an error is logged
// and counted, never propagated, so one bad user cannot stall the sweep.
type Scheduler struct {
	cfg       SchedulerConfig
	store     *Store
	analyzer  ChurnAnalyzer
	predictor EngagementPredictor
	clock     Clock
	logger    zerolog.Logger
}

// NewScheduler creates the background scheduler.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewScheduler(
	cfg SchedulerConfig,
	st *Store,
	analyzer ChurnAnalyzer,
	predictor EngagementPredictor,
	logger zerolog.Logger,
) *Scheduler {
	return &Scheduler{
		cfg:       cfg,
		store:     st,
		analyzer:  analyzer,
		predictor: predictor,
		clock:     realClock{},
		logger:    logger.With().Str("component", "scheduler").Logger(),
	}
}

// Serve runs the ticker loops until ctx is canceled. Implements
// suture.Service.
func (s *Scheduler) Serve(ctx context.Context) error {
	churnTick := s.clock.NewTicker(s.cfg.ChurnInterval)
	defer churnTick.Stop()
	engagementTick := s.clock.NewTicker(s.cfg.EngagementInterval)
	defer engagementTick.Stop()
	reconcileTick := s.clock.NewTicker(s.cfg.ReconcileInterval)
	defer reconcileTick.Stop()

	s.logger.Info().
		Dur("churn_interval", s.cfg.ChurnInterval).
		Dur("engagement_interval", s.cfg.EngagementInterval).
		Dur("reconcile_interval", s.cfg.ReconcileInterval).
		Msg("scheduler started")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-churnTick.C():
			s.RunChurnSweep(ctx)
		case <-engagementTick.C():
			s.RunEngagementSweep(ctx)
		case <-reconcileTick.C():
			s.RunReconciliation(ctx)
		}
	}
}

// String implements suture.Service naming.
func (s *Scheduler) String() string { return "predictive-scheduler" }

// RunChurnSweep refreshes the churn profile of every known user.
func (s *Scheduler) RunChurnSweep(ctx context.Context) {
	metrics.SchedulerTaskRuns.WithLabelValues("churn_sweep").Inc()

	users := s.store.Users()
	failed := 0
	for _, userID := range users {
		if ctx.Err() != nil {
			return
		}
		if _, err := s.analyzer.Analyze(ctx, userID); err != nil {
			failed++
			metrics.SchedulerTaskFailures.WithLabelValues("churn_sweep").Inc()
			s.logger.Warn().Err(err).Str("user_id", userID).Msg("churn sweep: analysis failed")
		}
	}

	s.logger.Info().Int("users", len(users)).Int("failed", failed).Msg("churn sweep complete")
}

// RunEngagementSweep refreshes the engagement prediction of every known user.
func (s *Scheduler) RunEngagementSweep(ctx context.Context) {
	metrics.SchedulerTaskRuns.WithLabelValues("engagement_sweep").Inc()

	users := s.store.Users()
	failed := 0
	for _, userID := range users {
		if ctx.Err() != nil {
			return
		}
		if _, err := s.predictor.Predict(ctx, userID); err != nil {
			failed++
			metrics.SchedulerTaskFailures.WithLabelValues("engagement_sweep").Inc()
			s.logger.Warn().Err(err).Str("user_id", userID).Msg("engagement sweep: prediction failed")
		}
	}

	s.logger.Info().Int("users", len(users)).Int("failed", failed).Msg("engagement sweep complete")
}

// RunReconciliation resolves pending interventions older than the
// follow-up window by comparing the user's current risk score against the
// score at dispatch.
func (s *Scheduler) RunReconciliation(ctx context.Context) {
	metrics.SchedulerTaskRuns.WithLabelValues("reconciliation").Inc()

	cutoff := s.clock.Now().Add(-s.cfg.FollowUpWindow)
	pending := s.store.PendingFollowUps(cutoff)

	for _, rec := range pending {
		if ctx.Err() != nil {
			return
		}

		outcome, effectiveness := s.resolve(rec)
		if err := s.store.UpdateInterventionOutcome(ctx, rec.ID, outcome, effectiveness); err != nil {
			metrics.SchedulerTaskFailures.WithLabelValues("reconciliation").Inc()
			s.logger.Warn().Err(err).Str("intervention_id", rec.ID).Msg("reconciliation: update failed")
			continue
		}

		s.logger.Info().
			Str("intervention_id", rec.ID).
			Str("user_id", rec.UserID).
			Str("outcome", string(outcome)).
			Int("effectiveness", effectiveness).
			Msg("intervention reconciled")
	}
}

// resolve scores one pending intervention. A user whose profile has since
// disappeared resolves neutral with zero effectiveness.
func (s *Scheduler) resolve(rec models.ChurnIntervention) (models.InterventionOutcome, int) {
	profile, err := s.store.ChurnProfile(rec.UserID)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			s.logger.Warn().Err(err).Str("user_id", rec.UserID).Msg("reconciliation: profile fetch failed")
		}
		return models.OutcomeNeutral, 0
	}

	drop := rec.RiskScoreAtDispatch - profile.RiskScore
	switch {
	case drop >= positiveDropThreshold:
		return models.OutcomePositive, models.ClampInt(drop, 0, 100)
	case drop <= -negativeRiseThreshold:
		return models.OutcomeNegative, 0
	default:
		return models.OutcomeNeutral, models.ClampInt(drop, 0, 100)
	}
}
