// Driftline - Predictive Retention and Engagement Analytics
// Copyright 2026 Driftline Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/driftline/driftline

package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/driftline/driftline/internal/models"
)

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) NewTicker(time.Duration) Ticker {
	return &fakeTicker{ch: make(chan time.Time)}
}

type fakeTicker struct{ ch chan time.Time }

func (t *fakeTicker) C() <-chan time.Time { return t.ch }
func (t *fakeTicker) Stop()               {}

type recordingAnalyzer struct {
	calls []string
	err   error
}

func (a *recordingAnalyzer) Analyze(_ context.Context, userID string) (*models.ChurnRiskProfile, error) {
	a.calls = append(a.calls, userID)
	if a.err != nil {
		return nil, a.err
	}
	return &models.ChurnRiskProfile{UserID: userID}, nil
}

type recordingPredictor struct{ calls []string }

func (p *recordingPredictor) Predict(_ context.Context, userID string) (*models.UserEngagementPrediction, error) {
	p.calls = append(p.calls, userID)
	return &models.UserEngagementPrediction{UserID: userID}, nil
}

func schedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		ChurnInterval:      24 * time.Hour,
		EngagementInterval: 6 * time.Hour,
		ReconcileInterval:  time.Hour,
		FollowUpWindow:     72 * time.Hour,
	}
}

func TestChurnSweepCoversAllUsers(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	for _, id := range []string{"a", "b", "c"} {
		if err := st.UpsertChurnProfile(ctx, testChurnProfile(id, 40)); err != nil {
			t.Fatal(err)
		}
	}

	analyzer := &recordingAnalyzer{}
	s := NewScheduler(schedulerConfig(), st, analyzer, &recordingPredictor{}, zerolog.Nop())

	s.RunChurnSweep(ctx)

	if len(analyzer.calls) != 3 {
		t.Errorf("analyzer calls = %v, want a b c", analyzer.calls)
	}
}

func TestChurnSweepIsolatesFailures(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	for _, id := range []string{"a", "b"} {
		if err := st.UpsertChurnProfile(ctx, testChurnProfile(id, 40)); err != nil {
			t.Fatal(err)
		}
	}

	analyzer := &recordingAnalyzer{err: errors.New("telemetry down")}
	s := NewScheduler(schedulerConfig(), st, analyzer, &recordingPredictor{}, zerolog.Nop())

	// Must not panic or stop at the first failure.
	s.RunChurnSweep(ctx)

	if len(analyzer.calls) != 2 {
		t.Errorf("analyzer calls = %d, want 2 despite failures", len(analyzer.calls))
	}
}

func TestEngagementSweepCoversAllUsers(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	if err := st.UpsertEngagementPrediction(ctx, &models.UserEngagementPrediction{UserID: "a"}); err != nil {
		t.Fatal(err)
	}

	predictor := &recordingPredictor{}
	s := NewScheduler(schedulerConfig(), st, &recordingAnalyzer{}, predictor, zerolog.Nop())

	s.RunEngagementSweep(ctx)

	if len(predictor.calls) != 1 || predictor.calls[0] != "a" {
		t.Errorf("predictor calls = %v, want [a]", predictor.calls)
	}
}

func TestReconciliationOutcomes(t *testing.T) {
	now := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name            string
		currentScore    int
		scoreAtDispatch int
		wantOutcome     models.InterventionOutcome
		wantEffect      int
	}{
		{"risk dropped enough", 50, 70, models.OutcomePositive, 20},
		{"risk rose", 80, 70, models.OutcomeNegative, 0},
		{"risk barely moved", 68, 70, models.OutcomeNeutral, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := newTestStore(t)
			ctx := context.Background()

			if err := st.UpsertChurnProfile(ctx, testChurnProfile("sailor-1", tt.currentScore)); err != nil {
				t.Fatal(err)
			}
			if err := st.RecordIntervention(ctx, &models.ChurnIntervention{
				ID: "iv-1", UserID: "sailor-1",
				ExecutedAt: now.Add(-100 * time.Hour),
				Outcome:    models.OutcomePending, FollowUpRequired: true,
				RiskScoreAtDispatch: tt.scoreAtDispatch,
			}); err != nil {
				t.Fatal(err)
			}

			s := NewScheduler(schedulerConfig(), st, &recordingAnalyzer{}, &recordingPredictor{}, zerolog.Nop())
			s.clock = &fakeClock{now: now}

			s.RunReconciliation(ctx)

			history := st.InterventionHistory("sailor-1")
			if history[0].Outcome != tt.wantOutcome {
				t.Errorf("outcome = %s, want %s", history[0].Outcome, tt.wantOutcome)
			}
			if history[0].Effectiveness != tt.wantEffect {
				t.Errorf("effectiveness = %d, want %d", history[0].Effectiveness, tt.wantEffect)
			}
			if history[0].FollowUpRequired {
				t.Error("follow-up flag not cleared")
			}
		})
	}
}

func TestReconciliationSkipsFreshInterventions(t *testing.T) {
	now := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
	st := newTestStore(t)
	ctx := context.Background()

	if err := st.RecordIntervention(ctx, &models.ChurnIntervention{
		ID: "iv-fresh", UserID: "sailor-1",
		ExecutedAt: now.Add(-time.Hour),
		Outcome:    models.OutcomePending, FollowUpRequired: true,
	}); err != nil {
		t.Fatal(err)
	}

	s := NewScheduler(schedulerConfig(), st, &recordingAnalyzer{}, &recordingPredictor{}, zerolog.Nop())
	s.clock = &fakeClock{now: now}

	s.RunReconciliation(ctx)

	history := st.InterventionHistory("sailor-1")
	if history[0].Outcome != models.OutcomePending {
		t.Errorf("fresh intervention resolved early: %s", history[0].Outcome)
	}
}

func TestReconciliationMissingProfileIsNeutral(t *testing.T) {
	now := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
	st := newTestStore(t)
	ctx := context.Background()

	if err := st.RecordIntervention(ctx, &models.ChurnIntervention{
		ID: "iv-1", UserID: "vanished",
		ExecutedAt: now.Add(-100 * time.Hour),
		Outcome:    models.OutcomePending, FollowUpRequired: true,
		RiskScoreAtDispatch: 70,
	}); err != nil {
		t.Fatal(err)
	}

	s := NewScheduler(schedulerConfig(), st, &recordingAnalyzer{}, &recordingPredictor{}, zerolog.Nop())
	s.clock = &fakeClock{now: now}

	s.RunReconciliation(ctx)

	history := st.InterventionHistory("vanished")
	if history[0].Outcome != models.OutcomeNeutral || history[0].Effectiveness != 0 {
		t.Errorf("missing profile resolution = %s/%d, want neutral/0", history[0].Outcome, history[0].Effectiveness)
	}
}

func TestServeStopsOnContextCancel(t *testing.T) {
	st := newTestStore(t)
	s := NewScheduler(schedulerConfig(), st, &recordingAnalyzer{}, &recordingPredictor{}, zerolog.Nop())
	s.clock = &fakeClock{now: time.Now()}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx) }()

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Serve returned %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not stop on cancel")
	}
}
