// Driftline - Predictive Retention and Engagement Analytics
// Copyright 2026 Driftline Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/driftline/driftline

package intervention

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/driftline/driftline/internal/models"
	"github.com/driftline/driftline/internal/telemetry"
)

type mockInterventionStore struct {
	records []*models.ChurnIntervention
	err     error
}

func (m *mockInterventionStore) RecordIntervention(_ context.Context, rec *models.ChurnIntervention) error {
	if m.err != nil {
		return m.err
	}
	m.records = append(m.records, rec)
	return nil
}

type mockPush struct {
	sent []string
	err  error
}

func (m *mockPush) Send(_ context.Context, userID string, _ models.InterventionContent) error {
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, userID)
	return nil
}

type mockLoyalty struct {
	awards []int
	err    error
}

func (m *mockLoyalty) Award(_ context.Context, _ string, points int, _ string) error {
	if m.err != nil {
		return m.err
	}
	m.awards = append(m.awards, points)
	return nil
}

type mockDiscount struct {
	issued []int
	code   string
	err    error
}

func (m *mockDiscount) Issue(_ context.Context, _ string, percent int, _ string) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	m.issued = append(m.issued, percent)
	return m.code, nil
}

type mockTriggerEmitter struct{ events []string }

func (m *mockTriggerEmitter) Emit(_ context.Context, name string, _ map[string]any) error {
	m.events = append(m.events, name)
	return nil
}

func testProfile(category models.RiskCategory, score int) *models.ChurnRiskProfile {
	return &models.ChurnRiskProfile{
		UserID:    "sailor-1",
		RiskScore: score,
		Category:  category,
		Factors: []models.ChurnFactor{
			{Kind: models.FactorValuePerception, Description: "Perceived value risk for the free tier"},
			{Kind: models.FactorUsageDecline, Description: "Average session time down 50% from the prior period"},
			{Kind: models.FactorOnboardingGap, Description: "Onboarding completion signal unavailable, assumed mostly complete"},
		},
	}
}

func newTestOrchestrator(st InterventionStore, ch Channels, emitter EventEmitter) *Orchestrator {
	subs := telemetry.NewStaticProvider()
	subs.Subscriptions["sailor-1"] = &telemetry.Subscription{
		UserID: "sailor-1", Tier: models.TierFree, DisplayName: "Alex",
	}
	o := NewOrchestrator(DefaultCatalog(), ch, st, subs, emitter, zerolog.Nop())
	o.newID = func() string { return "iv-fixed" }
	return o
}

func TestTriggerHighRiskIssuesDiscount(t *testing.T) {
	st := &mockInterventionStore{}
	discount := &mockDiscount{code: "SAIL50"}
	emitter := &mockTriggerEmitter{}
	o := newTestOrchestrator(st, Channels{Push: &mockPush{}, Loyalty: &mockLoyalty{}, Discount: discount}, emitter)

	rec, err := o.Trigger(context.Background(), testProfile(models.RiskHigh, 65))
	if err != nil {
		t.Fatalf("Trigger: %v", err)
	}

	if rec.Type != models.InterventionDiscountOffer {
		t.Errorf("type = %s, want discount_offer", rec.Type)
	}
	if rec.Outcome != models.OutcomePending || rec.Effectiveness != 0 || !rec.FollowUpRequired {
		t.Errorf("record not pending/0/follow-up: %+v", rec)
	}
	if rec.RiskScoreAtDispatch != 65 {
		t.Errorf("risk score at dispatch = %d, want 65", rec.RiskScoreAtDispatch)
	}
	if len(discount.issued) != 1 || discount.issued[0] != discountPercent {
		t.Errorf("discount issues = %v", discount.issued)
	}
	if !strings.Contains(rec.Content.Incentive, "SAIL50") {
		t.Errorf("incentive missing code: %q", rec.Content.Incentive)
	}
	if !strings.Contains(rec.Content.Title, "Alex") {
		t.Errorf("title not personalized: %q", rec.Content.Title)
	}
	if len(st.records) != 1 {
		t.Errorf("records = %d, want 1", len(st.records))
	}
	if len(emitter.events) != 1 || emitter.events[0] != EventInterventionTriggered {
		t.Errorf("events = %v", emitter.events)
	}
}

func TestTriggerCriticalQueuesOutreachWithoutDispatch(t *testing.T) {
	st := &mockInterventionStore{}
	push := &mockPush{}
	discount := &mockDiscount{code: "X"}
	o := newTestOrchestrator(st, Channels{Push: push, Loyalty: &mockLoyalty{}, Discount: discount}, nil)

	rec, err := o.Trigger(context.Background(), testProfile(models.RiskCritical, 85))
	if err != nil {
		t.Fatalf("Trigger: %v", err)
	}

	if rec.Type != models.InterventionPersonalOutreach {
		t.Errorf("type = %s, want personal_outreach", rec.Type)
	}
	if len(push.sent) != 0 || len(discount.issued) != 0 {
		t.Error("critical intervention dispatched through an automated channel")
	}
	if len(st.records) != 1 {
		t.Errorf("records = %d, want 1", len(st.records))
	}
}

func TestTriggerMediumFollowsStrategyTactic(t *testing.T) {
	st := &mockInterventionStore{}
	push := &mockPush{}
	o := newTestOrchestrator(st, Channels{Push: push, Loyalty: &mockLoyalty{}, Discount: &mockDiscount{}}, nil)

	rec, err := o.Trigger(context.Background(), testProfile(models.RiskMedium, 45))
	if err != nil {
		t.Fatalf("Trigger: %v", err)
	}

	// Medium selects value-reinforcement, whose leading tactic is
	// feature_highlight. That surface is in-app only: nothing goes out
	// over the push channel.
	if rec.Type != models.InterventionFeatureHighlight {
		t.Errorf("type = %s, want feature_highlight", rec.Type)
	}
	if len(push.sent) != 0 {
		t.Errorf("push sends = %d, want 0 for in-app feature highlight", len(push.sent))
	}
	if len(st.records) != 1 {
		t.Errorf("records = %d, want 1", len(st.records))
	}
}

func TestTriggerPushTacticDispatchesViaPush(t *testing.T) {
	st := &mockInterventionStore{}
	push := &mockPush{}
	catalog := NewCatalog([]models.PreventionStrategy{{
		ID:          "nudge-only",
		Name:        "Nudge Only",
		Targets:     []models.RiskCategory{models.RiskMedium},
		Tactics:     []models.InterventionType{models.InterventionPushNotification},
		SuccessRate: 0.5,
	}})
	subs := telemetry.NewStaticProvider()
	o := NewOrchestrator(catalog, Channels{Push: push, Loyalty: &mockLoyalty{}, Discount: &mockDiscount{}}, st, subs, nil, zerolog.Nop())

	rec, err := o.Trigger(context.Background(), testProfile(models.RiskMedium, 45))
	if err != nil {
		t.Fatalf("Trigger: %v", err)
	}
	if rec.Type != models.InterventionPushNotification {
		t.Errorf("type = %s, want push_notification", rec.Type)
	}
	if len(push.sent) != 1 || push.sent[0] != "sailor-1" {
		t.Errorf("push sends = %v, want one to sailor-1", push.sent)
	}
}

func TestTriggerDispatchFailureStillRecords(t *testing.T) {
	st := &mockInterventionStore{}
	discount := &mockDiscount{err: errors.New("billing down")}
	o := newTestOrchestrator(st, Channels{Push: &mockPush{}, Loyalty: &mockLoyalty{}, Discount: discount}, nil)

	rec, err := o.Trigger(context.Background(), testProfile(models.RiskHigh, 70))
	if err != nil {
		t.Fatalf("Trigger: %v", err)
	}
	if len(st.records) != 1 {
		t.Fatalf("records = %d, want 1 despite dispatch failure", len(st.records))
	}
	if strings.Contains(rec.Content.Incentive, "code") {
		t.Errorf("incentive carries a code despite issue failure: %q", rec.Content.Incentive)
	}
}

func TestTriggerStoreFailureFails(t *testing.T) {
	st := &mockInterventionStore{err: errors.New("disk full")}
	o := newTestOrchestrator(st, Channels{Push: &mockPush{}, Loyalty: &mockLoyalty{}, Discount: &mockDiscount{}}, nil)

	if _, err := o.Trigger(context.Background(), testProfile(models.RiskHigh, 70)); err == nil {
		t.Fatal("expected error from store failure")
	}
}
