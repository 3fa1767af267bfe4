// Driftline - Predictive Retention and Engagement Analytics
// Copyright 2026 Driftline Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/driftline/driftline

package intervention

import (
	"testing"

	"github.com/driftline/driftline/internal/models"
)

func TestSelectPicksHighestSuccessRate(t *testing.T) {
	catalog := DefaultCatalog()

	tests := []struct {
		category models.RiskCategory
		wantID   string
	}{
		{models.RiskCritical, "concierge-outreach"}, // 0.78 beats winback 0.71
		{models.RiskHigh, "winback-discount"},       // 0.71 beats value-reinforcement 0.62
		{models.RiskMedium, "value-reinforcement"},  // 0.62 beats habit-rebuild and loyalty-boost
		{models.RiskLow, "loyalty-boost"},           // only strategy targeting low
	}

	for _, tt := range tests {
		got := catalog.Select(tt.category)
		if got == nil {
			t.Errorf("Select(%s) = nil, want %s", tt.category, tt.wantID)
			continue
		}
		if got.ID != tt.wantID {
			t.Errorf("Select(%s) = %s, want %s", tt.category, got.ID, tt.wantID)
		}
	}
}

func TestSelectTieBreaksOnCatalogOrder(t *testing.T) {
	catalog := NewCatalog([]models.PreventionStrategy{
		{ID: "first", Targets: []models.RiskCategory{models.RiskHigh}, SuccessRate: 0.6},
		{ID: "second", Targets: []models.RiskCategory{models.RiskHigh}, SuccessRate: 0.6},
	})

	got := catalog.Select(models.RiskHigh)
	if got == nil || got.ID != "first" {
		t.Errorf("Select = %v, want first", got)
	}
}

func TestSelectNoMatch(t *testing.T) {
	catalog := NewCatalog([]models.PreventionStrategy{
		{ID: "only-critical", Targets: []models.RiskCategory{models.RiskCritical}, SuccessRate: 0.9},
	})
	if got := catalog.Select(models.RiskLow); got != nil {
		t.Errorf("Select(low) = %v, want nil", got)
	}
}

func TestSelectReturnsCopy(t *testing.T) {
	catalog := DefaultCatalog()
	s := catalog.Select(models.RiskHigh)
	s.SuccessRate = 0

	again := catalog.Select(models.RiskHigh)
	if again.SuccessRate == 0 {
		t.Error("mutating the selected strategy leaked into the catalog")
	}
}

func TestApplicableIDsPreservesCatalogOrder(t *testing.T) {
	catalog := DefaultCatalog()

	got := catalog.ApplicableIDs(models.RiskHigh)
	want := []string{"winback-discount", "value-reinforcement"}
	if len(got) != len(want) {
		t.Fatalf("ApplicableIDs(high) = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("ApplicableIDs(high)[%d] = %s, want %s", i, got[i], want[i])
		}
	}

	if ids := catalog.ApplicableIDs(models.RiskCategory("unknown")); len(ids) != 0 {
		t.Errorf("ApplicableIDs(unknown) = %v, want empty", ids)
	}
}
