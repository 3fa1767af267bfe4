// Driftline - Predictive Retention and Engagement Analytics
// Copyright 2026 Driftline Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/driftline/driftline

// Package store is the in-memory predictive store: churn risk profiles,
// engagement predictions, subscription value models, and the intervention
// history, persisted as one durable snapshot after every mutation.
package store

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/driftline/driftline/internal/metrics"
	"github.com/driftline/driftline/internal/models"
)

// ErrNotFound is returned by getters when no artifact exists for the user.
var ErrNotFound = errors.New("not found")

// Store holds all predictive artifacts in memory and writes the full
// snapshot through to durable storage after each mutation.
//
// A single RWMutex guards the maps; a per-user keyed mutex additionally
// serializes mutations for the same user so concurrent analyses of one
// user cannot interleave their read-merge-write cycles.
type Store struct {
	mu       sync.RWMutex
	users    *keyedMutex
	rec      *models.Record
	registry []models.PredictiveModel

	storage Storage
	logger  zerolog.Logger
}

// New creates a store, loading any persisted snapshot from storage.
//
// A failed load is logged and counted, and the store starts with an
// empty record; the in-memory state stays authoritative either way.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func New(ctx context.Context, storage Storage, logger zerolog.Logger) *Store {
	logger = logger.With().Str("component", "predictive-store").Logger()

	rec, err := storage.Load(ctx)
	if err != nil {
		metrics.StoreLoadErrors.Inc()
		logger.Error().Err(err).Msg("snapshot load failed, starting with an empty record")
		rec = models.NewRecord()
	}

	return &Store{
		users:    newKeyedMutex(),
		rec:      rec,
		registry: seedModels(),
		storage:  storage,
		logger:   logger,
	}
}

// seedModels builds the static model registry. The heuristics are not
// retrained at runtime, so the metadata is fixed at build time.
func seedModels() []models.PredictiveModel {
	trained := time.Date(2026, time.July, 14, 0, 0, 0, 0, time.UTC)
	return []models.PredictiveModel{
		{
			Name:          "churn-risk",
			Version:       "1.2.0",
			Accuracy:      0.84,
			LastTrainedAt: trained,
			Features:      []string{"usage_decline", "engagement_drop", "feature_abandonment", "value_perception", "onboarding_incomplete"},
			Performance:   models.ModelPerformance{Precision: 0.82, Recall: 0.79, F1: 0.80, AUC: 0.88},
		},
		{
			Name:          "engagement-forecast",
			Version:       "1.1.0",
			Accuracy:      0.78,
			LastTrainedAt: trained,
			Features:      []string{"weather_usage", "racing_activity", "social_interaction"},
			Performance:   models.ModelPerformance{Precision: 0.76, Recall: 0.74, F1: 0.75, AUC: 0.81},
		},
		{
			Name:          "subscription-value",
			Version:       "1.0.1",
			Accuracy:      0.75,
			LastTrainedAt: trained,
			Features:      []string{"session_duration", "weather_checks_per_session", "social_interactions", "feature_utilization"},
			Performance:   models.ModelPerformance{Precision: 0.73, Recall: 0.71, F1: 0.72, AUC: 0.79},
		},
	}
}

// UpsertChurnProfile writes the profile under the user's lock. The
// intervention history of any existing profile is carried over: scalar
// fields are overwritten, history is append-only.
func (s *Store) UpsertChurnProfile(ctx context.Context, profile *models.ChurnRiskProfile) error {
	unlock := s.users.Lock(profile.UserID)
	defer unlock()

	cp := profile.Clone()

	s.mu.Lock()
	if prev, ok := s.rec.Profiles[profile.UserID]; ok && len(prev.Interventions) > 0 {
		cp.Interventions = append(append([]models.ChurnIntervention{}, prev.Interventions...), cp.Interventions...)
	}
	s.rec.Profiles[cp.UserID] = cp
	s.mu.Unlock()

	s.persist(ctx)
	return nil
}

// UpsertEngagementPrediction overwrites the user's prediction in full.
func (s *Store) UpsertEngagementPrediction(ctx context.Context, prediction *models.UserEngagementPrediction) error {
	unlock := s.users.Lock(prediction.UserID)
	defer unlock()

	s.mu.Lock()
	s.rec.Predictions[prediction.UserID] = prediction.Clone()
	s.mu.Unlock()

	s.persist(ctx)
	return nil
}

// UpsertValueModel overwrites the user's value model in full.
func (s *Store) UpsertValueModel(ctx context.Context, model *models.SubscriptionValueModel) error {
	unlock := s.users.Lock(model.UserID)
	defer unlock()

	s.mu.Lock()
	s.rec.ValueModels[model.UserID] = model.Clone()
	s.mu.Unlock()

	s.persist(ctx)
	return nil
}

// RecordIntervention appends the intervention to the user's profile
// history (when a profile exists) and to the global history.
func (s *Store) RecordIntervention(ctx context.Context, rec *models.ChurnIntervention) error {
	unlock := s.users.Lock(rec.UserID)
	defer unlock()

	s.mu.Lock()
	if profile, ok := s.rec.Profiles[rec.UserID]; ok {
		profile.Interventions = append(profile.Interventions, *rec)
	}
	s.rec.History = append(s.rec.History, *rec)
	s.mu.Unlock()

	s.persist(ctx)
	return nil
}

// UpdateInterventionOutcome resolves a pending intervention in both the
// global history and the owning profile, clearing its follow-up flag.
func (s *Store) UpdateInterventionOutcome(ctx context.Context, id string, outcome models.InterventionOutcome, effectiveness int) error {
	s.mu.Lock()
	found := false
	for i := range s.rec.History {
		if s.rec.History[i].ID == id {
			s.rec.History[i].Outcome = outcome
			s.rec.History[i].Effectiveness = effectiveness
			s.rec.History[i].FollowUpRequired = false
			found = true

			if profile, ok := s.rec.Profiles[s.rec.History[i].UserID]; ok {
				for j := range profile.Interventions {
					if profile.Interventions[j].ID == id {
						profile.Interventions[j].Outcome = outcome
						profile.Interventions[j].Effectiveness = effectiveness
						profile.Interventions[j].FollowUpRequired = false
						break
					}
				}
			}
			break
		}
	}
	s.mu.Unlock()

	if !found {
		return ErrNotFound
	}

	s.persist(ctx)
	return nil
}

// ChurnProfile returns a copy of the user's churn risk profile.
func (s *Store) ChurnProfile(userID string) (*models.ChurnRiskProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	profile, ok := s.rec.Profiles[userID]
	if !ok {
		return nil, ErrNotFound
	}
	return profile.Clone(), nil
}

// EngagementPrediction returns a copy of the user's prediction.
func (s *Store) EngagementPrediction(userID string) (*models.UserEngagementPrediction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	prediction, ok := s.rec.Predictions[userID]
	if !ok {
		return nil, ErrNotFound
	}
	return prediction.Clone(), nil
}

// ValueModel returns a copy of the user's subscription value model.
func (s *Store) ValueModel(userID string) (*models.SubscriptionValueModel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	model, ok := s.rec.ValueModels[userID]
	if !ok {
		return nil, ErrNotFound
	}
	return model.Clone(), nil
}

// InterventionHistory returns the user's interventions from the global
// history, oldest first.
func (s *Store) InterventionHistory(userID string) []models.ChurnIntervention {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history := []models.ChurnIntervention{}
	for _, rec := range s.rec.History {
		if rec.UserID == userID {
			history = append(history, rec)
		}
	}
	return history
}

// PendingFollowUps returns interventions still awaiting an outcome that
// were executed before cutoff.
func (s *Store) PendingFollowUps(cutoff time.Time) []models.ChurnIntervention {
	s.mu.RLock()
	defer s.mu.RUnlock()

	pending := []models.ChurnIntervention{}
	for _, rec := range s.rec.History {
		if rec.Outcome == models.OutcomePending && rec.FollowUpRequired && rec.ExecutedAt.Before(cutoff) {
			pending = append(pending, rec)
		}
	}
	return pending
}

// Users returns the sorted union of user IDs across all collections.
func (s *Store) Users() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]struct{})
	for id := range s.rec.Profiles {
		seen[id] = struct{}{}
	}
	for id := range s.rec.Predictions {
		seen[id] = struct{}{}
	}
	for id := range s.rec.ValueModels {
		seen[id] = struct{}{}
	}

	users := make([]string, 0, len(seen))
	for id := range seen {
		users = append(users, id)
	}
	sort.Strings(users)
	return users
}

// Models returns the static predictive model registry.
func (s *Store) Models() []models.PredictiveModel {
	return append([]models.PredictiveModel(nil), s.registry...)
}

// persist writes the full snapshot through to storage. Failures are
// logged and counted; the in-memory state remains authoritative and the
// next mutation retries the write.
func (s *Store) persist(ctx context.Context) {
	s.mu.RLock()
	snapshot := s.snapshotLocked()
	s.mu.RUnlock()

	if err := s.storage.Save(ctx, snapshot); err != nil {
		metrics.StoreSaveErrors.Inc()
		s.logger.Error().Err(err).Msg("snapshot persist failed")
	}
}

// snapshotLocked deep-copies the record. Callers hold at least the read lock.
func (s *Store) snapshotLocked() *models.Record {
	out := models.NewRecord()
	for id, p := range s.rec.Profiles {
		out.Profiles[id] = p.Clone()
	}
	for id, p := range s.rec.Predictions {
		out.Predictions[id] = p.Clone()
	}
	for id, m := range s.rec.ValueModels {
		out.ValueModels[id] = m.Clone()
	}
	out.History = append(out.History, s.rec.History...)
	return out
}
