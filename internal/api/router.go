// Driftline - Predictive Retention and Engagement Analytics
// Copyright 2026 Driftline Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/driftline/driftline

// Package api provides the HTTP query and trigger surface using Chi.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/driftline/driftline/internal/churn"
	"github.com/driftline/driftline/internal/engagement"
	"github.com/driftline/driftline/internal/logging"
	"github.com/driftline/driftline/internal/models"
	"github.com/driftline/driftline/internal/store"
	"github.com/driftline/driftline/internal/valuation"
)

// Analyzer triggers a churn analysis. Satisfied by *churn.Analyzer.
type Analyzer interface {
	Analyze(ctx context.Context, userID string) (*models.ChurnRiskProfile, error)
}

// Predictor triggers an engagement prediction. Satisfied by
// *engagement.Predictor.
type Predictor interface {
	Predict(ctx context.Context, userID string) (*models.UserEngagementPrediction, error)
}

// Modeler triggers a subscription value analysis. Satisfied by
// *valuation.Modeler.
type Modeler interface {
	Model(ctx context.Context, userID string) (*models.SubscriptionValueModel, error)
}

// Config tunes the HTTP surface.
type Config struct {
	RateLimitRequests int
	RateLimitWindow   time.Duration
}

// Router builds the HTTP handler over the predictive engine.
type Router struct {
	cfg       Config
	store     *store.Store
	analyzer  Analyzer
	predictor Predictor
	modeler   Modeler
	logger    zerolog.Logger
}

// NewRouter creates the API router.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewRouter(
	cfg Config,
	st *store.Store,
	analyzer Analyzer,
	predictor Predictor,
	modeler Modeler,
	logger zerolog.Logger,
) *Router {
	return &Router{
		cfg:       cfg,
		store:     st,
		analyzer:  analyzer,
		predictor: predictor,
		modeler:   modeler,
		logger:    logger.With().Str("component", "api").Logger(),
	}
}

// Handler assembles the Chi route tree.
func (rt *Router) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(correlationID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)

	r.Get("/healthz", rt.health)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		if rt.cfg.RateLimitRequests > 0 {
			r.Use(httprate.LimitByIP(rt.cfg.RateLimitRequests, rt.cfg.RateLimitWindow))
		}

		r.Route("/users/{userID}", func(r chi.Router) {
			r.Post("/churn/analyze", rt.analyzeChurn)
			r.Get("/churn", rt.getChurnProfile)

			r.Post("/engagement/predict", rt.predictEngagement)
			r.Get("/engagement", rt.getEngagementPrediction)

			r.Post("/value/analyze", rt.analyzeValue)
			r.Get("/value", rt.getValueModel)

			r.Get("/interventions", rt.getInterventions)
		})

		r.Get("/models", rt.getModels)
	})

	return r
}

// correlationID carries chi's request ID into the logging context so log
// lines from analysis, dispatch, and persistence tie back to one request.
func correlationID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := chimiddleware.GetReqID(r.Context())
		if id == "" {
			id = logging.NewCorrelationID()
		}
		ctx := logging.WithCorrelationID(r.Context(), id)
		logger := logging.Ctx(ctx)
		logger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Msg("request received")
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requestLogger enriches the router logger with the request correlation ID.
func (rt *Router) requestLogger(r *http.Request) zerolog.Logger {
	if id := logging.CorrelationID(r.Context()); id != "" {
		return rt.logger.With().Str("correlation_id", id).Logger()
	}
	return rt.logger
}

func (rt *Router) health(w http.ResponseWriter, _ *http.Request) {
	rt.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) analyzeChurn(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	profile, err := rt.analyzer.Analyze(r.Context(), userID)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	rt.writeJSON(w, http.StatusOK, profile)
}

func (rt *Router) getChurnProfile(w http.ResponseWriter, r *http.Request) {
	profile, err := rt.store.ChurnProfile(chi.URLParam(r, "userID"))
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	rt.writeJSON(w, http.StatusOK, profile)
}

func (rt *Router) predictEngagement(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	prediction, err := rt.predictor.Predict(r.Context(), userID)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	rt.writeJSON(w, http.StatusOK, prediction)
}

func (rt *Router) getEngagementPrediction(w http.ResponseWriter, r *http.Request) {
	prediction, err := rt.store.EngagementPrediction(chi.URLParam(r, "userID"))
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	rt.writeJSON(w, http.StatusOK, prediction)
}

func (rt *Router) analyzeValue(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	model, err := rt.modeler.Model(r.Context(), userID)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	rt.writeJSON(w, http.StatusOK, model)
}

func (rt *Router) getValueModel(w http.ResponseWriter, r *http.Request) {
	model, err := rt.store.ValueModel(chi.URLParam(r, "userID"))
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	rt.writeJSON(w, http.StatusOK, model)
}

func (rt *Router) getInterventions(w http.ResponseWriter, r *http.Request) {
	history := rt.store.InterventionHistory(chi.URLParam(r, "userID"))
	rt.writeJSON(w, http.StatusOK, history)
}

func (rt *Router) getModels(w http.ResponseWriter, _ *http.Request) {
	rt.writeJSON(w, http.StatusOK, rt.store.Models())
}

func (rt *Router) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		rt.logger.Warn().Err(err).Msg("response encode failed")
	}
}

// writeError maps engine errors onto HTTP statuses: missing artifacts are
// 404, upstream input failures are 502, everything else is 500.
func (rt *Router) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, store.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, churn.ErrAnalysisFailed),
		errors.Is(err, engagement.ErrPredictionFailed),
		errors.Is(err, valuation.ErrValuationFailed):
		status = http.StatusBadGateway
	}

	if status == http.StatusInternalServerError {
		logger := rt.requestLogger(r)
		logger.Error().Err(err).Msg("request failed")
	}

	rt.writeJSON(w, status, map[string]string{"error": err.Error()})
}
