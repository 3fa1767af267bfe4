// Driftline - Predictive Retention and Engagement Analytics
// Copyright 2026 Driftline Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/driftline/driftline

// Package main is the entry point for the Driftline engine.
//
// Driftline watches how sailors actually use the app - weather checks,
// race logs, crew connections - and turns that telemetry into churn risk
// profiles, engagement forecasts, and subscription value models, firing
// retention interventions before a user lapses.
//
// Components start in this order:
//
//  1. Configuration: Koanf v2 layering defaults, config.yaml, and
//     DRIFTLINE_-prefixed environment variables
//  2. Storage: BadgerDB holding the persisted predictive snapshot
//  3. Analytics bus: in-process Watermill pub/sub for engine events
//  4. Predictive components: churn analyzer, engagement predictor,
//     subscription value modeler, intervention orchestrator
//  5. Scheduler: background churn/engagement sweeps and intervention
//     outcome reconciliation
//  6. HTTP server: query and trigger surface plus /metrics
//
// SIGINT and SIGTERM trigger graceful shutdown: the HTTP server drains,
// the scheduler stops, and the final snapshot is already durable because
// every mutation writes through.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/driftline/driftline/internal/analytics"
	"github.com/driftline/driftline/internal/api"
	"github.com/driftline/driftline/internal/churn"
	"github.com/driftline/driftline/internal/config"
	"github.com/driftline/driftline/internal/engagement"
	"github.com/driftline/driftline/internal/intervention"
	"github.com/driftline/driftline/internal/logging"
	"github.com/driftline/driftline/internal/store"
	"github.com/driftline/driftline/internal/supervisor"
	"github.com/driftline/driftline/internal/telemetry"
	"github.com/driftline/driftline/internal/valuation"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "driftlined:", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "path to config file (optional)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})
	logger := logging.Logger()
	mainLog := logging.Component("main")
	mainLog.Info().Str("addr", fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)).Msg("driftline starting")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	storage, err := store.OpenBadger(cfg.Storage.Path, logger)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer func() {
		if cerr := storage.Close(); cerr != nil {
			mainLog.Error().Err(cerr).Msg("storage close failed")
		}
	}()

	st := store.New(ctx, storage, logger)

	bus := analytics.NewBus(logger)
	defer func() {
		if cerr := bus.Close(); cerr != nil {
			mainLog.Warn().Err(cerr).Msg("analytics bus close failed")
		}
	}()

	tp, sp := buildProviders(cfg, logger)

	catalog := intervention.DefaultCatalog()
	channels := intervention.BuildChannels(
		cfg.Channels.PushURL,
		cfg.Channels.LoyaltyURL,
		cfg.Channels.BillingURL,
		cfg.Channels.Timeout,
		logger,
	)
	orchestrator := intervention.NewOrchestrator(catalog, channels, st, sp, bus, logger)

	analyzer := churn.NewAnalyzer(tp, sp, st, orchestrator, catalog, bus, logger)
	predictor := engagement.NewPredictor(tp, st, logger)
	modeler := valuation.NewModeler(tp, sp, st, bus, logger)

	scheduler := store.NewScheduler(store.SchedulerConfig{
		ChurnInterval:      cfg.Scheduler.ChurnInterval,
		EngagementInterval: cfg.Scheduler.EngagementInterval,
		ReconcileInterval:  cfg.Scheduler.ReconcileInterval,
		FollowUpWindow:     cfg.Scheduler.FollowUpWindow,
	}, st, analyzer, predictor, logger)

	router := api.NewRouter(api.Config{
		RateLimitRequests: cfg.API.RateLimitRequests,
		RateLimitWindow:   cfg.API.RateLimitWindow,
	}, st, analyzer, predictor, modeler, logger)
	server := api.NewServer(cfg.Server.Host, cfg.Server.Port, cfg.Server.Timeout, router.Handler(), logger)

	slogger := slog.New(slog.NewJSONHandler(os.Stderr, nil))
	tree := supervisor.NewTree(slogger, supervisor.DefaultTreeConfig())
	tree.AddBackground(bus)
	tree.AddBackground(scheduler)
	tree.AddAPI(server)

	errCh := tree.ServeBackground(ctx)

	select {
	case <-ctx.Done():
		mainLog.Info().Msg("shutdown signal received")
		<-errCh
	case err := <-errCh:
		if err != nil && ctx.Err() == nil {
			return fmt.Errorf("supervisor exited: %w", err)
		}
	}

	mainLog.Info().Msg("driftline stopped")
	return nil
}

// buildProviders wires the telemetry and subscription sources. With no
// telemetry URL configured the engine runs standalone against an empty
// static provider, which keeps development and tests broker-free.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func buildProviders(cfg *config.Config, logger zerolog.Logger) (telemetry.Provider, telemetry.SubscriptionProvider) {
	if cfg.Telemetry.URL == "" {
		logger.Warn().Msg("no telemetry url configured, using empty static provider")
		static := telemetry.NewStaticProvider()
		return static, static
	}
	client := telemetry.NewClient(cfg.Telemetry.URL, cfg.Telemetry.SubscriptionURL, cfg.Telemetry.Timeout)
	return client, client
}
