// Driftline - Predictive Retention and Engagement Analytics
// Copyright 2026 Driftline Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/driftline/driftline

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus instrumentation for the retention engine:
// - Analysis latency and failures per component
// - Intervention dispatch volume and channel failures
// - Background scheduler task health
// - Predictive store persistence errors

var (
	AnalysisDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "driftline_analysis_duration_seconds",
			Help:    "Duration of predictive analysis calls in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"component"}, // "churn", "engagement", "valuation"
	)

	AnalysisErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "driftline_analysis_errors_total",
			Help: "Total number of failed predictive analysis calls",
		},
		[]string{"component"},
	)

	InterventionsTriggered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "driftline_interventions_triggered_total",
			Help: "Total number of retention interventions triggered",
		},
		[]string{"type", "category"},
	)

	InterventionDispatchFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "driftline_intervention_dispatch_failures_total",
			Help: "Total number of failed outbound intervention dispatches",
		},
		[]string{"channel"},
	)

	SchedulerTaskRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "driftline_scheduler_task_runs_total",
			Help: "Total number of background scheduler task executions",
		},
		[]string{"task"}, // "churn_sweep", "engagement_sweep", "reconciliation"
	)

	SchedulerTaskFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "driftline_scheduler_task_failures_total",
			Help: "Total number of background scheduler task failures",
		},
		[]string{"task"},
	)

	StoreSaveErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "driftline_store_save_errors_total",
			Help: "Total number of failed predictive record saves",
		},
	)

	StoreLoadErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "driftline_store_load_errors_total",
			Help: "Total number of failed predictive record loads",
		},
	)

	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "driftline_analytics_events_published_total",
			Help: "Total number of analytics events published",
		},
		[]string{"event"},
	)
)
