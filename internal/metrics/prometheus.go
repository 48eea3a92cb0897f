package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "alert_engine_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "alert_engine_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"method", "endpoint", "status"},
	)

	// Engine metrics
	RuleEvaluationsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "alert_engine_rule_evaluations_total",
			Help: "Total number of per-subject rule evaluations",
		},
	)

	AlertsCreatedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "alert_engine_alerts_created_total",
			Help: "Total number of alerts created",
		},
		[]string{"priority"},
	)

	EscalationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "alert_engine_escalations_total",
			Help: "Total number of alert escalations",
		},
		[]string{"origin"}, // origin: manual, auto, rule_action
	)

	RemindersTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "alert_engine_reminders_total",
			Help: "Total number of reminder notifications emitted",
		},
	)

	SchedulerTickDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "alert_engine_scheduler_tick_duration_seconds",
			Help:    "Time taken to run one scheduler tick",
			Buckets: []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
	)
)
