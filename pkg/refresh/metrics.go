package refresh

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// passes counts refresh checks by outcome.
	passes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "frame_refresh_passes_total",
			Help: "Total refresh checks by outcome",
		},
		[]string{"outcome"}, // "completed", "not_due", "budget_exhausted", "failed"
	)

	// droppedTriggers counts triggers dropped because a pass was in flight.
	droppedTriggers = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "frame_refresh_dropped_triggers_total",
			Help: "Total refresh triggers dropped due to a pass already in flight",
		},
	)

	// queryFailures counts per-query fetch failures during refresh passes.
	queryFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "frame_refresh_query_failures_total",
			Help: "Total per-query fetch failures during refresh passes",
		},
		[]string{"query_id"},
	)

	// updateCount mirrors the persisted daily refresh counter.
	updateCount = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "frame_refresh_update_count_today",
			Help: "Refresh passes consumed in the current UTC day",
		},
	)

	// passDuration observes wall time of refresh checks.
	passDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "frame_refresh_pass_duration_seconds",
			Help:    "Duration of refresh checks in seconds",
			Buckets: []float64{0.01, 0.1, 0.5, 1, 5, 30, 60, 180, 300},
		},
	)
)
