package ratelimit

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// requestsAdmitted counts requests admitted and recorded in both windows.
	requestsAdmitted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "frame_requests_admitted_total",
			Help: "Total number of requests fully admitted by the rate limiter",
		},
	)

	// requestsShed counts requests admitted in degraded (load-shedding) mode.
	requestsShed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "frame_requests_shed_total",
			Help: "Total number of requests admitted with load shedding",
		},
	)

	// requestsRejected counts requests rejected outright.
	requestsRejected = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "frame_requests_rejected_total",
			Help: "Total number of requests rejected by the rate limiter",
		},
	)

	// windowOccupancy tracks recorded admissions per window after eviction.
	windowOccupancy = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "frame_rate_limit_window_occupancy",
			Help: "Current number of recorded admissions per sliding window",
		},
		[]string{"window"}, // "short", "long"
	)
)
