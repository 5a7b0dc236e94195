package frame

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	responsesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "frame_responses_total",
			Help: "Frame responses served, by outcome",
		},
		[]string{"outcome"},
	)

	identityFallbacks = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "frame_identity_fallbacks_total",
			Help: "Requests served with display defaults because the identity lookup failed",
		},
	)
)
