package snapshot

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// loadFallbacks tracks loads that fell back to an empty snapshot.
	loadFallbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "frame_snapshot_load_fallbacks_total",
			Help: "Total number of snapshot loads that fell back to an empty snapshot",
		},
		[]string{"reason"}, // "missing", "parse", "redis"
	)

	// saves tracks successful snapshot saves.
	saves = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "frame_snapshot_saves_total",
			Help: "Total number of successful snapshot saves",
		},
	)

	// storeErrors tracks snapshot store operation errors.
	storeErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "frame_snapshot_errors_total",
			Help: "Total number of snapshot store operation errors",
		},
		[]string{"operation"},
	)

	// sizeBytes tracks the serialized snapshot size by backend.
	sizeBytes = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "frame_snapshot_size_bytes",
			Help: "Serialized size of the last saved snapshot in bytes",
		},
		[]string{"backend"}, // "file", "redis"
	)
)
