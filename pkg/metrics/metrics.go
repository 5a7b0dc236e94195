// Package metrics provides the centralized Prometheus registry reference for
// the frame service. All metrics are defined in their respective packages
// (ratelimit, snapshot, dune, refresh, frame) to maintain modularity and
// avoid circular dependencies.
//
// This package provides documentation and reference for all available metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry is the default Prometheus registry used by the frame service.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Metrics Documentation
//
// Rate Limit Metrics (pkg/ratelimit):
//   - frame_requests_admitted_total (Counter): Requests admitted by both windows
//   - frame_requests_shed_total (Counter): Requests deflected under load
//   - frame_requests_rejected_total (Counter): Requests rejected by a full window
//   - frame_rate_limit_window_occupancy{window} (Gauge): Recorded admissions per window
//
// Snapshot Metrics (pkg/snapshot):
//   - frame_snapshot_load_fallbacks_total{reason} (Counter): Cold starts on a missing or unreadable snapshot
//   - frame_snapshot_saves_total (Counter): Successful snapshot persists
//   - frame_snapshot_errors_total{operation} (Counter): Store operation errors
//   - frame_snapshot_size_bytes{backend} (Gauge): Serialized snapshot size
//
// Dune Client Metrics (pkg/dune):
//   - frame_dune_requests_total{endpoint, status} (Counter): Requests by endpoint and HTTP status
//   - frame_dune_request_duration_seconds{endpoint} (Histogram): Request duration by endpoint
//   - frame_dune_errors_total{class} (Counter): Errors by class (client, server, rate_limit, network, decode)
//
// Refresh Scheduler Metrics (pkg/refresh):
//   - frame_refresh_passes_total{outcome} (Counter): Refresh passes by outcome
//   - frame_refresh_dropped_triggers_total (Counter): Triggers dropped while a pass was in flight
//   - frame_refresh_query_failures_total{query_id} (Counter): Per-query fetch failures
//   - frame_refresh_update_count_today (Gauge): Budget consumed this UTC day
//   - frame_refresh_pass_duration_seconds (Histogram): Wall time per pass
//
// Frame Handler Metrics (pkg/frame):
//   - frame_responses_total{outcome} (Counter): Responses by outcome (ok, rejected, shed, error)
//   - frame_identity_fallbacks_total (Counter): Responses rendered with display defaults
//
// Example Prometheus Queries:
//
//   # Load shed ratio
//   sum(rate(frame_requests_shed_total[5m])) /
//   sum(rate(frame_requests_admitted_total[5m]))
//
//   # Daily budget pressure
//   frame_refresh_update_count_today >= 5
//
//   # Dune error rate
//   rate(frame_dune_errors_total[5m])
//
//   # P95 Dune latency
//   histogram_quantile(0.95, rate(frame_dune_request_duration_seconds_bucket[5m]))
//
//   # Stale serving (failed queries while passes still complete)
//   rate(frame_refresh_query_failures_total[15m])
