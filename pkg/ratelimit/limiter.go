// Package ratelimit implements inbound request admission control with two
// sliding windows (per-second and per-minute) and a load-shedding margin
// below the short-window ceiling.
package ratelimit

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Default window ceilings.
const (
	// DefaultShortLimit is the maximum number of recorded admissions per second.
	DefaultShortLimit = 10

	// DefaultLongLimit is the maximum number of recorded admissions per minute.
	DefaultLongLimit = 30

	// DefaultLoadThreshold is the margin below the short-window ceiling at
	// which admitted requests are flagged for load shedding.
	DefaultLoadThreshold = 2
)

// Admission is the outcome of a rate limit check.
type Admission struct {
	// Allowed reports whether the request may proceed at all.
	Allowed bool

	// LoadShedding reports that the request was admitted near capacity and
	// the caller should serve a degraded response without doing expensive work.
	LoadShedding bool
}

// Config holds limiter configuration.
type Config struct {
	// ShortWindow is the duration of the short window (default: 1s).
	ShortWindow time.Duration

	// ShortLimit is the short window's admission ceiling.
	ShortLimit int

	// LongWindow is the duration of the long window (default: 60s).
	LongWindow time.Duration

	// LongLimit is the long window's admission ceiling.
	LongLimit int

	// LoadThreshold is how far below ShortLimit the load-shedding band starts.
	// With ShortLimit=10 and LoadThreshold=2, occupancy 8 and 9 shed load.
	LoadThreshold int
}

// DefaultConfig returns the limiter configuration used in production.
func DefaultConfig() Config {
	return Config{
		ShortWindow:   1 * time.Second,
		ShortLimit:    DefaultShortLimit,
		LongWindow:    60 * time.Second,
		LongLimit:     DefaultLongLimit,
		LoadThreshold: DefaultLoadThreshold,
	}
}

// Limiter gates inbound requests using two sliding timestamp windows.
// State is in-memory only and resets on process restart.
type Limiter struct {
	mu     sync.Mutex
	short  []time.Time
	long   []time.Time
	config Config
	logger zerolog.Logger

	// now is swappable for tests.
	now func() time.Time
}

// New creates a new limiter.
func New(cfg Config, logger zerolog.Logger) *Limiter {
	if cfg.ShortWindow <= 0 {
		cfg.ShortWindow = 1 * time.Second
	}
	if cfg.LongWindow <= 0 {
		cfg.LongWindow = 60 * time.Second
	}
	if cfg.ShortLimit <= 0 {
		cfg.ShortLimit = DefaultShortLimit
	}
	if cfg.LongLimit <= 0 {
		cfg.LongLimit = DefaultLongLimit
	}
	if cfg.LoadThreshold < 0 {
		cfg.LoadThreshold = 0
	}

	return &Limiter{
		config: cfg,
		logger: logger,
		now:    time.Now,
	}
}

// Check evaluates one inbound request against both windows.
//
// Rejected and load-shed requests do not record a timestamp, so neither
// consumes window capacity. Only fully admitted requests count.
func (l *Limiter) Check() Admission {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.short = evict(l.short, now.Add(-l.config.ShortWindow))
	l.long = evict(l.long, now.Add(-l.config.LongWindow))

	if len(l.short) >= l.config.ShortLimit || len(l.long) >= l.config.LongLimit {
		requestsRejected.Inc()
		l.logger.Warn().
			Int("short_occupancy", len(l.short)).
			Int("long_occupancy", len(l.long)).
			Msg("Request rejected by rate limiter")
		return Admission{Allowed: false}
	}

	if len(l.short) >= l.config.ShortLimit-l.config.LoadThreshold {
		requestsShed.Inc()
		l.logger.Warn().
			Int("short_occupancy", len(l.short)).
			Int("short_limit", l.config.ShortLimit).
			Msg("Load shedding active")
		return Admission{Allowed: true, LoadShedding: true}
	}

	l.short = append(l.short, now)
	l.long = append(l.long, now)
	requestsAdmitted.Inc()
	windowOccupancy.WithLabelValues("short").Set(float64(len(l.short)))
	windowOccupancy.WithLabelValues("long").Set(float64(len(l.long)))

	return Admission{Allowed: true}
}

// evict trims timestamps at or before cutoff from the front of the window.
// Timestamps are appended in increasing order, so this is a prefix trim.
func evict(window []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(window) && !window[i].After(cutoff) {
		i++
	}
	return window[i:]
}
