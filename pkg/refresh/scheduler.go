package refresh

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/basenuts/nut-state/pkg/snapshot"
)

// Fetcher obtains precomputed rows for a query (synchronous variant).
type Fetcher interface {
	Rows(ctx context.Context, queryID string) ([]snapshot.Row, error)
}

// Executor starts an external query execution and polls its result
// (asynchronous variant).
type Executor interface {
	Execute(ctx context.Context, queryID string) (string, error)
	ExecutionRows(ctx context.Context, executionID string) ([]snapshot.Row, error)
}

// Config holds scheduler configuration.
type Config struct {
	// QueryIDs are the managed Dune query identifiers.
	QueryIDs []string

	// UpdateOffsets are the daily update times in minutes since UTC midnight.
	UpdateOffsets []int

	// Tolerance is the half-width of each update window.
	Tolerance time.Duration

	// Cooldown is the minimum time since an entry's last update before it
	// may refresh again.
	Cooldown time.Duration

	// DailyBudget caps refresh passes per UTC day.
	DailyBudget int

	// PollDelay is the fixed wait before the single poll of an async
	// execution.
	PollDelay time.Duration

	// ExcessQueryID names the query whose rows carry the per-user
	// cumulative-excess figure across refreshes. Empty disables carry.
	ExcessQueryID string

	// ExcessColumn is the raw column the excess is derived from.
	ExcessColumn string

	// AllowanceCeiling is the per-user allowance the excess is measured
	// against.
	AllowanceCeiling int64
}

// DefaultConfig returns the production scheduling policy for the given
// managed queries.
func DefaultConfig(queryIDs []string) Config {
	return Config{
		QueryIDs:      queryIDs,
		UpdateOffsets: DefaultUpdateOffsets,
		Tolerance:     DefaultTolerance,
		Cooldown:      DefaultCooldown,
		DailyBudget:   DefaultDailyBudget,
		PollDelay:     DefaultPollDelay,
	}
}

// Scheduler owns the in-memory snapshot and re-populates it from Dune.
//
// At most one refresh pass is ever in flight: a trigger arriving while a
// pass runs is dropped, not queued. Readers get a stable snapshot pointer
// whose entries are never mutated after publication.
type Scheduler struct {
	flight  sync.Mutex // single-flight guard; TryLock only
	stateMu sync.RWMutex
	snap    *snapshot.Snapshot

	store    snapshot.Store
	fetcher  Fetcher
	executor Executor
	config   Config
	logger   zerolog.Logger

	// now and wait are swappable for tests.
	now  func() time.Time
	wait func(ctx context.Context, d time.Duration) error
}

// New creates a scheduler using the synchronous precomputed-results fetch,
// loading the initial snapshot from the store.
func New(ctx context.Context, store snapshot.Store, fetcher Fetcher, cfg Config, logger zerolog.Logger) *Scheduler {
	s := newScheduler(ctx, store, cfg, logger)
	s.fetcher = fetcher
	return s
}

// NewAsync creates a scheduler using the execute-then-poll fetch.
func NewAsync(ctx context.Context, store snapshot.Store, executor Executor, cfg Config, logger zerolog.Logger) *Scheduler {
	s := newScheduler(ctx, store, cfg, logger)
	s.executor = executor
	return s
}

func newScheduler(ctx context.Context, store snapshot.Store, cfg Config, logger zerolog.Logger) *Scheduler {
	if len(cfg.UpdateOffsets) == 0 {
		cfg.UpdateOffsets = DefaultUpdateOffsets
	}
	if cfg.Tolerance <= 0 {
		cfg.Tolerance = DefaultTolerance
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = DefaultCooldown
	}
	if cfg.DailyBudget <= 0 {
		cfg.DailyBudget = DefaultDailyBudget
	}
	if cfg.PollDelay <= 0 {
		cfg.PollDelay = DefaultPollDelay
	}

	return &Scheduler{
		snap:   store.Load(ctx),
		store:  store,
		config: cfg,
		logger: logger,
		now:    time.Now,
		wait:   waitFor,
	}
}

// Current returns the live snapshot for read-side projection. Callers must
// not mutate it.
func (s *Scheduler) Current() *snapshot.Snapshot {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.snap
}

// TryRefresh runs one refresh check, unless a pass is already in flight, in
// which case the trigger is dropped. Reports whether the check ran.
func (s *Scheduler) TryRefresh(ctx context.Context) bool {
	if !s.flight.TryLock() {
		droppedTriggers.Inc()
		s.logger.Info().Msg("Refresh already in flight, dropping trigger")
		return false
	}
	defer s.flight.Unlock()

	s.refresh(ctx)
	return true
}

// Run triggers a refresh check on a fixed interval until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.TryRefresh(ctx)
		}
	}
}

// refresh performs one pass: day rollover, budget gate, due predicate,
// fetch all managed queries, publish and persist.
func (s *Scheduler) refresh(ctx context.Context) {
	start := s.now()
	wall := time.Now()
	defer func() {
		passDuration.Observe(time.Since(wall).Seconds())
	}()

	snap := s.working()

	day := utcDayStart(start)
	if snap.LastUpdateDay < day {
		snap.UpdateCountToday = 0
		snap.LastUpdateDay = day
		updateCount.Set(0)
		s.publish(snap)
		snap = s.working()
		s.logger.Info().Msg("New UTC day, update count reset")
	}

	if snap.UpdateCountToday >= s.config.DailyBudget {
		passes.WithLabelValues("budget_exhausted").Inc()
		s.logger.Info().
			Int("update_count", snap.UpdateCountToday).
			Int("budget", s.config.DailyBudget).
			Msg("Daily update budget exhausted, skipping refresh")
		return
	}

	due := false
	for _, queryID := range s.config.QueryIDs {
		if entryDue(snap.Entry(queryID), start, s.config.UpdateOffsets, s.config.Tolerance, s.config.Cooldown) {
			due = true
			break
		}
	}
	if !due {
		passes.WithLabelValues("not_due").Inc()
		s.logger.Debug().Msg("No entry due, skipping refresh")
		return
	}

	// One generation marker for every entry updated in this pass, even
	// though queries are fetched sequentially.
	generation := start.UnixMilli()
	updated := 0

	for _, queryID := range s.config.QueryIDs {
		rows, err := s.fetchRows(ctx, queryID)
		if err != nil {
			// Never regress from populated to empty: the entry keeps its
			// old rows and old generation marker.
			queryFailures.WithLabelValues(queryID).Inc()
			s.logger.Warn().Err(err).Str("query_id", queryID).Msg("Fetch failed, keeping stale rows")
			continue
		}

		if queryID == s.config.ExcessQueryID {
			rows = carryForwardExcess(snap.Entry(queryID).Rows, rows, s.config.ExcessColumn, s.config.AllowanceCeiling)
		}

		snap.Queries[queryID] = &snapshot.QueryEntry{Rows: rows, LastUpdated: generation}
		updated++
		s.logger.Info().
			Str("query_id", queryID).
			Int("rows", len(rows)).
			Msg("Stored fresh rows")
	}

	if updated == 0 {
		passes.WithLabelValues("failed").Inc()
		s.logger.Warn().Msg("Refresh pass updated no entries, will retry on next eligible check")
		return
	}

	snap.InitialFetchDone = true
	snap.UpdateCountToday++
	snap.LastUpdateDay = day
	updateCount.Set(float64(snap.UpdateCountToday))
	s.publish(snap)

	if err := s.store.Save(ctx, snap); err != nil {
		s.logger.Error().Err(err).Msg("Failed to persist snapshot")
	}

	passes.WithLabelValues("completed").Inc()
	s.logger.Info().
		Int("queries_updated", updated).
		Int("update_count", snap.UpdateCountToday).
		Dur("duration", time.Since(wall)).
		Msg("Refresh pass complete")
}

// fetchRows obtains fresh rows for one query via the configured variant.
// In the async variant, a single poll follows the fixed delay; an execution
// still running at that poll is abandoned for this pass.
func (s *Scheduler) fetchRows(ctx context.Context, queryID string) ([]snapshot.Row, error) {
	if s.executor == nil {
		return s.fetcher.Rows(ctx, queryID)
	}

	executionID, err := s.executor.Execute(ctx, queryID)
	if err != nil {
		return nil, err
	}

	if err := s.wait(ctx, s.config.PollDelay); err != nil {
		return nil, err
	}

	return s.executor.ExecutionRows(ctx, executionID)
}

// working returns a private copy of the current snapshot. Entry pointers are
// shared but never mutated; updated entries get new values.
func (s *Scheduler) working() *snapshot.Snapshot {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()

	cp := &snapshot.Snapshot{
		Queries:          make(map[string]*snapshot.QueryEntry, len(s.snap.Queries)),
		InitialFetchDone: s.snap.InitialFetchDone,
		UpdateCountToday: s.snap.UpdateCountToday,
		LastUpdateDay:    s.snap.LastUpdateDay,
	}
	for queryID, entry := range s.snap.Queries {
		cp.Queries[queryID] = entry
	}
	return cp
}

// publish swaps the live snapshot pointer.
func (s *Scheduler) publish(snap *snapshot.Snapshot) {
	s.stateMu.Lock()
	s.snap = snap
	s.stateMu.Unlock()
}

// waitFor suspends for d, remaining responsive to ctx cancellation.
func waitFor(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
