// Package snapshot defines the persisted query-result cache and its storage
// backends (local JSON file, Redis).
package snapshot

// Row is one record returned by the analytics source, kept exactly as
// decoded with no schema validation.
type Row map[string]any

// QueryEntry holds the cached result set for one Dune query.
type QueryEntry struct {
	// Rows is the full result set from the last successful fetch.
	// It is replaced wholesale on refresh, never merged.
	Rows []Row `json:"rows"`

	// LastUpdated is the generation marker of the last successful fetch,
	// in milliseconds since epoch. Entries updated in the same refresh pass
	// share one value.
	LastUpdated int64 `json:"lastUpdated"`
}

// Empty reports whether the entry has never been successfully populated.
func (e *QueryEntry) Empty() bool {
	return len(e.Rows) == 0
}

// Snapshot is the persisted cache document.
type Snapshot struct {
	// Queries maps Dune query id to its cached entry.
	Queries map[string]*QueryEntry `json:"queries"`

	// InitialFetchDone is true once the very first population completed.
	InitialFetchDone bool `json:"initialFetchDone"`

	// UpdateCountToday counts refresh passes consumed in the current UTC day.
	UpdateCountToday int `json:"updateCountToday"`

	// LastUpdateDay is the start of the UTC day (ms since epoch) the counter
	// was last reset or consumed in.
	LastUpdateDay int64 `json:"lastUpdateDay"`
}

// New returns an empty snapshot.
func New() *Snapshot {
	return &Snapshot{
		Queries: make(map[string]*QueryEntry),
	}
}

// Entry returns the cache entry for queryID, lazily initializing an empty
// entry if absent.
func (s *Snapshot) Entry(queryID string) *QueryEntry {
	if s.Queries == nil {
		s.Queries = make(map[string]*QueryEntry)
	}
	entry, ok := s.Queries[queryID]
	if !ok {
		entry = &QueryEntry{}
		s.Queries[queryID] = entry
	}
	return entry
}
