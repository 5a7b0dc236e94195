// Package stats projects the cached query rows into the per-user figures
// the frame displays. It is a pure read layer: it never triggers a refresh
// and never fails, an unknown user simply gets zero values.
package stats

import (
	"github.com/basenuts/nut-state/pkg/snapshot"
)

// Default query ids for each figure.
const (
	DefaultTodayQueryID = "4816299"
	DefaultTotalQueryID = "4815993"
	DefaultSentQueryID  = "4811780"
	DefaultRankQueryID  = "4801919"
)

// Default result columns for each figure.
const (
	TodayColumn = "peanut_count"
	TotalColumn = "total_peanut_count"
	SentColumn  = "sent_peanut_count"
	RankColumn  = "rank"
)

// Queries names the cached query and column backing each figure.
type Queries struct {
	TodayQueryID string
	TotalQueryID string
	SentQueryID  string
	RankQueryID  string
}

// DefaultQueries returns the production query mapping.
func DefaultQueries() Queries {
	return Queries{
		TodayQueryID: DefaultTodayQueryID,
		TotalQueryID: DefaultTotalQueryID,
		SentQueryID:  DefaultSentQueryID,
		RankQueryID:  DefaultRankQueryID,
	}
}

// QueryIDs lists the managed query ids in display order.
func (q Queries) QueryIDs() []string {
	return []string{q.TodayQueryID, q.TotalQueryID, q.SentQueryID, q.RankQueryID}
}

// Stats is the per-user display tuple.
type Stats struct {
	Today     int64
	Total     int64
	Sent      int64
	Remaining int64
	Rank      int64
}

// Lookup scans the cached entries for rows belonging to fid and builds the
// display tuple. Absent matches yield zero values. The remaining allowance
// is clamped at zero against the given ceiling.
func Lookup(snap *snapshot.Snapshot, q Queries, fid string, ceiling int64) Stats {
	s := Stats{
		Today: findColumn(snap, q.TodayQueryID, fid, TodayColumn),
		Total: findColumn(snap, q.TotalQueryID, fid, TotalColumn),
		Sent:  findColumn(snap, q.SentQueryID, fid, SentColumn),
		Rank:  findColumn(snap, q.RankQueryID, fid, RankColumn),
	}

	s.Remaining = ceiling - s.Sent
	if s.Remaining < 0 {
		s.Remaining = 0
	}

	return s
}

// findColumn returns the named column of the first row matching fid, or 0.
func findColumn(snap *snapshot.Snapshot, queryID, fid, column string) int64 {
	entry, ok := snap.Queries[queryID]
	if !ok {
		return 0
	}
	for _, row := range entry.Rows {
		if row.MatchesFID(fid) {
			return row.Int64(column)
		}
	}
	return 0
}
