// Package refresh decides when the query-result cache is re-populated from
// Dune and performs the refresh with mutual exclusion and a daily budget.
package refresh

import (
	"time"

	"github.com/basenuts/nut-state/pkg/snapshot"
)

// Scheduling defaults.
const (
	// DefaultDailyBudget is the maximum number of refresh passes per UTC day.
	DefaultDailyBudget = 6

	// DefaultTolerance is how far a check may drift from a configured
	// update offset and still count as inside the window.
	DefaultTolerance = 5 * time.Minute

	// DefaultCooldown is the minimum time since an entry's last successful
	// update before it may be refreshed again. Prevents a second refresh
	// inside the same update window.
	DefaultCooldown = 30 * time.Minute

	// DefaultPollDelay is the fixed wait before the single poll of an
	// asynchronous query execution.
	DefaultPollDelay = 3 * time.Minute
)

// DefaultUpdateOffsets are the daily update times in minutes since UTC
// midnight: 03:00, 09:00, 15:00, 18:00, 21:00.
var DefaultUpdateOffsets = []int{180, 540, 900, 1080, 1260}

// utcDayStart returns the start of t's UTC day in milliseconds since epoch.
func utcDayStart(t time.Time) int64 {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC).UnixMilli()
}

// minutesIntoDay returns whole minutes since UTC midnight.
func minutesIntoDay(t time.Time) int {
	t = t.UTC()
	return t.Hour()*60 + t.Minute()
}

// withinUpdateWindow reports whether minute falls within tolerance of any
// configured update offset.
func withinUpdateWindow(minute int, offsets []int, tolerance int) bool {
	for _, offset := range offsets {
		diff := minute - offset
		if diff < 0 {
			diff = -diff
		}
		if diff <= tolerance {
			return true
		}
	}
	return false
}

// entryDue evaluates the update-due predicate for one cache entry.
//
// An entry that has never been populated is always due, regardless of
// time-of-day windows and cooldowns. Otherwise both gates must pass: the
// current UTC wall-clock time is inside an update window, and at least the
// cooldown has elapsed since the entry's last successful update.
func entryDue(entry *snapshot.QueryEntry, now time.Time, offsets []int, tolerance, cooldown time.Duration) bool {
	if entry.Empty() {
		return true
	}

	if !withinUpdateWindow(minutesIntoDay(now), offsets, int(tolerance.Minutes())) {
		return false
	}

	elapsed := now.UnixMilli() - entry.LastUpdated
	return elapsed >= cooldown.Milliseconds()
}
