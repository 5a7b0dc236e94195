package refresh

import (
	"strconv"
	"strings"

	"github.com/basenuts/nut-state/pkg/snapshot"
)

// CarryColumn is the derived column holding the per-user cumulative excess.
const CarryColumn = "cumulative_excess"

// carryForwardExcess merges the derived cumulative-excess figure from the
// previous rows into the freshly fetched ones.
//
// Raw rows are replaced wholesale on refresh, so this derived figure is the
// one value carried forward explicitly: for each user key the growth of the
// over-allowance excess since the previous refresh is added to the carried
// total. A shrinking raw value (the source resets daily) adds nothing.
func carryForwardExcess(oldRows, newRows []snapshot.Row, column string, ceiling int64) []snapshot.Row {
	if column == "" || len(newRows) == 0 {
		return newRows
	}

	previous := make(map[string]snapshot.Row, len(oldRows))
	for _, row := range oldRows {
		if key := userKey(row); key != "" {
			previous[key] = row
		}
	}

	for _, row := range newRows {
		key := userKey(row)
		if key == "" {
			continue
		}

		var carried, oldOver int64
		if old, ok := previous[key]; ok {
			carried = old.Int64(CarryColumn)
			oldOver = overAllowance(old.Int64(column), ceiling)
		}

		newOver := overAllowance(row.Int64(column), ceiling)
		if growth := newOver - oldOver; growth > 0 {
			carried += growth
		}
		row[CarryColumn] = carried
	}

	return newRows
}

func overAllowance(value, ceiling int64) int64 {
	if value > ceiling {
		return value - ceiling
	}
	return 0
}

// userKey identifies the user a row belongs to, preferring the primary id.
func userKey(row snapshot.Row) string {
	for _, column := range []string{"fid", "parent_fid"} {
		v, ok := row[column]
		if !ok {
			continue
		}
		switch id := v.(type) {
		case float64:
			return strconv.FormatInt(int64(id), 10)
		case string:
			if trimmed := strings.TrimSpace(id); trimmed != "" {
				return trimmed
			}
		}
	}
	return ""
}
