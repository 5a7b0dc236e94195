package snapshot

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Int64 reads a numeric column from the row. Dune serializes numbers as JSON
// numbers (decoded to float64) or, for bigints, as strings; both are
// accepted. Missing or unreadable values are 0.
func (r Row) Int64(key string) int64 {
	v, ok := r[key]
	if !ok {
		return 0
	}
	switch n := v.(type) {
	case float64:
		return int64(n)
	case int64:
		return n
	case int:
		return int64(n)
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0
		}
		return i
	case string:
		i, err := strconv.ParseInt(strings.TrimSpace(n), 10, 64)
		if err != nil {
			return 0
		}
		return i
	default:
		return 0
	}
}

// MatchesFID reports whether the row belongs to the given user: its fid or
// parent_fid column equals fid. Comparison is by decimal string form, since
// the inbound identifier arrives as a query parameter.
func (r Row) MatchesFID(fid string) bool {
	fid = strings.TrimSpace(fid)
	if fid == "" {
		return false
	}
	return columnEquals(r, "fid", fid) || columnEquals(r, "parent_fid", fid)
}

func columnEquals(r Row, key, want string) bool {
	v, ok := r[key]
	if !ok {
		return false
	}
	switch n := v.(type) {
	case float64:
		return strconv.FormatInt(int64(n), 10) == want
	case string:
		return strings.TrimSpace(n) == want
	case json.Number:
		return n.String() == want
	default:
		return fmt.Sprintf("%v", n) == want
	}
}
