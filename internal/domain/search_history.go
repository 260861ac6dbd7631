package domain

import (
	"fmt"
	"strconv"
	"time"
)

// SearchFilters captures the facet selections active when a search was run.
type SearchFilters struct {
	Categories []string `json:"categories,omitempty"`
	Equipment  []string `json:"equipment,omitempty"`
	Muscles    []string `json:"muscles,omitempty"`
	Difficulty string   `json:"difficulty,omitempty"`
}

// IsEmpty reports whether no facet is selected.
func (f *SearchFilters) IsEmpty() bool {
	if f == nil {
		return true
	}
	return len(f.Categories) == 0 && len(f.Equipment) == 0 && len(f.Muscles) == 0 && f.Difficulty == ""
}

// NewSearch is a completed search as reported by a caller, before it is stamped.
type NewSearch struct {
	Query   string         `json:"query"`
	Filters *SearchFilters `json:"filters,omitempty"`
}

// SearchHistoryEntry is one completed search in a profile's history ledger.
// Entries are never mutated after they are written.
type SearchHistoryEntry struct {
	ID        string         `json:"id"`
	Query     string         `json:"query"`
	Timestamp int64          `json:"timestamp"` // epoch milliseconds
	Filters   *SearchFilters `json:"filters,omitempty"`
}

// Time returns the entry timestamp as a time.Time.
func (e *SearchHistoryEntry) Time() time.Time {
	return time.UnixMilli(e.Timestamp)
}

// historyIDWidth keeps ids the same width so key order matches insertion order.
const historyIDWidth = 20

// FormatHistoryID renders a store sequence number as a history entry id.
func FormatHistoryID(seq uint64) string {
	return fmt.Sprintf("%0*d", historyIDWidth, seq)
}

// ParseHistoryID is the inverse of FormatHistoryID.
func ParseHistoryID(id string) (uint64, error) {
	return strconv.ParseUint(id, 10, 64)
}

// FormatTimestampKey renders epoch milliseconds so that lexical order equals numeric order.
// Negative timestamps clamp to zero.
func FormatTimestampKey(ms int64) string {
	if ms < 0 {
		ms = 0
	}
	return fmt.Sprintf("%019d", ms)
}

// AnalyticsRecord aggregates every use of one normalized query.
type AnalyticsRecord struct {
	QueryKey      string `json:"query_key"`
	OriginalQuery string `json:"original_query"`
	Count         int    `json:"count"`
	FirstUsed     int64  `json:"first_used"` // epoch milliseconds
	LastUsed      int64  `json:"last_used"`  // epoch milliseconds
}

// PopularSearch is the read-side projection of an AnalyticsRecord.
type PopularSearch struct {
	Query string `json:"query"`
	Count int    `json:"count"`
}
