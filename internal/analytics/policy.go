package analytics

import (
	"fmt"
	"time"
)

// Policy holds the retention and read limits of a Tracker.
type Policy struct {
	// HistoryTTL is the age after which a history entry is deleted.
	HistoryTTL time.Duration
	// MaxHistoryEntries caps the history ledger; older overflow is deleted.
	MaxHistoryEntries int

	// AnalyticsTTL and MinAnalyticsCount together decide when a frequency
	// record is dropped: only when it is both rarer than MinAnalyticsCount
	// and unused for longer than AnalyticsTTL.
	AnalyticsTTL      time.Duration
	MinAnalyticsCount int

	// SuggestionPool is how many recent and how many popular queries feed suggestions.
	SuggestionPool int

	// Default limits used when a caller passes limit <= 0.
	RecentLimit     int
	PopularLimit    int
	SuggestionLimit int
}

// DefaultPolicy returns the standard retention rules.
func DefaultPolicy() Policy {
	return Policy{
		HistoryTTL:        30 * 24 * time.Hour,
		MaxHistoryEntries: 20,
		AnalyticsTTL:      60 * 24 * time.Hour,
		MinAnalyticsCount: 2,
		SuggestionPool:    20,
		RecentLimit:       10,
		PopularLimit:      10,
		SuggestionLimit:   5,
	}
}

// Validate checks that every limit is usable.
func (p Policy) Validate() error {
	switch {
	case p.HistoryTTL <= 0:
		return fmt.Errorf("history TTL must be positive, got %s", p.HistoryTTL)
	case p.MaxHistoryEntries <= 0:
		return fmt.Errorf("max history entries must be positive, got %d", p.MaxHistoryEntries)
	case p.AnalyticsTTL <= 0:
		return fmt.Errorf("analytics TTL must be positive, got %s", p.AnalyticsTTL)
	case p.MinAnalyticsCount <= 0:
		return fmt.Errorf("min analytics count must be positive, got %d", p.MinAnalyticsCount)
	case p.SuggestionPool <= 0:
		return fmt.Errorf("suggestion pool must be positive, got %d", p.SuggestionPool)
	case p.RecentLimit <= 0 || p.PopularLimit <= 0 || p.SuggestionLimit <= 0:
		return fmt.Errorf("default limits must be positive")
	}
	return nil
}

// historyCutoff returns the oldest timestamp, in epoch milliseconds, that history may keep.
func (p Policy) historyCutoff(now time.Time) int64 {
	return now.Add(-p.HistoryTTL).UnixMilli()
}

// expired reports whether a frequency record is both rare and stale.
func (p Policy) expired(count int, lastUsed int64, now time.Time) bool {
	return count < p.MinAnalyticsCount && lastUsed < now.Add(-p.AnalyticsTTL).UnixMilli()
}
