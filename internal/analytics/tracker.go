// Package analytics records completed searches per profile and derives recent,
// popular and suggested queries from them.
package analytics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/fitcoach/fitcoach-server/internal/domain"
	"github.com/fitcoach/fitcoach-server/internal/normalize"
	"github.com/fitcoach/fitcoach-server/internal/store"
)

// Options configures a Tracker. Zero fields take defaults.
type Options struct {
	Policy  *Policy
	Now     func() time.Time
	Matcher Matcher
	Logger  *slog.Logger
}

// Tracker owns one profile's history ledger and frequency index.
//
// Reads soft-fail: on a storage error they return an empty, non-nil slice
// together with the error, so callers can render "nothing" and still flag
// the degraded state.
type Tracker struct {
	handle  *store.Handle
	policy  Policy
	now     func() time.Time
	matcher Matcher
	keyer   normalize.QueryKeyer
	logger  *slog.Logger
}

// New creates a Tracker over an opened store handle.
func New(handle *store.Handle, opts Options) (*Tracker, error) {
	if handle == nil {
		return nil, errors.New("analytics: nil store handle")
	}

	t := &Tracker{
		handle:  handle,
		policy:  DefaultPolicy(),
		now:     time.Now,
		matcher: SubstringMatcher{},
		keyer:   handle.Keyer,
		logger:  opts.Logger,
	}
	if opts.Policy != nil {
		if err := opts.Policy.Validate(); err != nil {
			return nil, fmt.Errorf("analytics: %w", err)
		}
		t.policy = *opts.Policy
	}
	if opts.Now != nil {
		t.now = opts.Now
	}
	if opts.Matcher != nil {
		t.matcher = opts.Matcher
	}
	if t.logger == nil {
		t.logger = slog.New(slog.DiscardHandler)
	}
	t.logger = t.logger.With("profile_id", handle.Scope)

	return t, nil
}

// Policy returns the retention rules in effect.
func (t *Tracker) Policy() Policy { return t.policy }

func (t *Tracker) degraded(op string, err error) {
	if err == nil {
		return
	}
	if store.IsUnavailable(err) {
		t.logger.Warn("search analytics degraded", "op", op, "error", err)
		return
	}
	t.logger.Error("search analytics failed", "op", op, "error", err)
}

// AddSearchToHistory stamps a completed search, appends it to the ledger,
// then runs the cleanup pass and the frequency update. Every step is attempted;
// their errors are joined.
func (t *Tracker) AddSearchToHistory(ctx context.Context, search domain.NewSearch) (*domain.SearchHistoryEntry, error) {
	if normalize.IsBlank(search.Query) {
		return nil, store.ErrInvalidInput.WithMessage("search query is empty")
	}

	now := t.now()
	entry, addErr := t.appendEntry(ctx, search, now)
	t.degraded("add_history", addErr)

	cleanupErr := t.cleanupAt(ctx, now)

	_, analyticsErr := t.updateAnalyticsAt(ctx, search.Query, now)
	t.degraded("update_analytics", analyticsErr)

	if err := errors.Join(addErr, cleanupErr, analyticsErr); err != nil {
		return entry, err
	}
	return entry, nil
}

func (t *Tracker) appendEntry(ctx context.Context, search domain.NewSearch, now time.Time) (*domain.SearchHistoryEntry, error) {
	seq, err := t.handle.History.NextID(ctx)
	if err != nil {
		return nil, err
	}

	entry := &domain.SearchHistoryEntry{
		ID:        domain.FormatHistoryID(seq),
		Query:     search.Query,
		Timestamp: now.UnixMilli(),
	}
	if !search.Filters.IsEmpty() {
		f := *search.Filters
		entry.Filters = &f
	}

	if err := t.handle.History.Put(ctx, entry.ID, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

// GetRecentSearches returns the newest entry of each distinct query key,
// most recent first. Entries with equal timestamps are ordered newest
// insertion first.
func (t *Tracker) GetRecentSearches(ctx context.Context, limit int) ([]*domain.SearchHistoryEntry, error) {
	if limit <= 0 {
		limit = t.policy.RecentLimit
	}

	entries, err := t.handle.History.List(ctx)
	if err != nil {
		t.degraded("recent_searches", err)
		return []*domain.SearchHistoryEntry{}, err
	}

	sortByRecency(entries)

	seen := make(map[string]bool, len(entries))
	out := make([]*domain.SearchHistoryEntry, 0, min(limit, len(entries)))
	for _, e := range entries {
		if len(out) == limit {
			break
		}
		key := t.keyer.Key(e.Query)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, e)
	}
	return out, nil
}

// sortByRecency orders entries newest first. List returns entries in ID
// order, which is insertion order, so a stable sort reversed on ties
// puts later insertions first.
func sortByRecency(entries []*domain.SearchHistoryEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Timestamp != entries[j].Timestamp {
			return entries[i].Timestamp > entries[j].Timestamp
		}
		return entries[i].ID > entries[j].ID
	})
}

// UpdateAnalytics records one use of query in the frequency index.
func (t *Tracker) UpdateAnalytics(ctx context.Context, query string) (*domain.AnalyticsRecord, error) {
	rec, err := t.updateAnalyticsAt(ctx, query, t.now())
	t.degraded("update_analytics", err)
	return rec, err
}

func (t *Tracker) updateAnalyticsAt(ctx context.Context, query string, now time.Time) (*domain.AnalyticsRecord, error) {
	key := t.keyer.Key(query)
	if key == "" {
		return nil, store.ErrInvalidInput.WithMessage("search query is empty")
	}

	ms := now.UnixMilli()
	return t.handle.Analytics.Update(ctx, key, func(cur *domain.AnalyticsRecord) (*domain.AnalyticsRecord, error) {
		if cur == nil {
			return &domain.AnalyticsRecord{
				QueryKey:      key,
				OriginalQuery: query,
				Count:         1,
				FirstUsed:     ms,
				LastUsed:      ms,
			}, nil
		}
		cur.Count++
		cur.LastUsed = ms
		return cur, nil
	})
}

// GetPopularSearches returns the most used queries, highest count first.
func (t *Tracker) GetPopularSearches(ctx context.Context, limit int) ([]domain.PopularSearch, error) {
	if limit <= 0 {
		limit = t.policy.PopularLimit
	}

	records, err := t.handle.Analytics.List(ctx)
	if err != nil {
		t.degraded("popular_searches", err)
		return []domain.PopularSearch{}, err
	}

	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Count > records[j].Count
	})

	out := make([]domain.PopularSearch, 0, min(limit, len(records)))
	for _, r := range records[:min(limit, len(records))] {
		out = append(out, domain.PopularSearch{Query: r.OriginalQuery, Count: r.Count})
	}
	return out, nil
}

// GetSuggestions returns up to limit past queries related to partial.
// A blank partial yields no suggestions without touching storage.
func (t *Tracker) GetSuggestions(ctx context.Context, partial string, limit int) ([]string, error) {
	if limit <= 0 {
		limit = t.policy.SuggestionLimit
	}
	needle := t.keyer.Key(partial)
	if needle == "" {
		return []string{}, nil
	}

	recent, recentErr := t.GetRecentSearches(ctx, t.policy.SuggestionPool)
	popular, popularErr := t.GetPopularSearches(ctx, t.policy.SuggestionPool)

	seen := make(map[string]bool, len(recent)+len(popular))
	candidates := make([]string, 0, len(recent)+len(popular))
	add := func(q string) {
		if q == "" || seen[q] {
			return
		}
		seen[q] = true
		candidates = append(candidates, q)
	}
	for _, e := range recent {
		add(e.Query)
	}
	for _, p := range popular {
		add(p.Query)
	}

	matched := t.matcher.Match(needle, candidates)
	out := make([]string, 0, min(limit, len(matched)))
	out = append(out, matched[:min(limit, len(matched))]...)

	return out, errors.Join(recentErr, popularErr)
}

// Cleanup runs both pruning passes.
func (t *Tracker) Cleanup(ctx context.Context) error {
	return t.cleanupAt(ctx, t.now())
}

func (t *Tracker) cleanupAt(ctx context.Context, now time.Time) error {
	historyErr := t.pruneHistory(ctx, now)
	t.degraded("prune_history", historyErr)

	analyticsErr := t.pruneAnalytics(ctx, now)
	t.degraded("prune_analytics", analyticsErr)

	return errors.Join(historyErr, analyticsErr)
}

// pruneHistory deletes expired entries and the oldest overflow beyond the cap.
func (t *Tracker) pruneHistory(ctx context.Context, now time.Time) error {
	cutoff := domain.FormatTimestampKey(t.policy.historyCutoff(now))

	expired, err := t.handle.History.IDsInIndexRange(ctx, store.IndexTimestamp, "", cutoff)
	if err != nil {
		return err
	}
	// Ascending by timestamp, then ID: the front is the oldest.
	live, err := t.handle.History.IDsInIndexRange(ctx, store.IndexTimestamp, cutoff, "")
	if err != nil {
		return err
	}

	doomed := expired
	if overflow := len(live) - t.policy.MaxHistoryEntries; overflow > 0 {
		doomed = append(doomed, live[:overflow]...)
	}
	if len(doomed) == 0 {
		return nil
	}

	if err := t.handle.History.DeleteMany(ctx, doomed); err != nil {
		return err
	}
	t.logger.Debug("pruned search history", "deleted", len(doomed), "expired", len(expired))
	return nil
}

// pruneAnalytics deletes records that are both rare and stale. The rule is
// re-checked inside the deleting transaction so a concurrent use survives.
func (t *Tracker) pruneAnalytics(ctx context.Context, now time.Time) error {
	deleted, err := t.handle.Analytics.DeleteWhere(ctx, func(_ string, r *domain.AnalyticsRecord) bool {
		return t.policy.expired(r.Count, r.LastUsed, now)
	})
	if err != nil {
		return err
	}
	if len(deleted) > 0 {
		t.logger.Debug("pruned search analytics", "deleted", len(deleted))
	}
	return nil
}

// RemoveSearch deletes every history entry whose query has the same key as query.
// Frequency data is kept.
func (t *Tracker) RemoveSearch(ctx context.Context, query string) (int, error) {
	key := t.keyer.Key(query)
	if key == "" {
		return 0, store.ErrInvalidInput.WithMessage("search query is empty")
	}

	entries, err := t.handle.History.ListByIndex(ctx, store.IndexQuery, key)
	if err != nil {
		t.degraded("remove_search", err)
		return 0, err
	}
	ids := make([]string, len(entries))
	for i, e := range entries {
		ids[i] = e.ID
	}
	if err := t.handle.History.DeleteMany(ctx, ids); err != nil {
		t.degraded("remove_search", err)
		return 0, err
	}
	return len(ids), nil
}

// ClearHistory empties the history ledger.
func (t *Tracker) ClearHistory(ctx context.Context) error {
	err := t.handle.History.Clear(ctx)
	t.degraded("clear_history", err)
	return err
}

// ClearAnalytics empties the frequency index.
func (t *Tracker) ClearAnalytics(ctx context.Context) error {
	err := t.handle.Analytics.Clear(ctx)
	t.degraded("clear_analytics", err)
	return err
}

// ClearAll empties both partitions.
func (t *Tracker) ClearAll(ctx context.Context) error {
	return errors.Join(t.ClearHistory(ctx), t.ClearAnalytics(ctx))
}
