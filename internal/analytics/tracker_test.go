package analytics

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fitcoach/fitcoach-server/internal/domain"
	"github.com/fitcoach/fitcoach-server/internal/normalize"
	"github.com/fitcoach/fitcoach-server/internal/store"
	"github.com/fitcoach/fitcoach-server/internal/store/storetest"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func setupTestTracker(t *testing.T, opts ...store.Option) (*Tracker, *fakeClock, *store.Handle) {
	t.Helper()
	kv, err := store.OpenBadger(store.BadgerOptions{InMemory: true})
	require.NoError(t, err)
	s := store.New(kv, nil, opts...)
	t.Cleanup(func() { _ = s.Close() })

	h, err := s.Handle("prf-test")
	require.NoError(t, err)

	clock := newFakeClock()
	tr, err := New(h, Options{Now: clock.Now})
	require.NoError(t, err)
	return tr, clock, h
}

// addAll records each query one second apart.
func addAll(t *testing.T, tr *Tracker, clock *fakeClock, queries ...string) {
	t.Helper()
	for _, q := range queries {
		_, err := tr.AddSearchToHistory(context.Background(), domain.NewSearch{Query: q})
		require.NoError(t, err)
		clock.Advance(time.Second)
	}
}

func recentQueries(entries []*domain.SearchHistoryEntry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Query
	}
	return out
}

func TestTracker_RecencyOrdering(t *testing.T) {
	tr, clock, _ := setupTestTracker(t)
	addAll(t, tr, clock, "push up", "pull up", "plank", "lunge", "row")

	recent, err := tr.GetRecentSearches(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, []string{"row", "lunge", "plank", "pull up", "push up"}, recentQueries(recent))
}

func TestTracker_RecencyOrderingWithEqualTimestamps(t *testing.T) {
	tr, _, _ := setupTestTracker(t)
	ctx := context.Background()

	for _, q := range []string{"a", "b", "c"} {
		_, err := tr.AddSearchToHistory(ctx, domain.NewSearch{Query: q})
		require.NoError(t, err)
	}

	recent, err := tr.GetRecentSearches(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "b", "a"}, recentQueries(recent))
}

func TestTracker_DedupTieKeepsLaterVariant(t *testing.T) {
	tr, _, _ := setupTestTracker(t)
	ctx := context.Background()

	for _, q := range []string{"Back Squat", "back squat"} {
		_, err := tr.AddSearchToHistory(ctx, domain.NewSearch{Query: q})
		require.NoError(t, err)
	}

	recent, err := tr.GetRecentSearches(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, []string{"back squat"}, recentQueries(recent))
}

func TestTracker_DedupKeepsLatest(t *testing.T) {
	tr, clock, _ := setupTestTracker(t)
	addAll(t, tr, clock, "Squat", "squat", "SQUAT")

	recent, err := tr.GetRecentSearches(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, "SQUAT", recent[0].Query)

	all, err := tr.GetRecentSearches(context.Background(), 10)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestTracker_CapEnforcement(t *testing.T) {
	tr, clock, h := setupTestTracker(t)
	ctx := context.Background()

	queries := make([]string, 25)
	for i := range queries {
		queries[i] = fmt.Sprintf("query %02d", i+1)
	}
	addAll(t, tr, clock, queries...)

	n, err := h.History.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 20, n)

	recent, err := tr.GetRecentSearches(ctx, 20)
	require.NoError(t, err)
	got := recentQueries(recent)
	assert.Len(t, got, 20)
	for _, q := range queries[:5] {
		assert.NotContains(t, got, q)
	}
	assert.Equal(t, "query 25", got[0])
	assert.Equal(t, "query 06", got[19])
}

func TestTracker_HistoryTTL(t *testing.T) {
	tr, clock, h := setupTestTracker(t)
	ctx := context.Background()

	addAll(t, tr, clock, "old one")
	clock.Advance(31 * 24 * time.Hour)
	addAll(t, tr, clock, "fresh one")

	recent, err := tr.GetRecentSearches(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"fresh one"}, recentQueries(recent))

	n, err := h.History.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestTracker_FiltersAreRecorded(t *testing.T) {
	tr, _, _ := setupTestTracker(t)
	ctx := context.Background()

	filters := &domain.SearchFilters{Equipment: []string{"barbell"}, Difficulty: "beginner"}
	entry, err := tr.AddSearchToHistory(ctx, domain.NewSearch{Query: "row", Filters: filters})
	require.NoError(t, err)
	assert.Equal(t, domain.FormatHistoryID(1), entry.ID)

	recent, err := tr.GetRecentSearches(ctx, 1)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, filters, recent[0].Filters)

	entry, err = tr.AddSearchToHistory(ctx, domain.NewSearch{Query: "curl", Filters: &domain.SearchFilters{}})
	require.NoError(t, err)
	assert.Nil(t, entry.Filters)
}

func TestTracker_BlankQueryIsRejected(t *testing.T) {
	tr, _, h := setupTestTracker(t)
	ctx := context.Background()

	_, err := tr.AddSearchToHistory(ctx, domain.NewSearch{Query: "   "})
	assert.ErrorIs(t, err, store.ErrInvalidInput)

	n, err := h.History.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestTracker_FrequencyAccumulation(t *testing.T) {
	tr, clock, _ := setupTestTracker(t)
	addAll(t, tr, clock, "bench press", "squat", "bench press", "bench press")

	popular, err := tr.GetPopularSearches(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, []domain.PopularSearch{
		{Query: "bench press", Count: 3},
		{Query: "squat", Count: 1},
	}, popular)
}

func TestTracker_UpdateAnalyticsKeepsFirstSeenForm(t *testing.T) {
	tr, clock, h := setupTestTracker(t)
	ctx := context.Background()

	first := clock.Now().UnixMilli()
	_, err := tr.UpdateAnalytics(ctx, "Bench Press")
	require.NoError(t, err)
	clock.Advance(time.Hour)
	rec, err := tr.UpdateAnalytics(ctx, "bench press")
	require.NoError(t, err)

	assert.Equal(t, "bench press", rec.QueryKey)
	assert.Equal(t, "Bench Press", rec.OriginalQuery)
	assert.Equal(t, 2, rec.Count)
	assert.Equal(t, first, rec.FirstUsed)
	assert.Equal(t, clock.Now().UnixMilli(), rec.LastUsed)

	stored, err := h.Analytics.Get(ctx, "bench press")
	require.NoError(t, err)
	assert.Equal(t, rec, stored)
}

func TestTracker_TrimBeforeKeying(t *testing.T) {
	t.Run("trimmed by default", func(t *testing.T) {
		tr, clock, h := setupTestTracker(t)
		addAll(t, tr, clock, "squat", " squat ")

		n, err := h.Analytics.Count(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 1, n)
	})

	t.Run("untrimmed keeps whitespace variants apart", func(t *testing.T) {
		tr, clock, h := setupTestTracker(t, store.WithQueryKeyer(normalize.QueryKeyer{Trim: false}))
		addAll(t, tr, clock, "squat", " squat ")

		n, err := h.Analytics.Count(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 2, n)

		recent, err := tr.GetRecentSearches(context.Background(), 10)
		require.NoError(t, err)
		assert.Len(t, recent, 2)
	})
}

func TestTracker_ConcurrentAnalyticsUpdates(t *testing.T) {
	tr, _, _ := setupTestTracker(t)
	ctx := context.Background()
	const workers = 8

	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := tr.UpdateAnalytics(ctx, "deadlift")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	popular, err := tr.GetPopularSearches(ctx, 1)
	require.NoError(t, err)
	require.Len(t, popular, 1)
	assert.Equal(t, workers, popular[0].Count)
}

func TestTracker_AnalyticsSurvivalRule(t *testing.T) {
	tr, clock, h := setupTestTracker(t)
	ctx := context.Background()

	now := clock.Now()
	old := now.Add(-90 * 24 * time.Hour).UnixMilli()
	recent := now.Add(-10 * 24 * time.Hour).UnixMilli()

	records := []domain.AnalyticsRecord{
		{QueryKey: "frequent old", OriginalQuery: "frequent old", Count: 5, FirstUsed: old, LastUsed: old},
		{QueryKey: "rare old", OriginalQuery: "rare old", Count: 1, FirstUsed: old, LastUsed: old},
		{QueryKey: "rare recent", OriginalQuery: "rare recent", Count: 1, FirstUsed: recent, LastUsed: recent},
		{QueryKey: "borderline", OriginalQuery: "borderline", Count: 2, FirstUsed: old, LastUsed: old},
	}
	for i := range records {
		require.NoError(t, h.Analytics.Put(ctx, records[i].QueryKey, &records[i]))
	}

	require.NoError(t, tr.Cleanup(ctx))

	ids, err := h.Analytics.IDs(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"frequent old", "rare recent", "borderline"}, ids)

	// Idempotent.
	require.NoError(t, tr.Cleanup(ctx))
	n, err := h.Analytics.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestTracker_SuggestionBidirectionalMatch(t *testing.T) {
	tr, clock, _ := setupTestTracker(t)
	ctx := context.Background()
	addAll(t, tr, clock, "deadlift variations", "dl", "bench press")

	got, err := tr.GetSuggestions(ctx, "dead", 5)
	require.NoError(t, err)
	assert.Contains(t, got, "deadlift variations")
	assert.NotContains(t, got, "bench press")

	got, err = tr.GetSuggestions(ctx, "deadlift", 5)
	require.NoError(t, err)
	assert.Contains(t, got, "dl")

	got, err = tr.GetSuggestions(ctx, "DEAD", 5)
	require.NoError(t, err)
	assert.Contains(t, got, "deadlift variations")
}

func TestTracker_SuggestionsDedupeAndLimit(t *testing.T) {
	tr, clock, _ := setupTestTracker(t)
	ctx := context.Background()
	addAll(t, tr, clock, "row 1", "row 2", "row 3", "row 1", "row 4", "row 5", "row 6")

	got, err := tr.GetSuggestions(ctx, "row", 0)
	require.NoError(t, err)
	assert.Len(t, got, 5)

	seen := map[string]bool{}
	for _, s := range got {
		assert.False(t, seen[s], "duplicate suggestion %q", s)
		seen[s] = true
	}
	// Recent candidates come before popular ones.
	assert.Equal(t, "row 6", got[0])
}

func TestTracker_EmptyPartialShortCircuits(t *testing.T) {
	h, err := store.OpenHandle(storetest.NewFailing(), "prf-x", normalize.DefaultQueryKeyer)
	require.NoError(t, err)
	tr, err := New(h, Options{})
	require.NoError(t, err)

	for _, partial := range []string{"", "   "} {
		got, err := tr.GetSuggestions(context.Background(), partial, 5)
		require.NoError(t, err, "blank partial must not touch storage")
		assert.NotNil(t, got)
		assert.Empty(t, got)
	}
}

func TestTracker_GracefulDegradation(t *testing.T) {
	h, err := store.OpenHandle(storetest.NewFailing(), "prf-x", normalize.DefaultQueryKeyer)
	require.NoError(t, err)
	tr, err := New(h, Options{})
	require.NoError(t, err)
	ctx := context.Background()

	recent, err := tr.GetRecentSearches(ctx, 0)
	assert.True(t, store.IsUnavailable(err))
	assert.NotNil(t, recent)
	assert.Empty(t, recent)

	popular, err := tr.GetPopularSearches(ctx, 0)
	assert.True(t, store.IsUnavailable(err))
	assert.NotNil(t, popular)
	assert.Empty(t, popular)

	suggestions, err := tr.GetSuggestions(ctx, "dead", 0)
	assert.True(t, store.IsUnavailable(err))
	assert.NotNil(t, suggestions)
	assert.Empty(t, suggestions)

	assert.NotPanics(t, func() {
		entry, err := tr.AddSearchToHistory(ctx, domain.NewSearch{Query: "squat"})
		assert.Nil(t, entry)
		assert.True(t, store.IsUnavailable(err))
		assert.ErrorIs(t, err, storetest.ErrInjected)
	})

	assert.True(t, store.IsUnavailable(tr.ClearAll(ctx)))
	assert.True(t, store.IsUnavailable(tr.Cleanup(ctx)))
}

func TestTracker_RecoversAfterOutage(t *testing.T) {
	kv, err := store.OpenBadger(store.BadgerOptions{InMemory: true})
	require.NoError(t, err)
	breakable := storetest.NewBreakable(kv)
	t.Cleanup(func() { _ = breakable.Close() })

	h, err := store.OpenHandle(breakable, "prf-x", normalize.DefaultQueryKeyer)
	require.NoError(t, err)
	clock := newFakeClock()
	tr, err := New(h, Options{Now: clock.Now})
	require.NoError(t, err)
	ctx := context.Background()

	addAll(t, tr, clock, "squat")

	breakable.Break()
	recent, err := tr.GetRecentSearches(ctx, 10)
	assert.Error(t, err)
	assert.Empty(t, recent)

	breakable.Repair()
	recent, err = tr.GetRecentSearches(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"squat"}, recentQueries(recent))
}

func TestTracker_RemoveSearch(t *testing.T) {
	tr, clock, h := setupTestTracker(t)
	ctx := context.Background()
	addAll(t, tr, clock, "Squat", "row", "squat ")

	n, err := tr.RemoveSearch(ctx, "SQUAT")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	recent, err := tr.GetRecentSearches(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"row"}, recentQueries(recent))

	// Frequency data is untouched.
	rec, err := h.Analytics.Get(ctx, "squat")
	require.NoError(t, err)
	assert.Equal(t, 2, rec.Count)

	_, err = tr.RemoveSearch(ctx, " ")
	assert.ErrorIs(t, err, store.ErrInvalidInput)
}

func TestTracker_Clear(t *testing.T) {
	tr, clock, _ := setupTestTracker(t)
	ctx := context.Background()

	addAll(t, tr, clock, "squat", "row")
	require.NoError(t, tr.ClearHistory(ctx))

	recent, err := tr.GetRecentSearches(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, recent)
	popular, err := tr.GetPopularSearches(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, popular, 2)

	require.NoError(t, tr.ClearAnalytics(ctx))
	popular, err = tr.GetPopularSearches(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, popular)

	addAll(t, tr, clock, "lunge")
	require.NoError(t, tr.ClearAll(ctx))
	recent, err = tr.GetRecentSearches(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, recent)
	popular, err = tr.GetPopularSearches(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, popular)

	// IDs keep increasing after a clear.
	entry, err := tr.AddSearchToHistory(ctx, domain.NewSearch{Query: "curl"})
	require.NoError(t, err)
	assert.Equal(t, domain.FormatHistoryID(4), entry.ID)
}

func TestNew_Validation(t *testing.T) {
	_, err := New(nil, Options{})
	assert.Error(t, err)

	h, err := store.OpenHandle(storetest.NewFailing(), "prf-x", normalize.DefaultQueryKeyer)
	require.NoError(t, err)

	bad := DefaultPolicy()
	bad.MaxHistoryEntries = 0
	_, err = New(h, Options{Policy: &bad})
	assert.Error(t, err)

	custom := DefaultPolicy()
	custom.MaxHistoryEntries = 3
	tr, err := New(h, Options{Policy: &custom})
	require.NoError(t, err)
	assert.Equal(t, 3, tr.Policy().MaxHistoryEntries)
}

func fixedNow() time.Time { return newFakeClock().Now() }
