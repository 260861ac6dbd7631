package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/fitcoach/fitcoach-server/internal/analytics"
	"github.com/fitcoach/fitcoach-server/internal/domain"
	domainerrors "github.com/fitcoach/fitcoach-server/internal/errors"
	"github.com/fitcoach/fitcoach-server/internal/store"
)

// HistoryOptions configures the trackers built by SearchHistoryService.
type HistoryOptions struct {
	Policy  analytics.Policy
	Matcher analytics.Matcher
	Now     func() time.Time // defaults to time.Now
}

// SearchHistoryService routes search history operations to the tracker of
// each profile. Trackers are created on first use and kept until the
// profile is deleted.
//
// Read methods follow the tracker's soft-fail contract: on a storage
// failure they return an empty slice and an error matching
// store.ErrUnavailable.
type SearchHistoryService struct {
	store  *store.Store
	opts   HistoryOptions
	logger *slog.Logger

	mu       sync.Mutex
	trackers map[string]*analytics.Tracker

	// writes is held shared by Record and exclusively while a profile's
	// scope is dropped, so no append lands after the drop.
	writes sync.RWMutex
}

// NewSearchHistoryService creates a new search history service.
func NewSearchHistoryService(st *store.Store, opts HistoryOptions, logger *slog.Logger) *SearchHistoryService {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &SearchHistoryService{
		store:    st,
		opts:     opts,
		logger:   logger,
		trackers: make(map[string]*analytics.Tracker),
	}
}

// Tracker returns the tracker of an existing profile.
func (s *SearchHistoryService) Tracker(ctx context.Context, profileID string) (*analytics.Tracker, error) {
	s.mu.Lock()
	t, ok := s.trackers[profileID]
	s.mu.Unlock()
	if ok {
		return t, nil
	}

	if _, err := s.store.Profiles.Get(ctx, profileID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, domainerrors.NotFoundf("profile %s not found", profileID)
		}
		return nil, err
	}

	h, err := s.store.Handle(profileID)
	if err != nil {
		return nil, translate(err, "")
	}

	policy := s.opts.Policy
	t, err = analytics.New(h, analytics.Options{
		Policy:  &policy,
		Now:     s.opts.Now,
		Matcher: s.opts.Matcher,
		Logger:  s.logger,
	})
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.trackers[profileID]; ok {
		return existing, nil
	}
	s.trackers[profileID] = t
	return t, nil
}

// drop forgets the tracker of a deleted profile and removes its data.
// The profile record must already be gone, so later calls fail in Tracker.
func (s *SearchHistoryService) drop(ctx context.Context, profileID string) error {
	s.writes.Lock()
	defer s.writes.Unlock()

	s.mu.Lock()
	delete(s.trackers, profileID)
	s.mu.Unlock()

	return s.store.DropScope(ctx, profileID)
}

// Record adds a completed search to a profile's history.
func (s *SearchHistoryService) Record(ctx context.Context, profileID string, search domain.NewSearch) (*domain.SearchHistoryEntry, error) {
	s.writes.RLock()
	defer s.writes.RUnlock()

	t, err := s.Tracker(ctx, profileID)
	if err != nil {
		return nil, err
	}
	entry, err := t.AddSearchToHistory(ctx, search)
	if errors.Is(err, store.ErrInvalidInput) {
		return nil, translate(err, "")
	}
	return entry, err
}

// Recent returns a profile's recent distinct searches.
func (s *SearchHistoryService) Recent(ctx context.Context, profileID string, limit int) ([]*domain.SearchHistoryEntry, error) {
	t, err := s.Tracker(ctx, profileID)
	if err != nil {
		return []*domain.SearchHistoryEntry{}, err
	}
	return t.GetRecentSearches(ctx, limit)
}

// Popular returns a profile's most frequent searches.
func (s *SearchHistoryService) Popular(ctx context.Context, profileID string, limit int) ([]domain.PopularSearch, error) {
	t, err := s.Tracker(ctx, profileID)
	if err != nil {
		return []domain.PopularSearch{}, err
	}
	return t.GetPopularSearches(ctx, limit)
}

// Suggestions returns past queries related to partial.
func (s *SearchHistoryService) Suggestions(ctx context.Context, profileID, partial string, limit int) ([]string, error) {
	t, err := s.Tracker(ctx, profileID)
	if err != nil {
		return []string{}, err
	}
	return t.GetSuggestions(ctx, partial, limit)
}

// RemoveQuery deletes every history entry of one query.
func (s *SearchHistoryService) RemoveQuery(ctx context.Context, profileID, query string) (int, error) {
	t, err := s.Tracker(ctx, profileID)
	if err != nil {
		return 0, err
	}
	n, err := t.RemoveSearch(ctx, query)
	return n, translate(err, "")
}

// ClearHistory empties a profile's history.
func (s *SearchHistoryService) ClearHistory(ctx context.Context, profileID string) error {
	t, err := s.Tracker(ctx, profileID)
	if err != nil {
		return err
	}
	return translate(t.ClearHistory(ctx), "")
}

// ClearAnalytics empties a profile's frequency index.
func (s *SearchHistoryService) ClearAnalytics(ctx context.Context, profileID string) error {
	t, err := s.Tracker(ctx, profileID)
	if err != nil {
		return err
	}
	return translate(t.ClearAnalytics(ctx), "")
}

// ClearAll empties both partitions of a profile.
func (s *SearchHistoryService) ClearAll(ctx context.Context, profileID string) error {
	t, err := s.Tracker(ctx, profileID)
	if err != nil {
		return err
	}
	return translate(t.ClearAll(ctx), "")
}

// CleanupAll runs the cleanup pass for every profile and returns how many
// profiles were processed. A failing profile does not stop the others.
func (s *SearchHistoryService) CleanupAll(ctx context.Context) (int, error) {
	ids, err := s.store.Profiles.IDs(ctx)
	if err != nil {
		return 0, err
	}

	var errs []error
	done := 0
	for _, profileID := range ids {
		if err := ctx.Err(); err != nil {
			return done, err
		}
		t, err := s.Tracker(ctx, profileID)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if err := t.Cleanup(ctx); err != nil {
			errs = append(errs, err)
			continue
		}
		done++
	}
	return done, errors.Join(errs...)
}
