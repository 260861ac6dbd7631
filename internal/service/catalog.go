package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/fitcoach/fitcoach-server/internal/catalog"
	"github.com/fitcoach/fitcoach-server/internal/domain"
	"github.com/fitcoach/fitcoach-server/internal/search"
	"github.com/fitcoach/fitcoach-server/internal/store"
	"github.com/fitcoach/fitcoach-server/internal/validation"
)

// ImportResult summarizes a catalog import.
type ImportResult struct {
	Imported int `json:"imported"`
	Removed  int `json:"removed"`
}

// CatalogService keeps the stored exercise catalog and the search index in step.
type CatalogService struct {
	store     *store.Store
	index     *search.SearchIndex
	validator *validation.Validator
	now       func() time.Time
	logger    *slog.Logger

	mu sync.Mutex // serializes imports
}

// NewCatalogService creates a new catalog service.
func NewCatalogService(st *store.Store, index *search.SearchIndex, v *validation.Validator, logger *slog.Logger) *CatalogService {
	return &CatalogService{
		store:     st,
		index:     index,
		validator: v,
		now:       time.Now,
		logger:    logger,
	}
}

// Import loads a catalog file and makes it the whole catalog: exercises in
// the file are upserted, exercises missing from it are removed.
func (s *CatalogService) Import(ctx context.Context, path string) (*ImportResult, error) {
	exercises, err := catalog.Load(path, s.validator)
	if err != nil {
		return nil, err
	}
	result, err := s.ImportExercises(ctx, exercises)
	if err != nil {
		return nil, err
	}
	s.logger.Info("catalog imported", "path", path, "imported", result.Imported, "removed", result.Removed)
	return result, nil
}

// ImportExercises replaces the catalog with exercises.
func (s *CatalogService) ImportExercises(ctx context.Context, exercises []*domain.Exercise) (*ImportResult, error) {
	if err := catalog.Validate(s.validator, exercises); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().UTC()
	keep := make(map[string]bool, len(exercises))
	for _, e := range exercises {
		e.ImportedAt = now
		keep[e.ID] = true
	}

	if err := s.store.Exercises.PutAll(ctx, exercises, func(e *domain.Exercise) string { return e.ID }); err != nil {
		return nil, translate(err, "")
	}

	removed, err := s.store.Exercises.DeleteWhere(ctx, func(exerciseID string, _ *domain.Exercise) bool {
		return !keep[exerciseID]
	})
	if err != nil {
		return nil, translate(err, "")
	}

	docs := make([]*search.ExerciseDocument, len(exercises))
	for i, e := range exercises {
		docs[i] = search.NewExerciseDocument(e)
	}
	if err := s.index.ReplaceAll(docs); err != nil {
		return nil, fmt.Errorf("reindex catalog: %w", err)
	}

	return &ImportResult{Imported: len(exercises), Removed: len(removed)}, nil
}

// Get returns one exercise.
func (s *CatalogService) Get(ctx context.Context, exerciseID string) (*domain.Exercise, error) {
	e, err := s.store.Exercises.Get(ctx, exerciseID)
	if err != nil {
		return nil, translate(err, "exercise not found")
	}
	return e, nil
}

// Reindex rebuilds the search index from the stored catalog.
func (s *CatalogService) Reindex(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	exercises, err := s.store.Exercises.List(ctx)
	if err != nil {
		return 0, translate(err, "")
	}
	docs := make([]*search.ExerciseDocument, len(exercises))
	for i, e := range exercises {
		docs[i] = search.NewExerciseDocument(e)
	}
	if err := s.index.ReplaceAll(docs); err != nil {
		return 0, fmt.Errorf("reindex catalog: %w", err)
	}
	return len(docs), nil
}

// ReindexIfEmpty rebuilds the index when it is empty but the store is not,
// as after a mapping version change. It reports whether it rebuilt.
func (s *CatalogService) ReindexIfEmpty(ctx context.Context) (bool, error) {
	count, err := s.index.DocumentCount()
	if err != nil {
		return false, fmt.Errorf("count indexed documents: %w", err)
	}
	if count > 0 {
		return false, nil
	}

	stored, err := s.store.Exercises.Count(ctx)
	if err != nil {
		return false, translate(err, "")
	}
	if stored == 0 {
		return false, nil
	}

	n, err := s.Reindex(ctx)
	if err != nil {
		return false, err
	}
	s.logger.Info("search index rebuilt from store", "exercises", n)
	return true, nil
}
