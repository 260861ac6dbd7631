package service

import (
	"context"
	"log/slog"
	"strings"

	"github.com/fitcoach/fitcoach-server/internal/domain"
	"github.com/fitcoach/fitcoach-server/internal/search"
)

// ExerciseSearchResult is a page of exercise hits plus whether the search
// was written to the caller's history.
type ExerciseSearchResult struct {
	*search.SearchResult
	HistoryRecorded bool `json:"history_recorded"`
}

// ExerciseService runs exercise searches and records them in search history.
type ExerciseService struct {
	index   *search.SearchIndex
	history *SearchHistoryService
	logger  *slog.Logger
}

// NewExerciseService creates a new exercise service.
func NewExerciseService(index *search.SearchIndex, history *SearchHistoryService, logger *slog.Logger) *ExerciseService {
	return &ExerciseService{
		index:   index,
		history: history,
		logger:  logger,
	}
}

// Search queries the index. When profileID is set and the query is not
// blank, the search and its filters are recorded in that profile's history.
// A recording failure is logged and never fails the search.
func (s *ExerciseService) Search(ctx context.Context, profileID string, params search.SearchParams) (*ExerciseSearchResult, error) {
	res, err := s.index.Search(ctx, params)
	if err != nil {
		return nil, err
	}

	out := &ExerciseSearchResult{SearchResult: res}
	if profileID == "" || strings.TrimSpace(params.Query) == "" {
		return out, nil
	}

	_, err = s.history.Record(ctx, profileID, domain.NewSearch{
		Query:   params.Query,
		Filters: filtersOf(params),
	})
	if err != nil {
		s.logger.Warn("failed to record search", "profile_id", profileID, "error", err)
		return out, nil
	}
	out.HistoryRecorded = true
	return out, nil
}

func filtersOf(params search.SearchParams) *domain.SearchFilters {
	f := &domain.SearchFilters{
		Categories: params.Categories,
		Equipment:  params.Equipment,
		Muscles:    params.Muscles,
		Difficulty: params.Difficulty,
	}
	if f.IsEmpty() {
		return nil
	}
	return f
}
