package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"

	"github.com/fitcoach/fitcoach-server/internal/domain"
	"github.com/fitcoach/fitcoach-server/internal/search"
)

// profileHeader optionally names the profile whose history records a search.
const profileHeader = "X-Profile-ID"

func (s *Server) registerExerciseRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "searchExercises",
		Method:      http.MethodGet,
		Path:        "/api/v1/exercises/search",
		Summary:     "Search exercises",
		Description: "Full-text exercise search with facet filters. With " + profileHeader +
			" set, non-blank queries are recorded in that profile's search history.",
		Tags: []string{"Exercises"},
	}, s.handleSearchExercises)

	huma.Register(s.api, huma.Operation{
		OperationID: "getExercise",
		Method:      http.MethodGet,
		Path:        "/api/v1/exercises/{id}",
		Summary:     "Get exercise",
		Tags:        []string{"Exercises"},
	}, s.handleGetExercise)
}

// === DTOs ===

// SearchExercisesInput contains parameters for searching the catalog.
type SearchExercisesInput struct {
	ProfileID  string `header:"X-Profile-ID" maxLength:"64" doc:"Profile whose history records this search"`
	Query      string `query:"q" maxLength:"200" doc:"Search query"`
	Categories string `query:"categories" maxLength:"200" doc:"Comma-separated categories"`
	Equipment  string `query:"equipment" maxLength:"200" doc:"Comma-separated equipment"`
	Muscles    string `query:"muscles" maxLength:"200" doc:"Comma-separated muscles"`
	Difficulty string `query:"difficulty" maxLength:"50" doc:"Difficulty level"`
	Limit      int    `query:"limit" minimum:"1" maximum:"100" default:"20" doc:"Max results"`
	Offset     int    `query:"offset" minimum:"0" doc:"Pagination offset"`
	Sort       string `query:"sort" enum:"relevance,name" default:"relevance" doc:"Result order"`
	Facets     bool   `query:"facets" doc:"Include facet counts"`
	Highlight  bool   `query:"highlight" doc:"Include highlighted name fragments"`
}

// ExerciseSearchResponse contains one page of exercise hits.
type ExerciseSearchResponse struct {
	Query           string               `json:"query" doc:"Original search query"`
	Total           uint64               `json:"total" doc:"Total matches"`
	TookMs          int64                `json:"took_ms" doc:"Search duration in milliseconds"`
	Hits            []search.SearchHit   `json:"hits" doc:"Matching exercises"`
	Facets          *search.SearchFacets `json:"facets,omitempty" doc:"Facet counts for filtering"`
	HistoryRecorded bool                 `json:"history_recorded" doc:"Whether the search was added to the profile's history"`
}

// ExerciseSearchOutput wraps the search response for Huma.
type ExerciseSearchOutput struct {
	Body ExerciseSearchResponse
}

// ExercisePathInput identifies an exercise.
type ExercisePathInput struct {
	ID string `path:"id" maxLength:"64" doc:"Exercise ID"`
}

// ExerciseOutput wraps an exercise for Huma.
type ExerciseOutput struct {
	Body *domain.Exercise
}

// === Handlers ===

func (s *Server) handleSearchExercises(ctx context.Context, input *SearchExercisesInput) (*ExerciseSearchOutput, error) {
	params := search.SearchParams{
		Query:         input.Query,
		Categories:    splitCSV(input.Categories),
		Equipment:     splitCSV(input.Equipment),
		Muscles:       splitCSV(input.Muscles),
		Difficulty:    strings.TrimSpace(input.Difficulty),
		Limit:         input.Limit,
		Offset:        input.Offset,
		SortBy:        input.Sort,
		IncludeFacets: input.Facets,
		Highlight:     input.Highlight,
	}

	s.logger.DebugContext(ctx, "exercise search",
		"query", params.Query,
		"profile_id", input.ProfileID,
		"limit", params.Limit,
	)

	res, err := s.services.Exercises.Search(ctx, strings.TrimSpace(input.ProfileID), params)
	if err != nil {
		return nil, err
	}

	resp := ExerciseSearchResponse{
		Query:           res.Query,
		Total:           res.Total,
		TookMs:          res.TookMs,
		Hits:            res.Hits,
		HistoryRecorded: res.HistoryRecorded,
	}
	if input.Facets {
		facets := res.Facets
		resp.Facets = &facets
	}
	return &ExerciseSearchOutput{Body: resp}, nil
}

func (s *Server) handleGetExercise(ctx context.Context, input *ExercisePathInput) (*ExerciseOutput, error) {
	e, err := s.services.Catalog.Get(ctx, input.ID)
	if err != nil {
		return nil, err
	}
	return &ExerciseOutput{Body: e}, nil
}

func splitCSV(raw string) []string {
	var out []string
	for part := range strings.SplitSeq(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
