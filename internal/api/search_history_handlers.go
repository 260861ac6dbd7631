package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/fitcoach/fitcoach-server/internal/domain"
)

func (s *Server) registerSearchHistoryRoutes() {
	const base = "/api/v1/profiles/{profileID}/searches"
	tags := []string{"Search History"}

	huma.Register(s.api, huma.Operation{
		OperationID:   "recordSearch",
		Method:        http.MethodPost,
		Path:          base,
		Summary:       "Record search",
		Description:   "Adds a completed search to the profile's history and analytics",
		Tags:          tags,
		DefaultStatus: http.StatusCreated,
	}, s.handleRecordSearch)

	huma.Register(s.api, huma.Operation{
		OperationID: "getRecentSearches",
		Method:      http.MethodGet,
		Path:        base + "/recent",
		Summary:     "Recent searches",
		Description: "Newest distinct searches. Storage failures return an empty list marked degraded.",
		Tags:        tags,
	}, s.handleRecentSearches)

	huma.Register(s.api, huma.Operation{
		OperationID: "getPopularSearches",
		Method:      http.MethodGet,
		Path:        base + "/popular",
		Summary:     "Popular searches",
		Description: "Most frequent searches. Storage failures return an empty list marked degraded.",
		Tags:        tags,
	}, s.handlePopularSearches)

	huma.Register(s.api, huma.Operation{
		OperationID: "getSearchSuggestions",
		Method:      http.MethodGet,
		Path:        base + "/suggestions",
		Summary:     "Search suggestions",
		Description: "Past queries related to a partial query. Storage failures return no suggestions marked degraded.",
		Tags:        tags,
	}, s.handleSuggestions)

	huma.Register(s.api, huma.Operation{
		OperationID: "removeSearchQuery",
		Method:      http.MethodDelete,
		Path:        base + "/history/query",
		Summary:     "Remove query from history",
		Description: "Deletes every history entry of one query; analytics are kept",
		Tags:        tags,
	}, s.handleRemoveQuery)

	huma.Register(s.api, huma.Operation{
		OperationID:   "clearSearchHistory",
		Method:        http.MethodDelete,
		Path:          base + "/history",
		Summary:       "Clear search history",
		Tags:          tags,
		DefaultStatus: http.StatusNoContent,
	}, s.handleClearHistory)

	huma.Register(s.api, huma.Operation{
		OperationID:   "clearSearchAnalytics",
		Method:        http.MethodDelete,
		Path:          base + "/analytics",
		Summary:       "Clear search analytics",
		Tags:          tags,
		DefaultStatus: http.StatusNoContent,
	}, s.handleClearAnalytics)

	huma.Register(s.api, huma.Operation{
		OperationID:   "clearAllSearchData",
		Method:        http.MethodDelete,
		Path:          base,
		Summary:       "Clear search history and analytics",
		Tags:          tags,
		DefaultStatus: http.StatusNoContent,
	}, s.handleClearAll)
}

// === DTOs ===

// SearchFiltersRequest mirrors the facet selections of a search.
type SearchFiltersRequest struct {
	Categories []string `json:"categories,omitempty" maxItems:"20" doc:"Selected categories"`
	Equipment  []string `json:"equipment,omitempty" maxItems:"20" doc:"Selected equipment"`
	Muscles    []string `json:"muscles,omitempty" maxItems:"20" doc:"Selected muscles"`
	Difficulty string   `json:"difficulty,omitempty" maxLength:"50" doc:"Selected difficulty"`
}

// RecordSearchRequest is the body for recording a search.
type RecordSearchRequest struct {
	Query   string                `json:"query" minLength:"1" maxLength:"200" doc:"Query text as typed"`
	Filters *SearchFiltersRequest `json:"filters,omitempty" doc:"Facet selections active for the search"`
}

// RecordSearchInput wraps the record request for Huma.
type RecordSearchInput struct {
	ProfileID string `path:"profileID" maxLength:"64" doc:"Profile ID"`
	Body      RecordSearchRequest
}

// SearchEntryOutput wraps a recorded history entry.
type SearchEntryOutput struct {
	Body *domain.SearchHistoryEntry
}

// SearchListInput selects a profile and a result limit.
type SearchListInput struct {
	ProfileID string `path:"profileID" maxLength:"64" doc:"Profile ID"`
	Limit     int    `query:"limit" minimum:"1" maximum:"100" default:"10" doc:"Maximum results"`
}

// RecentSearchesResponse lists recent distinct searches, newest first.
type RecentSearchesResponse struct {
	Searches []*domain.SearchHistoryEntry `json:"searches" doc:"Recent searches"`
	degraded bool
}

// IsDegraded implements degradable.
func (r RecentSearchesResponse) IsDegraded() bool { return r.degraded }

// RecentSearchesOutput wraps the recent searches response.
type RecentSearchesOutput struct {
	Body RecentSearchesResponse
}

// PopularSearchesResponse lists queries by descending use count.
type PopularSearchesResponse struct {
	Searches []domain.PopularSearch `json:"searches" doc:"Popular searches"`
	degraded bool
}

// IsDegraded implements degradable.
func (r PopularSearchesResponse) IsDegraded() bool { return r.degraded }

// PopularSearchesOutput wraps the popular searches response.
type PopularSearchesOutput struct {
	Body PopularSearchesResponse
}

// SuggestionsInput carries the partial query.
type SuggestionsInput struct {
	ProfileID string `path:"profileID" maxLength:"64" doc:"Profile ID"`
	Query     string `query:"q" maxLength:"200" doc:"Partial query"`
	Limit     int    `query:"limit" minimum:"1" maximum:"20" default:"5" doc:"Maximum suggestions"`
}

// SuggestionsResponse lists suggested queries.
type SuggestionsResponse struct {
	Suggestions []string `json:"suggestions" doc:"Suggested queries"`
	degraded    bool
}

// IsDegraded implements degradable.
func (r SuggestionsResponse) IsDegraded() bool { return r.degraded }

// SuggestionsOutput wraps the suggestions response.
type SuggestionsOutput struct {
	Body SuggestionsResponse
}

// RemoveQueryInput names the query to forget.
type RemoveQueryInput struct {
	ProfileID string `path:"profileID" maxLength:"64" doc:"Profile ID"`
	Query     string `query:"q" required:"true" minLength:"1" maxLength:"200" doc:"Query to remove"`
}

// RemoveQueryResponse reports how many entries were deleted.
type RemoveQueryResponse struct {
	Removed int `json:"removed" doc:"History entries removed"`
}

// RemoveQueryOutput wraps the remove response.
type RemoveQueryOutput struct {
	Body RemoveQueryResponse
}

// === Handlers ===

func (s *Server) handleRecordSearch(ctx context.Context, input *RecordSearchInput) (*SearchEntryOutput, error) {
	search := domain.NewSearch{Query: input.Body.Query}
	if f := input.Body.Filters; f != nil {
		search.Filters = &domain.SearchFilters{
			Categories: f.Categories,
			Equipment:  f.Equipment,
			Muscles:    f.Muscles,
			Difficulty: f.Difficulty,
		}
	}

	entry, err := s.services.History.Record(ctx, input.ProfileID, search)
	if err != nil {
		return nil, err
	}
	return &SearchEntryOutput{Body: entry}, nil
}

func (s *Server) handleRecentSearches(ctx context.Context, input *SearchListInput) (*RecentSearchesOutput, error) {
	entries, err := s.services.History.Recent(ctx, input.ProfileID, input.Limit)
	degraded, err := s.softFail(ctx, "recent searches", input.ProfileID, err)
	if err != nil {
		return nil, err
	}
	return &RecentSearchesOutput{Body: RecentSearchesResponse{Searches: entries, degraded: degraded}}, nil
}

func (s *Server) handlePopularSearches(ctx context.Context, input *SearchListInput) (*PopularSearchesOutput, error) {
	popular, err := s.services.History.Popular(ctx, input.ProfileID, input.Limit)
	degraded, err := s.softFail(ctx, "popular searches", input.ProfileID, err)
	if err != nil {
		return nil, err
	}
	return &PopularSearchesOutput{Body: PopularSearchesResponse{Searches: popular, degraded: degraded}}, nil
}

func (s *Server) handleSuggestions(ctx context.Context, input *SuggestionsInput) (*SuggestionsOutput, error) {
	suggestions, err := s.services.History.Suggestions(ctx, input.ProfileID, input.Query, input.Limit)
	degraded, err := s.softFail(ctx, "suggestions", input.ProfileID, err)
	if err != nil {
		return nil, err
	}
	return &SuggestionsOutput{Body: SuggestionsResponse{Suggestions: suggestions, degraded: degraded}}, nil
}

func (s *Server) handleRemoveQuery(ctx context.Context, input *RemoveQueryInput) (*RemoveQueryOutput, error) {
	n, err := s.services.History.RemoveQuery(ctx, input.ProfileID, input.Query)
	if err != nil {
		return nil, err
	}
	return &RemoveQueryOutput{Body: RemoveQueryResponse{Removed: n}}, nil
}

func (s *Server) handleClearHistory(ctx context.Context, input *ProfilePathInput) (*struct{}, error) {
	return nil, s.services.History.ClearHistory(ctx, input.ProfileID)
}

func (s *Server) handleClearAnalytics(ctx context.Context, input *ProfilePathInput) (*struct{}, error) {
	return nil, s.services.History.ClearAnalytics(ctx, input.ProfileID)
}

func (s *Server) handleClearAll(ctx context.Context, input *ProfilePathInput) (*struct{}, error) {
	return nil, s.services.History.ClearAll(ctx, input.ProfileID)
}

// softFail turns a storage outage on a read into a degraded success.
// Any other error is returned for the error handler.
func (s *Server) softFail(ctx context.Context, what, profileID string, err error) (bool, error) {
	if err == nil {
		return false, nil
	}
	if !isUnavailable(err) {
		return false, err
	}
	s.logger.WarnContext(ctx, "serving degraded "+what,
		"profile_id", profileID,
		"error", err,
	)
	return true, nil
}
