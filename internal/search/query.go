package search

import (
	"context"
	"fmt"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"

	"github.com/fitcoach/fitcoach-server/internal/normalize"
)

// Sort orders.
const (
	SortRelevance = "relevance"
	SortName      = "name"
)

// Limits applied to SearchParams.
const (
	DefaultLimit = 20
	MaxLimit     = 100
	facetSize    = 20
)

// SearchParams configures an exercise search.
type SearchParams struct {
	Query string

	// Filters. Values are OR-ed within a field and AND-ed across fields.
	Categories []string
	Equipment  []string
	Muscles    []string
	Difficulty string

	Limit  int
	Offset int

	SortBy        string // SortRelevance or SortName
	IncludeFacets bool
	Highlight     bool
}

// HasCriteria reports whether the params carry a query or any filter.
func (p SearchParams) HasCriteria() bool {
	return !normalize.IsBlank(p.Query) || len(p.Categories) > 0 || len(p.Equipment) > 0 ||
		len(p.Muscles) > 0 || p.Difficulty != ""
}

// SearchResult holds one page of hits.
type SearchResult struct {
	Query  string       `json:"query"`
	Total  uint64       `json:"total"`
	TookMs int64        `json:"took_ms"`
	Hits   []SearchHit  `json:"hits"`
	Facets SearchFacets `json:"facets,omitempty"`
}

// SearchHit is a single matching exercise.
type SearchHit struct {
	ID             string            `json:"id"`
	Score          float64           `json:"score"`
	Name           string            `json:"name"`
	Categories     []string          `json:"categories,omitempty"`
	Equipment      []string          `json:"equipment,omitempty"`
	PrimaryMuscles []string          `json:"primary_muscles,omitempty"`
	Difficulty     string            `json:"difficulty,omitempty"`
	Highlights     map[string]string `json:"highlights,omitempty"`
}

// SearchFacets contains facet counts over the whole result set.
type SearchFacets struct {
	Categories []FacetCount `json:"categories,omitempty"`
	Equipment  []FacetCount `json:"equipment,omitempty"`
	Muscles    []FacetCount `json:"muscles,omitempty"`
	Difficulty []FacetCount `json:"difficulty,omitempty"`
}

// FacetCount represents a facet value and its count.
type FacetCount struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

// Search executes a search query.
func (s *SearchIndex) Search(ctx context.Context, params SearchParams) (*SearchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	limit := params.Limit
	switch {
	case limit <= 0:
		limit = DefaultLimit
	case limit > MaxLimit:
		limit = MaxLimit
	}
	offset := max(params.Offset, 0)

	req := bleve.NewSearchRequestOptions(buildSearchQuery(params), limit, offset, false)

	if params.SortBy == SortName {
		req.SortBy([]string{FieldNameSort, "_id"})
	} else {
		req.SortBy([]string{"-_score", FieldNameSort})
	}

	if params.IncludeFacets {
		for _, field := range []string{FieldCategories, FieldEquipment, FieldMuscles, FieldDifficulty} {
			req.AddFacet(field, bleve.NewFacetRequest(field, facetSize))
		}
	}

	if params.Highlight {
		req.Highlight = bleve.NewHighlight()
		req.Highlight.AddField(FieldName)
	}

	req.Fields = []string{FieldName, FieldCategories, FieldEquipment, FieldPrimary, FieldDifficulty}

	res, err := s.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("execute search: %w", err)
	}

	result := &SearchResult{
		Query:  params.Query,
		Total:  res.Total,
		TookMs: res.Took.Milliseconds(),
		Hits:   make([]SearchHit, 0, len(res.Hits)),
	}

	for _, hit := range res.Hits {
		h := SearchHit{
			ID:             hit.ID,
			Score:          hit.Score,
			Name:           fieldString(hit.Fields[FieldName]),
			Categories:     fieldStrings(hit.Fields[FieldCategories]),
			Equipment:      fieldStrings(hit.Fields[FieldEquipment]),
			PrimaryMuscles: fieldStrings(hit.Fields[FieldPrimary]),
			Difficulty:     fieldString(hit.Fields[FieldDifficulty]),
		}
		if len(hit.Fragments) > 0 {
			h.Highlights = make(map[string]string, len(hit.Fragments))
			for field, fragments := range hit.Fragments {
				if len(fragments) > 0 {
					h.Highlights[field] = fragments[0]
				}
			}
		}
		result.Hits = append(result.Hits, h)
	}

	if params.IncludeFacets {
		result.Facets = extractFacets(res)
	}

	return result, nil
}

// buildSearchQuery constructs the Bleve query from params.
func buildSearchQuery(params SearchParams) query.Query {
	var queries []query.Query

	if text := strings.TrimSpace(params.Query); text != "" {
		nameMatch := bleve.NewMatchQuery(text)
		nameMatch.SetField(FieldName)
		nameMatch.SetBoost(3.0)

		instructionsMatch := bleve.NewMatchQuery(text)
		instructionsMatch.SetField(FieldInstructions)
		instructionsMatch.SetBoost(0.5)

		// Muscle and equipment words ("glutes", "barbell") find exercises too.
		facetMatch := bleve.NewTermQuery(normalize.Facet(text))
		facetMatch.SetField(FieldMuscles)
		equipmentMatch := bleve.NewTermQuery(normalize.Facet(text))
		equipmentMatch.SetField(FieldEquipment)

		textQueries := []query.Query{nameMatch, instructionsMatch, facetMatch, equipmentMatch}

		// Typo tolerance on the name.
		fuzzyMatch := bleve.NewMatchQuery(text)
		fuzzyMatch.SetField(FieldName)
		fuzzyMatch.SetFuzziness(1)
		fuzzyMatch.SetBoost(0.8)
		textQueries = append(textQueries, fuzzyMatch)

		// Prefix on the last word, for search-as-you-type.
		words := strings.Fields(normalize.Lower(text))
		if last := words[len(words)-1]; len(last) >= 2 {
			prefix := bleve.NewPrefixQuery(last)
			prefix.SetField(FieldName)
			prefix.SetBoost(0.5)
			textQueries = append(textQueries, prefix)
		}

		queries = append(queries, bleve.NewDisjunctionQuery(textQueries...))
	}

	queries = appendTermFilter(queries, FieldCategories, params.Categories)
	queries = appendTermFilter(queries, FieldEquipment, params.Equipment)
	queries = appendTermFilter(queries, FieldMuscles, params.Muscles)
	if params.Difficulty != "" {
		queries = appendTermFilter(queries, FieldDifficulty, []string{params.Difficulty})
	}

	switch len(queries) {
	case 0:
		return bleve.NewMatchAllQuery()
	case 1:
		return queries[0]
	default:
		return bleve.NewConjunctionQuery(queries...)
	}
}

// appendTermFilter adds an OR of exact normalized values on field.
func appendTermFilter(queries []query.Query, field string, values []string) []query.Query {
	values = normalize.Facets(values)
	if len(values) == 0 {
		return queries
	}
	terms := make([]query.Query, 0, len(values))
	for _, v := range values {
		if v == "" {
			continue
		}
		tq := bleve.NewTermQuery(v)
		tq.SetField(field)
		terms = append(terms, tq)
	}
	if len(terms) == 0 {
		return queries
	}
	return append(queries, bleve.NewDisjunctionQuery(terms...))
}

func extractFacets(result *bleve.SearchResult) SearchFacets {
	return SearchFacets{
		Categories: facetCounts(result, FieldCategories),
		Equipment:  facetCounts(result, FieldEquipment),
		Muscles:    facetCounts(result, FieldMuscles),
		Difficulty: facetCounts(result, FieldDifficulty),
	}
}

func facetCounts(result *bleve.SearchResult, field string) []FacetCount {
	facet, ok := result.Facets[field]
	if !ok || facet.Terms == nil {
		return nil
	}
	var out []FacetCount
	for _, term := range facet.Terms.Terms() {
		out = append(out, FacetCount{Value: term.Term, Count: term.Count})
	}
	return out
}

// Stored multi-value fields come back as []any, single values as string.
func fieldStrings(v any) []string {
	switch x := v.(type) {
	case string:
		return []string{x}
	case []any:
		out := make([]string, 0, len(x))
		for _, item := range x {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

func fieldString(v any) string {
	if s := fieldStrings(v); len(s) > 0 {
		return s[0]
	}
	return ""
}
