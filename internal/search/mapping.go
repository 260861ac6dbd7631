package search

import (
	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/lang/en"
	"github.com/blevesearch/bleve/v2/mapping"
)

// buildIndexMapping creates the Bleve index mapping for exercise documents.
//
// Names and instructions are English-analyzed for stemming ("squats" finds
// "squat"). Facets use the keyword analyzer so filters and facet counts see
// the exact normalized value.
func buildIndexMapping() mapping.IndexMapping {
	indexMapping := bleve.NewIndexMapping()
	indexMapping.DefaultAnalyzer = en.AnalyzerName

	docMapping := bleve.NewDocumentMapping()

	nameFieldMapping := bleve.NewTextFieldMapping()
	nameFieldMapping.Analyzer = en.AnalyzerName
	nameFieldMapping.Store = true
	nameFieldMapping.IncludeTermVectors = true // highlighting
	docMapping.AddFieldMappingsAt(FieldName, nameFieldMapping)

	// Instructions are long; searchable but not stored.
	instructionsFieldMapping := bleve.NewTextFieldMapping()
	instructionsFieldMapping.Analyzer = en.AnalyzerName
	instructionsFieldMapping.Store = false
	docMapping.AddFieldMappingsAt(FieldInstructions, instructionsFieldMapping)

	sortFieldMapping := bleve.NewTextFieldMapping()
	sortFieldMapping.Analyzer = keyword.Name
	sortFieldMapping.Store = false
	sortFieldMapping.IncludeInAll = false
	docMapping.AddFieldMappingsAt(FieldNameSort, sortFieldMapping)

	idFieldMapping := bleve.NewTextFieldMapping()
	idFieldMapping.Analyzer = keyword.Name
	idFieldMapping.Store = true
	idFieldMapping.IncludeInAll = false
	docMapping.AddFieldMappingsAt(FieldID, idFieldMapping)

	for _, field := range []string{FieldCategories, FieldEquipment, FieldMuscles, FieldPrimary, FieldMechanics, FieldDifficulty} {
		facetFieldMapping := bleve.NewTextFieldMapping()
		facetFieldMapping.Analyzer = keyword.Name
		facetFieldMapping.Store = true
		facetFieldMapping.IncludeInAll = false
		docMapping.AddFieldMappingsAt(field, facetFieldMapping)
	}

	indexMapping.AddDocumentMapping("_default", docMapping)

	return indexMapping
}
