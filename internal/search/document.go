// Package search provides full-text exercise search using Bleve, with
// fuzzy and prefix matching on names and keyword facets for filtering.
package search

import (
	"github.com/fitcoach/fitcoach-server/internal/domain"
	"github.com/fitcoach/fitcoach-server/internal/normalize"
)

// Field names of the index mapping.
const (
	FieldID           = "id"
	FieldName         = "name"
	FieldNameSort     = "name_sort"
	FieldInstructions = "instructions"
	FieldCategories   = "categories"
	FieldEquipment    = "equipment"
	FieldMuscles      = "muscles"
	FieldPrimary      = "primary_muscles"
	FieldMechanics    = "mechanics"
	FieldDifficulty   = "difficulty"
)

// ExerciseDocument is the indexed form of an exercise.
// Facet fields hold normalized values so filters match regardless of case
// or separator style.
type ExerciseDocument struct {
	ID             string
	Name           string
	Instructions   string
	Categories     []string
	Equipment      []string
	Muscles        []string // primary and secondary
	PrimaryMuscles []string
	Mechanics      []string
	Difficulty     string
}

// NewExerciseDocument builds the index document of an exercise.
func NewExerciseDocument(e *domain.Exercise) *ExerciseDocument {
	doc := &ExerciseDocument{
		ID:             e.ID,
		Name:           e.Name,
		Categories:     normalize.Facets(e.Categories),
		Equipment:      normalize.Facets(e.Equipment),
		Muscles:        normalize.Facets(e.Muscles()),
		PrimaryMuscles: normalize.Facets(e.PrimaryMuscles),
		Mechanics:      normalize.Facets(e.Mechanics),
		Difficulty:     normalize.Facet(e.Difficulty),
	}
	for i, line := range e.Instructions {
		if i > 0 {
			doc.Instructions += "\n"
		}
		doc.Instructions += line
	}
	return doc
}

// ToMap converts the document to a map keyed by mapping field names.
func (d *ExerciseDocument) ToMap() map[string]any {
	m := map[string]any{
		FieldID:       d.ID,
		FieldName:     d.Name,
		FieldNameSort: normalize.Lower(d.Name),
	}
	if d.Instructions != "" {
		m[FieldInstructions] = d.Instructions
	}
	if len(d.Categories) > 0 {
		m[FieldCategories] = d.Categories
	}
	if len(d.Equipment) > 0 {
		m[FieldEquipment] = d.Equipment
	}
	if len(d.Muscles) > 0 {
		m[FieldMuscles] = d.Muscles
	}
	if len(d.PrimaryMuscles) > 0 {
		m[FieldPrimary] = d.PrimaryMuscles
	}
	if len(d.Mechanics) > 0 {
		m[FieldMechanics] = d.Mechanics
	}
	if d.Difficulty != "" {
		m[FieldDifficulty] = d.Difficulty
	}
	return m
}
