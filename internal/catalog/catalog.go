// Package catalog reads exercise catalog files.
//
// Two formats are understood: the attribute-row CSV export, where each row
// carries one attribute of an exercise, and a JSON array of exercises.
package catalog

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/fitcoach/fitcoach-server/internal/domain"
	domainerrors "github.com/fitcoach/fitcoach-server/internal/errors"
	"github.com/fitcoach/fitcoach-server/internal/normalize"
	"github.com/fitcoach/fitcoach-server/internal/validation"
)

// Supported file extensions.
const (
	ExtCSV  = ".csv"
	ExtJSON = ".json"
)

// Load reads and validates the catalog file at path. The format is chosen by extension.
func Load(path string, v *validation.Validator) ([]*domain.Exercise, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	defer f.Close()

	var exercises []*domain.Exercise
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ExtCSV:
		exercises, err = ParseCSV(f)
	case ExtJSON:
		exercises, err = ParseJSON(f)
	default:
		return nil, domainerrors.Validationf("unsupported catalog format %q", ext)
	}
	if err != nil {
		return nil, fmt.Errorf("parse catalog %s: %w", filepath.Base(path), err)
	}
	AssignMissingIDs(exercises)

	if v != nil {
		if err := Validate(v, exercises); err != nil {
			return nil, err
		}
	}
	return exercises, nil
}

// AssignMissingIDs gives every exercise without an ID the slug of its name.
func AssignMissingIDs(exercises []*domain.Exercise) {
	for _, e := range exercises {
		if e.ID == "" {
			e.ID = normalize.Slug(e.Name)
		}
	}
}

// Validate checks every exercise and rejects duplicate IDs.
func Validate(v *validation.Validator, exercises []*domain.Exercise) error {
	err := validation.ValidateEach(v, exercises, func(i int, e *domain.Exercise) string {
		if e.ID != "" {
			return e.ID
		}
		return fmt.Sprintf("#%d", i)
	})
	if err != nil {
		return err
	}

	seen := make(map[string]bool, len(exercises))
	for _, e := range exercises {
		if seen[e.ID] {
			return domainerrors.Validationf("duplicate exercise id %q", e.ID)
		}
		seen[e.ID] = true
	}
	return nil
}

// jsonExercise is one element of the JSON catalog format.
type jsonExercise struct {
	ID               string   `json:"id"`
	Name             string   `json:"name"`
	VideoURL         string   `json:"video_url"`
	Images           []string `json:"images"`
	Instructions     []string `json:"instructions"`
	PrimaryMuscles   []string `json:"primary_muscles"`
	SecondaryMuscles []string `json:"secondary_muscles"`
	Equipment        []string `json:"equipment"`
	Type             []string `json:"type"`
	Categories       []string `json:"categories"`
	MechanicsType    []string `json:"mechanics_type"`
	Difficulty       string   `json:"difficulty"`
}

// ParseJSON reads a JSON array of exercises.
func ParseJSON(r io.Reader) ([]*domain.Exercise, error) {
	var records []jsonExercise
	if err := json.NewDecoder(r).Decode(&records); err != nil {
		return nil, domainerrors.Validationf("invalid catalog JSON: %v", err)
	}

	out := make([]*domain.Exercise, 0, len(records))
	for _, rec := range records {
		e := &domain.Exercise{
			ID:               strings.TrimSpace(rec.ID),
			Name:             strings.TrimSpace(rec.Name),
			VideoURL:         strings.TrimSpace(rec.VideoURL),
			Images:           cleanList(rec.Images),
			Instructions:     cleanList(rec.Instructions),
			PrimaryMuscles:   cleanList(rec.PrimaryMuscles),
			SecondaryMuscles: cleanList(rec.SecondaryMuscles),
			Equipment:        cleanList(rec.Equipment),
			Categories:       cleanList(append(rec.Type, rec.Categories...)),
			Mechanics:        cleanList(rec.MechanicsType),
			Difficulty:       strings.TrimSpace(rec.Difficulty),
		}
		out = append(out, e)
	}
	return out, nil
}

// cleanList trims values and drops blanks and exact duplicates, keeping order.
func cleanList(values []string) []string {
	var out []string
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" || contains(out, v) {
			continue
		}
		out = append(out, v)
	}
	return out
}

func contains(values []string, v string) bool {
	for _, x := range values {
		if x == v {
			return true
		}
	}
	return false
}
