package catalog

import (
	"encoding/csv"
	"errors"
	"fmt"
	"html"
	"io"
	"strings"

	"github.com/microcosm-cc/bluemonday"

	"github.com/fitcoach/fitcoach-server/internal/domain"
	domainerrors "github.com/fitcoach/fitcoach-server/internal/errors"
)

// CSV columns.
const (
	colID          = "id"
	colName        = "name_en"
	colVideo       = "full_video_url"
	colImage       = "full_video_image_url"
	colDescription = "description_en"
	colAttrName    = "attribute_name"
	colAttrValue   = "attribute_value"
)

// Attribute names.
const (
	attrPrimaryMuscle   = "primary_muscle"
	attrSecondaryMuscle = "secondary_muscle"
	attrEquipment       = "equipment"
	attrType            = "type"
	attrMechanicsType   = "mechanics_type"
	attrDifficulty      = "difficulty"
)

// lineBreaks turns block-level markup into newlines before tags are stripped.
var lineBreaks = strings.NewReplacer(
	"<br>", "\n", "<br/>", "\n", "<br />", "\n",
	"</p>", "\n", "</li>", "\n", "</div>", "\n",
)

// ParseCSV reads the attribute-row CSV format. Rows sharing an id describe
// one exercise; the first row of an id supplies its name, video, image and
// description, and every row may add one attribute value.
func ParseCSV(r io.Reader) ([]*domain.Exercise, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return []*domain.Exercise{}, nil
	}
	if err != nil {
		return nil, domainerrors.Validationf("invalid catalog CSV header: %v", err)
	}

	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))] = i
	}
	for _, required := range []string{colID, colName} {
		if _, ok := cols[required]; !ok {
			return nil, domainerrors.Validationf("catalog CSV is missing column %q", required)
		}
	}

	field := func(row []string, name string) string {
		i, ok := cols[name]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	policy := bluemonday.StrictPolicy()
	byID := make(map[string]*domain.Exercise)
	var order []*domain.Exercise

	for line := 2; ; line++ {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, domainerrors.Validationf("invalid catalog CSV at line %d: %v", line, err)
		}

		id := field(row, colID)
		if id == "" {
			continue
		}

		e, ok := byID[id]
		if !ok {
			e = &domain.Exercise{
				ID:           id,
				Name:         field(row, colName),
				VideoURL:     field(row, colVideo),
				Instructions: instructions(policy, field(row, colDescription)),
			}
			if img := field(row, colImage); img != "" {
				e.Images = []string{img}
			}
			byID[id] = e
			order = append(order, e)
		}

		if err := applyAttribute(e, field(row, colAttrName), field(row, colAttrValue)); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
	}

	return order, nil
}

func applyAttribute(e *domain.Exercise, name, value string) error {
	if name == "" || value == "" {
		return nil
	}
	switch strings.ToLower(name) {
	case attrPrimaryMuscle:
		e.PrimaryMuscles = appendUnique(e.PrimaryMuscles, value)
	case attrSecondaryMuscle:
		e.SecondaryMuscles = appendUnique(e.SecondaryMuscles, value)
	case attrEquipment:
		e.Equipment = appendUnique(e.Equipment, value)
	case attrType:
		e.Categories = appendUnique(e.Categories, value)
	case attrMechanicsType:
		e.Mechanics = appendUnique(e.Mechanics, value)
	case attrDifficulty:
		if e.Difficulty != "" && e.Difficulty != value {
			return domainerrors.Validationf("exercise %q has conflicting difficulties %q and %q", e.ID, e.Difficulty, value)
		}
		e.Difficulty = value
	}
	return nil
}

func appendUnique(values []string, v string) []string {
	if contains(values, v) {
		return values
	}
	return append(values, v)
}

// instructions strips markup from a description and splits it into non-empty lines.
func instructions(policy *bluemonday.Policy, description string) []string {
	if description == "" {
		return nil
	}
	text := html.UnescapeString(policy.Sanitize(lineBreaks.Replace(description)))

	var out []string
	for _, line := range strings.Split(text, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return out
}
