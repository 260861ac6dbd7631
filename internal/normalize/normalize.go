// Package normalize provides the case and whitespace rules used to key search queries and catalog facets.
package normalize

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// QueryKeyer derives the aggregation key for a search query.
type QueryKeyer struct {
	// Trim strips leading and trailing whitespace before lowercasing.
	Trim bool
}

// DefaultQueryKeyer trims and lowercases.
var DefaultQueryKeyer = QueryKeyer{Trim: true}

// Key returns the normalized form of query.
func (k QueryKeyer) Key(query string) string {
	if k.Trim {
		query = strings.TrimSpace(query)
	}
	return Lower(query)
}

// QueryKey is DefaultQueryKeyer.Key.
func QueryKey(query string) string {
	return DefaultQueryKeyer.Key(query)
}

// Lower lowercases s using Unicode case mapping.
// A cases.Caser is stateful, so a fresh one is built per call.
func Lower(s string) string {
	if s == "" {
		return s
	}
	return cases.Lower(language.Und).String(s)
}

// IsBlank reports whether s contains only whitespace.
func IsBlank(s string) bool {
	return strings.TrimFunc(s, unicode.IsSpace) == ""
}

// Facet lowercases a facet value and collapses runs of whitespace, dashes and underscores
// into a single space: "Lower_Back " and "lower-back" both become "lower back".
func Facet(value string) string {
	fields := strings.FieldsFunc(Lower(value), func(r rune) bool {
		return unicode.IsSpace(r) || r == '-' || r == '_'
	})
	return strings.Join(fields, " ")
}

// Facets applies Facet to every value, dropping empties and duplicates while keeping first-seen order.
func Facets(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		f := Facet(v)
		if f == "" {
			continue
		}
		if _, dup := seen[f]; dup {
			continue
		}
		seen[f] = struct{}{}
		out = append(out, f)
	}
	return out
}
