package analytics

import (
	"fmt"
	"sort"
	"strings"

	"github.com/sahilm/fuzzy"

	"github.com/fitcoach/fitcoach-server/internal/normalize"
)

// Suggestion modes.
const (
	ModeSubstring = "substring"
	ModeFuzzy     = "fuzzy"
)

// Matcher selects the candidates that suggest partial, in the order they should be shown.
// partial is already normalized; candidates keep their original casing.
type Matcher interface {
	Match(partial string, candidates []string) []string
}

// NewMatcher returns the matcher for a suggestion mode.
func NewMatcher(mode string) (Matcher, error) {
	switch mode {
	case "", ModeSubstring:
		return SubstringMatcher{}, nil
	case ModeFuzzy:
		return FuzzyMatcher{}, nil
	default:
		return nil, fmt.Errorf("unknown suggestion mode %q", mode)
	}
}

// SubstringMatcher keeps a candidate when either string contains the other,
// ignoring case. Candidate order is preserved.
type SubstringMatcher struct{}

// Match implements Matcher.
func (SubstringMatcher) Match(partial string, candidates []string) []string {
	out := make([]string, 0, len(candidates))
	for _, c := range candidates {
		if containsEither(normalize.Lower(c), partial) {
			out = append(out, c)
		}
	}
	return out
}

func containsEither(candidate, partial string) bool {
	return strings.Contains(candidate, partial) || strings.Contains(partial, candidate)
}

// FuzzyMatcher ranks candidates by subsequence match quality, then appends
// candidates that only match by reverse containment.
type FuzzyMatcher struct{}

// Match implements Matcher.
func (FuzzyMatcher) Match(partial string, candidates []string) []string {
	lowered := make([]string, len(candidates))
	for i, c := range candidates {
		lowered[i] = normalize.Lower(c)
	}

	matches := fuzzy.Find(partial, lowered)
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Score == matches[j].Score {
			return matches[i].Index < matches[j].Index
		}
		return matches[i].Score > matches[j].Score
	})

	seen := make(map[int]bool, len(matches))
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		seen[m.Index] = true
		out = append(out, candidates[m.Index])
	}
	for i, l := range lowered {
		if !seen[i] && l != "" && strings.Contains(partial, l) {
			out = append(out, candidates[i])
		}
	}
	return out
}
