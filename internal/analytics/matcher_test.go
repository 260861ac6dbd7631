package analytics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubstringMatcher(t *testing.T) {
	candidates := []string{"Deadlift Variations", "dl", "Bench Press", "Romanian deadlift"}

	got := SubstringMatcher{}.Match("deadlift", candidates)
	assert.Equal(t, []string{"Deadlift Variations", "dl", "Romanian deadlift"}, got)

	got = SubstringMatcher{}.Match("zzz", candidates)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestFuzzyMatcher(t *testing.T) {
	candidates := []string{"bench press", "Bulgarian split squat", "dl", "back squat"}

	got := FuzzyMatcher{}.Match("bsq", candidates)
	assert.Contains(t, got, "Bulgarian split squat")
	assert.Contains(t, got, "back squat")
	assert.NotContains(t, got, "bench press")

	// Reverse containment still applies.
	got = FuzzyMatcher{}.Match("dl variations", candidates)
	assert.Contains(t, got, "dl")
}

func TestNewMatcher(t *testing.T) {
	m, err := NewMatcher("")
	require.NoError(t, err)
	assert.IsType(t, SubstringMatcher{}, m)

	m, err = NewMatcher(ModeFuzzy)
	require.NoError(t, err)
	assert.IsType(t, FuzzyMatcher{}, m)

	_, err = NewMatcher("regex")
	assert.Error(t, err)
}

func TestPolicy_Expired(t *testing.T) {
	p := DefaultPolicy()
	require.NoError(t, p.Validate())
	now := fixedNow()
	old := now.AddDate(0, 0, -90).UnixMilli()
	fresh := now.AddDate(0, 0, -1).UnixMilli()

	assert.True(t, p.expired(1, old, now))
	assert.False(t, p.expired(2, old, now))
	assert.False(t, p.expired(1, fresh, now))
}
