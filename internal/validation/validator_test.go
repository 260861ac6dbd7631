package validation_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainerrors "github.com/fitcoach/fitcoach-server/internal/errors"
	"github.com/fitcoach/fitcoach-server/internal/validation"
)

type searchRequest struct {
	Query      string   `json:"query" validate:"notblank,max=200"`
	Difficulty string   `json:"difficulty,omitempty" validate:"omitempty,oneof=beginner intermediate advanced"`
	Images     []string `json:"images,omitempty" validate:"max=2,dive,url"`
	Ignored    string   `json:"-"`
}

func TestValidator_ValidateSuccess(t *testing.T) {
	v := validation.New()

	err := v.Validate(searchRequest{
		Query:      "squat",
		Difficulty: "beginner",
		Images:     []string{"https://example.com/a.png"},
	})
	assert.NoError(t, err)
}

func TestValidator_ValidateErrors(t *testing.T) {
	v := validation.New()

	tests := []struct {
		name      string
		req       searchRequest
		wantField string
		wantMsg   string
	}{
		{
			name:      "blank query",
			req:       searchRequest{Query: "   "},
			wantField: "query",
			wantMsg:   "is required",
		},
		{
			name:      "query too long",
			req:       searchRequest{Query: string(make([]byte, 201))},
			wantField: "query",
			wantMsg:   "must not exceed 200 characters",
		},
		{
			name:      "unknown difficulty",
			req:       searchRequest{Query: "row", Difficulty: "expert"},
			wantField: "difficulty",
			wantMsg:   "must be one of: beginner intermediate advanced",
		},
		{
			name:      "bad image url",
			req:       searchRequest{Query: "row", Images: []string{"https://example.com/a.png", "not a url"}},
			wantField: "images[1]",
			wantMsg:   "must be a valid URL",
		},
		{
			name:      "too many images",
			req:       searchRequest{Query: "row", Images: []string{"https://a.io", "https://b.io", "https://c.io"}},
			wantField: "images",
			wantMsg:   "must contain at most 2 items",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(tt.req)
			require.Error(t, err)

			var de *domainerrors.Error
			require.ErrorAs(t, err, &de)
			assert.Equal(t, http.StatusBadRequest, de.HTTPStatus())

			details, ok := de.Details.(map[string]string)
			require.True(t, ok)
			assert.Equal(t, tt.wantMsg, details[tt.wantField], "details: %v", details)
		})
	}
}

func TestValidateEach(t *testing.T) {
	v := validation.New()
	items := []searchRequest{
		{Query: "ok"},
		{Query: ""},
		{Query: "also ok"},
		{Query: "row", Difficulty: "impossible"},
	}

	err := validation.ValidateEach(v, items, func(i int, _ searchRequest) string {
		return []string{"a", "b", "c", "d"}[i]
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, domainerrors.ErrValidation)

	var de *domainerrors.Error
	require.ErrorAs(t, err, &de)
	assert.Equal(t, "2 of 4 records failed validation", de.Message)

	failures, ok := de.Details.(map[string]any)
	require.True(t, ok)
	assert.Contains(t, failures, "b")
	assert.Contains(t, failures, "d")
	assert.NotContains(t, failures, "a")

	assert.NoError(t, validation.ValidateEach(v, items[:1], func(int, searchRequest) string { return "" }))
}
