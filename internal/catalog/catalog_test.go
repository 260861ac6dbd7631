package catalog

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainerrors "github.com/fitcoach/fitcoach-server/internal/errors"
	"github.com/fitcoach/fitcoach-server/internal/validation"
)

func TestParseCSV(t *testing.T) {
	f, err := os.Open(filepath.Join("testdata", "exercises.csv"))
	require.NoError(t, err)
	defer f.Close()

	exercises, err := ParseCSV(f)
	require.NoError(t, err)
	require.Len(t, exercises, 2)

	squat := exercises[0]
	assert.Equal(t, "ex-001", squat.ID)
	assert.Equal(t, "Barbell Back Squat", squat.Name)
	assert.Equal(t, "https://cdn.example.com/squat.mp4", squat.VideoURL)
	assert.Equal(t, []string{"https://cdn.example.com/squat.jpg"}, squat.Images)
	assert.Equal(t, []string{"Set the bar on your upper back.", "Sit down & stand up."}, squat.Instructions)
	assert.Equal(t, []string{"Quadriceps"}, squat.PrimaryMuscles)
	assert.Equal(t, []string{"Glutes"}, squat.SecondaryMuscles)
	assert.Equal(t, []string{"Barbell"}, squat.Equipment)
	assert.Equal(t, []string{"Strength"}, squat.Categories)
	assert.Equal(t, []string{"Compound"}, squat.Mechanics)

	rdl := exercises[1]
	assert.Equal(t, "ex-002", rdl.ID)
	assert.Empty(t, rdl.Images)
	assert.Empty(t, rdl.VideoURL)
	assert.Equal(t, []string{"Hinge at the hips.", "Keep a flat back."}, rdl.Instructions)
	assert.Equal(t, "intermediate", rdl.Difficulty)
}

func TestParseCSV_StripsScripts(t *testing.T) {
	in := "id,name_en,description_en\nx1,Curl,\"<script>alert(1)</script>Curl the <b>bar</b>.\"\n"
	exercises, err := ParseCSV(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, exercises, 1)
	assert.Equal(t, []string{"Curl the bar."}, exercises[0].Instructions)
}

func TestParseCSV_Errors(t *testing.T) {
	_, err := ParseCSV(strings.NewReader("name_en,description_en\nCurl,x\n"))
	assert.ErrorIs(t, err, domainerrors.ErrValidation)

	in := "id,name_en,attribute_name,attribute_value\n" +
		"x1,Curl,difficulty,beginner\n" +
		"x1,Curl,difficulty,advanced\n"
	_, err = ParseCSV(strings.NewReader(in))
	assert.ErrorIs(t, err, domainerrors.ErrValidation)

	exercises, err := ParseCSV(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, exercises)
}

func TestParseJSON(t *testing.T) {
	f, err := os.Open(filepath.Join("testdata", "exercises.json"))
	require.NoError(t, err)
	defer f.Close()

	exercises, err := ParseJSON(f)
	require.NoError(t, err)
	require.Len(t, exercises, 2)

	push := exercises[0]
	assert.Equal(t, "Push Up", push.Name)
	assert.Equal(t, []string{"Hands under shoulders.", "Lower your chest to the floor."}, push.Instructions)
	assert.Equal(t, []string{"Strength"}, push.Categories)
	assert.Equal(t, []string{"Chest", "Triceps", "Shoulders"}, push.Muscles())

	plank := exercises[1]
	assert.Equal(t, []string{"Core", "Strength"}, plank.Categories)
	assert.Equal(t, "beginner", plank.Difficulty)

	_, err = ParseJSON(strings.NewReader("{not json"))
	assert.ErrorIs(t, err, domainerrors.ErrValidation)
}

func TestLoad(t *testing.T) {
	v := validation.New()

	exercises, err := Load(filepath.Join("testdata", "exercises.csv"), v)
	require.NoError(t, err)
	assert.Len(t, exercises, 2)

	exercises, err = Load(filepath.Join("testdata", "exercises.json"), v)
	require.NoError(t, err)
	assert.Len(t, exercises, 2)

	_, err = Load(filepath.Join("testdata", "missing.json"), v)
	assert.ErrorIs(t, err, os.ErrNotExist)

	dir := t.TempDir()
	yaml := filepath.Join(dir, "exercises.yaml")
	require.NoError(t, os.WriteFile(yaml, []byte("- id: x"), 0o600))
	_, err = Load(yaml, v)
	assert.ErrorIs(t, err, domainerrors.ErrValidation)
}

func TestLoad_ValidationFailures(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.json")
	body := `[
		{"id": "ok-1", "name": "Row"},
		{"id": "bad-1", "name": "  "},
		{"id": "bad-2", "name": "Curl", "images": ["not a url"]}
	]`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	_, err := Load(path, validation.New())
	require.Error(t, err)

	var de *domainerrors.Error
	require.ErrorAs(t, err, &de)
	failures, ok := de.Details.(map[string]any)
	require.True(t, ok)
	assert.Contains(t, failures, "bad-1")
	assert.Contains(t, failures, "bad-2")
	assert.NotContains(t, failures, "ok-1")
}

func TestValidate_DuplicateIDs(t *testing.T) {
	exercises, err := ParseJSON(strings.NewReader(`[{"id":"a","name":"A"},{"id":"a","name":"B"}]`))
	require.NoError(t, err)

	err = Validate(validation.New(), exercises)
	assert.ErrorIs(t, err, domainerrors.ErrValidation)
	assert.Contains(t, err.Error(), `duplicate exercise id "a"`)
}

func TestLoad_DerivesMissingIDs(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "exercises.json")
	body := `[{"name": "Farmer's Walk", "equipment": ["Dumbbell"]}, {"id": "ex-9", "name": "Dips"}]`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	exercises, err := Load(path, validation.New())
	require.NoError(t, err)
	require.Len(t, exercises, 2)
	assert.Equal(t, "farmers-walk", exercises[0].ID)
	assert.Equal(t, "ex-9", exercises[1].ID)
}
