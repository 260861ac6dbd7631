package domain

import "time"

// Exercise is one entry of the exercise catalog.
type Exercise struct {
	ID               string    `json:"id" validate:"notblank,max=64,excludesall=/"`
	Name             string    `json:"name" validate:"notblank,max=200"`
	VideoURL         string    `json:"video_url,omitempty" validate:"omitempty,url"`
	Images           []string  `json:"images,omitempty" validate:"dive,url"`
	Instructions     []string  `json:"instructions,omitempty"`
	PrimaryMuscles   []string  `json:"primary_muscles,omitempty"`
	SecondaryMuscles []string  `json:"secondary_muscles,omitempty"`
	Equipment        []string  `json:"equipment,omitempty"`
	Categories       []string  `json:"categories,omitempty"`
	Mechanics        []string  `json:"mechanics_type,omitempty"`
	Difficulty       string    `json:"difficulty,omitempty"`
	ImportedAt       time.Time `json:"imported_at"`
}

// Muscles returns primary muscles followed by secondary muscles.
func (e *Exercise) Muscles() []string {
	out := make([]string, 0, len(e.PrimaryMuscles)+len(e.SecondaryMuscles))
	out = append(out, e.PrimaryMuscles...)
	return append(out, e.SecondaryMuscles...)
}

// Profile owns one search history ledger and one frequency index.
type Profile struct {
	ID        string    `json:"id"`
	Name      string    `json:"name,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
