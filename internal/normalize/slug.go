package normalize

import (
	"regexp"
	"strings"
)

var (
	slugSeparatorRe = regexp.MustCompile(`[\s_/]+`)
	slugInvalidRe   = regexp.MustCompile(`[^a-z0-9-]`)
	slugDashesRe    = regexp.MustCompile(`-+`)
)

// Slug derives a catalog ID from an exercise name.
//
//	"Barbell Back Squat" → "barbell-back-squat"
//	"Push-Up (Knees)"    → "push-up-knees"
//	"90/90 Hip_Switch"   → "90-90-hip-switch"
func Slug(name string) string {
	s := Lower(strings.TrimSpace(name))
	s = slugSeparatorRe.ReplaceAllString(s, "-")
	s = slugInvalidRe.ReplaceAllString(s, "")
	s = slugDashesRe.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}
