package color

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
)

var hexColor = regexp.MustCompile(`^#[0-9A-F]{6}$`)

func TestForProfile(t *testing.T) {
	a := ForProfile("prf-1")
	assert.Regexp(t, hexColor, a)
	assert.Equal(t, a, ForProfile("prf-1"))
	assert.Regexp(t, hexColor, ForProfile(""))
}

func TestHSLToRGB(t *testing.T) {
	tests := []struct {
		hue     float64
		s, l    float64
		r, g, b uint8
	}{
		{0, 1, 0.5, 255, 0, 0},
		{120, 1, 0.5, 0, 255, 0},
		{240, 1, 0.5, 0, 0, 255},
		{0, 0, 0.5, 128, 128, 128},
		{60, 1, 0.5, 255, 255, 0},
	}

	for _, tt := range tests {
		r, g, b := hslToRGB(tt.hue, tt.s, tt.l)
		assert.Equal(t, [3]uint8{tt.r, tt.g, tt.b}, [3]uint8{r, g, b}, "hue %v", tt.hue)
	}
}
