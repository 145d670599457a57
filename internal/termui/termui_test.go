package termui

import (
	"testing"

	"github.com/gdamore/tcell/v2"

	"github.com/stretchr/testify/assert"
)

func TestRgbOrDefaultTreatsNegativeAsDefault(t *testing.T) {
	assert.Equal(t, tcell.ColorDefault, rgbOrDefault(Color{R: -1, G: -1, B: -1}))
}

func TestRgbOrDefaultUsesRGBForNonNegative(t *testing.T) {
	got := rgbOrDefault(Color{R: 10, G: 20, B: 30})
	want := tcell.NewRGBColor(10, 20, 30)
	assert.Equal(t, want, got)
}

func TestKeyNameKnownKeys(t *testing.T) {
	cases := map[tcell.Key]string{
		tcell.KeyEnter:      "Enter",
		tcell.KeyEscape:     "Escape",
		tcell.KeyUp:         "Up",
		tcell.KeyDown:       "Down",
		tcell.KeyBackspace2: "Backspace",
		tcell.KeyTab:        "Tab",
	}
	for k, want := range cases {
		assert.Equal(t, want, keyName(k), "keyName(%v)", k)
	}
}

func TestKeyNameUnknownFallsBackToUnknown(t *testing.T) {
	assert.Equal(t, "Unknown", keyName(tcell.KeyF64))
}
