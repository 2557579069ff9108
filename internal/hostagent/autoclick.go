package hostagent

import (
	"strings"
	"time"
	"unicode"

	"screenrelay/internal/input"
)

// clickTarget maps a short answer onto normalized screen coordinates.
// Option letters assume a vertically stacked choice list on the left
// side; boolean answers assume a two-button layout.
type clickTarget struct {
	x, y float64
}

var letterTargets = map[string]clickTarget{
	"A": {0.15, 0.35},
	"B": {0.15, 0.45},
	"C": {0.15, 0.55},
	"D": {0.15, 0.65},
	"E": {0.15, 0.75},
}

var boolTargets = map[string]clickTarget{
	"TRUE":  {0.35, 0.5},
	"YES":   {0.35, 0.5},
	"FALSE": {0.65, 0.5},
	"NO":    {0.65, 0.5},
}

var fallbackTarget = clickTarget{0.2, 0.4}

// targetFor resolves a short answer to a click position. Unrecognized
// answers land on the fallback position near the first option.
func targetFor(answer string) clickTarget {
	a := strings.ToUpper(strings.TrimSpace(answer))
	if t, ok := letterTargets[a]; ok {
		return t
	}
	if t, ok := boolTargets[a]; ok {
		return t
	}
	if a != "" && isDigits(a) {
		return clickTarget{0.5, 0.5}
	}
	return fallbackTarget
}

func isDigits(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

// autoClick moves to the resolved position and left-clicks. The pause
// lets the pointer settle before the click lands.
func autoClick(ctrl input.Controller, answer string, screenW, screenH int) {
	t := targetFor(answer)
	ctrl.MoveMouse(int(t.x*float64(screenW)), int(t.y*float64(screenH)))
	time.Sleep(300 * time.Millisecond)
	ctrl.Click("left")
}
