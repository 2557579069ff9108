package protocol

import (
	"strconv"
	"strings"
)

// keyNames maps browser KeyboardEvent.key values to the names the platform
// input layer understands.
var keyNames = map[string]string{
	"control":    "ctrl",
	"ctrl":       "ctrl",
	"shift":      "shift",
	"alt":        "alt",
	"option":     "alt",
	"meta":       "cmd",
	"command":    "cmd",
	"cmd":        "cmd",
	"enter":      "enter",
	"escape":     "esc",
	"esc":        "esc",
	"backspace":  "backspace",
	"delete":     "delete",
	"insert":     "insert",
	"tab":        "tab",
	" ":          "space",
	"space":      "space",
	"arrowup":    "up",
	"arrowdown":  "down",
	"arrowleft":  "left",
	"arrowright": "right",
	"home":       "home",
	"end":        "end",
	"pageup":     "pageup",
	"pagedown":   "pagedown",
	"capslock":   "capslock",
}

// NormalizeKey converts a browser-style key name to a platform key name.
// Function keys (F1..F12) and single characters pass through lowercased;
// anything unrecognized returns "".
func NormalizeKey(k string) string {
	lk := strings.ToLower(k)
	if name, ok := keyNames[lk]; ok {
		return name
	}
	if len(lk) >= 2 && len(lk) <= 3 && lk[0] == 'f' {
		if n, err := strconv.Atoi(lk[1:]); err == nil && n >= 1 && n <= 12 {
			return lk
		}
	}
	if len(lk) == 1 {
		return lk
	}
	return ""
}

// NormalizeButton maps assorted button spellings onto left/right/middle.
func NormalizeButton(b string) string {
	switch strings.ToLower(b) {
	case "right", "r":
		return "right"
	case "center", "middle", "m":
		return "middle"
	default:
		return "left"
	}
}
