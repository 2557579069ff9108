// Package input abstracts the handful of pointer/keyboard/clipboard
// operations the host agent needs. Platforms with real support get the
// robotgo backend; everything else gets a no-op backend so the agent still
// builds and streams.
package input

// Controller is the platform capability surface. Key names are the
// normalized ones produced by protocol.NormalizeKey.
type Controller interface {
	MoveMouse(x, y int)
	Click(button string)
	KeyDown(key string)
	KeyUp(key string)
	Scroll(dy int)
	TypeString(s string)
	MousePos() (x, y int)
	ReadClipboard() (string, error)
	WriteClipboard(text string) error
}

// New returns the backend for the current platform.
func New() Controller { return newController() }
