//go:build !windows && !darwin && !(linux && cgo)

package input

// No-op backend for platforms without input support; the agent can still
// stream frames, it just cannot be driven.

type noopController struct{}

func newController() Controller { return noopController{} }

func (noopController) MoveMouse(x, y int)               {}
func (noopController) Click(button string)              {}
func (noopController) KeyDown(key string)               {}
func (noopController) KeyUp(key string)                 {}
func (noopController) Scroll(dy int)                    {}
func (noopController) TypeString(s string)              {}
func (noopController) MousePos() (int, int)             { return 0, 0 }
func (noopController) ReadClipboard() (string, error)   { return "", nil }
func (noopController) WriteClipboard(text string) error { return nil }
