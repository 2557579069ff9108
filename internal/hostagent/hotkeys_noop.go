//go:build !cgo

package hostagent

import "context"

// gohook requires cgo; without it there is no global-hotkey capability,
// so the loop just waits out the connection. Mirrors the no-op backend
// pattern in internal/input.
func (a *Agent) hotkeyLoop(ctx context.Context) {
	<-ctx.Done()
}
