//go:build cgo

package hostagent

import (
	"context"

	hook "github.com/robotn/gohook"
)

// hotkeyLoop binds the inject and analyze hotkeys for the lifetime of the
// connection.
func (a *Agent) hotkeyLoop(ctx context.Context) {
	hook.Register(hook.KeyDown, []string{a.cfg.InjectHotkey}, func(e hook.Event) {
		a.injectStaged()
	})
	hook.Register(hook.KeyDown, []string{a.cfg.AnalyzeHotkey}, func(e hook.Event) {
		a.requestAnalysis()
	})

	events := hook.Start()
	defer hook.End()
	done := make(chan struct{})
	go func() {
		<-hook.Process(events)
		close(done)
	}()
	select {
	case <-ctx.Done():
	case <-done:
	}
}
