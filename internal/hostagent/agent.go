// Package hostagent is the machine-side client: it registers with the
// relay, streams captured frames, applies routed input and clipboard
// events, receives file transfers, and fires local hotkeys.
package hostagent

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/kbinani/screenshot"
	"github.com/rs/zerolog"

	"screenrelay/internal/capture"
	"screenrelay/internal/config"
	"screenrelay/internal/input"
	"screenrelay/internal/protocol"
)

const (
	writeTimeout  = 5 * time.Second
	clipboardPoll = time.Second
)

// Agent is one connection-lifetime of the host client. Run returns when
// the connection drops; the caller decides whether to reconnect.
type Agent struct {
	cfg  config.Config
	ctrl input.Controller
	log  zerolog.Logger

	ws      *websocket.Conn
	writeMu sync.Mutex

	pipeline *capture.Pipeline
	receiver *Receiver

	mu       sync.Mutex
	lastClip string // last clipboard text seen or applied, for echo suppression
	injected string // text staged for the inject hotkey
}

func New(cfg config.Config, ctrl input.Controller, log zerolog.Logger) *Agent {
	a := &Agent{
		cfg:      cfg,
		ctrl:     ctrl,
		log:      log,
		receiver: NewReceiver(cfg.DownloadDir, log),
	}
	a.pipeline = capture.New(
		cfg.DisplayNum,
		cfg.DiffThreshold,
		capture.Settings{FPS: cfg.TargetFPS, Quality: cfg.JPEGQuality},
		func(frame []byte) { _ = a.sendBinary(protocol.BinFrameRaw, frame) },
		log,
	)
	return a
}

// Run connects, registers, and services the connection until it drops or
// the context is cancelled.
func (a *Agent) Run(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	ws, _, err := dialer.DialContext(ctx, a.cfg.ServerURL, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", a.cfg.ServerURL, err)
	}
	a.ws = ws
	defer ws.Close()

	if err := a.sendEvent(protocol.EventRegister, protocol.Register{Token: a.cfg.Secret}); err != nil {
		return fmt.Errorf("send registration: %w", err)
	}

	loopCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		<-loopCtx.Done()
		_ = ws.Close()
	}()

	started := false
	for {
		kind, data, err := ws.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("read: %w", err)
		}
		if kind != websocket.TextMessage {
			continue
		}
		var msg protocol.Message
		if err := json.Unmarshal(data, &msg); err != nil {
			a.log.Debug().Err(err).Msg("bad envelope")
			continue
		}

		switch msg.Type {
		case protocol.EventRegistered:
			if !started {
				started = true
				a.log.Info().Msg("registered, starting capture")
				go a.pipeline.Run(loopCtx)
				go a.clipboardLoop(loopCtx)
				go a.hotkeyLoop(loopCtx)
			}
		case protocol.EventRegisterFailed:
			var p protocol.Reason
			_ = json.Unmarshal(msg.Payload, &p)
			return fmt.Errorf("registration rejected: %s", p.Reason)
		case protocol.EventHostDisconnected:
			// Another agent took over the binding.
			return fmt.Errorf("evicted by a newer registration")
		default:
			a.dispatch(msg)
		}
	}
}

func (a *Agent) sendEvent(typ string, payload any) error {
	data, err := protocol.Encode(typ, payload)
	if err != nil {
		return err
	}
	a.writeMu.Lock()
	defer a.writeMu.Unlock()
	_ = a.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
	return a.ws.WriteMessage(websocket.TextMessage, data)
}

func (a *Agent) sendBinary(kind byte, payload []byte) error {
	buf := make([]byte, 1+len(payload))
	buf[0] = kind
	copy(buf[1:], payload)
	a.writeMu.Lock()
	defer a.writeMu.Unlock()
	_ = a.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
	return a.ws.WriteMessage(websocket.BinaryMessage, buf)
}

func (a *Agent) dispatch(msg protocol.Message) {
	switch msg.Type {
	case protocol.EventCommand:
		var cmd protocol.Command
		if err := json.Unmarshal(msg.Payload, &cmd); err == nil {
			a.applyCommand(cmd)
		}
	case protocol.EventSettings:
		var s protocol.Settings
		if err := json.Unmarshal(msg.Payload, &s); err == nil {
			a.pipeline.Update(capture.Settings{FPS: s.FPS, Quality: s.Quality})
		}
	case protocol.EventInjectionText:
		var p protocol.Text
		if err := json.Unmarshal(msg.Payload, &p); err == nil {
			a.mu.Lock()
			a.injected = p.Text
			a.mu.Unlock()
			a.log.Info().Int("len", len(p.Text)).Msg("injection text staged")
		}
	case protocol.EventClipboard:
		var p protocol.Clipboard
		if err := json.Unmarshal(msg.Payload, &p); err == nil {
			a.applyClipboard(p.Text)
		}
	case protocol.EventFileChunk:
		var c protocol.FileChunk
		if err := json.Unmarshal(msg.Payload, &c); err == nil {
			if err := a.receiver.Chunk(c.Name, c.Offset, c.Data); err != nil {
				a.log.Warn().Err(err).Msg("file chunk rejected")
			}
		}
	case protocol.EventFileComplete:
		var c protocol.FileComplete
		if err := json.Unmarshal(msg.Payload, &c); err == nil {
			if err := a.receiver.Complete(c.Name, c.Size); err != nil {
				a.log.Warn().Err(err).Msg("file completion failed")
			}
		}
	case protocol.EventAnalysisResult:
		var res protocol.Analysis
		if err := json.Unmarshal(msg.Payload, &res); err == nil {
			a.applyAnalysis(res)
		}
	default:
		a.log.Debug().Str("type", msg.Type).Msg("unhandled event")
	}
}

func (a *Agent) applyCommand(cmd protocol.Command) {
	switch cmd.Action {
	case protocol.ActionMove:
		a.ctrl.MoveMouse(cmd.X, cmd.Y)
	case protocol.ActionClick:
		a.ctrl.MoveMouse(cmd.X, cmd.Y)
		a.ctrl.Click(protocol.NormalizeButton(cmd.Button))
	case protocol.ActionScroll:
		a.ctrl.Scroll(cmd.DY)
	case protocol.ActionKeyDown:
		if key := protocol.NormalizeKey(cmd.Key); key != "" {
			a.ctrl.KeyDown(key)
		}
	case protocol.ActionKeyUp:
		if key := protocol.NormalizeKey(cmd.Key); key != "" {
			a.ctrl.KeyUp(key)
		}
	}
}

// applyClipboard writes routed clipboard text locally and records it so
// the poll loop does not send it straight back.
func (a *Agent) applyClipboard(text string) {
	a.mu.Lock()
	a.lastClip = text
	a.mu.Unlock()
	if err := a.ctrl.WriteClipboard(text); err != nil {
		a.log.Warn().Err(err).Msg("clipboard write failed")
	}
}

func (a *Agent) applyAnalysis(res protocol.Analysis) {
	switch res.Kind {
	case protocol.KindClickable:
		bounds := screenshot.GetDisplayBounds(a.cfg.DisplayNum)
		autoClick(a.ctrl, res.Text, bounds.Dx(), bounds.Dy())
		a.log.Info().Str("answer", res.Text).Msg("auto-clicked answer")
	case protocol.KindEssay:
		a.mu.Lock()
		a.injected = res.Text
		a.mu.Unlock()
		a.log.Info().Int("len", len(res.Text)).Msg("essay answer staged for injection")
	}
}

// clipboardLoop polls local clipboard changes upstream. Content the agent
// itself just applied is skipped.
func (a *Agent) clipboardLoop(ctx context.Context) {
	ticker := time.NewTicker(clipboardPoll)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		text, err := a.ctrl.ReadClipboard()
		if err != nil {
			continue
		}
		a.mu.Lock()
		changed := text != "" && text != a.lastClip
		if changed {
			a.lastClip = text
		}
		a.mu.Unlock()
		if changed {
			_ = a.sendEvent(protocol.EventClipboard, protocol.Clipboard{Text: text, Origin: protocol.OriginHost})
		}
	}
}

func (a *Agent) injectStaged() {
	a.mu.Lock()
	text := a.injected
	a.mu.Unlock()
	if text == "" {
		a.log.Debug().Msg("inject hotkey with no staged text")
		return
	}
	a.ctrl.TypeString(text)
	a.log.Info().Int("len", len(text)).Msg("typed staged text")
}

// requestAnalysis grabs a fresh full-quality frame and ships it for
// analysis, bypassing the streaming pipeline.
func (a *Agent) requestAnalysis() {
	img, err := capture.Grab(a.cfg.DisplayNum)
	if err != nil {
		a.log.Warn().Err(err).Msg("analysis capture failed")
		return
	}
	frame, err := capture.EncodeJPEG(img, 90)
	if err != nil {
		a.log.Warn().Err(err).Msg("analysis encode failed")
		return
	}
	if err := a.sendBinary(protocol.BinAnalyze, frame); err != nil {
		a.log.Warn().Err(err).Msg("analysis request send failed")
		return
	}
	a.log.Info().Int("bytes", len(frame)).Msg("analysis requested")
}
