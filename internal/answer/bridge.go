// Package answer forwards captured frames to an external answering
// service and relays the parsed reply. The service's reasoning is opaque:
// an image goes in, text comes out.
package answer

import (
	"context"
	"strings"
	"sync/atomic"

	"github.com/rs/zerolog"

	"screenrelay/internal/protocol"
)

// Client performs one answering-service call.
type Client interface {
	Analyze(ctx context.Context, frame []byte) (string, error)
}

// Sink delivers bridge outcomes to connected peers.
type Sink interface {
	// Broadcast sends an event to every observer.
	Broadcast(typ string, payload any)
	// SendToBound sends an event to the bound host; false when no host is
	// bound or reachable.
	SendToBound(ctx context.Context, typ string, payload any) bool
}

// Answers longer than this, or spanning lines, are essays to be typed
// rather than tokens to be clicked.
const clickableMaxLen = 80

// Bridge runs analysis requests off the relay loop. Requests carry a
// monotonically increasing id; only the newest request's result is
// delivered, so a slow response can never overwrite a fresher one.
type Bridge struct {
	client Client
	sink   Sink
	log    zerolog.Logger

	seq    atomic.Uint64
	latest atomic.Uint64
}

func NewBridge(client Client, sink Sink, log zerolog.Logger) *Bridge {
	return &Bridge{client: client, sink: sink, log: log}
}

// Submit starts an asynchronous analysis of the frame and returns its
// request id. Concurrent submissions race; the newest wins.
func (b *Bridge) Submit(frame []byte) uint64 {
	id := b.seq.Add(1)
	b.latest.Store(id)
	b.sink.Broadcast(protocol.EventAnalysisStarted, protocol.Analysis{ID: id})

	buf := make([]byte, len(frame))
	copy(buf, frame)
	go b.run(id, buf)
	return id
}

func (b *Bridge) run(id uint64, frame []byte) {
	// The originating connection may be gone before the service answers;
	// the call still completes and staleness is judged afterwards.
	reply, err := b.client.Analyze(context.Background(), frame)
	if b.latest.Load() != id {
		b.log.Debug().Uint64("id", id).Msg("discarding stale analysis result")
		return
	}
	if err != nil {
		b.log.Warn().Err(err).Uint64("id", id).Msg("analysis failed")
		b.sink.Broadcast(protocol.EventAnalysisFailed, protocol.Analysis{ID: id, Reason: err.Error()})
		return
	}

	text, kind := ParseAnswer(reply)
	res := protocol.Analysis{ID: id, Kind: kind, Text: text}
	b.sink.Broadcast(protocol.EventAnalysisResult, res)
	if !b.sink.SendToBound(context.Background(), protocol.EventAnalysisResult, res) {
		b.log.Debug().Uint64("id", id).Msg("host unbound; analysis result not delivered")
	}
}

// ParseAnswer extracts the answer from a service reply. The service marks
// its answer with a `===` line; everything after the marker is the answer,
// the full reply is used when no marker is present. Short single-line
// answers are clickable tokens, anything else is essay text.
func ParseAnswer(reply string) (string, string) {
	text := strings.TrimSpace(reply)
	if i := strings.Index(text, "==="); i >= 0 {
		text = strings.TrimSpace(text[i+3:])
	}
	if !strings.ContainsRune(text, '\n') && len(text) <= clickableMaxLen {
		return text, protocol.KindClickable
	}
	return text, protocol.KindEssay
}
