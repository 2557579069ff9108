package answer

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"screenrelay/internal/protocol"
)

type fakeClient struct {
	mu      sync.Mutex
	replies map[string]string
	err     error
	block   chan struct{} // when set, Analyze waits on it
}

func (c *fakeClient) Analyze(ctx context.Context, frame []byte) (string, error) {
	c.mu.Lock()
	block := c.block
	reply, err := c.replies[string(frame)], c.err
	c.mu.Unlock()
	if block != nil {
		<-block
	}
	return reply, err
}

type recordedEvent struct {
	Type    string
	Payload protocol.Analysis
}

type fakeSink struct {
	mu        sync.Mutex
	broadcast []recordedEvent
	toBound   []recordedEvent
	hostAway  bool
	notify    chan struct{}
}

func newFakeSink() *fakeSink {
	return &fakeSink{notify: make(chan struct{}, 16)}
}

func (s *fakeSink) Broadcast(typ string, payload any) {
	s.mu.Lock()
	s.broadcast = append(s.broadcast, recordedEvent{typ, payload.(protocol.Analysis)})
	s.mu.Unlock()
	s.notify <- struct{}{}
}

func (s *fakeSink) SendToBound(ctx context.Context, typ string, payload any) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.hostAway {
		return false
	}
	s.toBound = append(s.toBound, recordedEvent{typ, payload.(protocol.Analysis)})
	return true
}

func (s *fakeSink) broadcasts() []recordedEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]recordedEvent(nil), s.broadcast...)
}

func (s *fakeSink) waitFor(t *testing.T, typ string) recordedEvent {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		for _, e := range s.broadcasts() {
			if e.Type == typ {
				return e
			}
		}
		select {
		case <-s.notify:
		case <-deadline:
			t.Fatalf("no %s event broadcast", typ)
		}
	}
}

func TestBridgeDeliversResult(t *testing.T) {
	client := &fakeClient{replies: map[string]string{"frame": "reasoning...\n===\nB"}}
	sink := newFakeSink()
	b := NewBridge(client, sink, zerolog.Nop())

	id := b.Submit([]byte("frame"))

	started := sink.waitFor(t, protocol.EventAnalysisStarted)
	assert.Equal(t, id, started.Payload.ID)

	res := sink.waitFor(t, protocol.EventAnalysisResult)
	assert.Equal(t, id, res.Payload.ID)
	assert.Equal(t, "B", res.Payload.Text)
	assert.Equal(t, protocol.KindClickable, res.Payload.Kind)

	sink.mu.Lock()
	defer sink.mu.Unlock()
	require.Len(t, sink.toBound, 1)
	assert.Equal(t, "B", sink.toBound[0].Payload.Text)
}

func TestBridgeReportsFailure(t *testing.T) {
	client := &fakeClient{err: errors.New("service down")}
	sink := newFakeSink()
	b := NewBridge(client, sink, zerolog.Nop())

	id := b.Submit([]byte("frame"))

	failed := sink.waitFor(t, protocol.EventAnalysisFailed)
	assert.Equal(t, id, failed.Payload.ID)
	assert.Equal(t, "service down", failed.Payload.Reason)
}

func TestBridgeDropsStaleResult(t *testing.T) {
	block := make(chan struct{})
	client := &fakeClient{
		replies: map[string]string{"old": "===\nOLD", "new": "===\nNEW"},
		block:   block,
	}
	sink := newFakeSink()
	b := NewBridge(client, sink, zerolog.Nop())

	oldID := b.Submit([]byte("old"))
	newID := b.Submit([]byte("new"))
	close(block)

	res := sink.waitFor(t, protocol.EventAnalysisResult)
	assert.Equal(t, newID, res.Payload.ID)
	assert.Equal(t, "NEW", res.Payload.Text)

	// Give the stale goroutine time to (not) deliver.
	time.Sleep(50 * time.Millisecond)
	for _, e := range sink.broadcasts() {
		assert.NotEqual(t, oldID, e.Payload.ID, "stale result must be discarded")
	}
}

func TestParseAnswerMarker(t *testing.T) {
	text, kind := ParseAnswer("thinking step by step\n===\nC")
	assert.Equal(t, "C", text)
	assert.Equal(t, protocol.KindClickable, kind)
}

func TestParseAnswerNoMarker(t *testing.T) {
	text, kind := ParseAnswer("  42  ")
	assert.Equal(t, "42", text)
	assert.Equal(t, protocol.KindClickable, kind)
}

func TestParseAnswerEssay(t *testing.T) {
	long := strings.Repeat("word ", 30)
	text, kind := ParseAnswer("===\n" + long)
	assert.Equal(t, strings.TrimSpace(long), text)
	assert.Equal(t, protocol.KindEssay, kind)

	text, kind = ParseAnswer("===\nline one\nline two")
	assert.Equal(t, "line one\nline two", text)
	assert.Equal(t, protocol.KindEssay, kind)
}
