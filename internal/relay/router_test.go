package relay

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"screenrelay/internal/metrics"
	"screenrelay/internal/protocol"
	"screenrelay/internal/ratelimit"
)

func newTestRouter(t *testing.T, limiter *ratelimit.Limiter) (*Router, *Registrar, *fakeDirectory) {
	t.Helper()
	if limiter == nil {
		limiter = ratelimit.New(false, 0, 0)
	}
	reg := newTestRegistrar()
	dir := &fakeDirectory{peers: map[string]Peer{}}
	r := NewRouter(reg, dir, limiter, metrics.New(), metrics.NewMonitor(), zerolog.Nop())
	return r, reg, dir
}

func TestRouteCommandNoHost(t *testing.T) {
	r, _, _ := newTestRouter(t, nil)
	obs := &fakePeer{id: "o1"}

	r.RouteCommand(context.Background(), obs, protocol.Command{Action: protocol.ActionMove})

	events := obs.sentEvents()
	require.Len(t, events, 1)
	assert.Equal(t, protocol.EventCommandRejected, events[0].Type)
	assert.Equal(t, reasonNoHost, rejectionReason(events[0]))
}

func TestRouteCommandForwardsToHost(t *testing.T) {
	r, reg, dir := newTestRouter(t, nil)
	host := &fakePeer{id: "h1"}
	dir.peers["h1"] = host
	bindHost(t, reg, "h1")
	obs := &fakePeer{id: "o1"}

	cmd := protocol.Command{Action: protocol.ActionClick, X: 10, Y: 20, Button: "left"}
	r.RouteCommand(context.Background(), obs, cmd)

	events := host.sentEvents()
	require.Len(t, events, 1)
	assert.Equal(t, protocol.EventCommand, events[0].Type)
	assert.Equal(t, cmd, events[0].Payload)
	assert.Empty(t, obs.sentEvents())
}

func TestRouteCommandRateLimited(t *testing.T) {
	limiter := ratelimit.New(true, 2, time.Minute)
	r, reg, dir := newTestRouter(t, limiter)
	host := &fakePeer{id: "h1"}
	dir.peers["h1"] = host
	bindHost(t, reg, "h1")
	obs := &fakePeer{id: "o1"}
	ctx := context.Background()

	for range 3 {
		r.RouteCommand(ctx, obs, protocol.Command{Action: protocol.ActionMove})
	}

	assert.Len(t, host.sentEvents(), 2)
	events := obs.sentEvents()
	require.Len(t, events, 1)
	assert.Equal(t, reasonRateLimited, rejectionReason(events[0]))
}

func TestRateLimitKeyedPerAction(t *testing.T) {
	limiter := ratelimit.New(true, 1, time.Minute)
	r, reg, dir := newTestRouter(t, limiter)
	host := &fakePeer{id: "h1"}
	dir.peers["h1"] = host
	bindHost(t, reg, "h1")
	obs := &fakePeer{id: "o1"}
	ctx := context.Background()

	r.RouteCommand(ctx, obs, protocol.Command{Action: protocol.ActionMove})
	r.RouteCommand(ctx, obs, protocol.Command{Action: protocol.ActionScroll, DY: 1})

	assert.Len(t, host.sentEvents(), 2)
	assert.Empty(t, obs.sentEvents())
}

func TestRouteObserverClipboardStampsOrigin(t *testing.T) {
	r, reg, dir := newTestRouter(t, nil)
	host := &fakePeer{id: "h1"}
	dir.peers["h1"] = host
	bindHost(t, reg, "h1")

	r.RouteObserverClipboard(context.Background(), &fakePeer{id: "o1"}, "copied text")

	events := host.sentEvents()
	require.Len(t, events, 1)
	clip, ok := events[0].Payload.(protocol.Clipboard)
	require.True(t, ok)
	assert.Equal(t, protocol.OriginObserver, clip.Origin)
	assert.Equal(t, "copied text", clip.Text)
}

func TestRouteFileChunkAcks(t *testing.T) {
	r, reg, dir := newTestRouter(t, nil)
	host := &fakePeer{id: "h1"}
	dir.peers["h1"] = host
	bindHost(t, reg, "h1")
	obs := &fakePeer{id: "o1"}

	chunk := protocol.FileChunk{Name: "a.bin", Offset: 4096, Data: []byte("x")}
	r.RouteFileChunk(context.Background(), obs, chunk)

	hostEvents := host.sentEvents()
	require.Len(t, hostEvents, 1)
	assert.Equal(t, protocol.EventFileChunk, hostEvents[0].Type)

	obsEvents := obs.sentEvents()
	require.Len(t, obsEvents, 1)
	ack, ok := obsEvents[0].Payload.(protocol.FileChunkAck)
	require.True(t, ok)
	assert.True(t, ack.OK)
	assert.Equal(t, int64(4096), ack.Offset)
}

func TestRouteFileChunkNackWithoutHost(t *testing.T) {
	r, _, _ := newTestRouter(t, nil)
	obs := &fakePeer{id: "o1"}

	r.RouteFileChunk(context.Background(), obs, protocol.FileChunk{Name: "a.bin"})

	events := obs.sentEvents()
	require.Len(t, events, 1)
	require.Equal(t, protocol.EventFileChunkAck, events[0].Type)
	ack := events[0].Payload.(protocol.FileChunkAck)
	assert.False(t, ack.OK)
	assert.Equal(t, reasonNoHost, ack.Reason)
}

func TestRouteSettingsNoHostRejects(t *testing.T) {
	r, _, _ := newTestRouter(t, nil)
	obs := &fakePeer{id: "o1"}

	r.RouteSettings(context.Background(), obs, protocol.Settings{FPS: 10, Quality: 60})

	events := obs.sentEvents()
	require.Len(t, events, 1)
	assert.Equal(t, protocol.EventCommandRejected, events[0].Type)
}
