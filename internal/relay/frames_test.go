package relay

import (
	"bytes"
	"context"
	"math/rand"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"screenrelay/internal/metrics"
	"screenrelay/internal/protocol"
)

func newTestFrameRelay(t *testing.T, compress bool) (*FrameRelay, *Registrar, *fakeSink) {
	t.Helper()
	reg := newTestRegistrar()
	sink := &fakeSink{}
	f := NewFrameRelay(reg, sink, metrics.New(), metrics.NewMonitor(), compress, zerolog.Nop())
	return f, reg, sink
}

func bindHost(t *testing.T, reg *Registrar, id string) {
	t.Helper()
	_, err := reg.Register(context.Background(), id, "sekrit")
	require.NoError(t, err)
}

// Pseudo-random bytes do not gzip below the ratio cutoff.
func incompressibleFrame(n int) []byte {
	r := rand.New(rand.NewSource(42))
	buf := make([]byte, n)
	r.Read(buf)
	return buf
}

func TestSubmitIgnoresUnboundSender(t *testing.T) {
	f, _, sink := newTestFrameRelay(t, false)
	f.Submit(context.Background(), "nobody", []byte("frame"))
	assert.Empty(t, sink.sent())
}

func TestSubmitDeduplicatesRepeatedFrame(t *testing.T) {
	f, reg, sink := newTestFrameRelay(t, false)
	bindHost(t, reg, "h1")
	ctx := context.Background()

	frame := []byte("same frame bytes")
	f.Submit(ctx, "h1", frame)
	f.Submit(ctx, "h1", frame)
	f.Submit(ctx, "h1", []byte("different frame"))

	sent := sink.sent()
	require.Len(t, sent, 2)
	assert.Equal(t, protocol.BinFrameRaw, sent[0].Kind)
}

func TestSubmitCompressesWhenItPays(t *testing.T) {
	f, reg, sink := newTestFrameRelay(t, true)
	bindHost(t, reg, "h1")

	frame := bytes.Repeat([]byte("abcdefgh"), 512) // 4KB, highly compressible
	f.Submit(context.Background(), "h1", frame)

	sent := sink.sent()
	require.Len(t, sent, 1)
	assert.Equal(t, protocol.BinFrameGzip, sent[0].Kind)
	assert.Less(t, len(sent[0].Payload), len(frame))
}

func TestSubmitSkipsCompressionWhenItDoesNot(t *testing.T) {
	f, reg, sink := newTestFrameRelay(t, true)
	bindHost(t, reg, "h1")

	frame := incompressibleFrame(4096)
	f.Submit(context.Background(), "h1", frame)

	sent := sink.sent()
	require.Len(t, sent, 1)
	assert.Equal(t, protocol.BinFrameRaw, sent[0].Kind)
	assert.Equal(t, frame, sent[0].Payload)
}

func TestSubmitSkipsCompressionBelowMinSize(t *testing.T) {
	f, reg, sink := newTestFrameRelay(t, true)
	bindHost(t, reg, "h1")

	frame := bytes.Repeat([]byte("a"), 512)
	f.Submit(context.Background(), "h1", frame)

	sent := sink.sent()
	require.Len(t, sent, 1)
	assert.Equal(t, protocol.BinFrameRaw, sent[0].Kind)
}

func TestRebindTakesEffectImmediately(t *testing.T) {
	f, reg, sink := newTestFrameRelay(t, false)
	bindHost(t, reg, "h1")
	ctx := context.Background()

	f.Submit(ctx, "h1", []byte("frame one"))
	bindHost(t, reg, "h2")
	f.Submit(ctx, "h1", []byte("frame two"))
	f.Submit(ctx, "h2", []byte("frame three"))

	assert.Len(t, sink.sent(), 2)
}
