package relay

import (
	"bytes"
	"context"
	"sync"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/rs/zerolog"
	"github.com/zeebo/blake3"

	"screenrelay/internal/metrics"
	"screenrelay/internal/protocol"
)

const (
	// Frames below this size are never worth compressing.
	compressMinSize = 1024
	// The compressed form is used only when it beats this fraction of the
	// original; JPEG data usually doesn't compress further.
	compressRatio = 0.9
)

type frameSink interface {
	BroadcastBinaryToObservers(except string, kind byte, payload []byte)
}

// FrameRelay deduplicates frames from the bound host and fans them out to
// observers, compressing when it pays off.
type FrameRelay struct {
	reg      *Registrar
	sink     frameSink
	metrics  *metrics.Metrics
	monitor  *metrics.Monitor
	compress bool
	log      zerolog.Logger

	mu       sync.Mutex
	last     [32]byte
	haveLast bool
}

func NewFrameRelay(reg *Registrar, sink frameSink, m *metrics.Metrics, mon *metrics.Monitor, compress bool, log zerolog.Logger) *FrameRelay {
	return &FrameRelay{reg: reg, sink: sink, metrics: m, monitor: mon, compress: compress, log: log}
}

// Submit relays one frame. A frame from anyone but the currently bound
// host (fresh lookup, so rebinding takes effect immediately) is a no-op,
// as is a frame whose fingerprint matches the last forwarded one.
func (f *FrameRelay) Submit(ctx context.Context, senderID string, frame []byte) {
	if len(frame) == 0 || f.reg.Bound(ctx) != senderID {
		return
	}
	start := time.Now()

	sum := blake3.Sum256(frame)
	f.mu.Lock()
	if f.haveLast && f.last == sum {
		f.mu.Unlock()
		f.metrics.FramesDuplicate.Inc()
		return
	}
	f.last = sum
	f.haveLast = true
	f.mu.Unlock()

	kind := protocol.BinFrameRaw
	payload := frame
	if f.compress && len(frame) > compressMinSize {
		if gz, ok := gzipSmaller(frame); ok {
			kind = protocol.BinFrameGzip
			payload = gz
			f.metrics.FramesCompressed.Inc()
		}
	}

	f.sink.BroadcastBinaryToObservers(senderID, kind, payload)

	f.metrics.FramesTotal.Inc()
	f.metrics.FrameLatency.Observe(time.Since(start).Seconds())
	f.monitor.FrameSent()
}

// gzipSmaller returns the gzipped frame only when it is meaningfully
// smaller than the original.
func gzipSmaller(frame []byte) ([]byte, bool) {
	var buf bytes.Buffer
	w, err := gzip.NewWriterLevel(&buf, gzip.BestSpeed)
	if err != nil {
		return nil, false
	}
	if _, err := w.Write(frame); err != nil {
		return nil, false
	}
	if err := w.Close(); err != nil {
		return nil, false
	}
	if buf.Len() >= int(float64(len(frame))*compressRatio) {
		return nil, false
	}
	return buf.Bytes(), true
}
