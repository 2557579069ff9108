// Package metrics aggregates relay counters: a prometheus registry for
// scraping plus a small process monitor for the JSON stats endpoint.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	registry *prometheus.Registry

	FramesTotal      prometheus.Counter
	FramesDuplicate  prometheus.Counter
	FramesCompressed prometheus.Counter
	CommandsTotal    prometheus.Counter
	RejectionsTotal  *prometheus.CounterVec
	FrameLatency     prometheus.Histogram
	ActiveConns      prometheus.Gauge
}

func New() *Metrics {
	r := prometheus.NewRegistry()
	m := &Metrics{
		registry: r,
		FramesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "screenrelay",
			Name:      "frames_total",
			Help:      "Frames forwarded to observers",
		}),
		FramesDuplicate: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "screenrelay",
			Name:      "frames_duplicate_total",
			Help:      "Frames suppressed by fingerprint dedup",
		}),
		FramesCompressed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "screenrelay",
			Name:      "frames_compressed_total",
			Help:      "Frames forwarded on the compressed path",
		}),
		CommandsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "screenrelay",
			Name:      "commands_total",
			Help:      "Commands routed to the bound host",
		}),
		RejectionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "screenrelay",
			Name:      "rejections_total",
			Help:      "Rejected requests by reason",
		}, []string{"reason"}),
		FrameLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "screenrelay",
			Name:      "frame_processing_seconds",
			Help:      "Frame relay processing latency",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 8),
		}),
		ActiveConns: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "screenrelay",
			Name:      "active_connections",
			Help:      "Open websocket connections",
		}),
	}
	r.MustRegister(m.FramesTotal, m.FramesDuplicate, m.FramesCompressed,
		m.CommandsTotal, m.RejectionsTotal, m.FrameLatency, m.ActiveConns)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Monitor tracks process-local aggregates for /stats and /healthz.
type Monitor struct {
	start time.Time

	mu        sync.Mutex
	totalConn int64
	active    int64
	peak      int64
	frames    int64
	commands  int64
}

func NewMonitor() *Monitor { return &Monitor{start: time.Now()} }

func (p *Monitor) ConnOpened() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.totalConn++
	p.active++
	if p.active > p.peak {
		p.peak = p.active
	}
}

func (p *Monitor) ConnClosed() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.active--
}

func (p *Monitor) FrameSent()        { p.mu.Lock(); p.frames++; p.mu.Unlock() }
func (p *Monitor) CommandProcessed() { p.mu.Lock(); p.commands++; p.mu.Unlock() }

// Snapshot is the JSON shape served by /stats.
type Snapshot struct {
	UptimeSeconds     float64 `json:"uptime_seconds"`
	TotalConnections  int64   `json:"total_connections"`
	ActiveConnections int64   `json:"active_connections"`
	PeakConnections   int64   `json:"peak_connections"`
	TotalFramesSent   int64   `json:"total_frames_sent"`
	TotalCommands     int64   `json:"total_commands_processed"`
}

func (p *Monitor) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Snapshot{
		UptimeSeconds:     time.Since(p.start).Seconds(),
		TotalConnections:  p.totalConn,
		ActiveConnections: p.active,
		PeakConnections:   p.peak,
		TotalFramesSent:   p.frames,
		TotalCommands:     p.commands,
	}
}
