package relay

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"screenrelay/internal/answer"
	"screenrelay/internal/config"
	"screenrelay/internal/coord"
	"screenrelay/internal/metrics"
	"screenrelay/internal/protocol"
	"screenrelay/internal/ratelimit"
)

const (
	readLimit  = 8 << 20 // 8MB
	pongWait   = 60 * time.Second
	pingPeriod = 25 * time.Second
)

var upgrader = websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}

// Server is one relay worker. Workers share nothing in memory; the
// coordination store is the only cross-worker state.
type Server struct {
	cfg     config.Config
	log     zerolog.Logger
	hub     *Hub
	reg     *Registrar
	frames  *FrameRelay
	router  *Router
	metrics *metrics.Metrics
	monitor *metrics.Monitor
	bridge  *answer.Bridge
}

func NewServer(cfg config.Config, store coord.Store, log zerolog.Logger) *Server {
	m := metrics.New()
	mon := metrics.NewMonitor()
	hub := NewHub()
	reg := NewRegistrar(cfg.Secret, store, log)
	limiter := ratelimit.New(cfg.RateLimiting, cfg.RateLimitMax, cfg.RateLimitWindow)

	s := &Server{
		cfg:     cfg,
		log:     log,
		hub:     hub,
		reg:     reg,
		metrics: m,
		monitor: mon,
	}
	s.frames = NewFrameRelay(reg, hub, m, mon, cfg.Compression, log)
	s.router = NewRouter(reg, hub, limiter, m, mon, log)
	if cfg.AnswerURL != "" {
		client := answer.NewHTTPClient(cfg.AnswerURL, cfg.AnswerTimeout)
		s.bridge = answer.NewBridge(client, s, log)
	}
	return s
}

// Broadcast implements answer.Sink.
func (s *Server) Broadcast(typ string, payload any) {
	s.hub.BroadcastEventToObservers("", typ, payload)
}

// SendToBound implements answer.Sink.
func (s *Server) SendToBound(ctx context.Context, typ string, payload any) bool {
	id := s.reg.Bound(ctx)
	if id == "" {
		return false
	}
	peer := s.hub.Peer(id)
	if peer == nil {
		return false
	}
	return peer.SendEvent(typ, payload) == nil
}

// Handler builds the HTTP surface: the event channel plus the read-only
// health and metrics endpoints.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWS)
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/stats", s.handleStats)
	if s.cfg.Metrics {
		mux.Handle("/metrics", promhttp.HandlerFor(s.metrics.Registry(), promhttp.HandlerOpts{}))
	}
	return mux
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	snap := s.monitor.Snapshot()
	writeJSON(w, map[string]any{
		"status":             "healthy",
		"uptime_seconds":     snap.UptimeSeconds,
		"active_connections": snap.ActiveConnections,
		"host_connected":     s.reg.Bound(r.Context()) != "",
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.monitor.Snapshot())
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	if s.hub.Count() >= s.cfg.MaxConnections {
		http.Error(w, "too many connections", http.StatusServiceUnavailable)
		return
	}

	role := RolePending
	if r.URL.Query().Get("role") == "observer" {
		if r.URL.Query().Get("token") != s.cfg.Secret {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		role = RoleObserver
	}

	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn().Err(err).Msg("upgrade failed")
		return
	}

	conn := NewConn(uuid.NewString(), ws, role)
	s.hub.Add(conn)
	s.monitor.ConnOpened()
	s.metrics.ActiveConns.Inc()
	s.log.Info().Str("conn", conn.ID()).Str("role", string(role)).Msg("connected")

	// A late-joining observer still needs to know a host is already bound.
	if role == RoleObserver && s.reg.Bound(r.Context()) != "" {
		_ = conn.SendEvent(protocol.EventHostConnected, nil)
	}

	done := make(chan struct{})
	go s.pingLoop(conn, done)
	s.readLoop(r.Context(), conn, ws)
	close(done)
	s.teardown(context.Background(), conn)
}

func (s *Server) pingLoop(conn *Conn, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := conn.Ping(); err != nil {
				return
			}
		}
	}
}

// teardown runs once per connection after its read loop exits. A host
// disconnect (or heartbeat timeout, which lands here identically) clears
// the binding and notifies everyone.
func (s *Server) teardown(ctx context.Context, conn *Conn) {
	s.hub.Remove(conn.ID())
	s.monitor.ConnClosed()
	s.metrics.ActiveConns.Dec()
	_ = conn.Close()

	if conn.Role() == RoleHost {
		if s.reg.Unbind(ctx, conn.ID()) {
			s.hub.BroadcastEvent(conn.ID(), protocol.EventHostDisconnected, nil)
		}
	}
	s.log.Info().Str("conn", conn.ID()).Msg("disconnected")
}

func (s *Server) readLoop(ctx context.Context, conn *Conn, ws *websocket.Conn) {
	defer func() {
		if v := recover(); v != nil {
			s.log.Error().Any("panic", v).Str("conn", conn.ID()).Msg("handler panic recovered")
		}
	}()

	ws.SetReadLimit(readLimit)
	_ = ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		kind, data, err := ws.ReadMessage()
		if err != nil {
			return
		}
		switch kind {
		case websocket.BinaryMessage:
			s.dispatchBinary(ctx, conn, data)
		case websocket.TextMessage:
			var msg protocol.Message
			if err := json.Unmarshal(data, &msg); err != nil {
				s.log.Debug().Err(err).Str("conn", conn.ID()).Msg("bad envelope")
				continue
			}
			if closeConn := s.dispatchEvent(ctx, conn, msg); closeConn {
				return
			}
		}
	}
}

func (s *Server) dispatchBinary(ctx context.Context, conn *Conn, data []byte) {
	if len(data) < 2 {
		return
	}
	kind, payload := data[0], data[1:]
	switch kind {
	case protocol.BinFrameRaw:
		s.frames.Submit(ctx, conn.ID(), payload)
	case protocol.BinAnalyze:
		if conn.Role() == RolePending {
			return
		}
		if s.bridge == nil {
			_ = conn.SendEvent(protocol.EventAnalysisFailed, protocol.Analysis{Reason: "analysis disabled"})
			return
		}
		s.bridge.Submit(payload)
	}
}

// dispatchEvent routes one event according to the connection's state:
// pending connections may only register, hosts feed clipboard upstream,
// observers drive the command channel. Returns true when the connection
// must be closed.
func (s *Server) dispatchEvent(ctx context.Context, conn *Conn, msg protocol.Message) bool {
	switch conn.Role() {
	case RolePending:
		if msg.Type != protocol.EventRegister {
			return false
		}
		return s.handleRegister(ctx, conn, msg.Payload)

	case RoleHost:
		if msg.Type == protocol.EventClipboard {
			if p, err := decode[protocol.Clipboard](msg.Payload); err == nil {
				p.Origin = protocol.OriginHost
				s.hub.BroadcastEventToObservers(conn.ID(), protocol.EventClipboard, p)
			}
		}
		return false

	case RoleObserver:
		s.dispatchObserver(ctx, conn, msg)
		return false
	}
	return false
}

func (s *Server) handleRegister(ctx context.Context, conn *Conn, raw json.RawMessage) bool {
	reg, err := decode[protocol.Register](raw)
	if err != nil {
		_ = conn.SendEvent(protocol.EventRegisterFailed, protocol.Reason{Reason: "malformed registration"})
		return true
	}
	evicted, err := s.reg.Register(ctx, conn.ID(), reg.Token)
	if errors.Is(err, ErrBadSecret) {
		s.log.Warn().Str("conn", conn.ID()).Msg("registration auth failed")
		_ = conn.SendEvent(protocol.EventRegisterFailed, protocol.Reason{Reason: "auth failed"})
		return true
	}
	if err != nil {
		s.log.Error().Err(err).Msg("coordination store bind failed")
		_ = conn.SendEvent(protocol.EventRegisterFailed, protocol.Reason{Reason: "store unavailable"})
		return true
	}

	conn.SetRole(RoleHost)
	_ = conn.SendEvent(protocol.EventRegistered, nil)
	s.log.Info().Str("conn", conn.ID()).Msg("host registered")

	if evicted != "" {
		if old := s.hub.Get(evicted); old != nil {
			_ = old.SendEvent(protocol.EventHostDisconnected, nil)
			_ = old.Close()
		}
	}
	s.hub.BroadcastEvent(conn.ID(), protocol.EventHostConnected, nil)
	return false
}

func (s *Server) dispatchObserver(ctx context.Context, conn *Conn, msg protocol.Message) {
	switch msg.Type {
	case protocol.EventCommand:
		if cmd, err := decode[protocol.Command](msg.Payload); err == nil {
			s.router.RouteCommand(ctx, conn, cmd)
		}
	case protocol.EventSettings:
		if set, err := decode[protocol.Settings](msg.Payload); err == nil {
			s.router.RouteSettings(ctx, conn, set)
		}
	case protocol.EventInjectionText:
		if p, err := decode[protocol.Text](msg.Payload); err == nil {
			s.router.RouteInjectionText(ctx, conn, p.Text)
		}
	case protocol.EventClipboard:
		if p, err := decode[protocol.Clipboard](msg.Payload); err == nil {
			s.router.RouteObserverClipboard(ctx, conn, p.Text)
		}
	case protocol.EventFileChunk:
		if chunk, err := decode[protocol.FileChunk](msg.Payload); err == nil {
			s.router.RouteFileChunk(ctx, conn, chunk)
		}
	case protocol.EventFileComplete:
		if fc, err := decode[protocol.FileComplete](msg.Payload); err == nil {
			s.router.RouteFileComplete(ctx, conn, fc)
		}
	default:
		s.log.Debug().Str("conn", conn.ID()).Str("type", msg.Type).Msg("unknown event")
	}
}
