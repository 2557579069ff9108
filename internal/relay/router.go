package relay

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"

	"screenrelay/internal/metrics"
	"screenrelay/internal/protocol"
	"screenrelay/internal/ratelimit"
)

// Rejection reasons sent back to observers. Never a silent drop.
const (
	reasonNoHost      = "no host connected"
	reasonRateLimited = "rate limited"
)

type directory interface {
	Peer(id string) Peer
}

// Router forwards observer traffic to the bound host. Every call does a
// fresh binding lookup; an unbound deployment answers with an explicit
// rejection event.
type Router struct {
	reg     *Registrar
	dir     directory
	limiter *ratelimit.Limiter
	metrics *metrics.Metrics
	monitor *metrics.Monitor
	log     zerolog.Logger
}

func NewRouter(reg *Registrar, dir directory, limiter *ratelimit.Limiter, m *metrics.Metrics, mon *metrics.Monitor, log zerolog.Logger) *Router {
	return &Router{reg: reg, dir: dir, limiter: limiter, metrics: m, monitor: mon, log: log}
}

// host resolves the bound host's connection on this worker. The binding
// may point at a connection held by another worker; then the command is
// rejected here exactly like an unbound deployment (this worker cannot
// reach the peer's socket).
func (r *Router) host(ctx context.Context) Peer {
	id := r.reg.Bound(ctx)
	if id == "" {
		return nil
	}
	return r.dir.Peer(id)
}

func (r *Router) reject(obs Peer, reason string) {
	r.metrics.RejectionsTotal.WithLabelValues(reason).Inc()
	if err := obs.SendEvent(protocol.EventCommandRejected, protocol.Reason{Reason: reason}); err != nil {
		r.log.Warn().Err(err).Str("conn", obs.ID()).Msg("rejection send failed")
	}
}

// RouteCommand forwards one input command verbatim to the bound host,
// rate limited per observer and action class.
func (r *Router) RouteCommand(ctx context.Context, obs Peer, cmd protocol.Command) {
	if !r.limiter.Allow(fmt.Sprintf("command:%s:%s", obs.ID(), cmd.Action)) {
		r.reject(obs, reasonRateLimited)
		return
	}
	host := r.host(ctx)
	if host == nil {
		r.reject(obs, reasonNoHost)
		return
	}
	if err := host.SendEvent(protocol.EventCommand, cmd); err != nil {
		r.log.Warn().Err(err).Str("host", host.ID()).Msg("command send failed")
		return
	}
	r.metrics.CommandsTotal.Inc()
	r.monitor.CommandProcessed()
}

// RouteSettings pushes new capture settings to the bound host.
func (r *Router) RouteSettings(ctx context.Context, obs Peer, s protocol.Settings) {
	host := r.host(ctx)
	if host == nil {
		r.reject(obs, reasonNoHost)
		return
	}
	if err := host.SendEvent(protocol.EventSettings, s); err != nil {
		r.log.Warn().Err(err).Str("host", host.ID()).Msg("settings send failed")
	}
}

// RouteInjectionText stores text on the bound host for hotkey injection.
func (r *Router) RouteInjectionText(ctx context.Context, obs Peer, text string) {
	host := r.host(ctx)
	if host == nil {
		r.reject(obs, reasonNoHost)
		return
	}
	if err := host.SendEvent(protocol.EventInjectionText, protocol.Text{Text: text}); err != nil {
		r.log.Warn().Err(err).Str("host", host.ID()).Msg("injection text send failed")
	}
}

// RouteObserverClipboard forwards observer clipboard content to the host.
func (r *Router) RouteObserverClipboard(ctx context.Context, obs Peer, text string) {
	if !r.limiter.Allow(fmt.Sprintf("clipboard:%s", obs.ID())) {
		r.reject(obs, reasonRateLimited)
		return
	}
	host := r.host(ctx)
	if host == nil {
		r.reject(obs, reasonNoHost)
		return
	}
	payload := protocol.Clipboard{Text: text, Origin: protocol.OriginObserver}
	if err := host.SendEvent(protocol.EventClipboard, payload); err != nil {
		r.log.Warn().Err(err).Str("host", host.ID()).Msg("clipboard send failed")
	}
}

// RouteFileChunk forwards one chunk to the bound host and acknowledges the
// observer so it can release the next chunk. A forwarding failure acks
// ok:false; the sender abandons the transfer.
func (r *Router) RouteFileChunk(ctx context.Context, obs Peer, chunk protocol.FileChunk) {
	ack := protocol.FileChunkAck{Name: chunk.Name, Offset: chunk.Offset, OK: true}
	host := r.host(ctx)
	if host == nil {
		ack.OK = false
		ack.Reason = reasonNoHost
		r.metrics.RejectionsTotal.WithLabelValues(reasonNoHost).Inc()
	} else if err := host.SendEvent(protocol.EventFileChunk, chunk); err != nil {
		r.log.Warn().Err(err).Str("host", host.ID()).Msg("file chunk send failed")
		ack.OK = false
		ack.Reason = "forward failed"
	}
	if err := obs.SendEvent(protocol.EventFileChunkAck, ack); err != nil {
		r.log.Warn().Err(err).Str("conn", obs.ID()).Msg("file chunk ack failed")
	}
}

// RouteFileComplete signals the host to close its file handle.
func (r *Router) RouteFileComplete(ctx context.Context, obs Peer, fc protocol.FileComplete) {
	host := r.host(ctx)
	if host == nil {
		r.reject(obs, reasonNoHost)
		return
	}
	if err := host.SendEvent(protocol.EventFileComplete, fc); err != nil {
		r.log.Warn().Err(err).Str("host", host.ID()).Msg("file complete send failed")
	}
}

func decode[T any](raw json.RawMessage) (T, error) {
	var v T
	err := json.Unmarshal(raw, &v)
	return v, err
}
