package relay

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"screenrelay/internal/protocol"
)

// Role is a connection's place in the relay state machine.
type Role string

const (
	// RolePending is a host-side connection that has not registered yet.
	RolePending  Role = "pending"
	RoleHost     Role = "host"
	RoleObserver Role = "observer"
)

const writeTimeout = 5 * time.Second

// Conn wraps one websocket connection. All writes go through the mutex so
// concurrent senders (frame relay, router, bridge, ping loop) never
// interleave partial messages.
type Conn struct {
	id   string
	ws   *websocket.Conn
	mu   sync.Mutex
	role Role
}

func NewConn(id string, ws *websocket.Conn, role Role) *Conn {
	return &Conn{id: id, ws: ws, role: role}
}

func (c *Conn) ID() string { return c.id }

func (c *Conn) Role() Role {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.role
}

func (c *Conn) SetRole(r Role) {
	c.mu.Lock()
	c.role = r
	c.mu.Unlock()
}

// SendEvent marshals and writes one enveloped JSON event.
func (c *Conn) SendEvent(typ string, payload any) error {
	data, err := protocol.Encode(typ, payload)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.ws.WriteMessage(websocket.TextMessage, data)
}

// SendBinary writes one kind-prefixed binary message.
func (c *Conn) SendBinary(kind byte, payload []byte) error {
	buf := make([]byte, 1+len(payload))
	buf[0] = kind
	copy(buf[1:], payload)
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.ws.WriteMessage(websocket.BinaryMessage, buf)
}

func (c *Conn) Ping() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout))
}

func (c *Conn) Close() error { return c.ws.Close() }

// Peer is the sending surface the routing components need; satisfied by
// *Conn and by test fakes.
type Peer interface {
	ID() string
	SendEvent(typ string, payload any) error
	SendBinary(kind byte, payload []byte) error
}

// Hub tracks live connections for one relay worker.
type Hub struct {
	mu    sync.RWMutex
	conns map[string]*Conn
}

func NewHub() *Hub {
	return &Hub{conns: make(map[string]*Conn)}
}

func (h *Hub) Add(c *Conn) {
	h.mu.Lock()
	h.conns[c.id] = c
	h.mu.Unlock()
}

func (h *Hub) Remove(id string) {
	h.mu.Lock()
	delete(h.conns, id)
	h.mu.Unlock()
}

func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

// Get returns the connection with the given id, or nil.
func (h *Hub) Get(id string) *Conn {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.conns[id]
}

// Peer returns the connection with the given id, or nil.
func (h *Hub) Peer(id string) Peer {
	h.mu.RLock()
	c, ok := h.conns[id]
	h.mu.RUnlock()
	if !ok {
		return nil
	}
	return c
}

func (h *Hub) snapshot() []*Conn {
	h.mu.RLock()
	out := make([]*Conn, 0, len(h.conns))
	for _, c := range h.conns {
		out = append(out, c)
	}
	h.mu.RUnlock()
	return out
}

// BroadcastEvent sends an event to every connection except the named one.
// Send failures are the receiver's problem: best-effort delivery only.
func (h *Hub) BroadcastEvent(except string, typ string, payload any) {
	for _, c := range h.snapshot() {
		if c.id == except {
			continue
		}
		_ = c.SendEvent(typ, payload)
	}
}

// BroadcastBinaryToObservers fans a binary payload out to every observer
// except the sender. A slow observer misses the message; nothing is queued.
func (h *Hub) BroadcastBinaryToObservers(except string, kind byte, payload []byte) {
	for _, c := range h.snapshot() {
		if c.id == except || c.Role() != RoleObserver {
			continue
		}
		_ = c.SendBinary(kind, payload)
	}
}

// BroadcastEventToObservers sends an event to every observer except the
// named connection.
func (h *Hub) BroadcastEventToObservers(except string, typ string, payload any) {
	for _, c := range h.snapshot() {
		if c.id == except || c.Role() != RoleObserver {
			continue
		}
		_ = c.SendEvent(typ, payload)
	}
}
