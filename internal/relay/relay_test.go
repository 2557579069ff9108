package relay

import (
	"sync"

	"screenrelay/internal/protocol"
)

// fakePeer records everything sent to it.
type fakePeer struct {
	id string

	mu     sync.Mutex
	events []sentEvent
	bins   []sentBinary
}

type sentEvent struct {
	Type    string
	Payload any
}

type sentBinary struct {
	Kind    byte
	Payload []byte
}

func (p *fakePeer) ID() string { return p.id }

func (p *fakePeer) SendEvent(typ string, payload any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, sentEvent{typ, payload})
	return nil
}

func (p *fakePeer) SendBinary(kind byte, payload []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	buf := make([]byte, len(payload))
	copy(buf, payload)
	p.bins = append(p.bins, sentBinary{kind, buf})
	return nil
}

func (p *fakePeer) sentEvents() []sentEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]sentEvent(nil), p.events...)
}

type fakeDirectory struct {
	peers map[string]Peer
}

func (d *fakeDirectory) Peer(id string) Peer { return d.peers[id] }

// fakeSink records frame broadcasts.
type fakeSink struct {
	mu    sync.Mutex
	sends []sentBinary
}

func (s *fakeSink) BroadcastBinaryToObservers(except string, kind byte, payload []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	buf := make([]byte, len(payload))
	copy(buf, payload)
	s.sends = append(s.sends, sentBinary{kind, buf})
}

func (s *fakeSink) sent() []sentBinary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]sentBinary(nil), s.sends...)
}

func rejectionReason(e sentEvent) string {
	if r, ok := e.Payload.(protocol.Reason); ok {
		return r.Reason
	}
	return ""
}
