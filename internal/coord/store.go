// Package coord holds the cross-worker record of which connection is the
// bound host. Every binding decision re-reads the store; relay workers
// never cache it.
package coord

import (
	"context"
	"sync"
)

// Store is the single resource shared across relay workers. Writes are
// last-write-wins; two near-simultaneous binds may transiently land in
// either order until the next read reconciles.
type Store interface {
	// Bind records id as the bound host and returns the previously bound
	// id ("" if none).
	Bind(ctx context.Context, id string) (prev string, err error)
	// Bound returns the currently bound id, or "" if no host is bound.
	Bound(ctx context.Context) (string, error)
	// Clear removes the binding only if it still equals id, so a late
	// disconnect from a stale connection cannot clear a newer binding.
	Clear(ctx context.Context, id string) (cleared bool, err error)
}

// Memory is the in-process backend for single-worker deployments.
type Memory struct {
	mu    sync.Mutex
	bound string
}

func NewMemory() *Memory { return &Memory{} }

func (m *Memory) Bind(_ context.Context, id string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	prev := m.bound
	m.bound = id
	return prev, nil
}

func (m *Memory) Bound(_ context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.bound, nil
}

func (m *Memory) Clear(_ context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.bound != id {
		return false, nil
	}
	m.bound = ""
	return true, nil
}
