// Package ratelimit implements sliding-window admission control per
// subject key.
package ratelimit

import (
	"sync"
	"time"
)

// Limiter keeps one trailing window of admitted timestamps per key. When
// disabled it always admits.
type Limiter struct {
	enabled bool
	max     int
	window  time.Duration

	mu   sync.Mutex
	hits map[string][]time.Time

	now func() time.Time
}

func New(enabled bool, max int, window time.Duration) *Limiter {
	return &Limiter{
		enabled: enabled,
		max:     max,
		window:  window,
		hits:    make(map[string][]time.Time),
		now:     time.Now,
	}
}

// Allow prunes entries older than the window, then admits and records the
// call if the key is under the limit. Rejections leave no trace.
func (l *Limiter) Allow(key string) bool {
	if !l.enabled {
		return true
	}
	now := l.now()
	cutoff := now.Add(-l.window)

	l.mu.Lock()
	defer l.mu.Unlock()

	window := l.hits[key]
	for len(window) > 0 && window[0].Before(cutoff) {
		window = window[1:]
	}
	if len(window) >= l.max {
		l.hits[key] = window
		return false
	}
	l.hits[key] = append(window, now)
	return true
}
