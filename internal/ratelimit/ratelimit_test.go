package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestWindowAdmitsUpToLimit(t *testing.T) {
	now := time.Unix(1000, 0)
	l := New(true, 3, time.Minute)
	l.now = func() time.Time { return now }

	require.True(t, l.Allow("obs:click"))
	require.True(t, l.Allow("obs:click"))
	require.True(t, l.Allow("obs:click"))
	require.False(t, l.Allow("obs:click"), "4th call inside the window must be rejected")

	// Independent key is unaffected.
	require.True(t, l.Allow("other:click"))
}

func TestWindowAdvances(t *testing.T) {
	now := time.Unix(1000, 0)
	l := New(true, 3, time.Minute)
	l.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		require.True(t, l.Allow("k"))
	}
	require.False(t, l.Allow("k"))

	// 61s after the first admission the window has moved past it.
	now = now.Add(61 * time.Second)
	require.True(t, l.Allow("k"))
}

func TestRejectionHasNoSideEffects(t *testing.T) {
	now := time.Unix(1000, 0)
	l := New(true, 1, time.Minute)
	l.now = func() time.Time { return now }

	require.True(t, l.Allow("k"))
	for i := 0; i < 10; i++ {
		require.False(t, l.Allow("k"))
	}
	// Rejected calls recorded nothing, so the single admitted entry
	// expiring frees the window.
	now = now.Add(time.Minute + time.Second)
	require.True(t, l.Allow("k"))
}

func TestDisabledAlwaysAdmits(t *testing.T) {
	l := New(false, 1, time.Minute)
	for i := 0; i < 100; i++ {
		require.True(t, l.Allow("k"))
	}
}
