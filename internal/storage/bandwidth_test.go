package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewBandwidthLimiterDisabledWithoutCap(t *testing.T) {
	l := newBandwidthLimiter(0)
	assert.Nil(t, l.limiter)
	require.NoError(t, l.throttle(context.Background(), 1<<20))
}

func TestBandwidthLimiterThrottlesOverCap(t *testing.T) {
	l := newBandwidthLimiter(8_000) // 1000 bytes/sec
	require.NoError(t, l.throttle(context.Background(), 1000))

	start := time.Now()
	require.NoError(t, l.throttle(context.Background(), 2000))
	assert.GreaterOrEqual(t, time.Since(start), 500*time.Millisecond)
}

func TestObservedBitsPerSecBeforeWindowFillsIsZero(t *testing.T) {
	l := newBandwidthLimiter(8_000)
	assert.Equal(t, int64(0), l.observedBitsPerSec())
}

func TestSubstituteMacros(t *testing.T) {
	got := substituteMacros("mkisofs -o %image %file", macros{image: "/tmp/img.iso", file: "/tmp/a /tmp/b"})
	assert.Equal(t, "mkisofs -o /tmp/img.iso /tmp/a /tmp/b", got)
}
