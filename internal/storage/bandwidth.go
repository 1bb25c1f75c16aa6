package storage

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// bandwidthLimiter throttles writes on FTP/SSH-family sinks to a
// configured bit rate. Enforcement rides on a token-bucket
// (golang.org/x/time/rate) sized in bytes/sec; a rolling window of
// recent (bytes, elapsed) measurements is kept alongside it purely to
// report the observed throughput once enough samples have
// accumulated, independent of whatever burst shape the bucket allows.
type bandwidthLimiter struct {
	limiter *rate.Limiter

	measurements []measurement
	accumulated  time.Duration
}

type measurement struct {
	bytes   int64
	elapsed time.Duration
}

const (
	bandwidthWindowSize     = 16
	bandwidthAccumThreshold = 100 * time.Millisecond
)

// newBandwidthLimiter builds a limiter capped at capBitsPerSec bits per
// second. A non-positive cap disables throttling.
func newBandwidthLimiter(capBitsPerSec int64) *bandwidthLimiter {
	if capBitsPerSec <= 0 {
		return &bandwidthLimiter{}
	}
	bytesPerSec := capBitsPerSec / 8
	if bytesPerSec < 1 {
		bytesPerSec = 1
	}
	return &bandwidthLimiter{
		limiter: rate.NewLimiter(rate.Limit(bytesPerSec), int(bytesPerSec)),
	}
}

// throttle blocks, if needed, until writing n more bytes would stay
// within the configured cap, then records the measurement.
func (l *bandwidthLimiter) throttle(ctx context.Context, n int) error {
	if l == nil || l.limiter == nil {
		return nil
	}
	start := time.Now()
	for rest := n; rest > 0; {
		step := rest
		if burst := l.limiter.Burst(); step > burst {
			step = burst
		}
		if err := l.limiter.WaitN(ctx, step); err != nil {
			return err
		}
		rest -= step
	}
	l.record(n, time.Since(start))
	return nil
}

func (l *bandwidthLimiter) record(n int, elapsed time.Duration) {
	l.measurements = append(l.measurements, measurement{bytes: int64(n), elapsed: elapsed})
	if len(l.measurements) > bandwidthWindowSize {
		l.measurements = l.measurements[1:]
	}
	l.accumulated += elapsed
}

// observedBitsPerSec reports the mean rate over the current rolling
// window, or 0 if fewer than bandwidthAccumThreshold of samples have
// accumulated yet.
func (l *bandwidthLimiter) observedBitsPerSec() int64 {
	if l == nil || l.accumulated < bandwidthAccumThreshold {
		return 0
	}
	var totalBytes int64
	var totalElapsed time.Duration
	for _, m := range l.measurements {
		totalBytes += m.bytes
		totalElapsed += m.elapsed
	}
	if totalElapsed <= 0 {
		return 0
	}
	return (totalBytes * 8 * int64(time.Second)) / int64(totalElapsed)
}
