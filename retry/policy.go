package retry

import (
	"math/rand"
	"time"
)

// DelaySpec resolves the wait before a given retry. The zero value means no
// delay: the next attempt starts immediately and no waiting state is
// recorded.
type DelaySpec struct {
	delays []time.Duration
}

// Fixed returns a spec that reuses d for every retry.
func Fixed(d time.Duration) DelaySpec {
	return DelaySpec{delays: []time.Duration{d}}
}

// Sequence returns a spec resolving retries in order. The last element
// repeats once the sequence is exhausted, so Sequence(1s, 2s) with three
// retries waits 1s, 2s, 2s.
func Sequence(delays ...time.Duration) DelaySpec {
	return DelaySpec{delays: append([]time.Duration(nil), delays...)}
}

// IsZero reports whether the spec configures no delay at all.
func (s DelaySpec) IsZero() bool {
	return len(s.delays) == 0
}

// Resolve returns the delay before retry number n (1-based). Out-of-range
// indices clamp to the last configured element.
func (s DelaySpec) Resolve(n int) time.Duration {
	if len(s.delays) == 0 || n < 1 {
		return 0
	}
	if n > len(s.delays) {
		n = len(s.delays)
	}
	return s.delays[n-1]
}

// Policy is the retry decision for one task definition.
type Policy struct {
	// MaxRetries is the retry budget. Zero means a single attempt.
	MaxRetries int

	// Delay resolves the wait between attempts.
	Delay DelaySpec

	// JitterFactor widens each resolved delay by a random factor in
	// [1, 1+JitterFactor). Zero disables jitter.
	JitterFactor float64
}

// ShouldRetry reports whether the attempt numbered attempt (1-based) may be
// followed by another one.
func (p Policy) ShouldRetry(attempt int) bool {
	return attempt <= p.MaxRetries
}

// DelayFor computes the wait before the retry following attempt, jitter
// applied. The retry following attempt k is retry number k.
func (p Policy) DelayFor(attempt int) time.Duration {
	d := p.Delay.Resolve(attempt)
	if d <= 0 {
		return 0
	}
	if p.JitterFactor > 0 {
		d = time.Duration(float64(d) * (1 + rand.Float64()*p.JitterFactor))
	}
	return d
}
