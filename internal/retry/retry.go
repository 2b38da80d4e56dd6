package retry

import (
	"context"
	"math"
	"math/rand"
	"time"
)

// Policy is a bounded exponential backoff for provider calls. Transient
// failures (timeouts, 5xx, 429) are retried up to MaxAttempts; business
// rejections surface immediately.
type Policy struct {
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Multiplier      float64
	Jitter          float64
	MaxAttempts     int
}

// DefaultPolicy keeps webhook handling latency bounded: three attempts
// spanning a couple of seconds at most.
func DefaultPolicy() Policy {
	return Policy{
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     5 * time.Second,
		Multiplier:      2.0,
		Jitter:          0.2,
		MaxAttempts:     3,
	}
}

// Delay computes the backoff before the given attempt (1-based).
func (p Policy) Delay(attempt int) time.Duration {
	delay := float64(p.InitialInterval) * math.Pow(p.Multiplier, float64(attempt-1))
	if delay > float64(p.MaxInterval) {
		delay = float64(p.MaxInterval)
	}
	if p.Jitter > 0 {
		jitterRange := delay * p.Jitter
		delay += (rand.Float64()*2 - 1) * jitterRange
	}
	return time.Duration(delay)
}

// Do runs fn until it succeeds, fails non-transiently, exhausts attempts, or
// the context is cancelled. The last error is returned.
func Do(ctx context.Context, p Policy, transient func(error) bool, fn func() error) error {
	var err error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		if !transient(err) || attempt == p.MaxAttempts {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(p.Delay(attempt)):
		}
	}
	return err
}
