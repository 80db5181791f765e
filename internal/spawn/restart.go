package spawn

import (
	"context"
	"math"
	"math/rand"
	"time"
)

const (
	defaultBackoffMin    = time.Second
	defaultBackoffMax    = 30 * time.Second
	defaultBackoffFactor = 2.0
)

// Policy controls whether and how quickly a guest is relaunched after it
// exits. MaxRetries below zero retries forever; zero disables restarts.
type Policy struct {
	MaxRetries int
	Min        time.Duration
	Max        time.Duration
	Factor     float64
}

// Normalize fills unset fields with defaults and repairs inverted bounds.
func (p Policy) Normalize() Policy {
	if p.Min <= 0 {
		p.Min = defaultBackoffMin
	}
	if p.Max <= 0 {
		p.Max = defaultBackoffMax
	}
	if p.Max < p.Min {
		p.Max = p.Min
	}
	if p.Factor <= 1 {
		p.Factor = defaultBackoffFactor
	}
	return p
}

// Backoff paces restarts of a single guest under a Policy. It is not safe
// for concurrent use.
type Backoff struct {
	policy   Policy
	base     time.Duration
	restarts int

	jitter func(time.Duration) time.Duration
	sleep  func(context.Context, time.Duration) error
}

// NewBackoff returns a Backoff for the normalized policy.
func NewBackoff(p Policy) *Backoff {
	p = p.Normalize()
	return &Backoff{
		policy: p,
		base:   p.Min,
		jitter: defaultJitter,
		sleep:  sleepWithContext,
	}
}

// Allow reports whether another restart is permitted.
func (b *Backoff) Allow() bool {
	if b.policy.MaxRetries < 0 {
		return true
	}
	return b.restarts < b.policy.MaxRetries
}

// Restarts returns how many restarts have been paced so far.
func (b *Backoff) Restarts() int {
	return b.restarts
}

// Sleep records one restart and blocks for the jittered backoff delay,
// or until ctx is done.
func (b *Backoff) Sleep(ctx context.Context) error {
	b.restarts++

	delay := b.base
	if delay <= 0 {
		delay = b.policy.Min
	}
	if delay > b.policy.Max {
		delay = b.policy.Max
	}

	jittered := b.jitter(delay)
	if jittered > b.policy.Max {
		jittered = b.policy.Max
	}
	if jittered < 0 {
		jittered = 0
	}

	if err := b.sleep(ctx, jittered); err != nil {
		return err
	}

	next := float64(delay) * b.policy.Factor
	if math.IsInf(next, 0) || next > float64(b.policy.Max) {
		b.base = b.policy.Max
		return nil
	}
	b.base = time.Duration(next)
	return nil
}

func defaultJitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	// Full jitter: random duration in [0, d].
	return time.Duration(rand.Float64() * float64(d))
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
