// Package ratelimit implements a per-service token bucket on top of
// golang.org/x/time/rate, with small jitter added so workers waiting on the
// same limiter don't wake up in synchronized bursts.
package ratelimit

import (
	"context"
	"crypto/rand"
	"math/big"
	"time"

	"golang.org/x/time/rate"
)

const maxJitter = 30 * time.Millisecond

// Limiter is a single named rate limiter, e.g. "quality" or "popularity".
type Limiter struct {
	name    string
	limiter *rate.Limiter
}

// New constructs a Limiter allowing perSecond tokens per second. perSecond is
// clamped to at least 1, per the contract's "must tolerate N >= 1".
func New(name string, perSecond int) *Limiter {
	if perSecond < 1 {
		perSecond = 1
	}
	return &Limiter{
		name:    name,
		limiter: rate.NewLimiter(rate.Limit(perSecond), perSecond),
	}
}

// Acquire blocks until a token is available or ctx is cancelled, then adds a
// small random jitter before returning, to avoid synchronized bursts across
// workers that were all unblocked by the same refill tick.
func (l *Limiter) Acquire(ctx context.Context) error {
	if err := l.limiter.Wait(ctx); err != nil {
		return err
	}
	return sleepJitter(ctx)
}

func sleepJitter(ctx context.Context) error {
	n, err := rand.Int(rand.Reader, big.NewInt(int64(maxJitter)))
	if err != nil {
		// Jitter is best-effort; a PRNG failure should not block requests.
		return nil
	}
	d := time.Duration(n.Int64())
	if d == 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Name returns the service name this limiter was constructed for.
func (l *Limiter) Name() string {
	return l.name
}
