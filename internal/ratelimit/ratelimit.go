package ratelimit

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

// Pacer spaces out requests against a single host. Wait reports the delay it
// slept for.
type Pacer interface {
	Wait(ctx context.Context) (time.Duration, error)
}

// RandomPacer sleeps for a uniformly random duration in [min, max] on every
// Wait. A zero range returns immediately.
type RandomPacer struct {
	minDelay time.Duration
	maxDelay time.Duration
	mu       sync.Mutex
	rnd      *rand.Rand
}

func NewRandomPacer(minDelay, maxDelay time.Duration) *RandomPacer {
	if maxDelay < minDelay {
		minDelay, maxDelay = maxDelay, minDelay
	}
	if minDelay < 0 {
		minDelay = 0
	}
	return &RandomPacer{
		minDelay: minDelay,
		maxDelay: maxDelay,
		rnd:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (p *RandomPacer) Wait(ctx context.Context) (time.Duration, error) {
	d := p.next()
	return d, Sleep(ctx, d)
}

func (p *RandomPacer) next() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.minDelay == p.maxDelay {
		return p.minDelay
	}

	delta := p.maxDelay - p.minDelay
	return p.minDelay + time.Duration(p.rnd.Int63n(int64(delta)+1))
}

// Sleep waits d or until ctx is cancelled.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
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
