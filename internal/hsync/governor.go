package hsync

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Governor paces transfer bandwidth with a token bucket. The reader and the
// writer share a single bucket, so the configured rate bounds the combined
// read+write throughput. A nil Governor imposes no limit.
type Governor struct {
	rate  int64 // bytes per second
	burst int64 // bucket capacity, one second of budget

	mu      sync.Mutex
	tokens  int64
	last    time.Time
	clock   Clock
	sleepFn func(ctx context.Context, d time.Duration) error
}

// NewGovernor returns a Governor limiting throughput to rate bytes per
// second, or nil when rate is zero (unlimited).
func NewGovernor(rate int64, clock Clock) (*Governor, error) {
	if rate < 0 {
		return nil, fmt.Errorf("bandwidth limit must not be negative, got %d", rate)
	}
	if rate == 0 {
		return nil, nil
	}
	if clock == nil {
		clock = RealClock{}
	}
	g := &Governor{
		rate:    rate,
		burst:   rate,
		tokens:  rate,
		clock:   clock,
		sleepFn: sleepContext,
	}
	g.last = clock.Now()
	return g, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Acquire blocks until n tokens are available or ctx is cancelled. Requests
// larger than the bucket are satisfied in burst-sized installments, so a
// block size above the rate still paces correctly.
func (g *Governor) Acquire(ctx context.Context, n int64) error {
	if g == nil || n <= 0 {
		return nil
	}
	for n > 0 {
		take := n
		if take > g.burst {
			take = g.burst
		}
		if err := g.acquireOne(ctx, take); err != nil {
			return err
		}
		n -= take
	}
	return nil
}

func (g *Governor) acquireOne(ctx context.Context, n int64) error {
	for {
		g.mu.Lock()
		g.refill()
		if g.tokens >= n {
			g.tokens -= n
			g.mu.Unlock()
			return nil
		}
		missing := n - g.tokens
		g.mu.Unlock()
		wait := time.Duration(float64(missing) / float64(g.rate) * float64(time.Second))
		if wait < time.Millisecond {
			wait = time.Millisecond
		}
		if err := g.sleepFn(ctx, wait); err != nil {
			return err
		}
	}
}

func (g *Governor) refill() {
	now := g.clock.Now()
	elapsed := now.Sub(g.last)
	if elapsed <= 0 {
		return
	}
	g.last = now
	g.tokens += int64(elapsed.Seconds() * float64(g.rate))
	if g.tokens > g.burst {
		g.tokens = g.burst
	}
}
