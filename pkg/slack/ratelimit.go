package slack

import (
	"context"
	"sync"
	"time"
)

// gate serializes API calls so that no two requests fire closer together
// than the configured interval, regardless of caller concurrency. Each
// caller reserves the next free slot under the mutex, so slots are handed
// out in arrival order and a backed-off retry cannot starve earlier-queued
// callers: a retry re-enters the gate and takes a fresh slot at the back.
type gate struct {
	mu       sync.Mutex
	interval time.Duration
	next     time.Time
}

func newGate(interval time.Duration) *gate {
	return &gate{interval: interval}
}

// wait blocks until the caller's reserved slot arrives or ctx is done.
func (g *gate) wait(ctx context.Context) error {
	g.mu.Lock()
	now := time.Now()
	at := g.next
	if at.Before(now) {
		at = now
	}
	g.next = at.Add(g.interval)
	g.mu.Unlock()

	delay := time.Until(at)
	if delay <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
