package gate

import (
	"context"
	"fmt"
	"sync"
)

// Gate bounds the number of tasks running at once.
//
// Callers that arrive while all slots are taken queue in arrival order and
// are admitted strictly FIFO as slots free up. A queued caller whose context
// is cancelled leaves the queue without consuming a slot.
type Gate struct {
	mu       sync.Mutex
	limit    int
	inFlight int
	waiters  []chan struct{}
}

// New creates a gate admitting at most limit concurrent tasks.
// A limit below 1 is treated as 1.
func New(limit int) *Gate {
	if limit < 1 {
		limit = 1
	}
	return &Gate{limit: limit}
}

// Acquire blocks until a slot is available or ctx is cancelled.
// On success the caller owns one slot and must call Release.
func (g *Gate) Acquire(ctx context.Context) error {
	g.mu.Lock()
	if g.inFlight < g.limit && len(g.waiters) == 0 {
		g.inFlight++
		g.mu.Unlock()
		return nil
	}

	ready := make(chan struct{})
	g.waiters = append(g.waiters, ready)
	g.mu.Unlock()

	select {
	case <-ready:
		return nil
	case <-ctx.Done():
		g.mu.Lock()
		for i, w := range g.waiters {
			if w == ready {
				g.waiters = append(g.waiters[:i], g.waiters[i+1:]...)
				g.mu.Unlock()
				return ctx.Err()
			}
		}
		g.mu.Unlock()
		// The slot was already handed to us in the race window; pass it on
		// so it is not leaked.
		g.Release()
		return ctx.Err()
	}
}

// Release returns a slot. The slot goes to the oldest waiter if any, so the
// in-flight count stays constant across a hand-off.
func (g *Gate) Release() {
	g.mu.Lock()
	if len(g.waiters) > 0 {
		ready := g.waiters[0]
		g.waiters = g.waiters[1:]
		g.mu.Unlock()
		close(ready)
		return
	}
	if g.inFlight == 0 {
		g.mu.Unlock()
		panic(fmt.Sprintf("gate: Release without matching Acquire (limit %d)", g.limit))
	}
	g.inFlight--
	g.mu.Unlock()
}

// Do runs fn while holding a slot. Queuing respects ctx cancellation; once
// fn has started it runs to completion (in-flight work is signalled through
// the context fn captures, never forcibly terminated).
func (g *Gate) Do(ctx context.Context, fn func() error) error {
	if err := g.Acquire(ctx); err != nil {
		return err
	}
	defer g.Release()
	return fn()
}

// InFlight reports the number of slots currently held.
func (g *Gate) InFlight() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.inFlight
}

// Waiting reports the number of queued callers.
func (g *Gate) Waiting() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.waiters)
}
