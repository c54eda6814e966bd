package quota

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"sheetbridge/core/events"
)

// State is the circuit breaker state.
type State int

const (
	// StateClosed lets requests through and tracks the failure streak.
	StateClosed State = iota
	// StateOpen rejects every request until the cooldown elapses.
	StateOpen
	// StateHalfOpen lets exactly one probe request through.
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// CircuitOpenError is returned when the breaker rejects a call without
// attempting the network. Callers should back off rather than retry hot.
type CircuitOpenError struct {
	// RetryAfter is how long until the breaker will allow a probe.
	RetryAfter time.Duration
}

func (e *CircuitOpenError) Error() string {
	return fmt.Sprintf("circuit open: remote calls suspended, retry after %s", e.RetryAfter)
}

// IsCircuitOpen reports whether err is (or wraps) a CircuitOpenError.
func IsCircuitOpen(err error) bool {
	var ce *CircuitOpenError
	return errors.As(err, &ce)
}

// Guard is the process-wide rate limiter and circuit breaker. One Guard is
// shared by every compiler and differ so the remote sees a single request
// budget. All state mutation happens under one mutex in a single step; the
// mutex is never held across a wait.
type Guard struct {
	mu   sync.Mutex
	cfg  Config
	sink events.Sink

	state         State
	failureStreak int
	openedAt      time.Time
	probing       bool

	windowStart time.Time
	windowCount int

	now func() time.Time
}

// New creates a guard in the closed state. A nil sink disables events.
func New(cfg Config, sink events.Sink) *Guard {
	if sink == nil {
		sink = events.NopSink{}
	}
	g := &Guard{cfg: cfg, sink: sink, now: time.Now}
	g.windowStart = g.now()
	return g
}

// Acquire admits one remote call attempt. It returns CircuitOpenError while
// the breaker is open, and blocks (cooperatively, honoring ctx) while the
// per-window request budget is exhausted; the window throttle is not an
// error path. On success the caller must report the call's outcome through
// Success or Failure.
func (g *Guard) Acquire(ctx context.Context) error {
	isProbe := false
	for {
		g.mu.Lock()
		now := g.now()

		switch g.state {
		case StateOpen:
			if elapsed := now.Sub(g.openedAt); elapsed < g.cfg.CooldownDuration() {
				retryAfter := g.cfg.CooldownDuration() - elapsed
				g.mu.Unlock()
				return &CircuitOpenError{RetryAfter: retryAfter}
			}
			// Cooldown elapsed: this caller becomes the probe.
			g.transition(StateHalfOpen)
			g.probing = true
			isProbe = true
		case StateHalfOpen:
			if g.probing && !isProbe {
				g.mu.Unlock()
				return &CircuitOpenError{RetryAfter: g.cfg.CooldownDuration()}
			}
			g.probing = true
			isProbe = true
		}

		if now.Sub(g.windowStart) >= g.cfg.WindowDuration() {
			g.windowStart = now
			g.windowCount = 0
		}
		if g.windowCount < g.cfg.RequestsPerWindow {
			g.windowCount++
			g.mu.Unlock()
			return nil
		}

		wait := g.cfg.WindowDuration() - now.Sub(g.windowStart)
		g.mu.Unlock()

		g.sink.Emit(events.QuotaWait(wait))
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			if isProbe {
				g.abandonProbe()
			}
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// Success records a successful remote call. It resets the failure streak and
// closes the breaker after a successful probe.
func (g *Guard) Success() {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.failureStreak = 0
	if g.state == StateHalfOpen {
		g.probing = false
		g.transition(StateClosed)
	}
}

// Failure records a failed remote call attributable to the remote resource.
// Caller errors (malformed payloads, missing resources) must not be reported
// here; they say nothing about the remote's health.
func (g *Guard) Failure() {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.failureStreak++
	switch {
	case g.state == StateHalfOpen:
		g.probing = false
		g.openedAt = g.now()
		g.transition(StateOpen)
	case g.state == StateClosed && g.failureStreak >= g.cfg.FailureThreshold:
		g.openedAt = g.now()
		g.transition(StateOpen)
	}
}

// State returns the current breaker state.
func (g *Guard) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// abandonProbe releases the half-open probe slot when the probing caller
// gave up before issuing the call (context cancellation during a window wait).
func (g *Guard) abandonProbe() {
	g.mu.Lock()
	if g.state == StateHalfOpen {
		g.probing = false
	}
	g.mu.Unlock()
}

// transition changes state and emits the event. Caller holds g.mu.
func (g *Guard) transition(to State) {
	from := g.state
	g.state = to
	g.sink.Emit(events.CircuitTransition(from.String(), to.String()))
}
