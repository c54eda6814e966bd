package quota

import (
	"context"
	"sync"
	"testing"
	"time"

	"sheetbridge/core/events"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// captureSink records emitted events for assertions.
type captureSink struct {
	mu     sync.Mutex
	events []events.Event
}

func (s *captureSink) Emit(e events.Event) {
	s.mu.Lock()
	s.events = append(s.events, e)
	s.mu.Unlock()
}

func (s *captureSink) kinds() []events.Kind {
	s.mu.Lock()
	defer s.mu.Unlock()
	kinds := make([]events.Kind, 0, len(s.events))
	for _, e := range s.events {
		kinds = append(kinds, e.Kind)
	}
	return kinds
}

func testConfig() Config {
	return Config{
		RequestsPerWindow: 100,
		WindowSeconds:     60,
		FailureThreshold:  3,
		CooldownSeconds:   30,
	}
}

func TestGuard_OpensAfterFailureStreak(t *testing.T) {
	sink := &captureSink{}
	g := New(testConfig(), sink)

	for i := 0; i < 3; i++ {
		require.NoError(t, g.Acquire(context.Background()))
		g.Failure()
	}

	assert.Equal(t, StateOpen, g.State())

	// Next call is rejected without touching the window counter.
	err := g.Acquire(context.Background())
	require.Error(t, err)
	assert.True(t, IsCircuitOpen(err))

	var ce *CircuitOpenError
	require.ErrorAs(t, err, &ce)
	assert.Greater(t, ce.RetryAfter, time.Duration(0))

	assert.Contains(t, sink.kinds(), events.KindCircuitTransition)
}

func TestGuard_SuccessResetsStreak(t *testing.T) {
	g := New(testConfig(), nil)

	require.NoError(t, g.Acquire(context.Background()))
	g.Failure()
	require.NoError(t, g.Acquire(context.Background()))
	g.Failure()

	// A success in between breaks the streak.
	require.NoError(t, g.Acquire(context.Background()))
	g.Success()

	require.NoError(t, g.Acquire(context.Background()))
	g.Failure()
	require.NoError(t, g.Acquire(context.Background()))
	g.Failure()

	assert.Equal(t, StateClosed, g.State())
}

func TestGuard_HalfOpenSingleProbe(t *testing.T) {
	g := New(testConfig(), nil)

	base := time.Now()
	now := base
	g.now = func() time.Time { return now }
	g.windowStart = base

	for i := 0; i < 3; i++ {
		require.NoError(t, g.Acquire(context.Background()))
		g.Failure()
	}
	require.Equal(t, StateOpen, g.State())

	// Cooldown elapses: exactly one probe is admitted.
	now = base.Add(31 * time.Second)
	require.NoError(t, g.Acquire(context.Background()))
	assert.Equal(t, StateHalfOpen, g.State())

	// A second caller during the probe is rejected.
	err := g.Acquire(context.Background())
	assert.True(t, IsCircuitOpen(err))

	// Probe success closes the circuit.
	g.Success()
	assert.Equal(t, StateClosed, g.State())
	assert.NoError(t, g.Acquire(context.Background()))
}

func TestGuard_ProbeFailureReopens(t *testing.T) {
	g := New(testConfig(), nil)

	base := time.Now()
	now := base
	g.now = func() time.Time { return now }
	g.windowStart = base

	for i := 0; i < 3; i++ {
		require.NoError(t, g.Acquire(context.Background()))
		g.Failure()
	}

	now = base.Add(31 * time.Second)
	require.NoError(t, g.Acquire(context.Background()))
	g.Failure()

	assert.Equal(t, StateOpen, g.State())
	assert.True(t, IsCircuitOpen(g.Acquire(context.Background())))
}

func TestGuard_WindowThrottleBlocksUntilReset(t *testing.T) {
	sink := &captureSink{}
	cfg := Config{
		RequestsPerWindow: 2,
		WindowSeconds:     1, // smallest configurable real window
		FailureThreshold:  5,
		CooldownSeconds:   30,
	}
	g := New(cfg, sink)

	require.NoError(t, g.Acquire(context.Background()))
	require.NoError(t, g.Acquire(context.Background()))

	// Third call must block until the window resets, then succeed.
	start := time.Now()
	require.NoError(t, g.Acquire(context.Background()))
	assert.GreaterOrEqual(t, time.Since(start), 500*time.Millisecond)

	assert.Contains(t, sink.kinds(), events.KindQuotaWait)
}

func TestGuard_WindowWaitHonorsCancellation(t *testing.T) {
	cfg := Config{
		RequestsPerWindow: 1,
		WindowSeconds:     60,
		FailureThreshold:  5,
		CooldownSeconds:   30,
	}
	g := New(cfg, nil)

	require.NoError(t, g.Acquire(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- g.Acquire(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	assert.ErrorIs(t, <-errCh, context.Canceled)
}
