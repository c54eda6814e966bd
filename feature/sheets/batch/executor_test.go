package batch

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"sheetbridge/core/cache"
	"sheetbridge/core/gate"
	"sheetbridge/core/quota"
	"sheetbridge/core/remote"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordedCall captures one BatchUpdate as seen by the fake remote.
type recordedCall struct {
	ResourceID string
	Payloads   []string
}

// fakeRemote records calls and lets tests script responses per call.
type fakeRemote struct {
	mu      sync.Mutex
	calls   []recordedCall
	batchFn func(call int, resourceID string, ops []remote.SubOperation) (*remote.BatchResult, error)
}

func (f *fakeRemote) ListUnits(ctx context.Context, resourceID string) ([]remote.Unit, error) {
	return nil, nil
}

func (f *fakeRemote) FetchUnit(ctx context.Context, resourceID, unitID string) ([]byte, error) {
	return nil, nil
}

func (f *fakeRemote) BatchUpdate(ctx context.Context, resourceID string, ops []remote.SubOperation) (*remote.BatchResult, error) {
	f.mu.Lock()
	call := len(f.calls)
	rec := recordedCall{ResourceID: resourceID}
	for _, op := range ops {
		var s string
		_ = json.Unmarshal(op.Payload, &s)
		rec.Payloads = append(rec.Payloads, s)
	}
	f.calls = append(f.calls, rec)
	fn := f.batchFn
	f.mu.Unlock()

	if fn != nil {
		return fn(call, resourceID, ops)
	}
	return &remote.BatchResult{Applied: len(ops)}, nil
}

func (f *fakeRemote) recorded() []recordedCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]recordedCall, len(f.calls))
	copy(out, f.calls)
	return out
}

func newTestCompiler(f *fakeRemote, cfg Config) *Compiler {
	guard := quota.New(quota.Config{
		RequestsPerWindow: 1000,
		WindowSeconds:     60,
		FailureThreshold:  100,
		CooldownSeconds:   1,
	}, nil)
	if cfg.BackoffBase == 0 {
		cfg.BackoffBase = time.Millisecond
	}
	return NewCompiler(f, gate.New(4), guard, cache.New(cache.Config{MaxBytes: 1 << 20, TTLSeconds: 60}), nil, nil, cfg)
}

func TestCompile_ScenarioCapOne(t *testing.T) {
	// Intents: S1/p1, S1/p2, S2/p3 with cap 1 must become two sequential
	// batches for S1 (p1 then p2) and one batch for S2.
	f := &fakeRemote{}
	c := newTestCompiler(f, Config{BatchCap: 1, MaxAttempts: 3})

	report, err := c.Compile(context.Background(), []Intent{
		intent("S1", "p1"),
		intent("S1", "p2"),
		intent("S2", "p3"),
	})
	require.NoError(t, err)
	assert.Equal(t, 3, report.Succeeded)
	assert.Equal(t, 0, report.Failed)

	var s1, s2 []recordedCall
	for _, call := range f.recorded() {
		switch call.ResourceID {
		case "S1":
			s1 = append(s1, call)
		case "S2":
			s2 = append(s2, call)
		}
	}

	// S1's calls arrive in packed order, one op each, never interleaved
	// with S2's ops inside a single call.
	require.Len(t, s1, 2)
	assert.Equal(t, []string{"p1"}, s1[0].Payloads)
	assert.Equal(t, []string{"p2"}, s1[1].Payloads)
	require.Len(t, s2, 1)
	assert.Equal(t, []string{"p3"}, s2[0].Payloads)
}

func TestCompile_GroupOrderPreservedUnderPacking(t *testing.T) {
	f := &fakeRemote{}
	c := newTestCompiler(f, Config{BatchCap: 2, MaxAttempts: 2})

	_, err := c.Compile(context.Background(), []Intent{
		intent("S1", "p1"), intent("S1", "p2"), intent("S1", "p3"),
		intent("S1", "p4"), intent("S1", "p5"),
	})
	require.NoError(t, err)

	var got []string
	for _, call := range f.recorded() {
		got = append(got, call.Payloads...)
	}
	assert.Equal(t, []string{"p1", "p2", "p3", "p4", "p5"}, got)
}

func TestCompile_FailureIsolatedPerGroup(t *testing.T) {
	f := &fakeRemote{}
	f.batchFn = func(call int, resourceID string, ops []remote.SubOperation) (*remote.BatchResult, error) {
		if resourceID == "S1" {
			var s string
			_ = json.Unmarshal(ops[0].Payload, &s)
			if s == "p2" {
				return nil, &remote.PermanentError{StatusCode: 400, Message: "malformed payload"}
			}
		}
		return &remote.BatchResult{Applied: len(ops)}, nil
	}
	c := newTestCompiler(f, Config{BatchCap: 1, MaxAttempts: 3})

	report, err := c.Compile(context.Background(), []Intent{
		intent("S1", "p1"),
		intent("S1", "p2"),
		intent("S1", "p3"),
		intent("S2", "q1"),
	})
	require.NoError(t, err)

	var s1 GroupReport
	var s2 GroupReport
	for _, g := range report.Groups {
		switch g.ResourceID {
		case "S1":
			s1 = g
		case "S2":
			s2 = g
		}
	}

	// p1 succeeded, p2 failed, p3 never issued.
	require.Len(t, s1.Batches, 3)
	assert.Equal(t, StatusSucceeded, s1.Batches[0].Status)
	assert.Equal(t, StatusFailed, s1.Batches[1].Status)
	assert.Equal(t, StatusSkipped, s1.Batches[2].Status)
	assert.Contains(t, s1.FirstError, "malformed payload")

	// The sibling group is untouched by S1's failure.
	assert.Equal(t, 1, s2.Succeeded)
	assert.Equal(t, 0, s2.Failed)

	// p3 was truly never sent.
	for _, call := range f.recorded() {
		assert.NotContains(t, call.Payloads, "p3")
	}
}

func TestCompile_TransientRetriedThenSucceeds(t *testing.T) {
	f := &fakeRemote{}
	f.batchFn = func(call int, resourceID string, ops []remote.SubOperation) (*remote.BatchResult, error) {
		if call < 2 {
			return nil, &remote.TransientError{StatusCode: 429, RateLimited: true, Message: "quota"}
		}
		return &remote.BatchResult{Applied: len(ops)}, nil
	}
	c := newTestCompiler(f, Config{BatchCap: 10, MaxAttempts: 4})

	report, err := c.Compile(context.Background(), []Intent{intent("S1", "p1")})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Succeeded)
	assert.Equal(t, 3, report.Groups[0].Batches[0].Attempts)
	assert.Len(t, f.recorded(), 3)
}

func TestCompile_TransientExhaustsRetries(t *testing.T) {
	f := &fakeRemote{}
	f.batchFn = func(call int, resourceID string, ops []remote.SubOperation) (*remote.BatchResult, error) {
		return nil, &remote.TransientError{StatusCode: 503, Message: "unavailable"}
	}
	c := newTestCompiler(f, Config{BatchCap: 10, MaxAttempts: 3})

	report, err := c.Compile(context.Background(), []Intent{intent("S1", "p1")})
	require.NoError(t, err)

	outcome := report.Groups[0].Batches[0]
	assert.Equal(t, StatusFailed, outcome.Status)
	assert.Equal(t, 3, outcome.Attempts)
	assert.Contains(t, outcome.Error, "unavailable")
	assert.Len(t, f.recorded(), 3)
}

func TestCompile_PermanentNotRetried(t *testing.T) {
	f := &fakeRemote{}
	f.batchFn = func(call int, resourceID string, ops []remote.SubOperation) (*remote.BatchResult, error) {
		return nil, &remote.PermanentError{StatusCode: 404, NotFound: true, Message: "no such spreadsheet"}
	}
	c := newTestCompiler(f, Config{BatchCap: 10, MaxAttempts: 5})

	report, err := c.Compile(context.Background(), []Intent{intent("missing", "p1")})
	require.NoError(t, err)

	outcome := report.Groups[0].Batches[0]
	assert.Equal(t, StatusFailed, outcome.Status)
	assert.Equal(t, 1, outcome.Attempts)
	assert.Len(t, f.recorded(), 1)
}

func TestCompile_IdempotentBatchServedFromCache(t *testing.T) {
	f := &fakeRemote{}
	c := newTestCompiler(f, Config{BatchCap: 10, MaxAttempts: 2})

	safe := intent("S1", "p1")
	safe.Idempotent = true

	_, err := c.Compile(context.Background(), []Intent{safe})
	require.NoError(t, err)
	report, err := c.Compile(context.Background(), []Intent{safe})
	require.NoError(t, err)

	// Second run answered from cache: still one remote call total.
	assert.Len(t, f.recorded(), 1)
	assert.True(t, report.Groups[0].Batches[0].FromCache)
	assert.Equal(t, 1, report.Succeeded)
}

func TestCompile_NonIdempotentNeverServedFromCache(t *testing.T) {
	f := &fakeRemote{}
	c := newTestCompiler(f, Config{BatchCap: 10, MaxAttempts: 2})

	_, err := c.Compile(context.Background(), []Intent{intent("S1", "p1")})
	require.NoError(t, err)
	_, err = c.Compile(context.Background(), []Intent{intent("S1", "p1")})
	require.NoError(t, err)

	assert.Len(t, f.recorded(), 2)
}

func TestCompile_InvalidIntentFailsBeforeNetwork(t *testing.T) {
	f := &fakeRemote{}
	c := newTestCompiler(f, Config{BatchCap: 10, MaxAttempts: 2})

	_, err := c.Compile(context.Background(), []Intent{intent("", "p1")})
	require.Error(t, err)

	var ce *CompileError
	assert.ErrorAs(t, err, &ce)
	assert.Empty(t, f.recorded())
}

func TestCompile_GroupsRunConcurrently(t *testing.T) {
	// Two groups, gate limit 2: both first batches should be in flight at
	// the same time.
	var (
		mu       sync.Mutex
		inFlight int
		peak     int
	)
	f := &fakeRemote{}
	f.batchFn = func(call int, resourceID string, ops []remote.SubOperation) (*remote.BatchResult, error) {
		mu.Lock()
		inFlight++
		if inFlight > peak {
			peak = inFlight
		}
		mu.Unlock()
		time.Sleep(20 * time.Millisecond)
		mu.Lock()
		inFlight--
		mu.Unlock()
		return &remote.BatchResult{Applied: len(ops)}, nil
	}
	c := newTestCompiler(f, Config{BatchCap: 1, MaxAttempts: 1})

	_, err := c.Compile(context.Background(), []Intent{
		intent("S1", "p1"),
		intent("S2", "p2"),
	})
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 2, peak)
}
