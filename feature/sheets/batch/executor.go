package batch

import (
	"context"
	"sync"
	"time"

	"sheetbridge/core/cache"
	"sheetbridge/core/events"
	"sheetbridge/core/fingerprint"
	"sheetbridge/core/gate"
	"sheetbridge/core/quota"
	"sheetbridge/core/remote"
	"sheetbridge/feature/sheets/journal"
)

// Compiler turns a flat sequence of mutation intents into the minimal,
// correctly ordered set of remote calls and executes them: groups run in
// parallel up to the gate limit, batches inside a group run strictly
// sequentially, and transient failures retry with exponential backoff.
type Compiler struct {
	remote  remote.Client
	gate    *gate.Gate
	guard   *quota.Guard
	cache   *cache.Cache
	journal *journal.Store // optional; nil disables auditing
	sink    events.Sink

	batchCap    int
	maxAttempts int
	backoffBase time.Duration

	now func() time.Time
}

// NewCompiler wires a compiler. The gate, guard and cache are shared
// process-wide with the diff engine; journal may be nil.
func NewCompiler(
	client remote.Client,
	g *gate.Gate,
	guard *quota.Guard,
	artifacts *cache.Cache,
	jnl *journal.Store,
	sink events.Sink,
	cfg Config,
) *Compiler {
	if sink == nil {
		sink = events.NopSink{}
	}
	return &Compiler{
		remote:      client,
		gate:        g,
		guard:       guard,
		cache:       artifacts,
		journal:     jnl,
		sink:        sink,
		batchCap:    cfg.batchCap(),
		maxAttempts: cfg.maxAttempts(),
		backoffBase: cfg.backoffBase(),
		now:         time.Now,
	}
}

// Compile groups, packs, and executes the submitted intents.
//
// It returns an error only when the input itself is invalid (CompileError);
// runtime failures are isolated per resource group and reported in the
// ExecutionReport, never silently dropped. Cancelling ctx stops unissued
// work but does not roll back batches the remote already accepted;
// partial completion is reported.
func (c *Compiler) Compile(ctx context.Context, intents []Intent) (*ExecutionReport, error) {
	groups, err := groupIntents(intents)
	if err != nil {
		return nil, err
	}

	reports := make([]GroupReport, len(groups))

	// Every group is submitted to the gate at once; the gate admits up to
	// its limit and queues the rest, so effective parallelism is
	// min(len(groups), gate limit).
	var wg sync.WaitGroup
	for i, g := range groups {
		wg.Add(1)
		go func(i int, g Group) {
			defer wg.Done()
			reports[i] = c.runGroup(ctx, g)
		}(i, g)
	}
	wg.Wait()

	report := &ExecutionReport{Groups: reports}
	for _, gr := range reports {
		report.Succeeded += gr.Succeeded
		report.Failed += gr.Failed
		report.Skipped += gr.Skipped
	}
	c.sink.Emit(events.BatchCompleted(report.Succeeded, report.Failed, report.Skipped))
	return report, nil
}

// runGroup executes one resource group's batches in order, holding a single
// gate slot for the group's whole run. A failed batch aborts the rest of
// the group; sibling groups are unaffected.
func (c *Compiler) runGroup(ctx context.Context, g Group) GroupReport {
	report := GroupReport{ResourceID: g.ResourceID}
	batches := packGroup(g, c.batchCap)

	if err := c.gate.Acquire(ctx); err != nil {
		for _, b := range batches {
			report.Batches = append(report.Batches, Outcome{
				Seq:     b.Seq,
				OpCount: len(b.Intents),
				Status:  StatusSkipped,
				Error:   err.Error(),
				Err:     err,
			})
			report.Skipped++
		}
		report.FirstError = err.Error()
		return report
	}
	defer c.gate.Release()

	aborted := false
	for _, b := range batches {
		if aborted {
			report.Batches = append(report.Batches, Outcome{
				Seq:     b.Seq,
				OpCount: len(b.Intents),
				Status:  StatusSkipped,
			})
			report.Skipped++
			continue
		}

		outcome := c.runBatch(ctx, b)
		report.Batches = append(report.Batches, outcome)
		switch outcome.Status {
		case StatusSucceeded:
			report.Succeeded++
		case StatusFailed:
			report.Failed++
			if report.FirstError == "" {
				report.FirstError = outcome.Error
			}
			aborted = true
		}
	}
	return report
}

// runBatch executes one batch with the bounded retry loop. Transient
// failures (including circuit-open rejections) back off exponentially up to
// the attempt ceiling; permanent failures return immediately.
func (c *Compiler) runBatch(ctx context.Context, b Batch) Outcome {
	outcome := Outcome{Seq: b.Seq, OpCount: len(b.Intents)}

	fp, err := fingerprint.Hash(b)
	if err != nil {
		outcome.Status = StatusFailed
		outcome.Err = err
		outcome.Error = err.Error()
		return outcome
	}

	if b.ReplaySafe() {
		if cached, ok := c.cache.Get(fp); ok {
			if _, ok := cached.(*remote.BatchResult); ok {
				outcome.Status = StatusSucceeded
				outcome.FromCache = true
				return outcome
			}
		}
	}

	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		outcome.Attempts = attempt

		if err := c.guard.Acquire(ctx); err != nil {
			if quota.IsCircuitOpen(err) {
				lastErr = err
				if berr := c.backoff(ctx, attempt); berr != nil {
					return c.fail(outcome, berr)
				}
				continue
			}
			return c.fail(outcome, err) // context cancelled
		}

		result, err := c.remote.BatchUpdate(ctx, b.ResourceID, b.Operations())
		if err == nil {
			c.guard.Success()
			if b.ReplaySafe() {
				_ = c.cache.Put(fp, result)
			}
			c.record(ctx, b, fp, StatusSucceeded, attempt)
			outcome.Status = StatusSucceeded
			return outcome
		}

		if remote.IsTransient(err) {
			c.guard.Failure()
			lastErr = err
			if berr := c.backoff(ctx, attempt); berr != nil {
				return c.fail(outcome, berr)
			}
			continue
		}

		// Permanent: the remote is healthy, the request is wrong. Neither
		// retried nor counted against the breaker.
		c.record(ctx, b, fp, StatusFailed, attempt)
		return c.fail(outcome, err)
	}

	c.record(ctx, b, fp, StatusFailed, outcome.Attempts)
	return c.fail(outcome, lastErr)
}

func (c *Compiler) fail(outcome Outcome, err error) Outcome {
	outcome.Status = StatusFailed
	outcome.Err = err
	if err != nil {
		outcome.Error = err.Error()
	}
	return outcome
}

// backoff sleeps for backoffBase << (attempt-1), honoring cancellation.
// The last attempt skips the sleep; there is nothing left to wait for.
func (c *Compiler) backoff(ctx context.Context, attempt int) error {
	if attempt >= c.maxAttempts {
		return nil
	}
	delay := c.backoffBase << (attempt - 1)
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// record writes the batch outcome to the journal, if one is attached.
func (c *Compiler) record(ctx context.Context, b Batch, fp string, status Status, attempts int) {
	if c.journal == nil {
		return
	}
	_ = c.journal.Record(ctx, journal.Entry{
		Fingerprint: fp,
		ResourceID:  b.ResourceID,
		Seq:         b.Seq,
		OpCount:     len(b.Intents),
		Attempts:    attempts,
		Status:      string(status),
		AppliedAt:   c.now(),
	})
}
