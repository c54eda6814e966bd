package diff

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
)

// Engine captures snapshots of a remote resource and compares them against
// a prior baseline. All remote reads go through the shared gate and quota
// guard, so a diff run never exceeds the process-wide concurrency limit and
// never bypasses the throttle the batch compiler is subject to.
type Engine struct {
	remote remote.Client
	gate   *gate.Gate
	guard  *quota.Guard
	cache  *cache.Cache
	sink   events.Sink

	maxAttempts int
	backoffBase time.Duration

	now func() time.Time
}

// NewEngine wires a diff engine. The gate, guard and cache are the same
// instances the batch compiler uses.
func NewEngine(
	client remote.Client,
	g *gate.Gate,
	guard *quota.Guard,
	artifacts *cache.Cache,
	sink events.Sink,
	cfg Config,
) *Engine {
	if sink == nil {
		sink = events.NopSink{}
	}
	return &Engine{
		remote:      client,
		gate:        g,
		guard:       guard,
		cache:       artifacts,
		sink:        sink,
		maxAttempts: cfg.maxAttempts(),
		backoffBase: cfg.backoffBase(),
		now:         time.Now,
	}
}

// Diff captures a fresh snapshot of resourceID and returns the differences
// against previous, plus the new snapshot for the caller to persist as the
// next baseline. A nil previous means initial sync: every unit is reported
// as added.
//
// The returned change-set is either complete or absent: any unit that
// cannot be read after retries fails the whole call with *Error.
func (e *Engine) Diff(ctx context.Context, resourceID string, previous *Snapshot) (ChangeSet, *Snapshot, error) {
	current, err := e.capture(ctx, resourceID)
	if err != nil {
		return nil, nil, err
	}

	key, keyErr := changeKey(resourceID, previous, current)
	if keyErr == nil {
		if cached, ok := e.cache.Get(key); ok {
			if set, ok := cached.(ChangeSet); ok {
				e.emit(resourceID, set)
				return set, current, nil
			}
		}
	}

	set := compare(previous, current)
	if keyErr == nil {
		_ = e.cache.Put(key, set)
	}
	e.emit(resourceID, set)
	return set, current, nil
}

// capture enumerates the resource's units and fingerprints each one's
// content. Fetches run in parallel, each under its own gate slot.
func (e *Engine) capture(ctx context.Context, resourceID string) (*Snapshot, error) {
	var units []remote.Unit
	var attempts int
	err := e.gate.Do(ctx, func() error {
		var rerr error
		attempts, rerr = e.withRetry(ctx, func(ctx context.Context) error {
			var lerr error
			units, lerr = e.remote.ListUnits(ctx, resourceID)
			return lerr
		})
		return rerr
	})
	if err != nil {
		return nil, &Error{ResourceID: resourceID, Attempts: attempts, Err: err}
	}

	snap := &Snapshot{
		ResourceID: resourceID,
		TakenAt:    e.now(),
		Units:      make([]UnitDigest, len(units)),
	}

	errs := make([]error, len(units))
	var wg sync.WaitGroup
	for i, u := range units {
		wg.Add(1)
		go func(i int, u remote.Unit) {
			defer wg.Done()
			digest, err := e.fetchDigest(ctx, resourceID, u)
			if err != nil {
				errs[i] = err
				return
			}
			snap.Units[i] = digest
		}(i, u)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return snap, nil
}

// fetchDigest reads one unit's content under a gate slot and reduces it to
// a fingerprint. The raw content is discarded immediately.
func (e *Engine) fetchDigest(ctx context.Context, resourceID string, u remote.Unit) (UnitDigest, error) {
	var content []byte
	var attempts int
	err := e.gate.Do(ctx, func() error {
		var rerr error
		attempts, rerr = e.withRetry(ctx, func(ctx context.Context) error {
			var ferr error
			content, ferr = e.remote.FetchUnit(ctx, resourceID, u.ID)
			return ferr
		})
		return rerr
	})
	if err != nil {
		return UnitDigest{}, &Error{ResourceID: resourceID, UnitID: u.ID, Attempts: attempts, Err: err}
	}

	return UnitDigest{
		UnitID:      u.ID,
		Title:       u.Title,
		Fingerprint: fingerprint.Bytes(content),
	}, nil
}

// withRetry runs one remote call under the quota guard with bounded
// exponential backoff. Transient failures and circuit-open rejections both
// consume an attempt; permanent failures return immediately.
func (e *Engine) withRetry(ctx context.Context, fn func(context.Context) error) (int, error) {
	var lastErr error
	for attempt := 1; attempt <= e.maxAttempts; attempt++ {
		if err := e.guard.Acquire(ctx); err != nil {
			if quota.IsCircuitOpen(err) {
				lastErr = err
				if berr := e.backoff(ctx, attempt); berr != nil {
					return attempt, berr
				}
				continue
			}
			return attempt, err // context cancelled
		}

		err := fn(ctx)
		if err == nil {
			e.guard.Success()
			return attempt, nil
		}

		if remote.IsTransient(err) {
			e.guard.Failure()
			lastErr = err
			if berr := e.backoff(ctx, attempt); berr != nil {
				return attempt, berr
			}
			continue
		}

		return attempt, err
	}
	return e.maxAttempts, lastErr
}

// backoff sleeps for backoffBase << (attempt-1), honoring cancellation.
// The last attempt skips the sleep.
func (e *Engine) backoff(ctx context.Context, attempt int) error {
	if attempt >= e.maxAttempts {
		return nil
	}
	delay := e.backoffBase << (attempt - 1)
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (e *Engine) emit(resourceID string, set ChangeSet) {
	var added, removed, modified int
	for _, r := range set {
		switch r.Kind {
		case ChangeAdded:
			added++
		case ChangeRemoved:
			removed++
		case ChangeModified:
			modified++
		}
	}
	e.sink.Emit(events.DiffCompleted(resourceID, added, removed, modified))
}

// compare walks both snapshots and produces the ordered change-set: added
// and modified entries in the newer snapshot's order, removed entries after
// them in the older snapshot's order. Unchanged units produce nothing.
func compare(previous, current *Snapshot) ChangeSet {
	prev := previous.index()
	cur := current.index()

	set := ChangeSet{}
	for _, u := range current.Units {
		before, ok := prev[u.UnitID]
		if !ok {
			set = append(set, ChangeRecord{
				UnitID:           u.UnitID,
				Kind:             ChangeAdded,
				AfterFingerprint: u.Fingerprint,
			})
			continue
		}
		if before.Fingerprint != u.Fingerprint {
			set = append(set, ChangeRecord{
				UnitID:            u.UnitID,
				Kind:              ChangeModified,
				BeforeFingerprint: before.Fingerprint,
				AfterFingerprint:  u.Fingerprint,
			})
		}
	}

	if previous != nil {
		for _, u := range previous.Units {
			if _, ok := cur[u.UnitID]; !ok {
				set = append(set, ChangeRecord{
					UnitID:            u.UnitID,
					Kind:              ChangeRemoved,
					BeforeFingerprint: u.Fingerprint,
				})
			}
		}
	}
	return set
}

// changeKey derives the cache fingerprint for a snapshot pair. Identical
// before/after unit digests always produce the same key, so repeated diffs
// of an unchanged resource hit the artifact cache.
func changeKey(resourceID string, previous, current *Snapshot) (string, error) {
	key := struct {
		ResourceID string       `json:"resource_id"`
		Before     []UnitDigest `json:"before"`
		After      []UnitDigest `json:"after"`
	}{ResourceID: resourceID, After: current.Units}
	if previous != nil {
		key.Before = previous.Units
	}
	return fingerprint.Hash(key)
}
