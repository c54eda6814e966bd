package events

import "time"

// Kind identifies the event type.
type Kind string

const (
	// KindCircuitTransition is emitted when the circuit breaker changes state.
	KindCircuitTransition Kind = "circuit_transition"
	// KindQuotaWait is emitted when a caller blocks for the request window to reset.
	KindQuotaWait Kind = "quota_wait"
	// KindBatchCompleted is emitted after a compile run finishes.
	KindBatchCompleted Kind = "batch_completed"
	// KindDiffCompleted is emitted after a diff run finishes.
	KindDiffCompleted Kind = "diff_completed"
)

// Event is a structured observability record. The core emits these as data;
// what happens to them (logging, metrics) is the consumer's concern.
type Event struct {
	Kind       Kind           `json:"kind"`
	At         time.Time      `json:"at"`
	ResourceID string         `json:"resource_id,omitempty"`
	Fields     map[string]any `json:"fields,omitempty"`
}

// Sink receives events. Implementations must be safe for concurrent use and
// must not block; slow consumers should buffer internally.
type Sink interface {
	Emit(Event)
}

// NopSink discards all events.
type NopSink struct{}

func (NopSink) Emit(Event) {}

// CircuitTransition builds a circuit breaker state-change event.
func CircuitTransition(from, to string) Event {
	return Event{
		Kind: KindCircuitTransition,
		At:   time.Now(),
		Fields: map[string]any{
			"from": from,
			"to":   to,
		},
	}
}

// QuotaWait builds an event describing a throttled caller.
func QuotaWait(wait time.Duration) Event {
	return Event{
		Kind: KindQuotaWait,
		At:   time.Now(),
		Fields: map[string]any{
			"wait_ms": wait.Milliseconds(),
		},
	}
}

// BatchCompleted builds a compile completion event.
func BatchCompleted(succeeded, failed, skipped int) Event {
	return Event{
		Kind: KindBatchCompleted,
		At:   time.Now(),
		Fields: map[string]any{
			"succeeded": succeeded,
			"failed":    failed,
			"skipped":   skipped,
		},
	}
}

// DiffCompleted builds a diff completion event.
func DiffCompleted(resourceID string, added, removed, modified int) Event {
	return Event{
		Kind:       KindDiffCompleted,
		At:         time.Now(),
		ResourceID: resourceID,
		Fields: map[string]any{
			"added":    added,
			"removed":  removed,
			"modified": modified,
		},
	}
}
