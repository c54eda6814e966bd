package batch

import (
	"encoding/json"
	"fmt"

	"sheetbridge/core/remote"
)

// Kind is the mutation operation kind.
type Kind string

const (
	// KindInsert appends rows or cells.
	KindInsert Kind = "insert"
	// KindUpdate overwrites existing cells.
	KindUpdate Kind = "update"
	// KindDelete removes rows or cells.
	KindDelete Kind = "delete"
	// KindStructural changes sheet structure (add/remove/rename sheets,
	// resize, move).
	KindStructural Kind = "structural"
)

// Intent is a single logical write against one spreadsheet. Intents are
// immutable once submitted.
type Intent struct {
	// ResourceID names the target spreadsheet. Required.
	ResourceID string `json:"resource_id"`

	// Kind is the operation kind.
	Kind Kind `json:"kind"`

	// Payload is the opaque operation body forwarded to the remote.
	Payload json.RawMessage `json:"payload"`

	// SequenceHint optionally orders intents within a resource. It is
	// honored only when every intent for the resource carries one.
	SequenceHint *int `json:"sequence_hint,omitempty"`

	// Idempotent marks the intent as safe to replay. Only batches made
	// entirely of idempotent intents may be served from the artifact
	// cache; replaying anything else would double-apply the write.
	Idempotent bool `json:"idempotent,omitempty"`
}

// Group is the ordered set of intents targeting one resource.
type Group struct {
	ResourceID string
	Intents    []Intent
}

// Batch is a size-capped, remote-call-ready slice of one group's intents.
// Seq is the batch's position within its group; batch i+1 is never issued
// before batch i resolves.
type Batch struct {
	ResourceID string   `json:"resource_id"`
	Seq        int      `json:"seq"`
	Intents    []Intent `json:"intents"`
}

// ReplaySafe reports whether every intent in the batch is flagged
// idempotent, making a cached result acceptable.
func (b Batch) ReplaySafe() bool {
	for _, in := range b.Intents {
		if !in.Idempotent {
			return false
		}
	}
	return len(b.Intents) > 0
}

// Operations converts the batch into the remote wire shape.
func (b Batch) Operations() []remote.SubOperation {
	ops := make([]remote.SubOperation, len(b.Intents))
	for i, in := range b.Intents {
		ops[i] = remote.SubOperation{Kind: string(in.Kind), Payload: in.Payload}
	}
	return ops
}

// CompileError reports an intent that violates grouping or size constraints
// before any network call is made.
type CompileError struct {
	// Index is the offending intent's position in the submitted sequence.
	Index  int
	Reason string
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("invalid intent at index %d: %s", e.Index, e.Reason)
}

// Status classifies a batch outcome.
type Status string

const (
	// StatusSucceeded means the remote accepted the batch.
	StatusSucceeded Status = "succeeded"
	// StatusFailed means the batch exhausted retries or hit a permanent error.
	StatusFailed Status = "failed"
	// StatusSkipped means the batch was never issued because an earlier
	// batch in its group failed.
	StatusSkipped Status = "skipped"
)

// Outcome is the result of one batch.
type Outcome struct {
	Seq       int    `json:"seq"`
	OpCount   int    `json:"op_count"`
	Status    Status `json:"status"`
	Attempts  int    `json:"attempts"`
	FromCache bool   `json:"from_cache,omitempty"`
	Error     string `json:"error,omitempty"`

	// Err carries the typed error for programmatic inspection; Error above
	// is its message for serialized reports.
	Err error `json:"-"`
}

// GroupReport is the per-resource execution record. A group's failure is
// always attributed: which batch failed, after how many attempts, and what
// was skipped as a consequence.
type GroupReport struct {
	ResourceID string    `json:"resource_id"`
	Batches    []Outcome `json:"batches"`
	Succeeded  int       `json:"succeeded"`
	Failed     int       `json:"failed"`
	Skipped    int       `json:"skipped"`
	FirstError string    `json:"first_error,omitempty"`
}

// ExecutionReport is the full result of one compile run. Groups appear in
// first-arrival order of their resource ids.
type ExecutionReport struct {
	Groups    []GroupReport `json:"groups"`
	Succeeded int           `json:"succeeded"`
	Failed    int           `json:"failed"`
	Skipped   int           `json:"skipped"`
}
