package diff

import (
	"fmt"
	"time"
)

// UnitDigest is one sub-unit (sheet) of a snapshot: its identity plus the
// fingerprint of its content at capture time.
type UnitDigest struct {
	UnitID      string `json:"unit_id"`
	Title       string `json:"title,omitempty"`
	Fingerprint string `json:"fingerprint"`
}

// Snapshot is an immutable capture of a resource's sub-units. Units appear
// in the remote's enumeration order. Re-fetching always produces a new
// Snapshot; existing ones are never mutated.
type Snapshot struct {
	ResourceID string       `json:"resource_id"`
	TakenAt    time.Time    `json:"taken_at"`
	Units      []UnitDigest `json:"units"`
}

// index maps unit id to digest for comparison.
func (s *Snapshot) index() map[string]UnitDigest {
	if s == nil {
		return map[string]UnitDigest{}
	}
	m := make(map[string]UnitDigest, len(s.Units))
	for _, u := range s.Units {
		m[u.UnitID] = u
	}
	return m
}

// ChangeKind classifies a detected difference.
type ChangeKind string

const (
	// ChangeAdded means the unit exists only in the newer snapshot.
	ChangeAdded ChangeKind = "added"
	// ChangeRemoved means the unit exists only in the older snapshot.
	ChangeRemoved ChangeKind = "removed"
	// ChangeModified means the unit exists in both with different fingerprints.
	ChangeModified ChangeKind = "modified"
)

// ChangeRecord is one detected difference between two snapshots of the
// same unit. Units with identical fingerprints produce no record.
type ChangeRecord struct {
	UnitID            string     `json:"unit_id"`
	Kind              ChangeKind `json:"kind"`
	BeforeFingerprint string     `json:"before_fingerprint,omitempty"`
	AfterFingerprint  string     `json:"after_fingerprint,omitempty"`
}

// ChangeSet is the ordered list of differences. Added and modified entries
// follow the newer snapshot's unit enumeration order; removed entries come
// after, in the older snapshot's order.
type ChangeSet []ChangeRecord

// Error is a failed diff. A diff never returns a partial change-set: a
// missing unit would be indistinguishable from "no change" and could mask
// real drift, so the first unrecoverable fetch failure fails the whole call.
type Error struct {
	ResourceID string
	UnitID     string
	Attempts   int
	Err        error
}

func (e *Error) Error() string {
	if e.UnitID != "" {
		return fmt.Sprintf("diff of %s failed: unit %s unreadable after %d attempts: %v",
			e.ResourceID, e.UnitID, e.Attempts, e.Err)
	}
	return fmt.Sprintf("diff of %s failed after %d attempts: %v", e.ResourceID, e.Attempts, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }
