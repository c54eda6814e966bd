// Package diff detects drift between snapshots of a remote resource.
//
// A snapshot reduces every sub-unit to a content fingerprint; comparing two
// snapshots yields an ordered change-set of added, removed and modified
// units. Snapshots are immutable captures, and a change-set is always
// complete: a diff that cannot read every unit fails rather than report a
// partial view. Baselines live in an object-storage archive so drift
// detection survives process restarts.
package diff
