// Package remote is the boundary to the external spreadsheet API.
//
// The API exposes two calls: a batched mutation accepting up to a fixed
// number of sub-operations, and per-sub-unit reads. Both are quota-limited
// server-side. This package owns the wire format and the classification of
// failures into the transient/permanent taxonomy the rest of the system
// retries (or doesn't) on; it performs no retrying, gating, or quota
// tracking itself.
package remote
