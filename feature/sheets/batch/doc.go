// Package batch is the mutation batch compiler.
//
// Intents targeting the same spreadsheet form a resource group; a group's
// intents are packed into size-capped batches and executed strictly in
// order, so a resource never sees out-of-order writes. Distinct groups run
// concurrently up to the shared gate limit. Transient remote failures are
// retried with exponential backoff; a batch that ultimately fails aborts
// only the remainder of its own group.
//
// Replay safety: a batch consisting entirely of intents flagged idempotent
// may be answered from the artifact cache without touching the network.
// Everything else always goes to the remote, since replaying a
// non-idempotent write would double-apply it.
package batch
