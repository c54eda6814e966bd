// Package events defines the structured observability events produced by the
// core: circuit breaker transitions, quota waits, and batch/diff completions.
//
// Events are plain data handed to an injected Sink. The core never writes to
// a console or log directly; the zap-backed sink is attached at startup.
package events
