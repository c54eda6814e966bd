// Package quota protects the remote spreadsheet API from the process.
//
// A single Guard is shared by every component that issues remote calls. It
// combines two mechanisms:
//
//  1. A sliding request window: once the per-window budget is spent, callers
//     block until the window resets. This is a throttle, not an error.
//  2. A circuit breaker: a streak of remote-attributable failures opens the
//     circuit, after which calls fail fast with CircuitOpenError until a
//     cooldown elapses and a single probe is allowed through.
//
// The two are independent: a closed circuit can still throttle, and an open
// circuit rejects before the window is even consulted.
package quota
