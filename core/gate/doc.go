// Package gate provides a FIFO bounded-concurrency gate.
//
// Every remote call in the system runs under a gate slot, which is what
// keeps parallel fetches and batch submissions from exhausting memory or
// hammering the remote quota. Unlike a plain semaphore, admission order is
// strictly first-in-first-out and a queued caller can withdraw (context
// cancellation) without side effects.
package gate
