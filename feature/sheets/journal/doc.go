// Package journal records every executed batch in the database.
//
// Each row maps a batch fingerprint to its outcome (status, attempt count,
// timestamp). Operators use it to answer what was applied to which
// spreadsheet and when, especially after partial failures.
package journal
