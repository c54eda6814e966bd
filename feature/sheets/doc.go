// Package sheets exposes the spreadsheet bridge over HTTP: applying
// batched mutation intents, diffing resources against archived baselines,
// and reading the applied-batch journal. The heavy lifting lives in the
// batch, diff and journal subpackages; this package wires them behind a
// service facade and fiber routes.
package sheets
