// Package loader provides the plugin-like feature loading system.
//
// Features implement the Feature interface and are registered on a Manager
// at startup; LoadAll wires each enabled feature's routes into the Fiber
// app. This keeps modules like 'sheets' testable in isolation and makes
// adding a new surface a one-line change in cmd/start.go.
package loader
