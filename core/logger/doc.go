// Package logger provides a structured logging facility based on Zap.
//
// It offers a configured logger instance supporting development (console)
// and production (json) encodings, and integrates with the Fiber intake:
// the WithRayID helper extracts the request's ray_id from the Fiber context
// and attaches it to log entries so every log line produced while serving a
// request can be correlated.
//
// The engine core never logs directly; it emits events (see core/events)
// which the zap-backed sink wired at startup turns into log lines.
package logger
