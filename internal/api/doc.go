// Package api implements the HTTP API and live WebSocket feed for Mussel Core.
//
// This package provides:
//   - Telemetry queries: range, latest persisted sample, live cache snapshot
//   - Settings read and change requests, which reconcile and dispatch commands
//   - The command audit log
//   - Health, runtime statistics and Prometheus exposition
//   - A WebSocket hub broadcasting every ingested sample
//   - Middleware stack (request ID, logging, recovery, CORS, body limit)
//
// # Validation
//
// Settings requests are validated here, before the reconciliation engine
// runs: unknown fields, wrong JSON types and lamp states other than "ON" or
// "OFF" are rejected with a validation_error.
//
// # Time filters
//
// Malformed from_time and to_time values on /api/v1/data are ignored, so a
// client sending an unparseable bound gets an unbounded window rather than
// an error. A malformed limit is rejected.
package api
