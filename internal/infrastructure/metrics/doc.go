// Package metrics exports Prometheus series for telemetry ingestion,
// settings reconciliation, command dispatch and the live feed.
package metrics
