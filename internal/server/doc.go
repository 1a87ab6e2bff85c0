// Package server implements the monitoring HTTP API.
//
// The API exposes the service health, the live conversation snapshot,
// sanitized configuration, runtime statistics, and Prometheus metrics.
// It is a read-only surface; audio ingest and analysis dispatch happen
// elsewhere in the pipeline.
package server
