// Package prometheus renders the engine's in-process counters in the
// Prometheus text exposition format, without a client library.
//
// The server mounts [Exporter.Handler] at GET /metrics.
package prometheus
