// Package audit implements async event dispatching for authentication activity.
//
// # Components
//
//   - [Sink]: interface for event consumers. Provided sinks write to a
//     channel, a JSON writer, slog, OpenTelemetry logs, or Kafka;
//     [MultiSink] fans out to several.
//   - [Dispatcher]: buffered async relay with drop-if-full / block-if-full semantics.
//   - [Event]: structured audit record with timestamp, type, user, email, IP, metadata.
//
// # Architecture boundaries
//
// This package owns event buffering and sink delivery. It does NOT decide which events
// to emit; the Engine and flow functions do.
//
// # What this package must NOT do
//
//   - Filter or suppress events based on business logic.
//   - Import sessiongate or any sibling internal package.
//   - Write passwords or tokens into events.
package audit
