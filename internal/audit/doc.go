// Package audit implements async event dispatching for session lifecycle and
// page-guard decisions.
//
// # Components
//
//   - [Sink]: interface for event consumers (channel, JSON writer, slog, no-op).
//   - [Dispatcher]: buffered async relay with drop-if-full / block-if-full semantics.
//   - [Event]: structured audit record with timestamp, type, store, email, path, metadata.
//
// # Architecture boundaries
//
// This package owns event buffering and sink delivery. It does NOT decide which
// events to emit; the session store and the render guard do.
//
// # What this package must NOT do
//
//   - Filter or suppress events based on business logic.
//   - Import authstate or any sibling internal package.
//   - Record tokens or passwords.
package audit
