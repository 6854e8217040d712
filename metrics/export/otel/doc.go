// Package otel publishes authstate counters and latency histograms as
// OpenTelemetry observable instruments.
//
// [NewOTelExporter] registers one Int64ObservableCounter per counter. A latency
// histogram becomes a cumulative "_bucket" counter split by the "le"
// attribute, plus a "_count" counter. A single callback reads the source's
// MetricsSnapshot on each collection cycle.
//
// # What this package must NOT do
//
//   - Own the OTel MeterProvider; callers supply the Meter.
//   - Mutate store or guard state.
package otel
