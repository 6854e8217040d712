// Package prometheus exposes authstate counters and latency histograms through
// a client_golang [prometheus.Collector].
//
// [NewPrometheusExporter] registers the collector on a private registry and
// serves it with promhttp. Counter names are prefixed authstate_*_total; the
// histograms are authstate_sign_in_latency_seconds and
// authstate_render_latency_seconds.
//
// # What this package must NOT do
//
//   - Register metrics in the global Prometheus registry unless the caller
//     passes it to [Collector] themselves.
//   - Mutate store or guard state.
package prometheus
