package authstate

import (
	internalmetrics "github.com/MrEthical07/authstate/internal/metrics"
)

// MetricID identifies a counter or latency histogram.
type MetricID = internalmetrics.MetricID

const (
	MetricSignInSuccess         = internalmetrics.MetricSignInSuccess
	MetricSignInFailure         = internalmetrics.MetricSignInFailure
	MetricSignOut               = internalmetrics.MetricSignOut
	MetricSignOutBroadcast      = internalmetrics.MetricSignOutBroadcast
	MetricSignOutReceived       = internalmetrics.MetricSignOutReceived
	MetricRehydrateSuccess      = internalmetrics.MetricRehydrateSuccess
	MetricRehydrateFailure      = internalmetrics.MetricRehydrateFailure
	MetricBroadcastFailure      = internalmetrics.MetricBroadcastFailure
	MetricGuardMissingToken     = internalmetrics.MetricGuardMissingToken
	MetricGuardForbidden        = internalmetrics.MetricGuardForbidden
	MetricGuardAuthTokenInvalid = internalmetrics.MetricGuardAuthTokenInvalid
	MetricGuardRendered         = internalmetrics.MetricGuardRendered
	MetricGuardError            = internalmetrics.MetricGuardError
	MetricSignInLatency         = internalmetrics.MetricSignInLatency
	MetricRenderLatency         = internalmetrics.MetricRenderLatency
)

// Metrics holds lock-free counters. A nil *Metrics records nothing.
type Metrics = internalmetrics.Metrics

// MetricsSnapshot is a point-in-time copy of [Metrics].
type MetricsSnapshot = internalmetrics.Snapshot

// NewMetrics returns a metrics set configured by cfg. Share one set between a
// Store and a middleware.Guard to export both through one exporter.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return internalmetrics.New(internalmetrics.Config{
		Enabled:                 cfg.Enabled,
		EnableLatencyHistograms: cfg.EnableLatencyHistograms,
	})
}

// IsHistogram reports whether id is a latency histogram.
func IsHistogram(id MetricID) bool {
	return internalmetrics.IsHistogram(id)
}
