package internaldefs

import (
	"strconv"

	"github.com/MrEthical07/authstate"
)

// CounterDef names one exported counter.
type CounterDef struct {
	ID   authstate.MetricID
	Name string
	Help string
}

// HistogramDef names one exported latency histogram.
type HistogramDef struct {
	ID   authstate.MetricID
	Name string
	Help string
}

// AuditDroppedName is the counter exported for dispatcher drops.
const (
	AuditDroppedName = "authstate_audit_dropped_total"
	AuditDroppedHelp = "Dropped audit events due to dispatcher backpressure."
)

var CounterDefs = []CounterDef{
	{ID: authstate.MetricSignInSuccess, Name: "authstate_sign_in_success_total", Help: "Successful sign-ins."},
	{ID: authstate.MetricSignInFailure, Name: "authstate_sign_in_failure_total", Help: "Rejected or failed sign-ins."},
	{ID: authstate.MetricSignOut, Name: "authstate_sign_out_total", Help: "Local sign-outs, including forced ones."},
	{ID: authstate.MetricSignOutBroadcast, Name: "authstate_sign_out_broadcast_total", Help: "Sign-out messages posted to sibling tabs."},
	{ID: authstate.MetricSignOutReceived, Name: "authstate_sign_out_received_total", Help: "Sign-out messages received from sibling tabs."},
	{ID: authstate.MetricRehydrateSuccess, Name: "authstate_rehydrate_success_total", Help: "Identities restored from a stored token."},
	{ID: authstate.MetricRehydrateFailure, Name: "authstate_rehydrate_failure_total", Help: "Stored tokens rejected during rehydration."},
	{ID: authstate.MetricBroadcastFailure, Name: "authstate_broadcast_failure_total", Help: "Failed posts on the cross-tab channel."},
	{ID: authstate.MetricGuardMissingToken, Name: "authstate_guard_missing_token_total", Help: "Page renders redirected for a missing token."},
	{ID: authstate.MetricGuardForbidden, Name: "authstate_guard_forbidden_total", Help: "Page renders redirected for missing permissions or roles."},
	{ID: authstate.MetricGuardAuthTokenInvalid, Name: "authstate_guard_auth_token_invalid_total", Help: "Page renders that forced a sign-out."},
	{ID: authstate.MetricGuardRendered, Name: "authstate_guard_rendered_total", Help: "Page loaders invoked by the guard."},
	{ID: authstate.MetricGuardError, Name: "authstate_guard_error_total", Help: "Page loaders that failed with another error."},
}

var HistogramDefs = []HistogramDef{
	{ID: authstate.MetricSignInLatency, Name: "authstate_sign_in_latency_seconds", Help: "Sign-in round-trip latency."},
	{ID: authstate.MetricRenderLatency, Name: "authstate_render_latency_seconds", Help: "Guarded page loader latency."},
}

// HistogramBounds are the upper bounds in seconds of the fixed buckets.
var HistogramBounds = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5}

// BucketLabels returns the "le" label of every bucket, "+Inf" last.
func BucketLabels() []string {
	out := make([]string, 0, len(HistogramBounds)+1)
	for _, b := range HistogramBounds {
		out = append(out, strconv.FormatFloat(b, 'g', -1, 64))
	}
	return append(out, "+Inf")
}

// NormalizeBuckets pads or truncates raw to the fixed bucket count.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets turns per-bucket counts into running totals.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
