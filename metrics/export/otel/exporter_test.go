package otel

import (
	"context"
	"sync"
	"testing"

	"github.com/MrEthical07/authstate"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

type fakeSource struct {
	mu       sync.RWMutex
	snapshot authstate.MetricsSnapshot
	dropped  uint64
}

func (f *fakeSource) MetricsSnapshot() authstate.MetricsSnapshot {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := authstate.MetricsSnapshot{
		Counters:   make(map[authstate.MetricID]uint64, len(f.snapshot.Counters)),
		Histograms: make(map[authstate.MetricID][]uint64, len(f.snapshot.Histograms)),
	}
	for k, v := range f.snapshot.Counters {
		out.Counters[k] = v
	}
	for k, buckets := range f.snapshot.Histograms {
		out.Histograms[k] = append([]uint64(nil), buckets...)
	}
	return out
}

func (f *fakeSource) AuditDropped() uint64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.dropped
}

func newReader(t *testing.T) (*sdkmetric.ManualReader, *sdkmetric.MeterProvider) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	return reader, sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
}

// int64Value returns the point of name whose "le" attribute equals le, or the
// first point when le is empty.
func int64Value(t *testing.T, rm metricdata.ResourceMetrics, name, le string) (int64, bool) {
	t.Helper()
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				t.Fatalf("%s has data %T, want Sum[int64]", name, m.Data)
			}
			for _, dp := range sum.DataPoints {
				if le == "" {
					return dp.Value, true
				}
				if v, ok := dp.Attributes.Value(attribute.Key(BucketAttribute)); ok && v.AsString() == le {
					return dp.Value, true
				}
			}
		}
	}
	return 0, false
}

func TestExporterRegistersAndCollects(t *testing.T) {
	reader, provider := newReader(t)

	src := &fakeSource{
		snapshot: authstate.MetricsSnapshot{
			Counters: map[authstate.MetricID]uint64{
				authstate.MetricSignOutBroadcast: 3,
			},
			Histograms: map[authstate.MetricID][]uint64{
				authstate.MetricSignInLatency: {1, 1, 1, 1, 1, 1, 1, 1},
			},
		},
		dropped: 1,
	}

	exp, err := NewOTelExporter(provider.Meter("authstate-test"), src)
	if err != nil {
		t.Fatalf("NewOTelExporter failed: %v", err)
	}
	defer func() {
		if err := exp.Close(); err != nil {
			t.Fatalf("Close failed: %v", err)
		}
	}()

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect failed: %v", err)
	}

	tests := []struct {
		name string
		le   string
		want int64
	}{
		{"authstate_sign_out_broadcast_total", "", 3},
		{"authstate_sign_in_success_total", "", 0},
		{"authstate_sign_in_latency_seconds_bucket", "0.005", 1},
		{"authstate_sign_in_latency_seconds_bucket", "0.1", 5},
		{"authstate_sign_in_latency_seconds_bucket", "+Inf", 8},
		{"authstate_sign_in_latency_seconds_count", "", 8},
		{"authstate_audit_dropped_total", "", 1},
	}
	for _, tc := range tests {
		got, ok := int64Value(t, rm, tc.name, tc.le)
		if !ok {
			t.Fatalf("metric %s{le=%q} not collected", tc.name, tc.le)
		}
		if got != tc.want {
			t.Fatalf("%s{le=%q} = %d, want %d", tc.name, tc.le, got, tc.want)
		}
	}
}

func TestExporterRejectsNilArguments(t *testing.T) {
	_, provider := newReader(t)

	if _, err := NewOTelExporter(provider.Meter("authstate-test"), nil); err != ErrNilSource {
		t.Fatalf("expected ErrNilSource, got %v", err)
	}
	if _, err := NewOTelExporter(nil, &fakeSource{}); err != ErrNilMeter {
		t.Fatalf("expected ErrNilMeter, got %v", err)
	}
}

func TestExporterConcurrentCollectNoPanic(t *testing.T) {
	reader, provider := newReader(t)

	src := &fakeSource{
		snapshot: authstate.MetricsSnapshot{
			Counters: map[authstate.MetricID]uint64{
				authstate.MetricGuardRendered: 1,
			},
			Histograms: map[authstate.MetricID][]uint64{
				authstate.MetricRenderLatency: {1, 0, 0, 0, 0, 0, 0, 0},
			},
		},
	}

	exp, err := NewOTelExporter(provider.Meter("authstate-test"), src)
	if err != nil {
		t.Fatalf("NewOTelExporter failed: %v", err)
	}
	defer exp.Close()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(v uint64) {
			defer wg.Done()
			src.mu.Lock()
			src.snapshot.Counters[authstate.MetricGuardRendered] = v
			src.mu.Unlock()

			var rm metricdata.ResourceMetrics
			_ = reader.Collect(context.Background(), &rm)
		}(uint64(i + 1))
	}
	wg.Wait()
}

func TestBucketPointsFollowBounds(t *testing.T) {
	reader, provider := newReader(t)
	exp, err := NewOTelExporter(provider.Meter("authstate-test"), &fakeSource{})
	if err != nil {
		t.Fatalf("NewOTelExporter failed: %v", err)
	}
	defer exp.Close()

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect failed: %v", err)
	}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != "authstate_render_latency_seconds_bucket" {
				continue
			}
			points := m.Data.(metricdata.Sum[int64]).DataPoints
			if len(points) != 8 {
				t.Fatalf("bucket points = %d, want 8", len(points))
			}
			return
		}
	}
	t.Fatal("render latency buckets not collected")
}
