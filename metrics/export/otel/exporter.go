package otel

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrEthical07/authstate"
	"github.com/MrEthical07/authstate/metrics/export/internaldefs"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	ErrNilMeter  = errors.New("nil meter")
	ErrNilSource = errors.New("nil metrics source")
)

// BucketAttribute keys the upper bound of a histogram bucket.
const BucketAttribute = "le"

// MetricsSource is implemented by *authstate.Store and *middleware.Guard.
type MetricsSource interface {
	MetricsSnapshot() authstate.MetricsSnapshot
	AuditDropped() uint64
}

// reading observes one instrument from a snapshot taken once per collection.
type reading func(o metric.Observer, snap authstate.MetricsSnapshot, dropped uint64)

// OTelExporter owns the callback registration; Close unregisters it.
type OTelExporter struct {
	registration metric.Registration
}

// NewOTelExporter registers instruments on meter that observe source.
//
// Counters map to Int64ObservableCounter. Each latency histogram maps to a
// "<name>_bucket" counter with one cumulative point per BucketAttribute value
// plus a "<name>_count" counter.
func NewOTelExporter(meter metric.Meter, source MetricsSource) (*OTelExporter, error) {
	if meter == nil {
		return nil, ErrNilMeter
	}
	if source == nil {
		return nil, ErrNilSource
	}

	var (
		readings    []reading
		observables []metric.Observable
	)
	counter := func(name, help string) (metric.Int64ObservableCounter, error) {
		ins, err := meter.Int64ObservableCounter(name, metric.WithDescription(help))
		if err != nil {
			return nil, fmt.Errorf("create observable counter %s: %w", name, err)
		}
		observables = append(observables, ins)
		return ins, nil
	}

	for _, def := range internaldefs.CounterDefs {
		ins, err := counter(def.Name, def.Help)
		if err != nil {
			return nil, err
		}
		id := def.ID
		readings = append(readings, func(o metric.Observer, snap authstate.MetricsSnapshot, _ uint64) {
			o.ObserveInt64(ins, int64(snap.Counters[id]))
		})
	}

	bounds := bucketOptions()
	for _, def := range internaldefs.HistogramDefs {
		buckets, err := counter(def.Name+"_bucket", def.Help+" Cumulative bucket counts.")
		if err != nil {
			return nil, err
		}
		count, err := counter(def.Name+"_count", def.Help+" Sample count.")
		if err != nil {
			return nil, err
		}
		id := def.ID
		readings = append(readings, func(o metric.Observer, snap authstate.MetricsSnapshot, _ uint64) {
			cumulative := internaldefs.CumulativeBuckets(internaldefs.NormalizeBuckets(snap.Histograms[id]))
			for i, opt := range bounds {
				o.ObserveInt64(buckets, int64(cumulative[i]), opt)
			}
			o.ObserveInt64(count, int64(cumulative[len(cumulative)-1]))
		})
	}

	dropped, err := counter(internaldefs.AuditDroppedName, internaldefs.AuditDroppedHelp)
	if err != nil {
		return nil, err
	}
	readings = append(readings, func(o metric.Observer, _ authstate.MetricsSnapshot, n uint64) {
		o.ObserveInt64(dropped, int64(n))
	})

	registration, err := meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		snap := source.MetricsSnapshot()
		n := source.AuditDropped()
		for _, read := range readings {
			read(o, snap, n)
		}
		return nil
	}, observables...)
	if err != nil {
		return nil, fmt.Errorf("register callback: %w", err)
	}
	return &OTelExporter{registration: registration}, nil
}

func bucketOptions() []metric.ObserveOption {
	labels := internaldefs.BucketLabels()
	out := make([]metric.ObserveOption, len(labels))
	for i, le := range labels {
		out[i] = metric.WithAttributeSet(attribute.NewSet(attribute.String(BucketAttribute, le)))
	}
	return out
}

func (e *OTelExporter) Close() error {
	if e == nil || e.registration == nil {
		return nil
	}
	return e.registration.Unregister()
}
