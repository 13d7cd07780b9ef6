package exporter

import (
	"context"
	"fmt"

	"github.com/neox5/ghexporter/internal/exposition"
	"github.com/neox5/ghexporter/internal/metric"
	dto "github.com/prometheus/client_model/go"
	"go.opentelemetry.io/otel/attribute"
	otelmetric "go.opentelemetry.io/otel/metric"
)

// instrument holds the OTEL observable registered for one catalog metric.
type instrument struct {
	counter otelmetric.Float64ObservableCounter
	gauge   otelmetric.Float64ObservableGauge
}

// registerOTELInstruments creates one instrument per catalog metric and
// a single callback observing the current snapshot.
func registerOTELInstruments(e *OTELExporter) error {
	e.instruments = make(map[string]instrument)
	var observables []otelmetric.Observable

	for _, d := range metric.Descriptors() {
		var inst instrument
		switch d.Type {
		case metric.MetricTypeCounter:
			counter, err := e.meter.Float64ObservableCounter(d.Name, otelmetric.WithDescription(d.Description))
			if err != nil {
				return fmt.Errorf("failed to create counter %q: %w", d.Name, err)
			}
			inst.counter = counter
			observables = append(observables, counter)
		default:
			gauge, err := e.meter.Float64ObservableGauge(d.Name, otelmetric.WithDescription(d.Description))
			if err != nil {
				return fmt.Errorf("failed to create gauge %q: %w", d.Name, err)
			}
			inst.gauge = gauge
			observables = append(observables, gauge)
		}
		e.instruments[d.Name] = inst
	}

	_, err := e.meter.RegisterCallback(
		func(ctx context.Context, observer otelmetric.Observer) error {
			observeSnapshot(e, observer)
			return nil
		},
		observables...,
	)
	if err != nil {
		return fmt.Errorf("failed to register callback: %w", err)
	}

	e.logger.Info("registered otel instruments", "count", len(e.instruments))
	return nil
}

// observeSnapshot reports every series of the current snapshot.
// Series without a catalog instrument are skipped.
func observeSnapshot(e *OTELExporter, observer otelmetric.Observer) {
	families, warnings := exposition.Families(e.src.Snapshot())
	for _, w := range warnings {
		e.logger.Warn("sample omitted from otel push", "target", w.Target, "metric", w.Metric, "reason", w.Reason)
	}

	observed := 0
	for _, mf := range families {
		inst, ok := e.instruments[mf.GetName()]
		if !ok {
			continue
		}
		for _, m := range mf.GetMetric() {
			opt := otelmetric.WithAttributes(attributes(m)...)
			switch {
			case inst.counter != nil:
				observer.ObserveFloat64(inst.counter, value(m), opt)
			case inst.gauge != nil:
				observer.ObserveFloat64(inst.gauge, value(m), opt)
			}
			observed++
		}
	}
	e.logger.Debug("otel push", "series", observed)
}

func attributes(m *dto.Metric) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, len(m.GetLabel()))
	for _, lp := range m.GetLabel() {
		attrs = append(attrs, attribute.String(lp.GetName(), lp.GetValue()))
	}
	return attrs
}

func value(m *dto.Metric) float64 {
	switch {
	case m.Counter != nil:
		return m.GetCounter().GetValue()
	case m.Gauge != nil:
		return m.GetGauge().GetValue()
	default:
		return m.GetUntyped().GetValue()
	}
}
