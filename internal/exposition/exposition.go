// Package exposition renders a cache snapshot in the Prometheus text
// exposition format.
//
// Rendering is a pure function of the snapshot: families are ordered by
// metric name and series by target ID, then by label pairs, so the same
// snapshot always renders to the same bytes.
package exposition

import (
	"bytes"
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/neox5/ghexporter/internal/cache"
	"github.com/neox5/ghexporter/internal/github"
	"github.com/neox5/ghexporter/internal/metric"
	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
	"google.golang.org/protobuf/proto"
)

// Warning describes a sample left out of the rendered output.
type Warning struct {
	Target string
	Metric string
	Reason string
}

func (w Warning) String() string {
	return fmt.Sprintf("%s: %s omitted: %s", w.Target, w.Metric, w.Reason)
}

// Render encodes snap. Samples with NaN or infinite values are omitted
// and reported as warnings.
func Render(snap cache.Snapshot) ([]byte, []Warning) {
	families, warnings := Families(snap)

	var buf bytes.Buffer
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(&buf, mf); err != nil {
			warnings = append(warnings, Warning{Metric: mf.GetName(), Reason: err.Error()})
		}
	}
	return buf.Bytes(), warnings
}

// Families converts snap into metric families sorted by name, including
// the per-target meta metrics.
func Families(snap cache.Snapshot) ([]*dto.MetricFamily, []Warning) {
	b := builder{families: make(map[string]*dto.MetricFamily)}

	for _, e := range snap {
		id := e.Target.ID()
		for _, s := range e.State.Samples {
			if math.IsNaN(s.Value) || math.IsInf(s.Value, 0) {
				b.warnings = append(b.warnings, Warning{Target: id, Metric: s.Name, Reason: fmt.Sprintf("non-finite value %v", s.Value)})
				continue
			}
			b.add(s.Name, s.Labels, s.Value)
		}
		b.meta(e)
	}

	names := make([]string, 0, len(b.families))
	for name := range b.families {
		names = append(names, name)
	}
	slices.Sort(names)

	out := make([]*dto.MetricFamily, len(names))
	for i, name := range names {
		out[i] = b.families[name]
	}
	return out, b.warnings
}

type builder struct {
	families map[string]*dto.MetricFamily
	warnings []Warning
}

// meta adds the health series of one target. A target never fetched is
// reported as not stale and carries no timestamps.
func (b *builder) meta(e cache.Entry) {
	labels := map[string]string{
		metric.LabelTarget: e.Target.ID(),
		metric.LabelKind:   string(e.Target.Kind),
	}
	st := e.State

	b.add(metric.TargetStale, labels, metric.Bool(st.Stale))
	if !st.LastSuccess.IsZero() {
		b.add(metric.TargetLastSuccess, labels, seconds(st.LastSuccess))
	}
	if !st.LastErrorAt.IsZero() {
		b.add(metric.TargetLastErrorTime, labels, seconds(st.LastErrorAt))
	}
	if st.LastError != nil {
		withClass := map[string]string{
			metric.LabelTarget: e.Target.ID(),
			metric.LabelKind:   string(e.Target.Kind),
			metric.LabelError:  github.ClassName(st.LastError),
		}
		b.add(metric.TargetLastError, withClass, metric.Bool(st.Stale))
	}
}

func seconds(t time.Time) float64 {
	return float64(t.UnixMilli()) / 1e3
}

func (b *builder) add(name string, labels map[string]string, value float64) {
	mf, ok := b.families[name]
	if !ok {
		mf = newFamily(name)
		b.families[name] = mf
	}

	m := &dto.Metric{Label: labelPairs(labels)}
	switch mf.GetType() {
	case dto.MetricType_COUNTER:
		m.Counter = &dto.Counter{Value: proto.Float64(value)}
	case dto.MetricType_GAUGE:
		m.Gauge = &dto.Gauge{Value: proto.Float64(value)}
	default:
		m.Untyped = &dto.Untyped{Value: proto.Float64(value)}
	}
	mf.Metric = append(mf.Metric, m)
}

func newFamily(name string) *dto.MetricFamily {
	mf := &dto.MetricFamily{Name: proto.String(name), Type: dto.MetricType_UNTYPED.Enum()}
	desc, ok := metric.Lookup(name)
	if !ok {
		return mf
	}
	mf.Help = proto.String(desc.Description)
	switch desc.Type {
	case metric.MetricTypeCounter:
		mf.Type = dto.MetricType_COUNTER.Enum()
	case metric.MetricTypeGauge:
		mf.Type = dto.MetricType_GAUGE.Enum()
	}
	return mf
}

// labelPairs returns labels sorted by name.
func labelPairs(labels map[string]string) []*dto.LabelPair {
	names := make([]string, 0, len(labels))
	for name := range labels {
		names = append(names, name)
	}
	slices.Sort(names)

	pairs := make([]*dto.LabelPair, len(names))
	for i, name := range names {
		pairs[i] = &dto.LabelPair{Name: proto.String(name), Value: proto.String(labels[name])}
	}
	return pairs
}
