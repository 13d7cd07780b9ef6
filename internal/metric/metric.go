package metric

import (
	"maps"
	"sort"
	"strings"
	"time"
)

// MetricType defines the semantic type of a metric.
type MetricType string

const (
	MetricTypeCounter MetricType = "counter"
	MetricTypeGauge   MetricType = "gauge"
)

// Descriptor holds protocol-agnostic metric metadata.
type Descriptor struct {
	Name        string
	Type        MetricType
	Description string
	Labels      []string
}

// Sample is one observed value of a metric series.
type Sample struct {
	Name      string
	Labels    map[string]string
	Value     float64
	Timestamp time.Time
}

// NewSample builds a sample from alternating label name/value pairs.
func NewSample(name string, value float64, ts time.Time, labelPairs ...string) Sample {
	labels := make(map[string]string, len(labelPairs)/2)
	for i := 0; i+1 < len(labelPairs); i += 2 {
		labels[labelPairs[i]] = labelPairs[i+1]
	}
	return Sample{Name: name, Labels: labels, Value: value, Timestamp: ts}
}

// Clone returns a deep copy of the sample.
func (s Sample) Clone() Sample {
	s.Labels = maps.Clone(s.Labels)
	return s
}

// LabelNames returns the sample's label names in sorted order.
func (s Sample) LabelNames() []string {
	names := make([]string, 0, len(s.Labels))
	for k := range s.Labels {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// LabelString renders labels as name="value" pairs in sorted name order.
// It is used as a stable sort key.
func (s Sample) LabelString() string {
	var b strings.Builder
	for i, name := range s.LabelNames() {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(name)
		b.WriteString(`="`)
		b.WriteString(s.Labels[name])
		b.WriteByte('"')
	}
	return b.String()
}

// Bool converts a flag into a 0/1 gauge value.
func Bool(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
