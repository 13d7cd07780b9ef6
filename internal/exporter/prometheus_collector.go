package exporter

import (
	"github.com/neox5/ghexporter/internal/cache"
	"github.com/prometheus/client_golang/prometheus"
)

// HealthSource reports how many targets are healthy, stale or pending.
type HealthSource interface {
	Summary() cache.Summary
}

// healthCollector implements prometheus.Collector to read the cache
// summary on scrape.
type healthCollector struct {
	src  HealthSource
	desc *prometheus.Desc
}

func newHealthCollector(src HealthSource) *healthCollector {
	return &healthCollector{
		src: src,
		desc: prometheus.NewDesc(
			"ghexporter_targets",
			"Number of configured targets by health state.",
			[]string{"state"},
			nil, // No constant labels
		),
	}
}

// Describe sends metric descriptors to the channel.
func (c *healthCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.desc
}

// Collect reads the cache summary and sends one gauge per state.
func (c *healthCollector) Collect(ch chan<- prometheus.Metric) {
	s := c.src.Summary()
	for state, n := range map[string]int{
		"healthy": s.Healthy,
		"stale":   s.Stale,
		"pending": s.Pending,
	} {
		ch <- prometheus.MustNewConstMetric(c.desc, prometheus.GaugeValue, float64(n), state)
	}
}
