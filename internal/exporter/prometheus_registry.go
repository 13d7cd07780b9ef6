package exporter

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// NewInternalRegistry creates the registry holding ghexporter's own
// metrics: Go runtime, process, and target health from src.
func NewInternalRegistry(src HealthSource) *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		newHealthCollector(src),
	)
	return reg
}
