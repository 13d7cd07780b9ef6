package github

import (
	"github.com/neox5/ghexporter/internal/ratelimit"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics instruments outgoing GitHub traffic. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	requestsTotal        *prometheus.CounterVec
	rateLimitEventsTotal prometheus.Counter
}

// NewMetrics registers the GitHub client metrics on reg.
func NewMetrics(reg prometheus.Registerer, budget *ratelimit.Tracker) *Metrics {
	m := &Metrics{
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ghexporter_github_requests_total",
			Help: "Total number of outgoing GitHub API requests.",
		}, []string{"result"}),
		rateLimitEventsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ghexporter_rate_limit_events_total",
			Help: "Total number of rate limit events from GitHub or the local budget.",
		}),
	}
	reg.MustRegister(m.requestsTotal, m.rateLimitEventsTotal)

	if budget != nil {
		reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "ghexporter_rate_limit_remaining",
			Help: "Remaining GitHub API calls as last reported, -1 when unknown.",
		}, func() float64 {
			st := budget.Status()
			if !st.Known {
				return -1
			}
			return float64(st.Remaining)
		}))
	}
	return m
}

func (m *Metrics) request(result string) {
	if m == nil {
		return
	}
	m.requestsTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) rateLimited() {
	if m == nil {
		return
	}
	m.rateLimitEventsTotal.Inc()
}
