package tenant

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Provisioning outcomes recorded on notebox_tenant_provision_total.
const (
	outcomeExisting      = "existing"
	outcomeCreated       = "created"
	outcomeFailed        = "failed"
	outcomeTimeout       = "timeout"
	outcomeMisconfigured = "misconfigured"
)

// Metrics counts provisioning attempts by outcome. A nil *Metrics is valid
// and records nothing, which keeps tests free of registry plumbing.
type Metrics struct {
	provisions *prometheus.CounterVec
	duration   prometheus.Histogram
}

// NewMetrics creates the provisioning collectors and registers them on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	const namespace = "notebox"
	const subsystem = "tenant"

	m := &Metrics{
		provisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "provision_total",
			Help:      "Number of tenant provisioning attempts by outcome",
		}, []string{"outcome"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "provision_duration_seconds",
			Help:      "Duration of tenant provisioning attempts",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		}),
	}
	reg.MustRegister(m.provisions, m.duration)
	return m
}

func (m *Metrics) observe(outcome string, start time.Time) {
	if m == nil {
		return
	}
	m.provisions.WithLabelValues(outcome).Inc()
	m.duration.Observe(time.Since(start).Seconds())
}
