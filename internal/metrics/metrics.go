package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the registry and its clients.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	// Registry mutations by operation and result code
	Mutations *prometheus.CounterVec

	// Registration run items by partition
	RegistrationItems *prometheus.CounterVec

	// Verification outcomes by kind and reason
	Verifications *prometheus.CounterVec

	// Round trip latency of registry client calls by transport and operation
	ClientLatency *prometheus.HistogramVec
}

// New registers all metrics on reg. Pass prometheus.DefaultRegisterer to expose them on /metrics.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Mutations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "factguard_registry_mutations_total",
			Help: "Registry mutations by operation and result",
		}, []string{"operation", "result"}),

		RegistrationItems: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "factguard_registration_items_total",
			Help: "Records processed by registration runs, by partition",
		}, []string{"partition"}), // registered, skipped, failed

		Verifications: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "factguard_verifications_total",
			Help: "Verification outcomes by kind and reason",
		}, []string{"kind", "reason"}),

		ClientLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "factguard_registry_client_duration_seconds",
			Help:    "Duration of registry client calls by transport and operation",
			Buckets: []float64{0.001, 0.005, 0.025, 0.1, 0.25, 0.5, 1, 2.5, 5, 15, 60},
		}, []string{"transport", "operation"}),
	}
}

func (m *Metrics) IncMutation(operation, result string) {
	if m != nil {
		m.Mutations.WithLabelValues(operation, result).Inc()
	}
}

func (m *Metrics) AddRegistrationItems(partition string, n int) {
	if m != nil && n > 0 {
		m.RegistrationItems.WithLabelValues(partition).Add(float64(n))
	}
}

func (m *Metrics) IncVerification(kind, reason string) {
	if m != nil {
		m.Verifications.WithLabelValues(kind, reason).Inc()
	}
}

// ObserveClient records the duration of a registry client call.
func (m *Metrics) ObserveClient(transport, operation string, d time.Duration) {
	if m != nil {
		m.ClientLatency.WithLabelValues(transport, operation).Observe(d.Seconds())
	}
}
