package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the verification service.
type Metrics struct {
	VerificationsTotal  *prometheus.CounterVec
	AllocationsTotal    prometheus.Counter
	AllocationDuration  prometheus.Histogram
	ManualAssignments   prometheus.Counter
	RateLimitRejections prometheus.Counter
}

// New creates and registers all Prometheus metrics on the default registry.
func New() *Metrics {
	return NewWith(prometheus.DefaultRegisterer)
}

// NewWith registers all metrics on reg. Tests pass a fresh registry so each
// suite can assert counter values in isolation.
func NewWith(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		VerificationsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "edueasy_verifications_total",
			Help: "National ID verification attempts by outcome",
		}, []string{"outcome"}),
		AllocationsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "edueasy_tracking_allocations_total",
			Help: "Tracking IDs allocated automatically",
		}),
		AllocationDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "edueasy_tracking_allocation_duration_seconds",
			Help:    "Latency of tracking ID allocation including audit append",
			Buckets: prometheus.DefBuckets,
		}),
		ManualAssignments: factory.NewCounter(prometheus.CounterOpts{
			Name: "edueasy_tracking_manual_assignments_total",
			Help: "Tracking IDs assigned manually by administrators",
		}),
		RateLimitRejections: factory.NewCounter(prometheus.CounterOpts{
			Name: "edueasy_verify_rate_limit_rejections_total",
			Help: "Verification attempts rejected by the attempt limiter",
		}),
	}
}

// ObserveVerification records one validation attempt by outcome label
// ("valid", "already_verified", "format_invalid", "date_invalid",
// "checksum_invalid").
func (m *Metrics) ObserveVerification(outcome string) {
	m.VerificationsTotal.WithLabelValues(outcome).Inc()
}

// ObserveAllocation records a successful automatic allocation.
func (m *Metrics) ObserveAllocation(d time.Duration) {
	m.AllocationsTotal.Inc()
	m.AllocationDuration.Observe(d.Seconds())
}
