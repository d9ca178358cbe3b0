package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the statute override workflow.
type Metrics struct {
	OverridesCreated   prometheus.Counter
	OverridesValidated prometheus.Counter
	ValidateDuration   prometheus.Histogram
}

// New creates a new Metrics instance with all statute module metrics registered.
func New() *Metrics {
	return &Metrics{
		OverridesCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "veritax_statute_overrides_created_total",
			Help: "Total number of statute overrides entered",
		}),
		OverridesValidated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "veritax_statute_overrides_validated_total",
			Help: "Total number of statute overrides validated by a partner",
		}),
		ValidateDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "veritax_statute_validate_duration_seconds",
			Help:    "Duration of override validation (includes cache invalidation)",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
	}
}

// ObserveValidate records the duration of a validation operation.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveValidate(start time.Time) {
	m.ValidateDuration.Observe(time.Since(start).Seconds())
}
