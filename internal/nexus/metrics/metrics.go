package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the threshold engine and alert
// lifecycle. Evaluation counts carry the resulting status as a label.
type Metrics struct {
	Evaluations      *prometheus.CounterVec
	AlertsOpened     prometheus.Counter
	AlertsRefreshed  prometheus.Counter
	AlertsResolved   prometheus.Counter
	EvaluateDuration prometheus.Histogram
}

// New creates a new Metrics instance with all nexus module metrics registered.
func New() *Metrics {
	return &Metrics{
		Evaluations: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "veritax_nexus_evaluations_total",
			Help: "Total number of threshold evaluations by resulting status",
		}, []string{"status"}),
		AlertsOpened: promauto.NewCounter(prometheus.CounterOpts{
			Name: "veritax_nexus_alerts_opened_total",
			Help: "Total number of nexus alerts opened",
		}),
		AlertsRefreshed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "veritax_nexus_alerts_refreshed_total",
			Help: "Total number of open alerts refreshed with new amounts",
		}),
		AlertsResolved: promauto.NewCounter(prometheus.CounterOpts{
			Name: "veritax_nexus_alerts_resolved_total",
			Help: "Total number of nexus alerts resolved",
		}),
		EvaluateDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "veritax_nexus_evaluate_duration_seconds",
			Help:    "Duration of RecordActivity (sanitize, evaluate, alert upsert)",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
	}
}

// ObserveEvaluate records the duration of a RecordActivity call.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveEvaluate(start time.Time) {
	m.EvaluateDuration.Observe(time.Since(start).Seconds())
}
