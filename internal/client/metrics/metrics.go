package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks client onboarding and batch ingestion outcomes.
type Metrics struct {
	ClientsCreated prometheus.Counter
	IngestedRows   *prometheus.CounterVec
}

func New() *Metrics {
	return &Metrics{
		ClientsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "veritax_clients_created_total",
			Help: "Total number of clients onboarded",
		}),
		IngestedRows: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "veritax_ingest_rows_total",
			Help: "Total ingested revenue rows by outcome",
		}, []string{"result"}),
	}
}
