package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RequirementsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "veritax_approval_requirements_created_total",
		Help: "Number of approval gates created.",
	})

	ApprovalsSubmitted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "veritax_approvals_submitted_total",
		Help: "Number of approval gates signed.",
	})
)
