package ledger

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var creditEventCount = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "credit_events_total",
		Help: "Total number of credit ledger events, by type and result.",
	},
	[]string{"type", "result"},
)
