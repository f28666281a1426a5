package stats

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var matchesRejected = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "lolfu_matches_rejected_total",
	Help: "Matches excluded from an aggregate by reason",
}, []string{"reason"})
