package riot

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	apiRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lolfu_api_requests_total",
		Help: "Total number of remote API attempts by response status",
	}, []string{"status"})

	apiRequestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "lolfu_api_request_duration_seconds",
		Help:    "Latency of remote API attempts",
		Buckets: prometheus.DefBuckets,
	})

	apiRetries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lolfu_api_retries_total",
		Help: "Total number of retried remote API attempts by reason",
	}, []string{"reason"})
)
