package crawler

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	crawlEntities = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lolfu_crawl_entities_total",
		Help: "Entities processed by the crawler by kind and outcome",
	}, []string{"kind", "outcome"})

	frontierDepth = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "lolfu_frontier_queue_depth",
		Help: "Queued entities awaiting processing",
	}, []string{"kind"})
)
