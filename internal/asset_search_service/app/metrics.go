package app

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	searchRequestsCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "asset_search",
			Name:      "requests_total",
			Help:      "Asset searches, by result.",
		},
		[]string{"result"}, // "match", "no_match", "error"
	)

	searchUpstreamDurationHist = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "asset_search",
			Name:      "upstream_duration_seconds",
			Help:      "Duration of asset index listing calls.",
			Buckets:   prometheus.DefBuckets,
		},
	)
)
