package app

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	predictionsCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "classification",
			Name:      "predictions_total",
			Help:      "Classification requests, by model and result.",
		},
		[]string{"model", "result"},
	)

	modelLoadsCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "classification",
			Name:      "model_loads_total",
			Help:      "Model load attempts.",
		},
		[]string{"model", "result"},
	)

	modelLoadDurationHist = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "classification",
			Name:      "model_load_duration_seconds",
			Help:      "Time spent reading a model from disk.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"model"},
	)
)
