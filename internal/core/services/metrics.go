package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	trendComputationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trend_slice_computations_total",
			Help: "Total number of trend slice computations",
		},
		[]string{"result"},
	)

	trendReadingsAggregated = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "trend_readings_aggregated",
			Help:    "Number of readings aggregated per trend computation",
			Buckets: prometheus.ExponentialBuckets(10, 4, 8),
		},
	)

	historyRowsBuiltTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "parameter_history_rows_built_total",
			Help: "Total number of parameter history rows built",
		},
	)

	ingestedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingested_records_total",
			Help: "Total number of ingested readings and parameter changes",
		},
		[]string{"kind"},
	)
)
