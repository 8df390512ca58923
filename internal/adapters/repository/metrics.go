package repository

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	MessagesConsumedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingest_messages_consumed_total",
			Help: "Total number of ingestion messages consumed from RabbitMQ",
		},
		[]string{"kind", "status"},
	)

	EventsPublishedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "history_events_published_total",
			Help: "Total number of history updated events published to RabbitMQ",
		},
		[]string{"status"},
	)

	RabbitMQConsumeDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "rabbitmq_consume_duration_seconds",
			Help:    "Duration of RabbitMQ message processing",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"status"},
	)
)

// RegisterBrokerMetrics registers all RabbitMQ metrics
func RegisterBrokerMetrics() {
	prometheus.MustRegister(MessagesConsumedTotal)
	prometheus.MustRegister(EventsPublishedTotal)
	prometheus.MustRegister(RabbitMQConsumeDuration)
}
