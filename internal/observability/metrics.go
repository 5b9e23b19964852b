package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	MessagesProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "yaic",
		Name:      "messages_processed_total",
		Help:      "Total number of inbound image messages processed",
	}, []string{"source"})

	ProcessingErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "yaic",
		Name:      "processing_errors_total",
		Help:      "Total number of messages that ended in an error operation status",
	}, []string{"source"})

	ClassifierDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "yaic",
		Name:      "classifier_call_duration_seconds",
		Help:      "Duration of classifier API call sequences",
		Buckets:   prometheus.ExponentialBuckets(0.1, 2, 10),
	}, []string{"stage"})

	PublishErrors = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "yaic",
		Name:      "publish_errors_total",
		Help:      "Total number of failed MQTT publishes",
	})

	KnownSources = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "yaic",
		Name:      "known_sources",
		Help:      "Number of sources registered since startup",
	})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "yaic",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	WSConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "yaic",
		Name:      "ws_connections",
		Help:      "Number of active WebSocket clients",
	})
)
