package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		},
		[]string{"method", "path", "status"},
	)

	MQConsumeLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mq_consume_latency_ms",
			Help:    "MQ message consumption latency in milliseconds",
			Buckets: prometheus.ExponentialBuckets(10, 2, 10), // 10ms to ~10s
		},
		[]string{"routing_key", "queue"},
	)

	TaskTransitionCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "task_transition_count",
			Help: "Total number of weekly task status transitions",
		},
		[]string{"from", "to"},
	)

	AssignmentCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_assignment_count",
			Help: "Total number of worker assignment operations",
		},
		[]string{"action", "mode"}, // action: assigned, unassigned; mode: manual, auto
	)

	DistributionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "auto_distribution_duration_seconds",
			Help:    "Auto distribution pass duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12),
		},
		[]string{"outcome"}, // outcome: ok, partial, failed
	)

	ChangeRequestCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "change_request_count",
			Help: "Total number of change request operations",
		},
		[]string{"type", "status"},
	)
)

func RecordHTTPRequestDuration(method, path, status string, duration time.Duration) {
	HTTPRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}

func RecordMQConsumeLatency(routingKey, queue string, duration time.Duration) {
	MQConsumeLatency.WithLabelValues(routingKey, queue).Observe(float64(duration.Milliseconds()))
}

func IncrementTaskTransition(from, to string) {
	TaskTransitionCount.WithLabelValues(from, to).Inc()
}

func IncrementAssignment(action, mode string) {
	AssignmentCount.WithLabelValues(action, mode).Inc()
}

func RecordDistributionDuration(outcome string, duration time.Duration) {
	DistributionDuration.WithLabelValues(outcome).Observe(duration.Seconds())
}

func IncrementChangeRequest(requestType, status string) {
	ChangeRequestCount.WithLabelValues(requestType, status).Inc()
}
