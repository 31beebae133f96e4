package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "occupancy_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "occupancy_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "endpoint", "status"},
	)

	HTTPResponseSize = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "occupancy_http_response_size_bytes",
			Help:    "HTTP response size in bytes",
			Buckets: prometheus.ExponentialBuckets(100, 10, 8),
		},
		[]string{"method", "endpoint"},
	)

	// Measurement metrics
	MeasurementsRecorded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "occupancy_measurements_recorded_total",
			Help: "Total number of sensor measurements recorded",
		},
		[]string{"source", "count"}, // source: http, kafka; count: present, null
	)

	SensorsTracked = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "occupancy_sensors_tracked",
			Help: "Number of distinct sensors with a recorded measurement",
		},
	)

	ValidationErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "occupancy_validation_errors_total",
			Help: "Total number of rejected requests by reason",
		},
		[]string{"reason"},
	)

	// Level metrics
	CurrentLevel = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "occupancy_current_level",
			Help: "Occupancy level computed by the last evaluation cycle (0 when undefined)",
		},
	)

	// Alert metrics
	AlertsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "occupancy_alerts_created_total",
			Help: "Total number of alerts registered",
		},
	)

	AlertTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "occupancy_alert_transitions_total",
			Help: "Total number of alert state transitions",
		},
		[]string{"to"}, // to: fired, expired
	)

	ActiveAlerts = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "occupancy_active_alerts",
			Help: "Number of alerts still awaiting a level drop",
		},
	)

	// Evaluator metrics
	EvaluatorCycles = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "occupancy_evaluator_cycles_total",
			Help: "Total number of evaluation cycles",
		},
		[]string{"outcome"}, // outcome: evaluated, skipped, failed
	)

	EvaluatorCycleDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "occupancy_evaluator_cycle_duration_seconds",
			Help:    "Time taken by one evaluation cycle",
			Buckets: []float64{.001, .005, .01, .05, .1, .5, 1, 5, 10, 30},
		},
	)

	// Notifier metrics
	NotificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "occupancy_notifications_total",
			Help: "Total number of notification attempts",
		},
		[]string{"status"}, // status: sent, failed
	)

	NotificationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "occupancy_notification_duration_seconds",
			Help:    "Time taken to hand a notification to the transport",
			Buckets: []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
	)

	// Event queue metrics
	EventQueueSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "occupancy_event_queue_size",
			Help: "Current size of the event publishing queue",
		},
	)

	EventQueueCapacity = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "occupancy_event_queue_capacity",
			Help: "Capacity of the event publishing queue",
		},
	)

	EventsDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "occupancy_events_dropped_total",
			Help: "Total number of events dropped because a subscriber was full",
		},
		[]string{"sink"},
	)

	WorkerProcessedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "occupancy_worker_processed_total",
			Help: "Total number of events published by workers",
		},
	)

	WorkerFailedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "occupancy_worker_failed_total",
			Help: "Total number of events workers failed to publish",
		},
	)

	WorkerBatchPublishDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "occupancy_worker_batch_publish_duration_seconds",
			Help:    "Time taken to publish a batch to Kafka",
			Buckets: []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
	)

	// Kafka metrics
	KafkaPublishTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "occupancy_kafka_publish_total",
			Help: "Total number of messages published to Kafka",
		},
		[]string{"status"}, // status: success, failed
	)

	KafkaPublishDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "occupancy_kafka_publish_duration_seconds",
			Help:    "Time taken to publish to Kafka",
			Buckets: []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
	)

	KafkaPublishRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "occupancy_kafka_publish_retries_total",
			Help: "Total number of Kafka publish retries",
		},
	)

	KafkaBytesWritten = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "occupancy_kafka_bytes_written_total",
			Help: "Total bytes of event payloads written to Kafka",
		},
	)

	KafkaConsumedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "occupancy_kafka_consumed_total",
			Help: "Total number of measurement messages read from Kafka",
		},
		[]string{"status"}, // status: recorded, rejected
	)

	// Websocket metrics
	WebsocketClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "occupancy_websocket_clients",
			Help: "Number of connected live-update clients",
		},
	)

	// Panic recovery
	PanicsRecovered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "occupancy_panics_recovered_total",
			Help: "Total number of panics recovered",
		},
		[]string{"component"},
	)
)
