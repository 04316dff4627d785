package kafka

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "kafka"

var (
	consumerLabels = []string{"topic", "consumer_group"}
	producerLabels = []string{"topic"}
)

var (
	// ConsumerMessagesReceived counts messages fetched from the broker.
	ConsumerMessagesReceived = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: "consumer",
		Name:      "messages_received_total",
		Help:      "Total number of Kafka messages received (fetched from broker)",
	}, consumerLabels)

	// ConsumerMessagesProcessed counts messages the handler accepted.
	ConsumerMessagesProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: "consumer",
		Name:      "messages_processed_total",
		Help:      "Total number of successfully processed Kafka messages",
	}, consumerLabels)

	// ConsumerMessagesFailed counts messages that exhausted their retries.
	ConsumerMessagesFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: "consumer",
		Name:      "messages_failed_total",
		Help:      "Total number of Kafka messages that failed all retries (sent to DLQ or dropped)",
	}, consumerLabels)

	// ConsumerProcessingDuration observes handler execution time, retries included.
	ConsumerProcessingDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: metricsNamespace,
		Subsystem: "consumer",
		Name:      "processing_duration_seconds",
		Help:      "Duration of Kafka message processing in seconds",
		Buckets:   prometheus.DefBuckets,
	}, consumerLabels)

	// ConsumerDLQPublished counts messages forwarded to a dead-letter topic.
	ConsumerDLQPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: "consumer",
		Name:      "dlq_published_total",
		Help:      "Total number of messages published to dead-letter queue",
	}, consumerLabels)

	// ConsumerDuplicatesSkipped counts redelivered events dropped by IdempotentHandler.
	ConsumerDuplicatesSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: "consumer",
		Name:      "duplicates_skipped_total",
		Help:      "Total number of already-processed events skipped",
	}, []string{"event_type"})

	// ProducerMessagesPublished counts events written to the broker.
	ProducerMessagesPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: "producer",
		Name:      "messages_published_total",
		Help:      "Total number of Kafka messages published",
	}, producerLabels)

	// ProducerPublishErrors counts failed writes.
	ProducerPublishErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: "producer",
		Name:      "publish_errors_total",
		Help:      "Total number of Kafka publish errors",
	}, producerLabels)

	// ProducerPublishDuration observes write latency.
	ProducerPublishDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: metricsNamespace,
		Subsystem: "producer",
		Name:      "publish_duration_seconds",
		Help:      "Duration of Kafka publish operations in seconds",
		Buckets:   prometheus.DefBuckets,
	}, producerLabels)

	// ProducerMessageBytes observes encoded envelope sizes.
	ProducerMessageBytes = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: metricsNamespace,
		Subsystem: "producer",
		Name:      "message_bytes",
		Help:      "Size of published Kafka message values in bytes",
		Buckets:   prometheus.ExponentialBuckets(128, 4, 8),
	}, producerLabels)
)
