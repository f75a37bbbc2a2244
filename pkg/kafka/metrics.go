package kafka

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Consumer metrics carry topic and consumer group labels; producer
// metrics are labelled by topic alone.
var (
	ConsumerMessagesReceived  = consumerCounter("kafka_consumer_messages_received_total", "Messages fetched from the broker, before any processing")
	ConsumerMessagesProcessed = consumerCounter("kafka_consumer_messages_processed_total", "Messages whose handler completed successfully")
	ConsumerMessagesFailed    = consumerCounter("kafka_consumer_messages_failed_total", "Messages that exhausted every handler retry")
	ConsumerMessagesDuplicate = consumerCounter("kafka_consumer_messages_duplicate_total", "Messages skipped because their event ID was already processed")
	ConsumerDLQPublished      = consumerCounter("kafka_consumer_dlq_published_total", "Messages copied to a dead-letter topic")

	ConsumerProcessingDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kafka_consumer_processing_duration_seconds",
			Help:    "Time one handler attempt took, in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"topic", "consumer_group"},
	)

	ProducerMessagesPublished = producerCounter("kafka_producer_messages_published_total", "Events written to the broker")
	ProducerPublishErrors     = producerCounter("kafka_producer_publish_errors_total", "Publish attempts that failed")

	ProducerPublishDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kafka_producer_publish_duration_seconds",
			Help:    "Time one publish took, acknowledgement included, in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"topic"},
	)
)

func consumerCounter(name, help string) *prometheus.CounterVec {
	return promauto.NewCounterVec(
		prometheus.CounterOpts{Name: name, Help: help},
		[]string{"topic", "consumer_group"},
	)
}

func producerCounter(name, help string) *prometheus.CounterVec {
	return promauto.NewCounterVec(
		prometheus.CounterOpts{Name: name, Help: help},
		[]string{"topic"},
	)
}
