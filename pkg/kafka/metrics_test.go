package kafka

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConsumerCounters_Increment(t *testing.T) {
	counters := map[string]*prometheus.CounterVec{
		"received":  ConsumerMessagesReceived,
		"processed": ConsumerMessagesProcessed,
		"failed":    ConsumerMessagesFailed,
		"duplicate": ConsumerMessagesDuplicate,
		"dlq":       ConsumerDLQPublished,
	}

	for name, vec := range counters {
		t.Run(name, func(t *testing.T) {
			c := vec.WithLabelValues("metrics.test.topic", "metrics-test-"+name)
			c.Inc()
			c.Inc()
			assert.Equal(t, 2.0, testutil.ToFloat64(c))
		})
	}
}

func TestProducerCounters_Increment(t *testing.T) {
	published := ProducerMessagesPublished.WithLabelValues("metrics.test.producer")
	failed := ProducerPublishErrors.WithLabelValues("metrics.test.producer")

	published.Inc()
	failed.Inc()

	assert.Equal(t, 1.0, testutil.ToFloat64(published))
	assert.Equal(t, 1.0, testutil.ToFloat64(failed))
}

func TestHistograms_Observe(t *testing.T) {
	ConsumerProcessingDuration.WithLabelValues("metrics.test.histogram", "metrics-test").Observe(0.05)
	ProducerPublishDuration.WithLabelValues("metrics.test.histogram").Observe(0.01)

	require.GreaterOrEqual(t,
		testutil.CollectAndCount(ConsumerProcessingDuration, "kafka_consumer_processing_duration_seconds"), 1)
	require.GreaterOrEqual(t,
		testutil.CollectAndCount(ProducerPublishDuration, "kafka_producer_publish_duration_seconds"), 1)
}

func TestMetrics_RegisteredOnDefaultRegistry(t *testing.T) {
	// Touch one child per family so Gather reports them.
	ConsumerMessagesReceived.WithLabelValues("registry.check", "registry-check").Inc()
	ProducerMessagesPublished.WithLabelValues("registry.check").Inc()

	families, err := prometheus.DefaultGatherer.Gather()
	require.NoError(t, err)

	names := make(map[string]bool, len(families))
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["kafka_consumer_messages_received_total"])
	assert.True(t, names["kafka_producer_messages_published_total"])
}

func TestMetrics_WrongLabelCountPanics(t *testing.T) {
	assert.Panics(t, func() {
		ConsumerMessagesReceived.WithLabelValues("only-topic")
	})
	assert.Panics(t, func() {
		ProducerMessagesPublished.WithLabelValues("topic", "unexpected-group")
	})
}
