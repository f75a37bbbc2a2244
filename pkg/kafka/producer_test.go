package kafka

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultProducerConfig(t *testing.T) {
	brokers := []string{"kafka-1:9092", "kafka-2:9092"}
	cfg := DefaultProducerConfig(brokers)

	assert.Equal(t, brokers, cfg.Brokers)
	assert.Equal(t, 100, cfg.BatchSize)
	assert.Equal(t, 10*time.Millisecond, cfg.BatchTimeout)
	assert.False(t, cfg.Async, "publishing must stay synchronous so callers see write errors")
}

func TestNewProducer_ClosesWithoutBroker(t *testing.T) {
	p := NewProducer(DefaultProducerConfig([]string{"localhost:19092"}), discardLogger())
	require.NotNil(t, p)
	assert.Equal(t, []string{"localhost:19092"}, p.brokers)

	assert.NoError(t, p.Close())
}

func TestEventHeaders(t *testing.T) {
	event := &Event{EventType: "product.registered", Source: "relist-service"}

	headers := eventHeaders(event)
	require.Len(t, headers, 2)
	assert.Equal(t, "event_type", headers[0].Key)
	assert.Equal(t, "product.registered", string(headers[0].Value))
	assert.Equal(t, "source", headers[1].Key)
	assert.Equal(t, "relist-service", string(headers[1].Value))
}

func TestEventHeaders_CorrelationIDWhenSet(t *testing.T) {
	event := &Event{EventType: "product.deleted", Source: "relist-service", CorrelationID: "corr-9"}

	headers := eventHeaders(event)
	require.Len(t, headers, 3)
	assert.Equal(t, "correlation_id", headers[2].Key)
	assert.Equal(t, "corr-9", string(headers[2].Value))
}

func TestTopic_Naming(t *testing.T) {
	assert.Equal(t, "relist", TopicPrefix)

	tests := []struct {
		domain, action, want string
	}{
		{"product", "harvested", "relist.product.harvested"},
		{"product", "registration_failed", "relist.product.registration_failed"},
		{"category", "updated", "relist.category.updated"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Topic(tt.domain, tt.action))
	}
}

func TestPingBrokers_NoBrokers(t *testing.T) {
	for _, brokers := range [][]string{nil, {}} {
		err := PingBrokers(context.Background(), brokers)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no brokers configured")
	}
}

func TestPingBrokers_Unreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	err := PingBrokers(ctx, []string{"127.0.0.1:1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "all brokers unreachable")
}
