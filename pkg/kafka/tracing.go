package kafka

import (
	"context"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

// KafkaHeaderCarrier adapts a slice of kafka-go headers to the OpenTelemetry
// TextMapCarrier interface so W3C trace context can be propagated through
// message headers.
type KafkaHeaderCarrier struct {
	headers *[]kafka.Header
}

// NewKafkaHeaderCarrier wraps the given header slice.
func NewKafkaHeaderCarrier(headers *[]kafka.Header) *KafkaHeaderCarrier {
	return &KafkaHeaderCarrier{headers: headers}
}

// Get returns the value of the header with the given key, or "".
func (c *KafkaHeaderCarrier) Get(key string) string {
	for _, h := range *c.headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

// Set stores a key-value pair, overwriting an existing header with the same key.
func (c *KafkaHeaderCarrier) Set(key, value string) {
	for i, h := range *c.headers {
		if h.Key == key {
			(*c.headers)[i].Value = []byte(value)
			return
		}
	}
	*c.headers = append(*c.headers, kafka.Header{Key: key, Value: []byte(value)})
}

// Keys lists the keys of all stored headers.
func (c *KafkaHeaderCarrier) Keys() []string {
	keys := make([]string, 0, len(*c.headers))
	for _, h := range *c.headers {
		keys = append(keys, h.Key)
	}
	return keys
}

// InjectTraceContext writes the current span context from ctx into the header
// slice using the global propagator.
func InjectTraceContext(ctx context.Context, headers *[]kafka.Header) {
	otel.GetTextMapPropagator().Inject(ctx, NewKafkaHeaderCarrier(headers))
}

// ExtractTraceContext returns a context carrying the trace context found in
// the message headers, if any.
func ExtractTraceContext(ctx context.Context, headers []kafka.Header) context.Context {
	carrier := NewKafkaHeaderCarrier(&headers)
	return otel.GetTextMapPropagator().Extract(ctx, propagation.TextMapCarrier(carrier))
}
