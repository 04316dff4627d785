package kafka

import (
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDLQTopic(t *testing.T) {
	tests := []struct {
		name          string
		originalTopic string
		want          string
	}{
		{"category change topic", "catalog.category.changed", "catalog.dlq.catalog.category.changed"},
		{"brand change topic", "catalog.brand.changed", "catalog.dlq.catalog.brand.changed"},
		{"bare topic", "products", "catalog.dlq.products"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DLQTopic(tt.originalTopic))
		})
	}
}

func TestDLQMessage_Headers(t *testing.T) {
	failedAt := time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC)
	original := kafka.Message{
		Topic:     "catalog.category.changed",
		Partition: 3,
		Offset:    1042,
		Key:       []byte("cat-1"),
		Value:     []byte(`{"event_id":"e1"}`),
		Headers:   []kafka.Header{{Key: HeaderEventType, Value: []byte("category.changed")}},
	}

	msg := dlqMessage(original, errors.New("resolver unavailable"), "catalog-category-changed", failedAt)

	assert.Equal(t, "catalog.dlq.catalog.category.changed", msg.Topic)
	assert.Equal(t, original.Key, msg.Key)
	assert.Equal(t, original.Value, msg.Value)

	headers := headerMap(msg.Headers)
	assert.Equal(t, "category.changed", headers[HeaderEventType])
	assert.Equal(t, "catalog.category.changed", headers[HeaderDLQOriginalTopic])
	assert.Equal(t, "3", headers[HeaderDLQOriginalPartition])
	assert.Equal(t, "1042", headers[HeaderDLQOriginalOffset])
	assert.Equal(t, "catalog-category-changed", headers[HeaderDLQConsumerGroup])
	assert.Equal(t, "2024-03-01T12:30:00Z", headers[HeaderDLQFailedAt])
	assert.Equal(t, "resolver unavailable", headers[HeaderDLQError])

	// The source message is left untouched.
	require.Len(t, original.Headers, 1)
}

func TestDLQMessage_NilError(t *testing.T) {
	msg := dlqMessage(kafka.Message{Topic: "t"}, nil, "g", time.Now())

	assert.NotContains(t, headerMap(msg.Headers), HeaderDLQError)
}

func TestNewDLQProducer_CreatesInstance(t *testing.T) {
	p := NewDLQProducer([]string{"localhost:9092"}, testLogger())
	require.NotNil(t, p)
	assert.NotNil(t, p.now)
	assert.NoError(t, p.Close())
}
