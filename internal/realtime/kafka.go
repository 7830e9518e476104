package realtime

import (
	"context"
	"time"

	"github.com/segmentio/kafka-go"
)

// KafkaTransport appends events to a topic keyed by channel, so events on one
// channel stay ordered within a partition.
type KafkaTransport struct {
	writer *kafka.Writer
}

func NewKafkaTransport(brokers []string, topic string) *KafkaTransport {
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
	}
	return &KafkaTransport{writer: w}
}

func (t *KafkaTransport) Name() string { return "kafka" }

func (t *KafkaTransport) Publish(ctx context.Context, channel string, payload []byte) error {
	msg := kafka.Message{Key: []byte(channel), Value: payload, Time: time.Now()}
	return t.writer.WriteMessages(ctx, msg)
}

func (t *KafkaTransport) Close() error { return t.writer.Close() }
