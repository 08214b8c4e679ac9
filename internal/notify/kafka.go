package notify

import (
	"context"
	"time"

	kafkaGo "github.com/segmentio/kafka-go"
)

// KafkaSink publishes events to a topic, keyed by order id so every event of
// an order lands on the same partition.
type KafkaSink struct {
	w *kafkaGo.Writer
}

// Events are published one at a time after commit; the writer must flush
// right away instead of waiting for a batch to fill.
const (
	kafkaBatchTimeout = 5 * time.Millisecond
	kafkaWriteTimeout = 2 * time.Second
	kafkaMaxAttempts  = 2
)

func NewKafkaSink(brokers []string, topic string) *KafkaSink {
	return &KafkaSink{w: &kafkaGo.Writer{
		Addr:                   kafkaGo.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafkaGo.Hash{},
		BatchTimeout:           kafkaBatchTimeout,
		WriteTimeout:           kafkaWriteTimeout,
		MaxAttempts:            kafkaMaxAttempts,
		AllowAutoTopicCreation: true,
	}}
}

func (k *KafkaSink) Publish(ctx context.Context, e Event) error {
	payload, err := encode(e)
	if err != nil {
		return err
	}
	return k.w.WriteMessages(ctx, kafkaGo.Message{
		Key:   []byte(e.OrderID),
		Value: payload,
		Headers: []kafkaGo.Header{
			{Key: "type", Value: []byte(e.Type)},
		},
	})
}

func (k *KafkaSink) Close() error {
	return k.w.Close()
}
