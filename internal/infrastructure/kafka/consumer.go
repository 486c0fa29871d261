package kafka

import (
	"context"
	"log"

	"github.com/segmentio/kafka-go"

	"github.com/example/parfum-commerce/internal/metrics"
)

// MessageHandler has the shape of store.EventHandler so the same handler can
// sit behind Kafka or the in-process bus.
type MessageHandler func(ctx context.Context, key, value []byte) error

type Consumer struct {
	reader *kafka.Reader
	name   string
}

// NewConsumer joins groupID on topic. The group id doubles as the consumer
// name in logs and metrics.
func NewConsumer(brokers []string, topic, groupID string) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 10e3, // 10KB
		MaxBytes: 10e6, // 10MB
	})
	return &Consumer{reader: reader, name: groupID}
}

// Consume reads until ctx is cancelled. Handler failures are logged and the
// message is committed anyway; there are no retries.
func (c *Consumer) Consume(ctx context.Context, handler MessageHandler) error {
	handle := Instrument(c.name, handler)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			msg, err := c.reader.ReadMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				log.Printf("[Consumer %s] Error reading message: %v", c.name, err)
				continue
			}

			if err := handle(ctx, msg.Key, msg.Value); err != nil {
				log.Printf("[Consumer %s] Error handling message %s: %v", c.name, string(msg.Key), err)
			}
		}
	}
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}

// Instrument counts every handled message under the consumer name
func Instrument(name string, handler MessageHandler) MessageHandler {
	return func(ctx context.Context, key, value []byte) error {
		err := handler(ctx, key, value)
		metrics.MessagesConsumedTotal.WithLabelValues(name, metrics.Result(err)).Inc()
		return err
	}
}
