package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/segmentio/kafka-go"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// KafkaTransport publishes messages for a downstream delivery service (e.g.
// a WhatsApp gateway). Messages are keyed by order so per-order ordering is
// kept within a partition.
type KafkaTransport struct {
	writer messageWriter
}

func NewKafkaTransport(writer messageWriter) *KafkaTransport {
	return &KafkaTransport{writer: writer}
}

// NewKafkaWriter builds the writer used in production.
func NewKafkaWriter(broker, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:     kafka.TCP(broker),
		Topic:    topic,
		Balancer: &kafka.Hash{},
	}
}

func (*KafkaTransport) Name() string { return "kafka" }

func (t *KafkaTransport) Send(ctx context.Context, msg Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}
	err = t.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(strconv.FormatUint(uint64(msg.OrderID), 10)),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "kind", Value: []byte(msg.Kind)},
		},
	})
	if err != nil {
		return fmt.Errorf("publish notification: %w", err)
	}
	return nil
}
