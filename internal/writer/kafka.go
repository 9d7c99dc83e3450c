package writer

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/rickgao/bookfeed/internal/model"
)

// Producer is the slice of kafka-go the writer needs.
type Producer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaConfig configures the Kafka sink.
type KafkaConfig struct {
	// Brokers lists the bootstrap brokers.
	Brokers []string

	// Topic receives every quote, keyed by source.
	Topic string
}

// Kafka publishes quotes to a single topic. Messages are keyed by source
// so each source's quotes land on one partition in order.
type Kafka struct {
	producer Producer
}

// NewKafka creates a Kafka writer with a production-tuned producer.
func NewKafka(cfg KafkaConfig) *Kafka {
	producer := &kafka.Writer{
		Addr:  kafka.TCP(cfg.Brokers...),
		Topic: cfg.Topic,
		// Hash routes by message key, so one source stays on one
		// partition; a key-oblivious balancer would break the ordering.
		Balancer:     &kafka.Hash{},
		BatchTimeout: 10 * time.Millisecond,
	}
	return NewKafkaWithProducer(producer)
}

// NewKafkaWithProducer creates a Kafka writer around an existing producer.
func NewKafkaWithProducer(producer Producer) *Kafka {
	return &Kafka{producer: producer}
}

// Name identifies the sink.
func (k *Kafka) Name() string {
	return "kafka"
}

// Write publishes one message per quote that carries data. The batch
// goes out in a single producer call.
func (k *Kafka) Write(ctx context.Context, quotes []model.Quote) error {
	msgs := make([]kafka.Message, 0, len(quotes))
	for _, q := range quotes {
		if !q.HasData {
			continue
		}
		payload, err := json.Marshal(q)
		if err != nil {
			return fmt.Errorf("marshal quote %s: %w", q.Source, err)
		}
		msgs = append(msgs, kafka.Message{
			Key:   []byte(q.Source),
			Value: payload,
		})
	}

	if len(msgs) == 0 {
		return nil
	}
	if err := k.producer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("kafka write: %w", err)
	}
	return nil
}

// Close flushes and releases the producer.
func (k *Kafka) Close() error {
	return k.producer.Close()
}
