package events

import (
	"context"
	"fmt"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/segmentio/kafka-go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// RatesUpdated is emitted after a category was refreshed from a live provider
type RatesUpdated struct {
	CycleID   string             `json:"cycle_id"`
	Category  string             `json:"category"`
	Provider  string             `json:"provider"`
	Base      string             `json:"base"`
	Rates     map[string]float64 `json:"rates"`
	Timestamp time.Time          `json:"timestamp"`
}

// Publisher delivers rate events to downstream consumers
type Publisher interface {
	PublishRatesUpdated(ctx context.Context, event RatesUpdated) error
	Close() error
}

// NopPublisher discards every event
type NopPublisher struct{}

func (NopPublisher) PublishRatesUpdated(ctx context.Context, event RatesUpdated) error { return nil }
func (NopPublisher) Close() error { return nil }

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes events to a single Kafka topic, keyed by category
type KafkaPublisher struct {
	writer  messageWriter
	timeout time.Duration
}

// NewKafkaPublisher creates a publisher for topic on brokers
func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.LeastBytes{},
			RequiredAcks: kafka.RequireOne,
		},
		timeout: 10 * time.Second,
	}
}

func (k *KafkaPublisher) PublishRatesUpdated(ctx context.Context, event RatesUpdated) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode rates event: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, k.timeout)
	defer cancel()

	err = k.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.Category),
		Value: value,
		Time:  event.Timestamp,
	})
	if err != nil {
		return fmt.Errorf("failed to publish rates event: %w", err)
	}
	return nil
}

func (k *KafkaPublisher) Close() error {
	return k.writer.Close()
}
