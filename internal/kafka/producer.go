package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"

	"lingua-go/internal/config"
	"lingua-go/internal/imtypes"
)

// MessageProducer defines the interface for a Kafka message producer.
type MessageProducer interface {
	SendMessage(ctx context.Context, topic string, key []byte, payload []byte) error
	Close()
}

// confluentKafkaProducer is an implementation of MessageProducer using confluent-kafka-go.
type confluentKafkaProducer struct {
	producer *kafka.Producer
	log      *slog.Logger
}

// NewConfluentKafkaProducer creates a new Kafka producer instance using confluent-kafka-go.
func NewConfluentKafkaProducer(cfg config.KafkaConfig, log *slog.Logger) (MessageProducer, error) {
	configMap := &kafka.ConfigMap{
		"bootstrap.servers": strings.Join(cfg.Brokers, ","),
		"security.protocol": cfg.Protocol,
		"acks":              "all",
	}
	if cfg.ClientID != "" {
		_ = configMap.SetKey("client.id", cfg.ClientID)
	}
	if cfg.PublishTimeout > 0 {
		_ = configMap.SetKey("message.timeout.ms", int(cfg.PublishTimeout.Milliseconds()))
	}

	p, err := kafka.NewProducer(configMap)
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka producer: %w", err)
	}
	return &confluentKafkaProducer{producer: p, log: log}, nil
}

// SendMessage sends a single message to the specified Kafka topic.
// This implementation waits for the delivery report synchronously.
func (p *confluentKafkaProducer) SendMessage(ctx context.Context, topic string, key []byte, payload []byte) error {
	// buffered so a late delivery report never blocks the producer after we stop waiting
	deliveryChan := make(chan kafka.Event, 1)

	kafkaMsg := &kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: &topic, Partition: kafka.PartitionAny},
		Key:            key,
		Value:          payload,
		Timestamp:      time.Now(),
	}

	if err := p.producer.Produce(kafkaMsg, deliveryChan); err != nil {
		// local failures only, e.g. a full queue; delivery errors come back on deliveryChan
		return fmt.Errorf("kafka producer failed to enqueue message for topic %s: %w", topic, err)
	}

	select {
	case e := <-deliveryChan:
		m, ok := e.(*kafka.Message)
		if !ok {
			return fmt.Errorf("kafka producer: unexpected event type received on delivery channel: %T %v", e, e)
		}
		if m.TopicPartition.Error != nil {
			return fmt.Errorf("kafka producer: delivery failed for topic %s: %w", topic, m.TopicPartition.Error)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("kafka producer: context canceled while waiting for delivery report for topic %s: %w", topic, ctx.Err())
	}
}

// Close flushes any outstanding messages and closes the Kafka producer.
func (p *confluentKafkaProducer) Close() {
	if p.producer == nil {
		return
	}
	p.log.Info("Closing Kafka producer...")
	remaining := p.producer.Flush(15 * 1000)
	if remaining > 0 {
		p.log.Warn("messages still outstanding after flush", "remaining", remaining)
	}
	p.producer.Close()
	p.log.Info("Kafka producer closed.")
}

// NoopProducer drops every message. Used when Kafka is disabled.
type NoopProducer struct{}

func (NoopProducer) SendMessage(context.Context, string, []byte, []byte) error { return nil }
func (NoopProducer) Close()                                                   {}

// EventPublisher publishes friend-request events to a topic.
type EventPublisher struct {
	producer MessageProducer
	topic    string
}

// NewEventPublisher wraps producer for the given topic.
func NewEventPublisher(producer MessageProducer, topic string) *EventPublisher {
	return &EventPublisher{producer: producer, topic: topic}
}

// PublishFriendRequestEvent sends event keyed by its request id, so every
// transition of one request lands on the same partition in order.
func (p *EventPublisher) PublishFriendRequestEvent(ctx context.Context, event imtypes.FriendRequestEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("序列化好友请求事件失败: %w", err)
	}
	if err := p.producer.SendMessage(ctx, p.topic, []byte(event.RequestID), payload); err != nil {
		return fmt.Errorf("发送好友请求事件失败: %w", err)
	}
	return nil
}
