package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"ms-vitotrips/internal/config"
	"ms-vitotrips/internal/logger"
	"ms-vitotrips/internal/models"
)

// Producer writes domain events. The writer has no fixed topic; each event
// type is routed to its own topic and keyed by booking id so one booking's
// events stay ordered within a partition.
type Producer struct {
	Writer *kafka.Writer
	Topics config.TopicConfig
	Logger *logger.Logger
}

func NewProducer(brokers []string, topics config.TopicConfig, log *logger.Logger) *Producer {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: 50 * time.Millisecond,
	}
	return &Producer{Writer: writer, Topics: topics, Logger: log}
}

// TopicFor maps an event type to its configured topic.
func (p *Producer) TopicFor(eventType string) (string, bool) {
	switch eventType {
	case models.EventPaymentCreated:
		return p.Topics.PaymentCreated, true
	case models.EventPaymentConfirmed:
		return p.Topics.PaymentConfirmed, true
	case models.EventPaymentFailed:
		return p.Topics.PaymentFailed, true
	case models.EventPaymentRefunded:
		return p.Topics.PaymentRefunded, true
	case models.EventBookingCreated:
		return p.Topics.BookingCreated, true
	}
	return "", false
}

// PublishEvent encodes payload as JSON and writes it to the event's topic.
func (p *Producer) PublishEvent(ctx context.Context, eventType, key string, payload interface{}) error {
	topic, ok := p.TopicFor(eventType)
	if !ok {
		return fmt.Errorf("no topic configured for event %q", eventType)
	}
	value, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s: %w", eventType, err)
	}
	return p.Publish(ctx, topic, key, value)
}

func (p *Producer) Publish(ctx context.Context, topic, key string, value []byte) error {
	err := p.Writer.WriteMessages(ctx, kafka.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: value,
	})
	if err != nil {
		p.Logger.LogKafka("PUBLISH_FAILED", topic, fmt.Sprintf("key=%s: %v", key, err))
		return err
	}
	p.Logger.LogKafka("PUBLISH", topic, fmt.Sprintf("key=%s (%d bytes)", key, len(value)))
	return nil
}

func (p *Producer) Close() error {
	return p.Writer.Close()
}

// NopPublisher drops events. Used when Kafka is disabled.
type NopPublisher struct{}

func (NopPublisher) PublishEvent(context.Context, string, string, interface{}) error { return nil }
