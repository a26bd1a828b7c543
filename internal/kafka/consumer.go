package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/segmentio/kafka-go"

	"ms-vitotrips/internal/logger"
)

// Envelope holds the fields shared by every event this service publishes.
type Envelope struct {
	Type      string `json:"type"`
	BookingID string `json:"booking_id"`
	PaymentID string `json:"payment_id,omitempty"`
	Raw       []byte `json:"-"`
}

const defaultRetryDelay = time.Second

type messageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

type Consumer struct {
	reader     messageReader
	log        *logger.Logger
	retryDelay time.Duration
}

// NewConsumer joins groupID and reads from all the given topics.
func NewConsumer(brokers, topics []string, groupID string, log *logger.Logger) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     brokers,
		GroupID:     groupID,
		GroupTopics: topics,
		MinBytes:    10e3, // 10KB
		MaxBytes:    10e6, // 10MB
	})
	return &Consumer{reader: reader, log: log, retryDelay: defaultRetryDelay}
}

// Run delivers events to handle until ctx is cancelled or the reader is
// closed. Read errors are retried after a pause; undecodable messages are
// logged and skipped.
func (c *Consumer) Run(ctx context.Context, handle func(topic string, e Envelope)) error {
	c.log.Info("KAFKA", "Event consumer started")
	for {
		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			if errors.Is(err, io.EOF) {
				c.log.Info("KAFKA", "Event reader closed, consumer stopping")
				return nil
			}
			c.log.Error("KAFKA", fmt.Sprintf("Error reading message: %v", err))
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(c.retryDelay):
			}
			continue
		}

		e, err := DecodeEnvelope(msg.Value)
		if err != nil {
			c.log.Warn("KAFKA", fmt.Sprintf("Skipping undecodable message on %s at offset %d: %v", msg.Topic, msg.Offset, err))
			continue
		}
		handle(msg.Topic, e)
	}
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}

func DecodeEnvelope(value []byte) (Envelope, error) {
	var e Envelope
	if err := json.Unmarshal(value, &e); err != nil {
		return Envelope{}, err
	}
	if e.Type == "" {
		return Envelope{}, errors.New("event has no type")
	}
	e.Raw = value
	return e, nil
}
