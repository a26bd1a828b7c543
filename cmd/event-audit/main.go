// Command event-audit tails the booking and payment topics and writes every
// event to the service log, for tracing a booking's money movements.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"ms-vitotrips/internal/config"
	"ms-vitotrips/internal/kafka"
	"ms-vitotrips/internal/logger"
)

func main() {
	log := logger.NewLogger()
	defer log.Close()

	if err := godotenv.Load(); err != nil {
		log.Warn("CONFIG", ".env file not found, using environment variables")
	}
	cfg := config.Load()

	groupID := os.Getenv("AUDIT_CONSUMER_GROUP")
	if groupID == "" {
		groupID = "vitotrips-event-audit"
	}

	consumer := kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.Topics.All(), groupID, log)
	defer consumer.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err := consumer.Run(ctx, func(topic string, e kafka.Envelope) {
		msg := fmt.Sprintf("%s booking=%s", e.Type, e.BookingID)
		if e.PaymentID != "" {
			msg += " payment=" + e.PaymentID
		}
		log.LogKafka("AUDIT", topic, msg)
	})
	if err != nil {
		log.Error("KAFKA", fmt.Sprintf("Consumer stopped: %v", err))
	}
	log.Info("APP", "Event audit stopped")
}
