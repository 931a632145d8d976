package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"

	"github.com/pixguard/pixguard/internal/metrics"
	"github.com/pixguard/pixguard/internal/models/events"
	"github.com/segmentio/kafka-go"
)

// Consumer is the background listener for committed decisions. It reads with
// a consumer group, which commits offsets on receipt, so a message is
// acknowledged whether or not handling it succeeds. Decisions are telemetry
// here, not the system of record, so loss on a handling error is acceptable.
type Consumer struct {
	reader *kafka.Reader
	logger *slog.Logger
}

func NewConsumer(brokers []string, topic, groupID string, logger *slog.Logger) *Consumer {
	return &Consumer{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers: brokers,
			Topic:   topic,
			GroupID: groupID,
		}),
		logger: logger,
	}
}

// Run consumes until the context is cancelled or the reader is closed. A
// malformed payload is logged and skipped, never fatal.
func (c *Consumer) Run(ctx context.Context) error {
	c.logger.Info("decision consumer started")

	for {
		message, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, io.EOF) {
				c.logger.Info("decision consumer stopped")
				return nil
			}
			return err
		}

		var decision events.TransactionDecided
		if err := json.Unmarshal(message.Value, &decision); err != nil {
			metrics.ConsumerMessagesTotal.WithLabelValues("malformed").Inc()
			c.logger.Warn("skipping malformed decision message", "error", err)
			continue
		}

		if decision.IsFraud {
			metrics.ConsumerMessagesTotal.WithLabelValues("fraud").Inc()
			c.logger.Warn("fraud alert",
				"transactionId", decision.ID,
				"senderId", decision.SenderID,
				"reason", decision.FraudReason,
			)
		} else {
			metrics.ConsumerMessagesTotal.WithLabelValues("clean").Inc()
			c.logger.Info("transaction cleared",
				"transactionId", decision.ID,
				"senderId", decision.SenderID,
			)
		}
	}
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}
