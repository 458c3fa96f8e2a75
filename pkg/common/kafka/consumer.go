package kafka

import (
	"context"
	"encoding/json"
	"time"

	"github.com/megcare/platform/pkg/common/config"
	"github.com/megcare/platform/pkg/common/logger"
	"github.com/megcare/platform/pkg/common/models"
	"github.com/segmentio/kafka-go"
)

type Consumer struct {
	reader *kafka.Reader
}

type EventHandler func(ctx context.Context, event models.CaseEvent) error

func NewConsumer(topic string, groupID string) *Consumer {
	cfg := config.Load()
	if groupID == "" {
		groupID = cfg.KafkaGroupID
	}

	return &Consumer{reader: kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.KafkaBrokers,
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 10e3, // 10KB
		MaxBytes: 10e6, // 10MB
	})}
}

// Consume fetches and dispatches events until ctx is cancelled. Offsets
// commit only after the handler succeeds, so a failed event is retried
// on the next fetch. Malformed payloads are committed and skipped; they
// would never succeed.
func (c *Consumer) Consume(ctx context.Context, handler EventHandler) error {
	for {
		message, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			logger.Log.WithError(err).Error("failed to fetch message")
			time.Sleep(time.Second)
			continue
		}

		var event models.CaseEvent
		if err := json.Unmarshal(message.Value, &event); err != nil {
			logger.Log.WithError(err).Error("failed to unmarshal case event")
			c.reader.CommitMessages(ctx, message)
			continue
		}

		if err := handler(ctx, event); err != nil {
			logger.Log.WithError(err).WithFields(map[string]interface{}{
				"event_id":   event.ID,
				"event_type": event.Type,
				"case_id":    event.CaseID,
			}).Error("failed to process case event")
			continue
		}

		if err := c.reader.CommitMessages(ctx, message); err != nil {
			logger.Log.WithError(err).Error("failed to commit message")
		}
	}
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}
