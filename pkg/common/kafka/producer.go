package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/megcare/platform/pkg/common/config"
	"github.com/megcare/platform/pkg/common/logger"
	"github.com/megcare/platform/pkg/common/models"
	"github.com/segmentio/kafka-go"
)

// Producer publishes case lifecycle events. Messages are keyed by case
// id, so events for one case always land on the same partition and
// consumers see them in order.
type Producer struct {
	writer *kafka.Writer
}

func NewProducer(topic string) *Producer {
	cfg := config.Load()
	return &Producer{writer: &kafka.Writer{
		Addr:         kafka.TCP(cfg.KafkaBrokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		BatchSize:    1,
		BatchTimeout: 10 * time.Millisecond,
	}}
}

// PublishCaseEvent wraps the payload in a CaseEvent envelope and writes
// it synchronously. Callers treat publishing as best effort; the error
// is logged here and returned for callers that want to know.
func (p *Producer) PublishCaseEvent(ctx context.Context, eventType string, source string, caseID int64, data map[string]interface{}) error {
	event := models.CaseEvent{
		ID:        uuid.New().String(),
		Type:      eventType,
		Source:    source,
		CaseID:    caseID,
		Data:      data,
		Timestamp: time.Now(),
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal case event: %w", err)
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(fmt.Sprintf("case-%d", caseID)),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "event-type", Value: []byte(eventType)},
			{Key: "source", Value: []byte(source)},
		},
	})

	entry := logger.Log.WithFields(map[string]interface{}{
		"event_id":   event.ID,
		"event_type": eventType,
		"case_id":    caseID,
		"topic":      p.writer.Topic,
	})
	if err != nil {
		entry.WithError(err).Error("failed to publish case event")
		return err
	}
	entry.Info("case event published")
	return nil
}

func (p *Producer) Close() error {
	return p.writer.Close()
}
