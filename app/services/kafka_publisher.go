package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/institution-matcher/app/models"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// DefaultValidationTopic topic nhận validation log
const DefaultValidationTopic = "institution.validation"

// ValidationPublisher publishes validation log entries to Kafka
type ValidationPublisher struct {
	writer *kafka.Writer
	logger *zap.Logger
}

// NewValidationPublisher tạo mới Kafka publisher
func NewValidationPublisher(brokers []string, topic string, logger *zap.Logger) *ValidationPublisher {
	if topic == "" {
		topic = DefaultValidationTopic
	}
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		BatchTimeout: 50 * time.Millisecond,
	}
	return &ValidationPublisher{writer: writer, logger: logger}
}

// PublishValidation implements audit.Publisher. Messages are keyed by run id
// so one batch lands on one partition in order.
func (vp *ValidationPublisher) PublishValidation(ctx context.Context, entry models.ValidationLogEntry) error {
	payload, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal validation entry: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(entry.RunID),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "log_id", Value: []byte(strconv.FormatInt(entry.ID, 10))},
			{Key: "run_type", Value: []byte(entry.RunType)},
			{Key: "success", Value: []byte(strconv.FormatBool(entry.Success))},
		},
	}
	if err := vp.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish validation entry: %w", err)
	}
	return nil
}

// Close flushes pending messages
func (vp *ValidationPublisher) Close() error {
	return vp.writer.Close()
}
