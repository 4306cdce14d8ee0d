package alertfeed

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/apiarylabs/hivewatch/internal/conf"
	"github.com/apiarylabs/hivewatch/internal/datastore/entities"
	"github.com/segmentio/kafka-go"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes alerts to one topic, keyed by hive so that a
// hive's alerts stay ordered on one partition.
type KafkaPublisher struct {
	writer messageWriter
}

// NewKafkaPublisher creates a synchronous writer on cfg.Brokers.
func NewKafkaPublisher(cfg conf.KafkaFeedSettings) (*KafkaPublisher, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("at least one kafka broker is required")
	}
	if cfg.Topic == "" {
		return nil, errors.New("kafka topic is required")
	}
	return &KafkaPublisher{writer: &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		BatchSize:    1,
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: 10 * time.Second,
		RequiredAcks: kafka.RequireAll,
		MaxAttempts:  3,
	}}, nil
}

func (p *KafkaPublisher) Name() string { return "kafka" }

func (p *KafkaPublisher) Publish(ctx context.Context, alert *entities.Alert) error {
	payload, err := encode(alert)
	if err != nil {
		return err
	}
	msg := kafka.Message{
		Key:   []byte(alert.HiveID),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "alert_id", Value: []byte(alert.ID)},
			{Key: "alert_type", Value: []byte(alert.AlertType)},
			{Key: "severity", Value: []byte(alert.Severity)},
		},
		Time: alert.CreatedAt,
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to write alert %s to kafka: %w", alert.ID, err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
