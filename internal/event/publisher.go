// Package event publishes engine events to Kafka so downstream consumers
// (portfolio aggregation, alerting) can react to refreshed data and lock
// transitions without polling the cache.
package event

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Topics the engine publishes to.
const (
	TopicMarketDataUpdated  = "market-data.updated"
	TopicStrategyLockChange = "strategy.lock.changed"
)

// Publisher is the outbound event sink. The service layer depends on this
// interface so tests can record events and deployments without Kafka can
// use NopPublisher.
type Publisher interface {
	Publish(ctx context.Context, topic, key string, value interface{}) error
	Close() error
}

// KafkaPublisher produces JSON events to Kafka, one lazily created writer
// per topic.
type KafkaPublisher struct {
	writers  map[string]*kafka.Writer
	brokers  []string
	clientID string
	logger   *zap.Logger
}

// NewKafkaPublisher creates a new Kafka publisher.
func NewKafkaPublisher(brokers []string, clientID string, logger *zap.Logger) *KafkaPublisher {
	return &KafkaPublisher{
		writers:  make(map[string]*kafka.Writer),
		brokers:  brokers,
		clientID: clientID,
		logger:   logger,
	}
}

func (p *KafkaPublisher) getWriter(topic string) *kafka.Writer {
	if writer, exists := p.writers[topic]; exists {
		return writer
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(p.brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		BatchSize:    100,
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
		Async:        false,
		Transport: &kafka.Transport{
			ClientID: p.clientID,
		},
	}

	p.writers[topic] = writer
	return writer
}

// Publish sends a JSON-encoded event keyed by ticker.
func (p *KafkaPublisher) Publish(ctx context.Context, topic, key string, value interface{}) error {
	writer := p.getWriter(topic)

	jsonValue, err := json.Marshal(value)
	if err != nil {
		p.logger.Error("Failed to marshal event",
			zap.String("topic", topic),
			zap.Error(err))
		return err
	}

	msg := kafka.Message{
		Key:   []byte(key),
		Value: jsonValue,
		Time:  time.Now(),
	}

	if err := writer.WriteMessages(ctx, msg); err != nil {
		p.logger.Error("Failed to publish event",
			zap.String("topic", topic),
			zap.String("key", key),
			zap.Error(err))
		return err
	}

	p.logger.Debug("Event published",
		zap.String("topic", topic),
		zap.String("key", key))

	return nil
}

// Close closes all writers.
func (p *KafkaPublisher) Close() error {
	for topic, writer := range p.writers {
		if err := writer.Close(); err != nil {
			p.logger.Error("Failed to close Kafka writer",
				zap.String("topic", topic),
				zap.Error(err))
		}
	}
	return nil
}

// NopPublisher discards every event. Used when Kafka is disabled.
type NopPublisher struct{}

func (NopPublisher) Publish(ctx context.Context, topic, key string, value interface{}) error {
	return nil
}

func (NopPublisher) Close() error { return nil }
