package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"

	"ridebroker/internal/domain"
)

// Publisher mirrors ride events onto a stream for downstream consumers
// (analytics, fraud review). The postgres ride_events table is the
// durable record; this mirror is best-effort and failures are only
// logged by callers.
type Publisher interface {
	Publish(event *domain.RideEvent) error
	Close() error
}

// KafkaPublisher writes ride events to a Kafka topic keyed by session
// id, so per-session ordering is preserved within a partition.
type KafkaPublisher struct {
	writer *kafka.Writer
}

// NewKafkaPublisher creates a publisher for the given brokers and topic.
func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	w := kafka.NewWriter(kafka.WriterConfig{
		Brokers:  brokers,
		Topic:    topic,
		Balancer: &kafka.Hash{},
	})
	return &KafkaPublisher{writer: w}
}

// Publish writes one event.
func (p *KafkaPublisher) Publish(event *domain.RideEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	b, err := json.Marshal(map[string]interface{}{
		"id":         event.ID,
		"session_id": event.SessionID,
		"type":       string(event.Type),
		"actor_id":   event.ActorID,
		"metadata":   event.Metadata,
		"created_at": event.CreatedAt,
	})
	if err != nil {
		return err
	}

	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.SessionID),
		Value: b,
	})
}

// Close flushes and closes the underlying writer.
func (p *KafkaPublisher) Close() error {
	if p.writer == nil {
		return nil
	}
	return p.writer.Close()
}

var _ Publisher = (*KafkaPublisher)(nil)

// NopPublisher discards events. Used when no brokers are configured.
type NopPublisher struct{}

func (NopPublisher) Publish(event *domain.RideEvent) error { return nil }
func (NopPublisher) Close() error                          { return nil }

var _ Publisher = (*NopPublisher)(nil)
