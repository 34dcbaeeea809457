package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/pkordes/carpool/backend/internal/domain"
)

// KafkaPublisher writes events to a topic keyed by trip id, so all events of
// one trip land in the same partition in order.
type KafkaPublisher struct {
	w *kafka.Writer
}

// NewKafkaPublisher returns a publisher writing to topic on brokers.
func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return &KafkaPublisher{w: &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: 50 * time.Millisecond,
	}}
}

func (p *KafkaPublisher) Publish(ctx context.Context, e domain.Event) error {
	body, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("events.KafkaPublisher.Publish: marshal: %w", err)
	}
	msg := kafka.Message{
		Key:     []byte(e.TripID.String()),
		Value:   body,
		Time:    e.OccurredAt,
		Headers: []kafka.Header{{Key: "type", Value: []byte(e.Type)}},
	}
	if err := p.w.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("events.KafkaPublisher.Publish: %w", err)
	}
	return nil
}

// Close flushes pending messages and closes the writer.
func (p *KafkaPublisher) Close() error {
	return p.w.Close()
}
