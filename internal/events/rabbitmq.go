package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/pkordes/carpool/backend/internal/domain"
)

// RabbitPublisher publishes events to a durable topic exchange. The routing
// key is the event type, e.g. "booking.reserved".
type RabbitPublisher struct {
	conn     *amqp.Connection
	exchange string

	mu sync.Mutex
	ch *amqp.Channel
}

// NewRabbitPublisher dials url, opens a channel and declares exchange.
func NewRabbitPublisher(url, exchange string) (*RabbitPublisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("events.NewRabbitPublisher: dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("events.NewRabbitPublisher: open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("events.NewRabbitPublisher: declare exchange: %w", err)
	}
	return &RabbitPublisher{conn: conn, ch: ch, exchange: exchange}, nil
}

func (p *RabbitPublisher) Publish(ctx context.Context, e domain.Event) error {
	body, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("events.RabbitPublisher.Publish: marshal: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	err = p.ch.PublishWithContext(ctx, p.exchange, string(e.Type), false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    e.OccurredAt,
		Type:         string(e.Type),
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("events.RabbitPublisher.Publish: %w", err)
	}
	return nil
}

// Close closes the channel and the connection.
func (p *RabbitPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.ch.Close(); err != nil {
		_ = p.conn.Close()
		return fmt.Errorf("events.RabbitPublisher.Close: %w", err)
	}
	return p.conn.Close()
}
