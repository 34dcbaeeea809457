// Package events delivers domain events to brokers and in-process listeners.
// Every publisher satisfies service.EventPublisher.
package events

import (
	"context"
	"errors"
	"log/slog"

	"github.com/pkordes/carpool/backend/internal/domain"
)

// Publisher is a destination for domain events.
type Publisher interface {
	Publish(ctx context.Context, e domain.Event) error
}

// LogPublisher writes each event as a structured log line. It is the
// default when no broker is configured.
type LogPublisher struct {
	log *slog.Logger
}

// NewLogPublisher returns a LogPublisher writing to log.
func NewLogPublisher(log *slog.Logger) *LogPublisher {
	return &LogPublisher{log: log}
}

func (p *LogPublisher) Publish(ctx context.Context, e domain.Event) error {
	attrs := []any{"type", e.Type, "trip_id", e.TripID, "status", e.Status}
	if e.TripPassengerID != nil {
		attrs = append(attrs, "trip_passenger_id", *e.TripPassengerID)
	}
	if e.AvailableSeats != nil {
		attrs = append(attrs, "available_seats", *e.AvailableSeats)
	}
	p.log.InfoContext(ctx, "event", attrs...)
	return nil
}

// Multi fans an event out to several publishers. Every publisher is tried;
// the failures are joined.
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, e domain.Event) error {
	var errs []error
	for _, p := range m {
		if err := p.Publish(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
