package domain

import (
	"time"

	"github.com/google/uuid"
)

// EventType names something that happened to a trip or a booking.
type EventType string

const (
	EventBookingReserved   EventType = "booking.reserved"
	EventBookingHeld       EventType = "booking.held"
	EventBookingConfirmed  EventType = "booking.confirmed"
	EventBookingReleased   EventType = "booking.released"
	EventTripStatusChanged EventType = "trip.status_changed"
	EventPaymentReconciled EventType = "payment.reconciled"
)

// Event is published after the transaction that caused it has committed.
type Event struct {
	Type            EventType  `json:"type"`
	TripID          uuid.UUID  `json:"trip_id"`
	TripPassengerID *uuid.UUID `json:"trip_passenger_id,omitempty"`
	UserID          *uuid.UUID `json:"user_id,omitempty"`
	Status          string     `json:"status"`
	AvailableSeats  *int       `json:"available_seats,omitempty"`
	OccurredAt      time.Time  `json:"occurred_at"`
}
