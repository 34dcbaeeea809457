package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// BookingStatus is the state of a passenger's seat on a trip.
type BookingStatus string

const (
	// BookingPending is a seat held while a payment is outstanding.
	BookingPending   BookingStatus = "PENDING"
	BookingConfirmed BookingStatus = "CONFIRMED"
	BookingCanceled  BookingStatus = "CANCELED"
)

// IsValid reports whether s is a known booking status.
func (s BookingStatus) IsValid() bool {
	switch s {
	case BookingPending, BookingConfirmed, BookingCanceled:
		return true
	}
	return false
}

// HoldsSeat reports whether a booking in state s occupies a seat.
func (s BookingStatus) HoldsSeat() bool {
	return s == BookingPending || s == BookingConfirmed
}

// ParseBookingStatus converts a raw string into a BookingStatus.
func ParseBookingStatus(s string) (BookingStatus, error) {
	st := BookingStatus(s)
	if !st.IsValid() {
		return "", fmt.Errorf("%w: unknown booking status %q", ErrValidation, s)
	}
	return st, nil
}

// TripPassenger is a passenger's booking on a trip.
type TripPassenger struct {
	ID          uuid.UUID     `json:"id"`
	TripID      uuid.UUID     `json:"trip_id"`
	PassengerID uuid.UUID     `json:"passenger_id"`
	Status      BookingStatus `json:"status"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

// TripPassengerFilter narrows a booking listing. Nil fields are ignored.
type TripPassengerFilter struct {
	TripID      *uuid.UUID
	PassengerID *uuid.UUID
}

// ManifestRow is one line of a trip's passenger manifest: a booking joined
// with the passenger's contact details.
type ManifestRow struct {
	TripPassengerID uuid.UUID     `json:"trip_passenger_id"`
	PassengerID     uuid.UUID     `json:"passenger_id"`
	PassengerName   string        `json:"passenger_name"`
	PassengerEmail  string        `json:"passenger_email"`
	PassengerPhone  string        `json:"passenger_phone,omitempty"`
	Status          BookingStatus `json:"status"`
	BookedAt        time.Time     `json:"booked_at"`
}
