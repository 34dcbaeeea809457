package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Trip is a scheduled ride offered by a driver along a route.
// TotalSeats is fixed at creation; AvailableSeats is only ever changed by the
// booking engine inside a transaction that holds the trip row lock.
type Trip struct {
	ID             uuid.UUID  `json:"id"`
	DriverID       uuid.UUID  `json:"driver_id"`
	RouteID        uuid.UUID  `json:"route_id"`
	VehicleID      *uuid.UUID `json:"vehicle_id,omitempty"`
	DepartureAt    time.Time  `json:"departure_at"`
	TotalSeats     int        `json:"total_seats"`
	AvailableSeats int        `json:"available_seats"`
	PricePerPerson float64    `json:"price_per_person"`
	Status         TripStatus `json:"status"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// TripFilter narrows a trip listing. Nil fields are ignored.
type TripFilter struct {
	DriverID *uuid.UUID
	Status   *TripStatus
}

// TripStatus is a state of the trip lifecycle.
type TripStatus string

const (
	TripOpen       TripStatus = "OPEN"
	TripInProgress TripStatus = "IN_PROGRESS"
	TripFinished   TripStatus = "FINISHED"
	TripCanceled   TripStatus = "CANCELED"
)

// tripTransitions lists the allowed next states for each state.
// FINISHED and CANCELED have no entry: they are terminal.
var tripTransitions = map[TripStatus][]TripStatus{
	TripOpen:       {TripInProgress, TripCanceled},
	TripInProgress: {TripFinished, TripCanceled},
}

// IsValid reports whether s is a known trip status.
func (s TripStatus) IsValid() bool {
	switch s {
	case TripOpen, TripInProgress, TripFinished, TripCanceled:
		return true
	}
	return false
}

// IsTerminal reports whether no transition may leave s.
func (s TripStatus) IsTerminal() bool {
	return s == TripFinished || s == TripCanceled
}

// CanTransitionTo reports whether the lifecycle allows moving from s to next.
func (s TripStatus) CanTransitionTo(next TripStatus) bool {
	for _, allowed := range tripTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// ParseTripStatus converts a raw string into a TripStatus.
func ParseTripStatus(s string) (TripStatus, error) {
	st := TripStatus(s)
	if !st.IsValid() {
		return "", fmt.Errorf("%w: unknown trip status %q", ErrValidation, s)
	}
	return st, nil
}

// CheckTransition validates moving t to next at instant now.
// Besides the transition table, starting a trip is only allowed once its
// departure time has been reached.
func (t Trip) CheckTransition(next TripStatus, now time.Time) error {
	if !next.IsValid() {
		return fmt.Errorf("%w: unknown trip status %q", ErrValidation, next)
	}
	if !t.Status.CanTransitionTo(next) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, t.Status, next)
	}
	if next == TripInProgress && now.Before(t.DepartureAt) {
		return fmt.Errorf("%w: trip cannot start before its departure time", ErrInvalidTransition)
	}
	return nil
}
