package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/pkordes/carpool/backend/internal/domain"
	"github.com/pkordes/carpool/backend/internal/repo"
)

// TripAccess decides who may follow a trip's live events: its driver, a
// passenger with a PENDING or CONFIRMED booking, or an ADMIN.
type TripAccess struct {
	trips      repo.TripRepo
	passengers repo.TripPassengerRepo
}

// NewTripAccess constructs a TripAccess.
func NewTripAccess(trips repo.TripRepo, passengers repo.TripPassengerRepo) *TripAccess {
	return &TripAccess{trips: trips, passengers: passengers}
}

// CanFollow returns nil when caller may follow tripID, domain.ErrNotFound
// for an unknown trip and domain.ErrForbidden otherwise.
func (a *TripAccess) CanFollow(ctx context.Context, caller domain.Principal, tripID uuid.UUID) error {
	trip, err := a.trips.GetByID(ctx, tripID)
	if err != nil {
		return fmt.Errorf("service.TripAccess.CanFollow: %w", err)
	}
	if caller.IsAdmin() || trip.DriverID == caller.UserID {
		return nil
	}
	active, err := a.passengers.HasActive(ctx, tripID, caller.UserID)
	if err != nil {
		return fmt.Errorf("service.TripAccess.CanFollow: %w", err)
	}
	if !active {
		return fmt.Errorf("%w: not a member of this trip", domain.ErrForbidden)
	}
	return nil
}
