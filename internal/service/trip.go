package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/pkordes/carpool/backend/internal/domain"
	"github.com/pkordes/carpool/backend/internal/repo"
)

// TripService implements business logic for Trip operations, including the
// trip lifecycle state machine.
type TripService struct {
	tx       repo.Transactor
	trips    repo.TripRepo
	vehicles repo.VehicleRepo
	deps     Deps
	now      func() time.Time
}

// NewTripService constructs a TripService. vehicles is used to check that a
// trip's vehicle belongs to its driver.
func NewTripService(tx repo.Transactor, trips repo.TripRepo, vehicles repo.VehicleRepo, deps Deps) *TripService {
	return &TripService{tx: tx, trips: trips, vehicles: vehicles, deps: deps.withDefaults(), now: time.Now}
}

// Create validates and persists a new trip. Only drivers and admins may offer
// trips; a driver always offers as themselves. The trip starts OPEN with every
// seat available.
func (s *TripService) Create(ctx context.Context, caller domain.Principal, trip domain.Trip) (domain.Trip, error) {
	if caller.Role != domain.RoleDriver && !caller.IsAdmin() {
		return domain.Trip{}, fmt.Errorf("service.TripService.Create: %w: only drivers can offer trips", domain.ErrForbidden)
	}
	if err := ownedBy(caller, &trip.DriverID); err != nil {
		return domain.Trip{}, fmt.Errorf("service.TripService.Create: %w", err)
	}
	if trip.TotalSeats <= 0 {
		return domain.Trip{}, fmt.Errorf("%w: total_seats must be positive", domain.ErrValidation)
	}
	if err := validateTripFields(trip); err != nil {
		return domain.Trip{}, err
	}
	if err := s.checkVehicle(ctx, trip); err != nil {
		return domain.Trip{}, fmt.Errorf("service.TripService.Create: %w", err)
	}

	result, err := s.trips.Create(ctx, trip)
	if err != nil {
		return domain.Trip{}, fmt.Errorf("service.TripService.Create: %w", err)
	}
	return result, nil
}

// GetByID returns a single trip.
func (s *TripService) GetByID(ctx context.Context, id uuid.UUID) (domain.Trip, error) {
	trip, err := s.trips.GetByID(ctx, id)
	if err != nil {
		return domain.Trip{}, fmt.Errorf("service.TripService.GetByID: %w", err)
	}
	return trip, nil
}

// List returns a page of trips matching f. Always returns a non-nil slice.
func (s *TripService) List(ctx context.Context, f domain.TripFilter, p domain.PaginationParams) ([]domain.Trip, int64, error) {
	if f.Status != nil && !f.Status.IsValid() {
		return nil, 0, fmt.Errorf("%w: unknown trip status %q", domain.ErrValidation, *f.Status)
	}
	trips, total, err := s.trips.List(ctx, f, p)
	if err != nil {
		return nil, 0, fmt.Errorf("service.TripService.List: %w", err)
	}
	return nonNil(trips), total, nil
}

// Update edits route, vehicle, departure and price of an OPEN trip. Seats
// and status cannot be changed here.
func (s *TripService) Update(ctx context.Context, caller domain.Principal, trip domain.Trip) (domain.Trip, error) {
	current, err := s.trips.GetByID(ctx, trip.ID)
	if err != nil {
		return domain.Trip{}, fmt.Errorf("service.TripService.Update: %w", err)
	}
	if err := requireOwner(caller, current.DriverID); err != nil {
		return domain.Trip{}, fmt.Errorf("service.TripService.Update: %w", err)
	}
	if current.Status != domain.TripOpen {
		return domain.Trip{}, fmt.Errorf("service.TripService.Update: %w: only OPEN trips can be edited", domain.ErrInvalidTransition)
	}
	if err := validateTripFields(trip); err != nil {
		return domain.Trip{}, err
	}
	trip.DriverID = current.DriverID
	if err := s.checkVehicle(ctx, trip); err != nil {
		return domain.Trip{}, fmt.Errorf("service.TripService.Update: %w", err)
	}

	result, err := s.trips.Update(ctx, trip)
	if err != nil {
		return domain.Trip{}, fmt.Errorf("service.TripService.Update: %w", err)
	}
	return result, nil
}

// Delete removes a trip. The repo refuses while bookings reference it.
func (s *TripService) Delete(ctx context.Context, caller domain.Principal, id uuid.UUID) error {
	current, err := s.trips.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("service.TripService.Delete: %w", err)
	}
	if err := requireOwner(caller, current.DriverID); err != nil {
		return fmt.Errorf("service.TripService.Delete: %w", err)
	}
	if err := s.trips.Delete(ctx, id); err != nil {
		return fmt.Errorf("service.TripService.Delete: %w", err)
	}
	return nil
}

// Transition moves a trip to next under the trip row lock:
//
//	OPEN -> IN_PROGRESS   only at or after departure_at
//	IN_PROGRESS -> FINISHED
//	OPEN | IN_PROGRESS -> CANCELED
//
// Canceling cascades every PENDING or CONFIRMED booking to CANCELED and hands
// their seats back, so available_seats returns to total_seats.
func (s *TripService) Transition(ctx context.Context, caller domain.Principal, id uuid.UUID, next domain.TripStatus) (domain.Trip, error) {
	var (
		trip     domain.Trip
		from     domain.TripStatus
		canceled int64
	)
	err := s.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		current, err := r.Trips.GetByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if err := requireOwner(caller, current.DriverID); err != nil {
			return err
		}
		if err := current.CheckTransition(next, s.now()); err != nil {
			return err
		}
		from = current.Status

		trip, err = r.Trips.UpdateStatus(ctx, id, next)
		if err != nil {
			return err
		}
		if next != domain.TripCanceled {
			return nil
		}

		canceled, err = r.Passengers.CancelActiveByTrip(ctx, id)
		if err != nil || canceled == 0 {
			return err
		}
		trip, err = r.Trips.AdjustAvailableSeats(ctx, id, int(canceled))
		return err
	})
	if err != nil {
		return domain.Trip{}, fmt.Errorf("service.TripService.Transition: %w", err)
	}

	s.deps.Recorder.TripTransition(next)
	s.deps.Logger.InfoContext(ctx, "trip status changed",
		"trip_id", id, "from", from, "to", next, "bookings_canceled", canceled)
	s.deps.publish(ctx, domain.Event{
		Type:           domain.EventTripStatusChanged,
		TripID:         id,
		UserID:         ptr(caller.UserID),
		Status:         string(next),
		AvailableSeats: ptr(trip.AvailableSeats),
		OccurredAt:     s.now().UTC(),
	})
	return trip, nil
}

// checkVehicle verifies that an optional vehicle belongs to the trip's driver.
func (s *TripService) checkVehicle(ctx context.Context, trip domain.Trip) error {
	if trip.VehicleID == nil {
		return nil
	}
	v, err := s.vehicles.GetByID(ctx, *trip.VehicleID)
	if err != nil {
		return err
	}
	if v.DriverID != trip.DriverID {
		return fmt.Errorf("%w: vehicle does not belong to the driver", domain.ErrValidation)
	}
	return nil
}

// validateTripFields enforces rules common to Create and Update.
func validateTripFields(trip domain.Trip) error {
	if trip.RouteID == uuid.Nil {
		return fmt.Errorf("%w: route_id is required", domain.ErrValidation)
	}
	if trip.DepartureAt.IsZero() {
		return fmt.Errorf("%w: departure_at is required", domain.ErrValidation)
	}
	if trip.PricePerPerson < 0 {
		return fmt.Errorf("%w: price_per_person must not be negative", domain.ErrValidation)
	}
	return nil
}
