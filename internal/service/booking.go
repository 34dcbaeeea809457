package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/pkordes/carpool/backend/internal/domain"
	"github.com/pkordes/carpool/backend/internal/repo"
)

// Reservation outcomes reported to the Recorder.
const (
	outcomeOK        = "ok"
	outcomeFull      = "full"
	outcomeNotOpen   = "not_open"
	outcomeDuplicate = "duplicate"
	outcomeError     = "error"
)

// BookingService is the seat reservation engine. Every operation that moves
// a trip's seat counter locks the trip row first, so reservations and
// releases on one trip are serialised and the counter always equals
// total_seats minus the seat-holding bookings.
type BookingService struct {
	tx         repo.Transactor
	trips      repo.TripRepo
	passengers repo.TripPassengerRepo
	deps       Deps
	now        func() time.Time
}

// NewBookingService constructs a BookingService. trips and passengers serve
// the read paths; all writes go through tx.
func NewBookingService(tx repo.Transactor, trips repo.TripRepo, passengers repo.TripPassengerRepo, deps Deps) *BookingService {
	return &BookingService{tx: tx, trips: trips, passengers: passengers, deps: deps.withDefaults(), now: time.Now}
}

// Reserve books a confirmed seat for passengerID on tripID. A zero
// passengerID books for the caller; booking for someone else needs ADMIN.
//
// Fails with domain.ErrTripNotOpen, domain.ErrDuplicateBooking or
// domain.ErrTripFull when the matching precondition does not hold.
func (s *BookingService) Reserve(ctx context.Context, caller domain.Principal, tripID, passengerID uuid.UUID) (domain.TripPassenger, error) {
	if err := ownedBy(caller, &passengerID); err != nil {
		return domain.TripPassenger{}, fmt.Errorf("service.BookingService.Reserve: %w", err)
	}

	booking, trip, err := s.reserve(ctx, tripID, passengerID, domain.BookingConfirmed)
	s.deps.Recorder.Reservation(reservationOutcome(err))
	if err != nil {
		return domain.TripPassenger{}, fmt.Errorf("service.BookingService.Reserve: %w", err)
	}

	s.deps.Logger.InfoContext(ctx, "seat reserved",
		"trip_id", tripID, "trip_passenger_id", booking.ID, "available_seats", trip.AvailableSeats)
	s.deps.publish(ctx, bookingEvent(domain.EventBookingReserved, booking, &trip, s.now()))
	return booking, nil
}

// Hold reserves a seat in PENDING state while a payment is outstanding. The
// seat is consumed exactly as by Reserve; Confirm or Release settles it.
func (s *BookingService) Hold(ctx context.Context, tripID, passengerID uuid.UUID) (domain.TripPassenger, domain.Trip, error) {
	booking, trip, err := s.reserve(ctx, tripID, passengerID, domain.BookingPending)
	s.deps.Recorder.Reservation(reservationOutcome(err))
	if err != nil {
		return domain.TripPassenger{}, domain.Trip{}, fmt.Errorf("service.BookingService.Hold: %w", err)
	}

	s.deps.Logger.InfoContext(ctx, "seat held",
		"trip_id", tripID, "trip_passenger_id", booking.ID, "available_seats", trip.AvailableSeats)
	s.deps.publish(ctx, bookingEvent(domain.EventBookingHeld, booking, &trip, s.now()))
	return booking, trip, nil
}

// reserve is the transactional core shared by Reserve and Hold.
func (s *BookingService) reserve(ctx context.Context, tripID, passengerID uuid.UUID, status domain.BookingStatus) (domain.TripPassenger, domain.Trip, error) {
	var (
		booking domain.TripPassenger
		trip    domain.Trip
	)
	err := s.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		t, err := r.Trips.GetByIDForUpdate(ctx, tripID)
		if err != nil {
			return err
		}
		if t.Status != domain.TripOpen {
			return domain.ErrTripNotOpen
		}
		if t.DriverID == passengerID {
			return fmt.Errorf("%w: a driver cannot book a seat on their own trip", domain.ErrValidation)
		}

		active, err := r.Passengers.HasActive(ctx, tripID, passengerID)
		if err != nil {
			return err
		}
		if active {
			return domain.ErrDuplicateBooking
		}
		if t.AvailableSeats <= 0 {
			return domain.ErrTripFull
		}

		booking, err = r.Passengers.Create(ctx, domain.TripPassenger{
			TripID:      tripID,
			PassengerID: passengerID,
			Status:      status,
		})
		if err != nil {
			return err
		}
		trip, err = r.Trips.AdjustAvailableSeats(ctx, tripID, -1)
		return err
	})
	return booking, trip, err
}

// Release cancels a PENDING or CONFIRMED booking and returns its seat.
// Releasing an already canceled booking fails with domain.ErrAlreadyCanceled
// and leaves the counter untouched. The passenger, the trip's driver or an
// admin may release.
func (s *BookingService) Release(ctx context.Context, caller domain.Principal, id uuid.UUID) (domain.TripPassenger, error) {
	booking, trip, err := s.release(ctx, &caller, id)
	if err != nil {
		return domain.TripPassenger{}, fmt.Errorf("service.BookingService.Release: %w", err)
	}
	s.released(ctx, booking, trip)
	return booking, nil
}

// ReleaseHold cancels a PENDING hold whose payment did not go through.
// A hold that has since been confirmed is left alone and the call fails with
// domain.ErrInvalidTransition.
func (s *BookingService) ReleaseHold(ctx context.Context, id uuid.UUID) (domain.TripPassenger, error) {
	var (
		booking domain.TripPassenger
		trip    domain.Trip
	)
	err := s.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		var err error
		booking, trip, err = releaseIn(ctx, r, nil, id, true)
		return err
	})
	if err != nil {
		return domain.TripPassenger{}, fmt.Errorf("service.BookingService.ReleaseHold: %w", err)
	}
	s.released(ctx, booking, trip)
	return booking, nil
}

func (s *BookingService) released(ctx context.Context, booking domain.TripPassenger, trip domain.Trip) {
	s.deps.Recorder.Release()
	s.deps.Logger.InfoContext(ctx, "seat released",
		"trip_id", trip.ID, "trip_passenger_id", booking.ID, "available_seats", trip.AvailableSeats)
	s.deps.publish(ctx, bookingEvent(domain.EventBookingReleased, booking, &trip, s.now()))
}

func (s *BookingService) release(ctx context.Context, caller *domain.Principal, id uuid.UUID) (domain.TripPassenger, domain.Trip, error) {
	var (
		booking domain.TripPassenger
		trip    domain.Trip
	)
	err := s.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		var err error
		booking, trip, err = releaseIn(ctx, r, caller, id, false)
		return err
	})
	return booking, trip, err
}

// releaseIn cancels a booking inside an open transaction. It locks the trip,
// then the booking, the same order as reserve and the lifecycle cascade.
// With pendingOnly a CONFIRMED booking fails with domain.ErrInvalidTransition.
func releaseIn(ctx context.Context, r repo.TxRepos, caller *domain.Principal, id uuid.UUID, pendingOnly bool) (domain.TripPassenger, domain.Trip, error) {
	current, err := r.Passengers.GetByID(ctx, id)
	if err != nil {
		return domain.TripPassenger{}, domain.Trip{}, err
	}
	t, err := r.Trips.GetByIDForUpdate(ctx, current.TripID)
	if err != nil {
		return domain.TripPassenger{}, domain.Trip{}, err
	}
	if caller != nil && !caller.CanActFor(current.PassengerID) && caller.UserID != t.DriverID {
		return domain.TripPassenger{}, domain.Trip{}, fmt.Errorf("%w: insufficient permission", domain.ErrForbidden)
	}
	current, err = r.Passengers.GetByIDForUpdate(ctx, id)
	if err != nil {
		return domain.TripPassenger{}, domain.Trip{}, err
	}
	if !current.Status.HoldsSeat() {
		return domain.TripPassenger{}, domain.Trip{}, domain.ErrAlreadyCanceled
	}
	if pendingOnly && current.Status != domain.BookingPending {
		return domain.TripPassenger{}, domain.Trip{}, fmt.Errorf("%w: booking is %s", domain.ErrInvalidTransition, current.Status)
	}
	if t.Status.IsTerminal() {
		return domain.TripPassenger{}, domain.Trip{}, fmt.Errorf("%w: trip is %s", domain.ErrInvalidTransition, t.Status)
	}

	booking, err := r.Passengers.UpdateStatus(ctx, id, domain.BookingCanceled)
	if err != nil {
		return domain.TripPassenger{}, domain.Trip{}, err
	}
	trip, err := r.Trips.AdjustAvailableSeats(ctx, t.ID, +1)
	return booking, trip, err
}

// Confirm turns a PENDING hold into a CONFIRMED booking. The seat was
// already taken by the hold, so the counter does not move. Confirming an
// already confirmed booking returns it unchanged.
func (s *BookingService) Confirm(ctx context.Context, id uuid.UUID) (domain.TripPassenger, error) {
	var (
		booking domain.TripPassenger
		changed bool
	)
	err := s.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		var err error
		booking, changed, err = confirmIn(ctx, r, id)
		return err
	})
	if err != nil {
		return domain.TripPassenger{}, fmt.Errorf("service.BookingService.Confirm: %w", err)
	}
	if changed {
		s.confirmed(ctx, booking)
	}
	return booking, nil
}

func (s *BookingService) confirmed(ctx context.Context, booking domain.TripPassenger) {
	s.deps.Logger.InfoContext(ctx, "booking confirmed", "trip_id", booking.TripID, "trip_passenger_id", booking.ID)
	s.deps.publish(ctx, bookingEvent(domain.EventBookingConfirmed, booking, nil, s.now()))
}

func confirmIn(ctx context.Context, r repo.TxRepos, id uuid.UUID) (domain.TripPassenger, bool, error) {
	current, err := r.Passengers.GetByID(ctx, id)
	if err != nil {
		return domain.TripPassenger{}, false, err
	}
	if _, err := r.Trips.GetByIDForUpdate(ctx, current.TripID); err != nil {
		return domain.TripPassenger{}, false, err
	}
	current, err = r.Passengers.GetByIDForUpdate(ctx, id)
	if err != nil {
		return domain.TripPassenger{}, false, err
	}
	switch current.Status {
	case domain.BookingConfirmed:
		return current, false, nil
	case domain.BookingCanceled:
		return domain.TripPassenger{}, false, domain.ErrAlreadyCanceled
	}
	booking, err := r.Passengers.UpdateStatus(ctx, id, domain.BookingConfirmed)
	return booking, err == nil, err
}

// settlement is what a payment outcome did to a booking, reported once the
// surrounding transaction has committed.
type settlement struct {
	booking domain.TripPassenger
	trip    domain.Trip
	event   domain.EventType
}

// settleIn applies a payment outcome to the booking it pays for, inside the
// caller's transaction:
//
//	approved  PENDING hold becomes CONFIRMED
//	failed    PENDING hold is released; a CONFIRMED booking is kept
//	refunded  the booking is released, whatever its status
//
// Outcomes that can no longer move the booking are logged, not returned, so
// the money side is still recorded.
func (s *BookingService) settleIn(ctx context.Context, r repo.TxRepos, id uuid.UUID, outcome domain.ChargeOutcome) (settlement, error) {
	var (
		st  settlement
		err error
	)
	switch outcome {
	case domain.OutcomeApproved:
		var changed bool
		st.booking, changed, err = confirmIn(ctx, r, id)
		if changed {
			st.event = domain.EventBookingConfirmed
		}
	case domain.OutcomeFailed, domain.OutcomeRefunded:
		st.booking, st.trip, err = releaseIn(ctx, r, nil, id, outcome == domain.OutcomeFailed)
		if err == nil {
			st.event = domain.EventBookingReleased
		}
	default:
		return settlement{}, nil
	}

	switch {
	case err == nil:
		return st, nil
	case errors.Is(err, domain.ErrAlreadyCanceled) && outcome == domain.OutcomeApproved:
		s.deps.Logger.WarnContext(ctx, "payment approved for a released hold, refund required", "trip_passenger_id", id)
	case errors.Is(err, domain.ErrAlreadyCanceled), errors.Is(err, domain.ErrNotFound):
	case errors.Is(err, domain.ErrInvalidTransition):
		s.deps.Logger.WarnContext(ctx, "payment outcome left booking unchanged", "trip_passenger_id", id, "reason", err)
	default:
		return settlement{}, err
	}
	return settlement{}, nil
}

// announce reports a committed settlement.
func (s *BookingService) announce(ctx context.Context, st settlement) {
	switch st.event {
	case domain.EventBookingConfirmed:
		s.confirmed(ctx, st.booking)
	case domain.EventBookingReleased:
		s.released(ctx, st.booking, st.trip)
	}
}

// SetStatus applies a client-requested status change: CANCELED releases the
// seat, CONFIRMED confirms a hold (driver or admin only). Anything else is
// an invalid transition.
func (s *BookingService) SetStatus(ctx context.Context, caller domain.Principal, id uuid.UUID, status domain.BookingStatus) (domain.TripPassenger, error) {
	switch status {
	case domain.BookingCanceled:
		return s.Release(ctx, caller, id)
	case domain.BookingConfirmed:
		current, err := s.passengers.GetByID(ctx, id)
		if err != nil {
			return domain.TripPassenger{}, fmt.Errorf("service.BookingService.SetStatus: %w", err)
		}
		trip, err := s.trips.GetByID(ctx, current.TripID)
		if err != nil {
			return domain.TripPassenger{}, fmt.Errorf("service.BookingService.SetStatus: %w", err)
		}
		if err := requireOwner(caller, trip.DriverID); err != nil {
			return domain.TripPassenger{}, fmt.Errorf("service.BookingService.SetStatus: %w", err)
		}
		return s.Confirm(ctx, id)
	}
	return domain.TripPassenger{}, fmt.Errorf("service.BookingService.SetStatus: %w: cannot set status %s", domain.ErrInvalidTransition, status)
}

// Delete removes a booking, first returning its seat if it still holds one.
func (s *BookingService) Delete(ctx context.Context, caller domain.Principal, id uuid.UUID) error {
	var (
		booking domain.TripPassenger
		trip    domain.Trip
		freed   bool
	)
	err := s.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		current, err := r.Passengers.GetByID(ctx, id)
		if err != nil {
			return err
		}
		t, err := r.Trips.GetByIDForUpdate(ctx, current.TripID)
		if err != nil {
			return err
		}
		if !caller.CanActFor(current.PassengerID) && caller.UserID != t.DriverID {
			return fmt.Errorf("%w: insufficient permission", domain.ErrForbidden)
		}
		booking, err = r.Passengers.GetByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if err := r.Passengers.Delete(ctx, id); err != nil {
			return err
		}
		trip = t
		if booking.Status.HoldsSeat() {
			freed = true
			trip, err = r.Trips.AdjustAvailableSeats(ctx, t.ID, +1)
		}
		return err
	})
	if err != nil {
		return fmt.Errorf("service.BookingService.Delete: %w", err)
	}
	if freed {
		booking.Status = domain.BookingCanceled
		s.released(ctx, booking, trip)
	}
	return nil
}

// GetByID returns a single booking.
func (s *BookingService) GetByID(ctx context.Context, id uuid.UUID) (domain.TripPassenger, error) {
	tp, err := s.passengers.GetByID(ctx, id)
	if err != nil {
		return domain.TripPassenger{}, fmt.Errorf("service.BookingService.GetByID: %w", err)
	}
	return tp, nil
}

// List returns a page of bookings. Always returns a non-nil slice.
func (s *BookingService) List(ctx context.Context, f domain.TripPassengerFilter, p domain.PaginationParams) ([]domain.TripPassenger, int64, error) {
	out, total, err := s.passengers.List(ctx, f, p)
	if err != nil {
		return nil, 0, fmt.Errorf("service.BookingService.List: %w", err)
	}
	return nonNil(out), total, nil
}

// Manifest returns the passenger list of a trip. Only the trip's driver and
// admins may read it.
func (s *BookingService) Manifest(ctx context.Context, caller domain.Principal, tripID uuid.UUID) ([]domain.ManifestRow, error) {
	trip, err := s.trips.GetByID(ctx, tripID)
	if err != nil {
		return nil, fmt.Errorf("service.BookingService.Manifest: %w", err)
	}
	if err := requireOwner(caller, trip.DriverID); err != nil {
		return nil, fmt.Errorf("service.BookingService.Manifest: %w", err)
	}
	rows, err := s.passengers.Manifest(ctx, tripID)
	if err != nil {
		return nil, fmt.Errorf("service.BookingService.Manifest: %w", err)
	}
	return nonNil(rows), nil
}

func reservationOutcome(err error) string {
	switch {
	case err == nil:
		return outcomeOK
	case errors.Is(err, domain.ErrTripFull):
		return outcomeFull
	case errors.Is(err, domain.ErrTripNotOpen):
		return outcomeNotOpen
	case errors.Is(err, domain.ErrDuplicateBooking):
		return outcomeDuplicate
	}
	return outcomeError
}

func bookingEvent(typ domain.EventType, b domain.TripPassenger, trip *domain.Trip, at time.Time) domain.Event {
	e := domain.Event{
		Type:            typ,
		TripID:          b.TripID,
		TripPassengerID: ptr(b.ID),
		UserID:          ptr(b.PassengerID),
		Status:          string(b.Status),
		OccurredAt:      at.UTC(),
	}
	if trip != nil {
		e.AvailableSeats = ptr(trip.AvailableSeats)
	}
	return e
}
