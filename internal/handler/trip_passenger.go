package handler

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/pkordes/carpool/backend/internal/domain"
)

type reserveSeatRequest struct {
	TripID      uuid.UUID  `json:"trip_id" validate:"required"`
	PassengerID *uuid.UUID `json:"passenger_id"`
}

type bookingStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=PENDING CONFIRMED CANCELED"`
}

func (s *Server) listBookings(w http.ResponseWriter, r *http.Request) {
	s.listBookingsWith(w, r, domain.TripPassengerFilter{})
}

func (s *Server) listBookingsByTrip(w http.ResponseWriter, r *http.Request) {
	tripID, err := pathUUID(r, "tripId")
	if err != nil {
		s.errors.handle(w, r, err)
		return
	}
	s.listBookingsWith(w, r, domain.TripPassengerFilter{TripID: &tripID})
}

func (s *Server) listBookingsByPassenger(w http.ResponseWriter, r *http.Request) {
	passengerID, err := pathUUID(r, "passengerId")
	if err != nil {
		s.errors.handle(w, r, err)
		return
	}
	s.listBookingsWith(w, r, domain.TripPassengerFilter{PassengerID: &passengerID})
}

func (s *Server) listBookingsWith(w http.ResponseWriter, r *http.Request, f domain.TripPassengerFilter) {
	p, err := pagination(r)
	if err != nil {
		s.errors.handle(w, r, err)
		return
	}
	out, total, err := s.svc.Bookings.List(r.Context(), f, p)
	if err != nil {
		s.errors.handle(w, r, err)
		return
	}
	writePage(w, out, total, p)
}

// reserveSeat handles POST /trip-passengers. The passenger defaults to the
// caller.
func (s *Server) reserveSeat(w http.ResponseWriter, r *http.Request) {
	var req reserveSeatRequest
	if err := readJSON(r, &req); err != nil {
		s.errors.handle(w, r, err)
		return
	}
	who := caller(r)
	passengerID := who.UserID
	if req.PassengerID != nil {
		passengerID = *req.PassengerID
	}
	booking, err := s.svc.Bookings.Reserve(r.Context(), who, req.TripID, passengerID)
	if err != nil {
		s.errors.handle(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, booking)
}

func (s *Server) getBooking(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		s.errors.handle(w, r, err)
		return
	}
	booking, err := s.svc.Bookings.GetByID(r.Context(), id)
	if err != nil {
		s.errors.handle(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, booking)
}

// setBookingStatus handles PUT /trip-passengers/{id}.
func (s *Server) setBookingStatus(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		s.errors.handle(w, r, err)
		return
	}
	var req bookingStatusRequest
	if err := readJSON(r, &req); err != nil {
		s.errors.handle(w, r, err)
		return
	}
	booking, err := s.svc.Bookings.SetStatus(r.Context(), caller(r), id, domain.BookingStatus(req.Status))
	if err != nil {
		s.errors.handle(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, booking)
}

// cancelBooking handles PATCH /trip-passengers/{id}/cancel.
func (s *Server) cancelBooking(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		s.errors.handle(w, r, err)
		return
	}
	booking, err := s.svc.Bookings.Release(r.Context(), caller(r), id)
	if err != nil {
		s.errors.handle(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, booking)
}

func (s *Server) deleteBooking(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		s.errors.handle(w, r, err)
		return
	}
	if err := s.svc.Bookings.Delete(r.Context(), caller(r), id); err != nil {
		s.errors.handle(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
