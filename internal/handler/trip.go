package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/pkordes/carpool/backend/internal/domain"
)

type createTripRequest struct {
	DriverID       *uuid.UUID `json:"driver_id"`
	RouteID        uuid.UUID  `json:"route_id" validate:"required"`
	VehicleID      *uuid.UUID `json:"vehicle_id"`
	DepartureAt    time.Time  `json:"departure_at" validate:"required"`
	TotalSeats     int        `json:"total_seats" validate:"required,gte=1,lte=8"`
	PricePerPerson float64    `json:"price_per_person" validate:"gte=0"`
}

// updateTripRequest carries only the editable fields of a trip.
type updateTripRequest struct {
	RouteID        uuid.UUID  `json:"route_id" validate:"required"`
	VehicleID      *uuid.UUID `json:"vehicle_id"`
	DepartureAt    time.Time  `json:"departure_at" validate:"required"`
	PricePerPerson float64    `json:"price_per_person" validate:"gte=0"`
}

type tripStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=OPEN IN_PROGRESS FINISHED CANCELED"`
}

func (s *Server) listTrips(w http.ResponseWriter, r *http.Request) {
	s.listTripsWith(w, r, domain.TripFilter{})
}

func (s *Server) listTripsByDriver(w http.ResponseWriter, r *http.Request) {
	driverID, err := pathUUID(r, "driverId")
	if err != nil {
		s.errors.handle(w, r, err)
		return
	}
	s.listTripsWith(w, r, domain.TripFilter{DriverID: &driverID})
}

func (s *Server) listTripsByStatus(w http.ResponseWriter, r *http.Request) {
	status, err := domain.ParseTripStatus(chi.URLParam(r, "status"))
	if err != nil {
		s.errors.handle(w, r, err)
		return
	}
	s.listTripsWith(w, r, domain.TripFilter{Status: &status})
}

func (s *Server) listTripsWith(w http.ResponseWriter, r *http.Request, f domain.TripFilter) {
	p, err := pagination(r)
	if err != nil {
		s.errors.handle(w, r, err)
		return
	}
	trips, total, err := s.svc.Trips.List(r.Context(), f, p)
	if err != nil {
		s.errors.handle(w, r, err)
		return
	}
	writePage(w, trips, total, p)
}

// createTrip handles POST /trips.
func (s *Server) createTrip(w http.ResponseWriter, r *http.Request) {
	var req createTripRequest
	if err := readJSON(r, &req); err != nil {
		s.errors.handle(w, r, err)
		return
	}
	trip := domain.Trip{
		RouteID:        req.RouteID,
		VehicleID:      req.VehicleID,
		DepartureAt:    req.DepartureAt,
		TotalSeats:     req.TotalSeats,
		PricePerPerson: req.PricePerPerson,
	}
	if req.DriverID != nil {
		trip.DriverID = *req.DriverID
	}
	created, err := s.svc.Trips.Create(r.Context(), caller(r), trip)
	if err != nil {
		s.errors.handle(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// getTrip handles GET /trips/{id}.
func (s *Server) getTrip(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		s.errors.handle(w, r, err)
		return
	}
	trip, err := s.svc.Trips.GetByID(r.Context(), id)
	if err != nil {
		s.errors.handle(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, trip)
}

// updateTrip handles PUT /trips/{id}.
func (s *Server) updateTrip(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		s.errors.handle(w, r, err)
		return
	}
	var req updateTripRequest
	if err := readJSON(r, &req); err != nil {
		s.errors.handle(w, r, err)
		return
	}
	updated, err := s.svc.Trips.Update(r.Context(), caller(r), domain.Trip{
		ID:             id,
		RouteID:        req.RouteID,
		VehicleID:      req.VehicleID,
		DepartureAt:    req.DepartureAt,
		PricePerPerson: req.PricePerPerson,
	})
	if err != nil {
		s.errors.handle(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// deleteTrip handles DELETE /trips/{id}.
func (s *Server) deleteTrip(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		s.errors.handle(w, r, err)
		return
	}
	if err := s.svc.Trips.Delete(r.Context(), caller(r), id); err != nil {
		s.errors.handle(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// setTripStatus handles PATCH /trips/{id}/status.
func (s *Server) setTripStatus(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		s.errors.handle(w, r, err)
		return
	}
	var req tripStatusRequest
	if err := readJSON(r, &req); err != nil {
		s.errors.handle(w, r, err)
		return
	}
	trip, err := s.svc.Trips.Transition(r.Context(), caller(r), id, domain.TripStatus(req.Status))
	if err != nil {
		s.errors.handle(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, trip)
}

// tripLive handles GET /trips/{id}/live. Authentication happens inside the
// WebSocket, since browsers cannot set headers on the upgrade request.
func (s *Server) tripLive(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		s.errors.handle(w, r, err)
		return
	}
	s.opts.Live.ServeTrip(w, r, id)
}
