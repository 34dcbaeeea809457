package handler

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/pkordes/carpool/backend/internal/domain"
)

type vehicleRequest struct {
	DriverID *uuid.UUID `json:"driver_id"`
	Model    string     `json:"model" validate:"required,max=80"`
	Plate    string     `json:"plate" validate:"required,max=10"`
	Color    string     `json:"color" validate:"max=30"`
	Year     *int       `json:"year" validate:"omitempty,gte=1900,lte=2100"`
}

func (req vehicleRequest) toDomain() domain.Vehicle {
	v := domain.Vehicle{Model: req.Model, Plate: req.Plate, Color: req.Color, Year: req.Year}
	if req.DriverID != nil {
		v.DriverID = *req.DriverID
	}
	return v
}

func (s *Server) listVehicles(w http.ResponseWriter, r *http.Request) {
	s.listVehiclesWith(w, r, domain.VehicleFilter{})
}

func (s *Server) listVehiclesByDriver(w http.ResponseWriter, r *http.Request) {
	driverID, err := pathUUID(r, "driverId")
	if err != nil {
		s.errors.handle(w, r, err)
		return
	}
	s.listVehiclesWith(w, r, domain.VehicleFilter{DriverID: &driverID})
}

func (s *Server) listVehiclesWith(w http.ResponseWriter, r *http.Request, f domain.VehicleFilter) {
	p, err := pagination(r)
	if err != nil {
		s.errors.handle(w, r, err)
		return
	}
	out, total, err := s.svc.Vehicles.List(r.Context(), f, p)
	if err != nil {
		s.errors.handle(w, r, err)
		return
	}
	writePage(w, out, total, p)
}

func (s *Server) createVehicle(w http.ResponseWriter, r *http.Request) {
	var req vehicleRequest
	if err := readJSON(r, &req); err != nil {
		s.errors.handle(w, r, err)
		return
	}
	v, err := s.svc.Vehicles.Create(r.Context(), caller(r), req.toDomain())
	if err != nil {
		s.errors.handle(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, v)
}

func (s *Server) getVehicle(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		s.errors.handle(w, r, err)
		return
	}
	v, err := s.svc.Vehicles.GetByID(r.Context(), id)
	if err != nil {
		s.errors.handle(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (s *Server) updateVehicle(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		s.errors.handle(w, r, err)
		return
	}
	var req vehicleRequest
	if err := readJSON(r, &req); err != nil {
		s.errors.handle(w, r, err)
		return
	}
	v := req.toDomain()
	v.ID = id
	v, err = s.svc.Vehicles.Update(r.Context(), caller(r), v)
	if err != nil {
		s.errors.handle(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (s *Server) deleteVehicle(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		s.errors.handle(w, r, err)
		return
	}
	if err := s.svc.Vehicles.Delete(r.Context(), caller(r), id); err != nil {
		s.errors.handle(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
