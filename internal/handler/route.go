package handler

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/pkordes/carpool/backend/internal/domain"
)

type routeRequest struct {
	Origin      string     `json:"origin" validate:"required,max=200"`
	Destination string     `json:"destination" validate:"required,max=200"`
	DistanceKm  *float64   `json:"distance_km" validate:"omitempty,gt=0"`
	CreatedByID *uuid.UUID `json:"created_by_id"`
}

func (req routeRequest) toDomain() domain.Route {
	rt := domain.Route{Origin: req.Origin, Destination: req.Destination, DistanceKm: req.DistanceKm}
	if req.CreatedByID != nil {
		rt.CreatedByID = *req.CreatedByID
	}
	return rt
}

func (s *Server) listRoutes(w http.ResponseWriter, r *http.Request) {
	s.listRoutesWith(w, r, domain.RouteFilter{})
}

func (s *Server) listRoutesByCreator(w http.ResponseWriter, r *http.Request) {
	userID, err := pathUUID(r, "createdById")
	if err != nil {
		s.errors.handle(w, r, err)
		return
	}
	s.listRoutesWith(w, r, domain.RouteFilter{CreatedByID: &userID})
}

func (s *Server) listRoutesWith(w http.ResponseWriter, r *http.Request, f domain.RouteFilter) {
	p, err := pagination(r)
	if err != nil {
		s.errors.handle(w, r, err)
		return
	}
	out, total, err := s.svc.Routes.List(r.Context(), f, p)
	if err != nil {
		s.errors.handle(w, r, err)
		return
	}
	writePage(w, out, total, p)
}

func (s *Server) createRoute(w http.ResponseWriter, r *http.Request) {
	var req routeRequest
	if err := readJSON(r, &req); err != nil {
		s.errors.handle(w, r, err)
		return
	}
	rt, err := s.svc.Routes.Create(r.Context(), caller(r), req.toDomain())
	if err != nil {
		s.errors.handle(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, rt)
}

func (s *Server) getRoute(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		s.errors.handle(w, r, err)
		return
	}
	rt, err := s.svc.Routes.GetByID(r.Context(), id)
	if err != nil {
		s.errors.handle(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rt)
}

func (s *Server) updateRoute(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		s.errors.handle(w, r, err)
		return
	}
	var req routeRequest
	if err := readJSON(r, &req); err != nil {
		s.errors.handle(w, r, err)
		return
	}
	rt := req.toDomain()
	rt.ID = id
	rt, err = s.svc.Routes.Update(r.Context(), caller(r), rt)
	if err != nil {
		s.errors.handle(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rt)
}

func (s *Server) deleteRoute(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		s.errors.handle(w, r, err)
		return
	}
	if err := s.svc.Routes.Delete(r.Context(), caller(r), id); err != nil {
		s.errors.handle(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
