package handler

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/pkordes/carpool/backend/internal/domain"
)

type createEvaluationRequest struct {
	TripID      uuid.UUID  `json:"trip_id" validate:"required"`
	EvaluatorID *uuid.UUID `json:"evaluator_id"`
	EvaluatedID uuid.UUID  `json:"evaluated_id" validate:"required"`
	Rating      int        `json:"rating" validate:"required,gte=1,lte=5"`
	Comment     string     `json:"comment" validate:"max=1000"`
}

type updateEvaluationRequest struct {
	Rating  int    `json:"rating" validate:"required,gte=1,lte=5"`
	Comment string `json:"comment" validate:"max=1000"`
}

func (s *Server) listEvaluations(w http.ResponseWriter, r *http.Request) {
	s.listEvaluationsWith(w, r, domain.EvaluationFilter{})
}

func (s *Server) listEvaluationsByTrip(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "tripId")
	if err != nil {
		s.errors.handle(w, r, err)
		return
	}
	s.listEvaluationsWith(w, r, domain.EvaluationFilter{TripID: &id})
}

func (s *Server) listEvaluationsByEvaluated(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "evaluatedId")
	if err != nil {
		s.errors.handle(w, r, err)
		return
	}
	s.listEvaluationsWith(w, r, domain.EvaluationFilter{EvaluatedID: &id})
}

func (s *Server) listEvaluationsByEvaluator(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "evaluatorId")
	if err != nil {
		s.errors.handle(w, r, err)
		return
	}
	s.listEvaluationsWith(w, r, domain.EvaluationFilter{EvaluatorID: &id})
}

func (s *Server) listEvaluationsWith(w http.ResponseWriter, r *http.Request, f domain.EvaluationFilter) {
	p, err := pagination(r)
	if err != nil {
		s.errors.handle(w, r, err)
		return
	}
	out, total, err := s.svc.Evaluations.List(r.Context(), f, p)
	if err != nil {
		s.errors.handle(w, r, err)
		return
	}
	writePage(w, out, total, p)
}

func (s *Server) createEvaluation(w http.ResponseWriter, r *http.Request) {
	var req createEvaluationRequest
	if err := readJSON(r, &req); err != nil {
		s.errors.handle(w, r, err)
		return
	}
	e := domain.Evaluation{
		TripID:      req.TripID,
		EvaluatedID: req.EvaluatedID,
		Rating:      req.Rating,
		Comment:     req.Comment,
	}
	if req.EvaluatorID != nil {
		e.EvaluatorID = *req.EvaluatorID
	}
	e, err := s.svc.Evaluations.Create(r.Context(), caller(r), e)
	if err != nil {
		s.errors.handle(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, e)
}

func (s *Server) getEvaluation(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		s.errors.handle(w, r, err)
		return
	}
	e, err := s.svc.Evaluations.GetByID(r.Context(), id)
	if err != nil {
		s.errors.handle(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (s *Server) updateEvaluation(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		s.errors.handle(w, r, err)
		return
	}
	var req updateEvaluationRequest
	if err := readJSON(r, &req); err != nil {
		s.errors.handle(w, r, err)
		return
	}
	e, err := s.svc.Evaluations.Update(r.Context(), caller(r), domain.Evaluation{ID: id, Rating: req.Rating, Comment: req.Comment})
	if err != nil {
		s.errors.handle(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (s *Server) deleteEvaluation(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		s.errors.handle(w, r, err)
		return
	}
	if err := s.svc.Evaluations.Delete(r.Context(), caller(r), id); err != nil {
		s.errors.handle(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
