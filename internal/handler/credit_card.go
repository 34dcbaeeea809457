package handler

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/pkordes/carpool/backend/internal/domain"
	"github.com/pkordes/carpool/backend/internal/service"
)

type createCardRequest struct {
	UserID         *uuid.UUID `json:"user_id"`
	Number         string     `json:"number" validate:"required,max=32"`
	Brand          string     `json:"brand" validate:"required,max=30"`
	Token          string     `json:"token" validate:"max=255"`
	ExpirationDate string     `json:"expiration_date" validate:"required"`
	Nickname       string     `json:"nickname" validate:"max=50"`
}

type updateCardRequest struct {
	Brand          string `json:"brand" validate:"required,max=30"`
	ExpirationDate string `json:"expiration_date" validate:"required"`
	Nickname       string `json:"nickname" validate:"max=50"`
}

func (s *Server) listCards(w http.ResponseWriter, r *http.Request) {
	s.listCardsWith(w, r, domain.CreditCardFilter{})
}

func (s *Server) listCardsByUser(w http.ResponseWriter, r *http.Request) {
	userID, err := pathUUID(r, "userId")
	if err != nil {
		s.errors.handle(w, r, err)
		return
	}
	s.listCardsWith(w, r, domain.CreditCardFilter{UserID: &userID})
}

func (s *Server) listCardsWith(w http.ResponseWriter, r *http.Request, f domain.CreditCardFilter) {
	p, err := pagination(r)
	if err != nil {
		s.errors.handle(w, r, err)
		return
	}
	out, total, err := s.svc.CreditCards.List(r.Context(), caller(r), f, p)
	if err != nil {
		s.errors.handle(w, r, err)
		return
	}
	writePage(w, out, total, p)
}

func (s *Server) createCard(w http.ResponseWriter, r *http.Request) {
	var req createCardRequest
	if err := readJSON(r, &req); err != nil {
		s.errors.handle(w, r, err)
		return
	}
	in := service.NewCreditCard{
		Number:         req.Number,
		Brand:          req.Brand,
		Token:          req.Token,
		ExpirationDate: req.ExpirationDate,
		Nickname:       req.Nickname,
	}
	if req.UserID != nil {
		in.UserID = *req.UserID
	}
	card, err := s.svc.CreditCards.Create(r.Context(), caller(r), in)
	if err != nil {
		s.errors.handle(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, card)
}

func (s *Server) getCard(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		s.errors.handle(w, r, err)
		return
	}
	card, err := s.svc.CreditCards.GetByID(r.Context(), caller(r), id)
	if err != nil {
		s.errors.handle(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, card)
}

func (s *Server) updateCard(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		s.errors.handle(w, r, err)
		return
	}
	var req updateCardRequest
	if err := readJSON(r, &req); err != nil {
		s.errors.handle(w, r, err)
		return
	}
	card, err := s.svc.CreditCards.Update(r.Context(), caller(r), domain.CreditCard{
		ID:             id,
		Brand:          req.Brand,
		ExpirationDate: req.ExpirationDate,
		Nickname:       req.Nickname,
	})
	if err != nil {
		s.errors.handle(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, card)
}

func (s *Server) deleteCard(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		s.errors.handle(w, r, err)
		return
	}
	if err := s.svc.CreditCards.Delete(r.Context(), caller(r), id); err != nil {
		s.errors.handle(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
