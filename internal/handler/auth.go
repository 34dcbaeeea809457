package handler

import (
	"net/http"

	"github.com/pkordes/carpool/backend/internal/domain"
	"github.com/pkordes/carpool/backend/internal/service"
)

type registerRequest struct {
	Name     string `json:"name" validate:"required,max=120"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
	Phone    string `json:"phone" validate:"max=30"`
	Role     string `json:"role" validate:"omitempty,oneof=STANDARD DRIVER"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type authResponse struct {
	User  domain.User `json:"user"`
	Token string      `json:"token"`
}

// register handles POST /auth/register.
func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := readJSON(r, &req); err != nil {
		s.errors.handle(w, r, err)
		return
	}
	u, token, err := s.svc.Users.Register(r.Context(), service.NewUser{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Phone:    req.Phone,
		Role:     domain.Role(req.Role),
	})
	if err != nil {
		s.errors.handle(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, authResponse{User: u, Token: token})
}

// login handles POST /auth/login.
func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := readJSON(r, &req); err != nil {
		s.errors.handle(w, r, err)
		return
	}
	u, token, err := s.svc.Users.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		s.errors.handle(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, authResponse{User: u, Token: token})
}

// me handles GET /auth/me.
func (s *Server) me(w http.ResponseWriter, r *http.Request) {
	u, err := s.svc.Users.GetByID(r.Context(), caller(r).UserID)
	if err != nil {
		s.errors.handle(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}
