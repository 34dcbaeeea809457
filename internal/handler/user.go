package handler

import (
	"net/http"

	"github.com/pkordes/carpool/backend/internal/domain"
	"github.com/pkordes/carpool/backend/internal/service"
)

type createUserRequest struct {
	Name     string `json:"name" validate:"required,max=120"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
	Phone    string `json:"phone" validate:"max=30"`
	Role     string `json:"role" validate:"omitempty,oneof=STANDARD DRIVER ADMIN"`
}

type updateUserRequest struct {
	Name     *string `json:"name" validate:"omitempty,max=120"`
	Email    *string `json:"email" validate:"omitempty,email"`
	Password *string `json:"password" validate:"omitempty,min=6"`
	Phone    *string `json:"phone" validate:"omitempty,max=30"`
	Role     *string `json:"role" validate:"omitempty,oneof=STANDARD DRIVER ADMIN"`
	Active   *bool   `json:"active"`
}

func (s *Server) listUsers(w http.ResponseWriter, r *http.Request) {
	p, err := pagination(r)
	if err != nil {
		s.errors.handle(w, r, err)
		return
	}
	users, total, err := s.svc.Users.List(r.Context(), p)
	if err != nil {
		s.errors.handle(w, r, err)
		return
	}
	writePage(w, users, total, p)
}

func (s *Server) createUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := readJSON(r, &req); err != nil {
		s.errors.handle(w, r, err)
		return
	}
	u, err := s.svc.Users.Create(r.Context(), caller(r), service.NewUser{
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
	writeJSON(w, http.StatusCreated, u)
}

func (s *Server) getUser(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		s.errors.handle(w, r, err)
		return
	}
	u, err := s.svc.Users.GetByID(r.Context(), id)
	if err != nil {
		s.errors.handle(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (s *Server) updateUser(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		s.errors.handle(w, r, err)
		return
	}
	var req updateUserRequest
	if err := readJSON(r, &req); err != nil {
		s.errors.handle(w, r, err)
		return
	}
	patch := service.UserPatch{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Phone:    req.Phone,
		Active:   req.Active,
	}
	if req.Role != nil {
		role := domain.Role(*req.Role)
		patch.Role = &role
	}
	u, err := s.svc.Users.Update(r.Context(), caller(r), id, patch)
	if err != nil {
		s.errors.handle(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (s *Server) deleteUser(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		s.errors.handle(w, r, err)
		return
	}
	if err := s.svc.Users.Delete(r.Context(), caller(r), id); err != nil {
		s.errors.handle(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
