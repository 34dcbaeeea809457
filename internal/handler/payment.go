package handler

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/pkordes/carpool/backend/internal/domain"
)

type paymentRequest struct {
	TripID        uuid.UUID  `json:"trip_id" validate:"required"`
	PayerID       *uuid.UUID `json:"payer_id"`
	CreditCardID  *uuid.UUID `json:"credit_card_id"`
	Value         float64    `json:"value" validate:"required,gt=0"`
	Status        string     `json:"status" validate:"omitempty,oneof=PAID FAILED REFUNDED"`
	PaymentDate   *time.Time `json:"payment_date"`
	TransactionID string     `json:"transaction_id" validate:"max=100"`
}

func (req paymentRequest) toDomain() domain.Payment {
	p := domain.Payment{
		TripID:        req.TripID,
		CreditCardID:  req.CreditCardID,
		Value:         req.Value,
		Status:        domain.PaymentStatus(req.Status),
		TransactionID: req.TransactionID,
	}
	if req.PayerID != nil {
		p.PayerID = *req.PayerID
	}
	if req.PaymentDate != nil {
		p.PaymentDate = *req.PaymentDate
	}
	return p
}

// listPayments handles GET /payment-models. Non-admins only see their own
// payments.
func (s *Server) listPayments(w http.ResponseWriter, r *http.Request) {
	var f domain.PaymentFilter
	if who := caller(r); !who.IsAdmin() {
		f.PayerID = &who.UserID
	}
	s.listPaymentsWith(w, r, f)
}

// listPaymentsByTrip handles GET /payment-models/trip/{tripId}. Non-admins
// only see their own payments on the trip.
func (s *Server) listPaymentsByTrip(w http.ResponseWriter, r *http.Request) {
	tripID, err := pathUUID(r, "tripId")
	if err != nil {
		s.errors.handle(w, r, err)
		return
	}
	f := domain.PaymentFilter{TripID: &tripID}
	if who := caller(r); !who.IsAdmin() {
		f.PayerID = &who.UserID
	}
	s.listPaymentsWith(w, r, f)
}

func (s *Server) listPaymentsByPayer(w http.ResponseWriter, r *http.Request) {
	payerID, err := pathUUID(r, "payerId")
	if err != nil {
		s.errors.handle(w, r, err)
		return
	}
	if !caller(r).CanActFor(payerID) {
		s.errors.handle(w, r, fmt.Errorf("%w: insufficient permission", domain.ErrForbidden))
		return
	}
	s.listPaymentsWith(w, r, domain.PaymentFilter{PayerID: &payerID})
}

func (s *Server) listPaymentsByStatus(w http.ResponseWriter, r *http.Request) {
	status, err := domain.ParsePaymentStatus(chi.URLParam(r, "status"))
	if err != nil {
		s.errors.handle(w, r, err)
		return
	}
	f := domain.PaymentFilter{Status: &status}
	if who := caller(r); !who.IsAdmin() {
		f.PayerID = &who.UserID
	}
	s.listPaymentsWith(w, r, f)
}

func (s *Server) listPaymentsWith(w http.ResponseWriter, r *http.Request, f domain.PaymentFilter) {
	p, err := pagination(r)
	if err != nil {
		s.errors.handle(w, r, err)
		return
	}
	out, total, err := s.svc.Payments.List(r.Context(), f, p)
	if err != nil {
		s.errors.handle(w, r, err)
		return
	}
	writePage(w, out, total, p)
}

func (s *Server) createPayment(w http.ResponseWriter, r *http.Request) {
	var req paymentRequest
	if err := readJSON(r, &req); err != nil {
		s.errors.handle(w, r, err)
		return
	}
	p, err := s.svc.Payments.Create(r.Context(), caller(r), req.toDomain())
	if err != nil {
		s.errors.handle(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (s *Server) getPayment(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		s.errors.handle(w, r, err)
		return
	}
	p, err := s.svc.Payments.GetByID(r.Context(), caller(r), id)
	if err != nil {
		s.errors.handle(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) updatePayment(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		s.errors.handle(w, r, err)
		return
	}
	var req paymentRequest
	if err := readJSON(r, &req); err != nil {
		s.errors.handle(w, r, err)
		return
	}
	p := req.toDomain()
	p.ID = id
	p, err = s.svc.Payments.Update(r.Context(), caller(r), p)
	if err != nil {
		s.errors.handle(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) deletePayment(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		s.errors.handle(w, r, err)
		return
	}
	if err := s.svc.Payments.Delete(r.Context(), caller(r), id); err != nil {
		s.errors.handle(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// getReceipt handles GET /payment-models/{id}/receipt.
func (s *Server) getReceipt(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		s.errors.handle(w, r, err)
		return
	}
	doc, err := s.svc.Payments.Receipt(r.Context(), caller(r), id)
	if err != nil {
		s.errors.handle(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`inline; filename="recibo-%s.pdf"`, id))
	w.Header().Set("Content-Length", strconv.Itoa(len(doc)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(doc)
}
