package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/pkordes/carpool/backend/internal/domain"
	"github.com/pkordes/carpool/backend/internal/service"
)

type pixPaymentRequest struct {
	Amount      *float64   `json:"amount" validate:"omitempty,gt=0"`
	Description string     `json:"description" validate:"max=255"`
	PayerEmail  string     `json:"payer_email" validate:"omitempty,email"`
	PayerCPF    string     `json:"payer_cpf" validate:"max=14"`
	TripID      *uuid.UUID `json:"trip_id"`
}

// webhookNotification is the subset of a Mercado Pago notification the API
// reads. Everything else in the body is ignored.
type webhookNotification struct {
	Type string `json:"type"`
	Data struct {
		ID json.RawMessage `json:"id"`
	} `json:"data"`
}

// createPixPayment handles POST /payments/create-pix-payment.
func (s *Server) createPixPayment(w http.ResponseWriter, r *http.Request) {
	var req pixPaymentRequest
	if err := readJSON(r, &req); err != nil {
		s.errors.handle(w, r, err)
		return
	}
	checkout, err := s.svc.Pix.CreateCheckout(r.Context(), caller(r), service.PixCheckoutInput{
		Amount:      req.Amount,
		Description: req.Description,
		PayerEmail:  req.PayerEmail,
		PayerCPF:    req.PayerCPF,
		TripID:      req.TripID,
	})
	if err != nil {
		s.errors.handle(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, checkout)
}

// getPaymentStatus handles GET /payments/payment-status/{id}, where id is
// the gateway payment id.
func (s *Server) getPaymentStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" || strings.ContainsAny(id, "/?#") {
		s.errors.handle(w, r, fmt.Errorf("%w: invalid payment id", domain.ErrValidation))
		return
	}
	gp, err := s.svc.Pix.PaymentStatus(r.Context(), id)
	if err != nil {
		s.errors.handle(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, gp)
}

// paymentWebhook handles POST /payments/webhook. Mercado Pago sends the
// payment id both as ?data.id= and in the body; the query wins. Topics other
// than "payment" are acknowledged and ignored.
func (s *Server) paymentWebhook(w http.ResponseWriter, r *http.Request) {
	var n webhookNotification
	if r.Body != nil {
		// The body is optional for the legacy ?topic=&id= form.
		_ = json.NewDecoder(r.Body).Decode(&n)
	}
	q := r.URL.Query()

	topic := firstNonEmpty(q.Get("type"), q.Get("topic"), n.Type)
	if topic != "" && topic != "payment" {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ignored"})
		return
	}
	dataID := firstNonEmpty(q.Get("data.id"), q.Get("id"), rawID(n.Data.ID))

	err := s.svc.Pix.HandleWebhook(r.Context(), r.Header.Get("x-signature"), r.Header.Get("x-request-id"), dataID)
	if err != nil {
		s.errors.handle(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "processed"})
}

// testMercadoPago handles GET /payments/test-mercadopago.
func (s *Server) testMercadoPago(w http.ResponseWriter, r *http.Request) {
	qr, err := s.svc.Pix.TestConnection(r.Context(), caller(r))
	if err != nil {
		s.errors.handle(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":        "ok",
		"message":       "Mercado Pago connection is working",
		"payment_id":    qr.PaymentID,
		"payment_state": qr.Status,
		"has_qr_code":   qr.QRCodeText != "",
	})
}

// rawID accepts the notification id as either a JSON string or number.
func rawID(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return ""
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
