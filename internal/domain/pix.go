package domain

import (
	"time"

	"github.com/google/uuid"
)

// GatewayStatus is the raw payment status reported by Mercado Pago.
type GatewayStatus string

const (
	GatewayPending     GatewayStatus = "pending"
	GatewayAuthorized  GatewayStatus = "authorized"
	GatewayInProcess   GatewayStatus = "in_process"
	GatewayInMediation GatewayStatus = "in_mediation"
	GatewayApproved    GatewayStatus = "approved"
	GatewayRejected    GatewayStatus = "rejected"
	GatewayCancelled   GatewayStatus = "cancelled"
	GatewayExpired     GatewayStatus = "expired"
	GatewayRefunded    GatewayStatus = "refunded"
	GatewayChargedBack GatewayStatus = "charged_back"
)

// ChargeOutcome collapses the gateway's statuses into what the booking
// engine acts on.
type ChargeOutcome int

const (
	OutcomePending ChargeOutcome = iota
	OutcomeApproved
	OutcomeFailed
	OutcomeRefunded
)

// Outcome maps a gateway status onto a ChargeOutcome. Unknown statuses are
// treated as pending so they are re-checked rather than acted upon.
func (s GatewayStatus) Outcome() ChargeOutcome {
	switch s {
	case GatewayApproved:
		return OutcomeApproved
	case GatewayRejected, GatewayCancelled, GatewayExpired:
		return OutcomeFailed
	case GatewayRefunded, GatewayChargedBack:
		return OutcomeRefunded
	default:
		return OutcomePending
	}
}

// IsFinal reports whether the gateway will not change s again on its own.
func (s GatewayStatus) IsFinal() bool {
	return s.Outcome() != OutcomePending
}

// PixRequest is what the checkout asks the gateway to charge.
type PixRequest struct {
	Amount         float64
	Description    string
	PayerEmail     string
	PayerCPF       string
	IdempotencyKey string
}

// PixQRCode is the gateway's answer to a PIX charge: the copy-paste code and
// its PNG rendering in base64.
type PixQRCode struct {
	PaymentID    string
	QRCodeBase64 string
	QRCodeText   string
	Amount       float64
	Status       GatewayStatus
}

// GatewayPayment is the gateway's current view of a payment.
type GatewayPayment struct {
	ID                string        `json:"id"`
	Status            GatewayStatus `json:"status"`
	StatusDetail      string        `json:"status_detail"`
	TransactionAmount float64       `json:"transaction_amount"`
	DateApproved      *time.Time    `json:"date_approved"`
}

// PixCharge links a gateway payment to the seat hold it pays for.
// TripPassengerID is nil for charges created without a trip.
type PixCharge struct {
	ID               uuid.UUID     `json:"id"`
	GatewayPaymentID string        `json:"gateway_payment_id"`
	PayerID          uuid.UUID     `json:"payer_id"`
	TripID           *uuid.UUID    `json:"trip_id,omitempty"`
	TripPassengerID  *uuid.UUID    `json:"trip_passenger_id,omitempty"`
	Amount           float64       `json:"amount"`
	Status           GatewayStatus `json:"status"`
	ExpiresAt        time.Time     `json:"expires_at"`
	ReconciledAt     *time.Time    `json:"reconciled_at,omitempty"`
	NextCheckAt      time.Time     `json:"next_check_at"`
	CheckFailures    int           `json:"check_failures"`
	CreatedAt        time.Time     `json:"created_at"`
	UpdatedAt        time.Time     `json:"updated_at"`
}

// PixCheckout is returned to the client after a PIX charge is created.
type PixCheckout struct {
	PaymentID       string     `json:"payment_id"`
	QRCodeBase64    string     `json:"qr_code_base64"`
	QRCodeText      string     `json:"qr_code_text"`
	Amount          float64    `json:"amount"`
	ExpiresIn       int        `json:"expires_in"` // minutes
	TripPassengerID *uuid.UUID `json:"trip_passenger_id,omitempty"`
}
