package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// PaymentStatus is the settled outcome of a payment.
type PaymentStatus string

const (
	PaymentPaid     PaymentStatus = "PAID"
	PaymentFailed   PaymentStatus = "FAILED"
	PaymentRefunded PaymentStatus = "REFUNDED"
)

// IsValid reports whether s is a known payment status.
func (s PaymentStatus) IsValid() bool {
	switch s {
	case PaymentPaid, PaymentFailed, PaymentRefunded:
		return true
	}
	return false
}

// ParsePaymentStatus converts a raw string into a PaymentStatus.
func ParsePaymentStatus(s string) (PaymentStatus, error) {
	st := PaymentStatus(s)
	if !st.IsValid() {
		return "", fmt.Errorf("%w: unknown payment status %q", ErrValidation, s)
	}
	return st, nil
}

// Payment records money moving for a seat on a trip. CreditCardID is nil for
// PIX payments; TransactionID carries the gateway payment id when known.
type Payment struct {
	ID            uuid.UUID     `json:"id"`
	TripID        uuid.UUID     `json:"trip_id"`
	PayerID       uuid.UUID     `json:"payer_id"`
	CreditCardID  *uuid.UUID    `json:"credit_card_id,omitempty"`
	Value         float64       `json:"value"`
	Status        PaymentStatus `json:"status"`
	PaymentDate   time.Time     `json:"payment_date"`
	TransactionID string        `json:"transaction_id,omitempty"`
}

// PaymentFilter narrows a payment listing. Nil fields are ignored.
type PaymentFilter struct {
	TripID  *uuid.UUID
	PayerID *uuid.UUID
	Status  *PaymentStatus
}
