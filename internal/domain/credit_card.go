package domain

import (
	"time"

	"github.com/google/uuid"
)

// CreditCard is a tokenised card stored for a user. The gateway token is
// never serialised; only the masked number leaves the API.
type CreditCard struct {
	ID             uuid.UUID `json:"id"`
	UserID         uuid.UUID `json:"user_id"`
	MaskedNumber   string    `json:"masked_number"`
	Brand          string    `json:"brand"`
	Token          string    `json:"-"`
	ExpirationDate string    `json:"expiration_date"` // MM/YY
	Nickname       string    `json:"nickname,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// CreditCardFilter narrows a credit card listing.
type CreditCardFilter struct {
	UserID *uuid.UUID
}
