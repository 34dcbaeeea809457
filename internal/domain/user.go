// Package domain contains the core data types of the carpool API: entities,
// their status enums, the trip lifecycle rules and the error sentinels shared
// by every other internal package (repo, service, handler).
package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Role is the authorization level of a user.
type Role string

const (
	RoleStandard Role = "STANDARD"
	RoleDriver   Role = "DRIVER"
	RoleAdmin    Role = "ADMIN"
)

// IsValid reports whether r is one of the known roles.
func (r Role) IsValid() bool {
	switch r {
	case RoleStandard, RoleDriver, RoleAdmin:
		return true
	}
	return false
}

// ParseRole converts a raw string into a Role.
func ParseRole(s string) (Role, error) {
	r := Role(s)
	if !r.IsValid() {
		return "", fmt.Errorf("%w: unknown role %q", ErrValidation, s)
	}
	return r, nil
}

// User is an account that can drive, ride, or administer the platform.
// PasswordHash is never serialised.
type User struct {
	ID           uuid.UUID `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Phone        string    `json:"phone,omitempty"`
	Role         Role      `json:"role"`
	Active       bool      `json:"active"`
	CreatedAt    time.Time `json:"created_at"`
}

// Principal is the authenticated caller extracted from a bearer token.
type Principal struct {
	UserID uuid.UUID
	Email  string
	Role   Role
}

// IsAdmin reports whether the caller has the ADMIN role.
func (p Principal) IsAdmin() bool { return p.Role == RoleAdmin }

// CanActFor reports whether the caller may act on resources owned by userID.
func (p Principal) CanActFor(userID uuid.UUID) bool {
	return p.IsAdmin() || p.UserID == userID
}
