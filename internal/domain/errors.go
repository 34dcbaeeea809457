package domain

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned by repo and service functions when the requested
// resource does not exist in the database.
// Handlers map this to HTTP 404.
var ErrNotFound = errors.New("not found")

// ErrValidation is returned when input fails schema or business rule
// validation (e.g. missing required field, rating outside 1..5).
// Handlers map this to HTTP 400.
var ErrValidation = errors.New("validation error")

// ErrConflict is returned when a request is well-formed but clashes with the
// current state of a resource (duplicate email, full trip, illegal status change).
// Handlers map this and every error wrapping it to HTTP 409.
var ErrConflict = errors.New("conflict")

// ErrUnauthorized signals missing, malformed, or expired credentials (HTTP 401).
var ErrUnauthorized = errors.New("unauthorized")

// ErrForbidden signals an authenticated caller lacking permission (HTTP 403).
var ErrForbidden = errors.New("forbidden")

// ErrGateway is returned when the payment gateway fails or answers with data
// the service cannot use. Handlers map this to HTTP 502.
var ErrGateway = errors.New("payment gateway error")

// Booking and lifecycle conflicts. All of them wrap ErrConflict so a single
// errors.Is check at the HTTP boundary covers the family.
var (
	ErrTripFull          = fmt.Errorf("%w: trip is full", ErrConflict)
	ErrTripNotOpen       = fmt.Errorf("%w: trip is not open for booking", ErrConflict)
	ErrDuplicateBooking  = fmt.Errorf("%w: passenger already has an active booking on this trip", ErrConflict)
	ErrAlreadyCanceled   = fmt.Errorf("%w: booking is already canceled", ErrConflict)
	ErrInvalidTransition = fmt.Errorf("%w: invalid status transition", ErrConflict)
)
