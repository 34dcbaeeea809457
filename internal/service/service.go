// Package service contains the business logic for the carpool API.
// Services validate inputs, enforce ownership and business rules, and
// orchestrate repo calls. No SQL lives here: services depend on repo
// interfaces, not implementations.
package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/pkordes/carpool/backend/internal/domain"
)

// EventPublisher delivers domain events after the transaction that produced
// them has committed.
type EventPublisher interface {
	Publish(ctx context.Context, e domain.Event) error
}

// Recorder receives counters about the booking engine and the gateway.
type Recorder interface {
	Reservation(outcome string)
	Release()
	TripTransition(to domain.TripStatus)
	GatewayCall(op, outcome string)
}

type noopPublisher struct{}

func (noopPublisher) Publish(context.Context, domain.Event) error { return nil }

type noopRecorder struct{}

func (noopRecorder) Reservation(string)               {}
func (noopRecorder) Release()                         {}
func (noopRecorder) TripTransition(domain.TripStatus) {}
func (noopRecorder) GatewayCall(string, string)       {}

// Deps carries the cross-cutting collaborators shared by services.
// Zero-value fields are replaced with no-op implementations.
type Deps struct {
	Publisher EventPublisher
	Recorder  Recorder
	Logger    *slog.Logger
}

func (d Deps) withDefaults() Deps {
	if d.Publisher == nil {
		d.Publisher = noopPublisher{}
	}
	if d.Recorder == nil {
		d.Recorder = noopRecorder{}
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	return d
}

// publish sends e and logs, rather than returns, a delivery failure: the
// state change it describes is already committed.
func (d Deps) publish(ctx context.Context, e domain.Event) {
	if err := d.Publisher.Publish(ctx, e); err != nil {
		d.Logger.WarnContext(ctx, "event publish failed", "type", e.Type, "trip_id", e.TripID, "error", err)
	}
}

// requireOwner returns domain.ErrForbidden unless the caller is ownerID or an admin.
func requireOwner(caller domain.Principal, ownerID uuid.UUID) error {
	if !caller.CanActFor(ownerID) {
		return fmt.Errorf("%w: insufficient permission", domain.ErrForbidden)
	}
	return nil
}

// requireAdmin returns domain.ErrForbidden unless the caller is an admin.
func requireAdmin(caller domain.Principal) error {
	if !caller.IsAdmin() {
		return fmt.Errorf("%w: insufficient permission", domain.ErrForbidden)
	}
	return nil
}

// ownedBy defaults an owner field to the caller and rejects non-admins
// acting on behalf of someone else.
func ownedBy(caller domain.Principal, owner *uuid.UUID) error {
	if *owner == uuid.Nil {
		*owner = caller.UserID
	}
	return requireOwner(caller, *owner)
}

// nonNil turns a nil slice into an empty one so JSON renders [] not null.
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

func ptr[T any](v T) *T { return &v }
