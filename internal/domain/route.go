package domain

import (
	"time"

	"github.com/google/uuid"
)

// Route is an origin/destination pair that trips run along.
type Route struct {
	ID          uuid.UUID `json:"id"`
	Origin      string    `json:"origin"`
	Destination string    `json:"destination"`
	DistanceKm  *float64  `json:"distance_km,omitempty"`
	CreatedByID uuid.UUID `json:"created_by_id"`
	CreatedAt   time.Time `json:"created_at"`
}

// RouteFilter narrows a route listing.
type RouteFilter struct {
	CreatedByID *uuid.UUID
}
