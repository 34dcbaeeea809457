package domain

import (
	"time"

	"github.com/google/uuid"
)

// Vehicle is a car registered by a driver. Plates are unique.
type Vehicle struct {
	ID        uuid.UUID `json:"id"`
	DriverID  uuid.UUID `json:"driver_id"`
	Model     string    `json:"model"`
	Plate     string    `json:"plate"`
	Color     string    `json:"color,omitempty"`
	Year      *int      `json:"year,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// VehicleFilter narrows a vehicle listing.
type VehicleFilter struct {
	DriverID *uuid.UUID
}
