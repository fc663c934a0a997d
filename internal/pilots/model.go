// Package pilots manages the delivery courier roster and assignment.
package pilots

import (
	"time"

	"github.com/google/uuid"
)

// Location is a courier's last reported position.
type Location struct {
	Lat       float64   `json:"lat"`
	Lng       float64   `json:"lng"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// DeliveryPilot is one courier. IsOnDelivery and CurrentOrderID move
// together: a pilot is on delivery exactly when an order is attached.
type DeliveryPilot struct {
	ID                  uuid.UUID  `json:"id"`
	Name                string     `json:"name"`
	Phone               string     `json:"phone"`
	Email               string     `json:"email,omitempty"`
	VehicleType         string     `json:"vehicleType,omitempty"`
	VehicleNumber       string     `json:"vehicleNumber,omitempty"`
	IsActive            bool       `json:"isActive"`
	IsOnDelivery        bool       `json:"isOnDelivery"`
	CurrentOrderID      *uuid.UUID `json:"currentOrder,omitempty"`
	CurrentLocation     *Location  `json:"currentLocation,omitempty"`
	TotalDeliveries     int        `json:"totalDeliveries"`
	CompletedDeliveries int        `json:"completedDeliveries"`
	Rating              float64    `json:"rating"`
	CreatedAt           time.Time  `json:"createdAt"`
	UpdatedAt           time.Time  `json:"updatedAt"`
}

// CreateRequest carries the fields needed to register a pilot.
type CreateRequest struct {
	Name          string
	Phone         string
	Email         string
	VehicleType   string
	VehicleNumber string
}

// UpdateRequest carries optional edits; nil fields are left untouched.
type UpdateRequest struct {
	Name          *string
	Phone         *string
	Email         *string
	VehicleType   *string
	VehicleNumber *string
	IsActive      *bool
}
