// Package realtime fans order lifecycle events out to live subscribers.
//
// Channels are transient broadcast groups: one per tracked order, one
// global admin channel, and one per delivery pilot. Publishes are
// fire-and-forget with at-most-once semantics; a subscriber that is not
// listening at publish time never sees the event.
package realtime

import (
	"time"

	"github.com/google/uuid"
)

// Event names on the wire. These match what tracking clients subscribe to.
const (
	EventOrderStatusUpdate      = "order_status_update"
	EventAdminOrderStatusUpdate = "admin_order_status_update"
	EventDeliveryLocationUpdate = "delivery_location_update"
	EventPilotLocation          = "pilot_location"
	EventPilotAssigned          = "pilot_assigned"
	EventNewOrder               = "new_order"
)

// AdminChannel is the single broadcast group for the admin dashboard.
const AdminChannel = "admin"

// OrderChannel returns the channel key for one tracked order.
func OrderChannel(orderNumber string) string {
	return "order:" + orderNumber
}

// PilotChannel returns the channel key for one delivery pilot.
func PilotChannel(pilotID uuid.UUID) string {
	return "pilot:" + pilotID.String()
}

// HistoryEntry mirrors one order status audit record for the wire.
type HistoryEntry struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Note      string    `json:"note,omitempty"`
}

// StatusUpdate is sent to the order channel on every transition. The admin
// channel receives the same payload with the internal order ID attached.
type StatusUpdate struct {
	OrderNumber   string         `json:"orderNumber"`
	Status        string         `json:"status"`
	StatusHistory []HistoryEntry `json:"statusHistory"`
	OrderID       *uuid.UUID     `json:"orderId,omitempty"`
	Timestamp     time.Time      `json:"timestamp"`
}

// LocationUpdate is sent to the order channel as the delivery moves.
type LocationUpdate struct {
	OrderNumber string    `json:"orderNumber,omitempty"`
	Lat         float64   `json:"lat"`
	Lng         float64   `json:"lng"`
	Timestamp   time.Time `json:"timestamp"`
}

// PilotAssigned tells a tracking client who is bringing the order.
type PilotAssigned struct {
	OrderNumber string    `json:"orderNumber"`
	Pilot       PilotInfo `json:"pilot"`
	Timestamp   time.Time `json:"timestamp"`
}

// PilotInfo is the subset of pilot data exposed to customers.
type PilotInfo struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

// NewOrder notifies the admin dashboard of a fresh checkout.
type NewOrder struct {
	OrderNumber string    `json:"orderNumber"`
	Total       float64   `json:"total"`
	Customer    string    `json:"customer"`
	Timestamp   time.Time `json:"timestamp"`
}

// Envelope wraps every published payload with its event name so a single
// channel can carry multiple event types.
type Envelope struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}
