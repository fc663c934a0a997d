// Package orders owns the order aggregate and its status lifecycle.
package orders

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// PaymentMethod is how the customer chose to pay.
type PaymentMethod string

const (
	PaymentCOD  PaymentMethod = "cod"  // cash on delivery
	PaymentKnet PaymentMethod = "knet" // local debit network
	PaymentCard PaymentMethod = "card"
)

// IsValid checks if the payment method is one of the accepted values.
func (m PaymentMethod) IsValid() bool {
	switch m {
	case PaymentCOD, PaymentKnet, PaymentCard:
		return true
	default:
		return false
	}
}

// PaymentStatus tracks the money side of the order.
type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentPaid     PaymentStatus = "paid"
	PaymentFailed   PaymentStatus = "failed"
	PaymentRefunded PaymentStatus = "refunded"
)

// IsValid checks if the payment status is one of the accepted values.
func (s PaymentStatus) IsValid() bool {
	switch s {
	case PaymentPending, PaymentPaid, PaymentFailed, PaymentRefunded:
		return true
	default:
		return false
	}
}

// GeoPoint is a WGS84 coordinate pair.
type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Address is the denormalized shipping destination.
type Address struct {
	Street      string    `json:"street"`
	City        string    `json:"city"`
	State       string    `json:"state,omitempty"`
	Country     string    `json:"country"`
	ZipCode     string    `json:"zipCode,omitempty"`
	Phone       string    `json:"phone,omitempty"`
	Coordinates *GeoPoint `json:"coordinates,omitempty"`
}

// DeliveryLocation is the courier's last reported position for this order,
// independent of the pilot's own tracked location.
type DeliveryLocation struct {
	Lat       float64   `json:"lat"`
	Lng       float64   `json:"lng"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Item is a line frozen at checkout. Name and price are snapshots; later
// product edits never reach back into an existing order.
type Item struct {
	ProductID uuid.UUID `json:"productId"`
	Name      string    `json:"name"`
	ImageURL  string    `json:"image,omitempty"`
	Price     float64   `json:"price"`
	Quantity  int       `json:"quantity"`
}

// HistoryEntry is one record in the append-only status audit log.
type HistoryEntry struct {
	Status    Status     `json:"status"`
	Timestamp time.Time  `json:"timestamp"`
	Note      string     `json:"note,omitempty"`
	ActorID   *uuid.UUID `json:"updatedBy,omitempty"`
}

// Order is one checkout's full state.
type Order struct {
	ID              uuid.UUID         `json:"id"`
	OrderNumber     string            `json:"orderNumber"`
	UserID          uuid.UUID         `json:"userId"`
	Items           []Item            `json:"items"`
	ShippingAddress Address           `json:"shippingAddress"`
	PaymentMethod   PaymentMethod     `json:"paymentMethod"`
	PaymentStatus   PaymentStatus     `json:"paymentStatus"`
	Status          Status            `json:"orderStatus"`
	StatusHistory   []HistoryEntry    `json:"statusHistory"`
	DeliveryPilotID *uuid.UUID        `json:"deliveryPilot,omitempty"`
	DeliveryLoc     *DeliveryLocation `json:"deliveryLocation,omitempty"`
	Subtotal        float64           `json:"subtotal"`
	ShippingCost    float64           `json:"shippingCost"`
	Discount        float64           `json:"discount"`
	Total           float64           `json:"total"`
	Currency        string            `json:"currency"`
	Notes           string            `json:"notes,omitempty"`
	DeliveredAt     *time.Time        `json:"deliveredAt,omitempty"`
	CancelledAt     *time.Time        `json:"cancelledAt,omitempty"`
	CreatedAt       time.Time         `json:"createdAt"`
	UpdatedAt       time.Time         `json:"updatedAt"`
}

const (
	// OrderNumberPrefix starts every human-readable order number.
	OrderNumberPrefix = "ART"

	// FreeShippingThreshold is the subtotal at which shipping is waived.
	FreeShippingThreshold = 50.0

	// StandardShippingCost applies below the free-shipping threshold.
	StandardShippingCost = 2.5

	// DefaultCurrency for new orders.
	DefaultCurrency = "KWD"
)

// FormatOrderNumber renders a sequence value as a human-readable order
// number, e.g. ART-000123. Pure formatting; uniqueness comes from the
// sequence it is fed from.
func FormatOrderNumber(seq int64) string {
	return fmt.Sprintf("%s-%06d", OrderNumberPrefix, seq)
}

// ShippingCostFor computes the shipping charge for a subtotal.
func ShippingCostFor(subtotal float64) float64 {
	if subtotal >= FreeShippingThreshold {
		return 0
	}
	return StandardShippingCost
}

// StockRestoration is a compensating action produced by a cancellation:
// give quantity back to the referenced product. The transition engine
// returns these; an orchestrator executes them against the catalog,
// best-effort, outside the order write.
type StockRestoration struct {
	ProductID uuid.UUID
	Quantity  int
}
