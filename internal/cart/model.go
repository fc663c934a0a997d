// Package cart manages the per-user shopping cart.
//
// Each user owns at most one cart. Carts are created lazily on first use and
// are emptied, never deleted, when an order is placed.
package cart

import (
	"time"

	"github.com/google/uuid"
)

// Cart holds a user's pending items.
type Cart struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"userId"`
	Items     []Item    `json:"items"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Item is one product reference in the cart.
type Item struct {
	ProductID uuid.UUID `json:"productId"`
	Quantity  int       `json:"quantity"`
}

// Line is an item joined with live product data for display and checkout.
type Line struct {
	ProductID uuid.UUID `json:"productId"`
	Name      string    `json:"name"`
	Price     float64   `json:"price"`
	ImageURL  string    `json:"image,omitempty"`
	Stock     int       `json:"stock"`
	IsActive  bool      `json:"isActive"`
	Quantity  int       `json:"quantity"`
}

// View is the populated cart returned to clients.
type View struct {
	ID    uuid.UUID `json:"id"`
	Lines []Line    `json:"items"`
	Total float64   `json:"total"`
}
