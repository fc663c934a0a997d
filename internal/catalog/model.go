// Package catalog provides product and stock management.
package catalog

import (
	"time"

	"github.com/google/uuid"
)

// Product is one sellable item. Orders snapshot name and price at checkout,
// so edits here never reach back into existing orders.
type Product struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	SKU         string    `json:"sku,omitempty"`
	Description string    `json:"description,omitempty"`
	Price       float64   `json:"price"`
	Currency    string    `json:"currency"`
	ImageURL    string    `json:"image,omitempty"`
	Stock       int       `json:"stock"`
	IsActive    bool      `json:"isActive"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// DefaultCurrency is applied when a product is created without one.
const DefaultCurrency = "KWD"

// StockAdjustment describes a quantity to give back to one product.
type StockAdjustment struct {
	ProductID uuid.UUID
	Quantity  int
}

// ListRequest filters and pages the catalog listing.
type ListRequest struct {
	ActiveOnly bool
	SortBy     string
	Limit      int
	Offset     int
}
