package catalog

import "errors"

// Domain errors for the catalog.
var (
	// ErrNotFound indicates the requested product was not found.
	ErrNotFound = errors.New("product not found")

	// Validation errors.
	ErrNameRequired  = errors.New("product name is required")
	ErrNegativePrice = errors.New("price cannot be negative")
	ErrNegativeStock = errors.New("stock cannot be negative")

	// Business rule errors.
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrInactiveProduct   = errors.New("product is not available")
	ErrDuplicateSKU      = errors.New("sku already exists")
)
