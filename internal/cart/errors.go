package cart

import "errors"

// Domain errors for the cart.
var (
	// ErrEmptyCart indicates checkout was attempted on an empty cart.
	ErrEmptyCart = errors.New("cart is empty")

	// Validation errors.
	ErrProductRequired = errors.New("product id is required")
	ErrInvalidQuantity = errors.New("quantity must be at least 1")
	ErrItemNotInCart   = errors.New("item not in cart")

	// Business rule errors.
	ErrProductNotFound   = errors.New("product not found")
	ErrProductInactive   = errors.New("product is not available")
	ErrInsufficientStock = errors.New("insufficient stock")
)
