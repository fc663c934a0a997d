package orders

import "errors"

var (
	ErrNotFound            = errors.New("order not found")
	ErrInvalidStatus       = errors.New("invalid order status")
	ErrAlreadyFinal        = errors.New("order is in a terminal state")
	ErrBackwardTransition  = errors.New("status transition moves backwards")
	ErrInvalidPayment      = errors.New("invalid payment method")
	ErrInvalidPaymentState = errors.New("invalid payment status")
	ErrAddressIncomplete   = errors.New("shipping address requires street, city and country")
	ErrProductUnavailable  = errors.New("product is not available")
	ErrInsufficientStock   = errors.New("insufficient stock")
	ErrDuplicateNumber     = errors.New("order number already taken")
)
