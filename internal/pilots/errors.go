package pilots

import "errors"

var (
	ErrNotFound      = errors.New("delivery pilot not found")
	ErrNameRequired  = errors.New("pilot name is required")
	ErrPhoneRequired = errors.New("pilot phone is required")
	ErrInactive      = errors.New("pilot is not active")
	ErrBusy          = errors.New("pilot is already on a delivery")
	ErrNotOnDelivery = errors.New("pilot is not on a delivery")
)
