package orders

import "fmt"

// Status is the order lifecycle state.
type Status string

const (
	StatusPending        Status = "pending"
	StatusConfirmed      Status = "confirmed"
	StatusPacked         Status = "packed"
	StatusProcessing     Status = "processing"
	StatusHandedOver     Status = "handed_over"
	StatusOutForDelivery Status = "out_for_delivery"
	StatusDelivered      Status = "delivered"
	StatusCancelled      Status = "cancelled"
)

// Statuses lists every valid lifecycle state in nominal forward order,
// cancelled last as the off-path terminal.
var Statuses = []Status{
	StatusPending,
	StatusConfirmed,
	StatusPacked,
	StatusProcessing,
	StatusHandedOver,
	StatusOutForDelivery,
	StatusDelivered,
	StatusCancelled,
}

var statusRank = map[Status]int{
	StatusPending:        0,
	StatusConfirmed:      1,
	StatusPacked:         2,
	StatusProcessing:     3,
	StatusHandedOver:     4,
	StatusOutForDelivery: 5,
	StatusDelivered:      6,
}

// IsValid reports whether s is one of the enumerated lifecycle states.
func (s Status) IsValid() bool {
	if s == StatusCancelled {
		return true
	}
	_, ok := statusRank[s]
	return ok
}

// IsTerminal reports whether the order can still move. Delivered and
// cancelled orders are final.
func (s Status) IsTerminal() bool {
	return s == StatusDelivered || s == StatusCancelled
}

// TransitionPolicy decides whether a status change is allowed. The engine
// consults the policy after the target status passes enum validation and
// before any state is written.
type TransitionPolicy interface {
	Authorize(from, to Status) error
}

// PermissivePolicy allows any enumerated transition except reopening a
// terminal order. Operators routinely skip or revisit intermediate steps
// (a phoned-in confirmation arriving after packing, say), so the default
// engine does not enforce the nominal path.
type PermissivePolicy struct{}

// Authorize implements TransitionPolicy.
func (PermissivePolicy) Authorize(from, to Status) error {
	if from.IsTerminal() {
		return fmt.Errorf("%w: order is already %s", ErrAlreadyFinal, from)
	}
	return nil
}

// ForwardOnlyPolicy restricts transitions to forward moves along the
// nominal path, plus cancellation from any non-terminal state. Useful for
// deployments that want the audit trail to read strictly chronologically.
type ForwardOnlyPolicy struct{}

// Authorize implements TransitionPolicy.
func (ForwardOnlyPolicy) Authorize(from, to Status) error {
	if from.IsTerminal() {
		return fmt.Errorf("%w: order is already %s", ErrAlreadyFinal, from)
	}
	if to == StatusCancelled {
		return nil
	}
	if statusRank[to] <= statusRank[from] {
		return fmt.Errorf("%w: %s -> %s", ErrBackwardTransition, from, to)
	}
	return nil
}
