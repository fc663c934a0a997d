package realtime

import (
	"context"

	"github.com/google/uuid"
)

// Notifier publishes lifecycle events to interested subscribers.
//
// Every method is best-effort: implementations never return an error to the
// caller and never retry. A status transition that persisted is final even
// when nobody hears about it.
type Notifier interface {
	// PublishStatusUpdate notifies the order channel and the admin channel
	// of a transition. orderID may be nil for customer-triggered updates.
	PublishStatusUpdate(ctx context.Context, orderNumber, status string, history []HistoryEntry, orderID *uuid.UUID)

	// PublishLocationUpdate notifies the order channel of a courier position.
	// When pilotID is non-nil the pilot channel receives a pilot_location
	// event as well, for the admin fleet map.
	PublishLocationUpdate(ctx context.Context, orderNumber string, lat, lng float64, pilotID *uuid.UUID)

	// PublishPilotAssigned notifies the order channel that a pilot took the
	// delivery.
	PublishPilotAssigned(ctx context.Context, orderNumber, pilotName, pilotPhone string)

	// PublishNewOrder notifies the admin channel of a fresh checkout.
	PublishNewOrder(ctx context.Context, orderNumber string, total float64, customerName string)
}

// NopNotifier discards every event. Used when redis is unavailable and in
// tests that do not care about fan-out.
type NopNotifier struct{}

func (NopNotifier) PublishStatusUpdate(context.Context, string, string, []HistoryEntry, *uuid.UUID) {
}
func (NopNotifier) PublishLocationUpdate(context.Context, string, float64, float64, *uuid.UUID) {}
func (NopNotifier) PublishPilotAssigned(context.Context, string, string, string)                {}
func (NopNotifier) PublishNewOrder(context.Context, string, float64, string)                    {}
