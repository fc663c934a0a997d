package realtime

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/artisouq/artisouq/internal/observability"
)

// RedisNotifier broadcasts events over redis pub/sub. Subscribers join a
// channel with SUBSCRIBE and receive JSON envelopes; redis gives exactly the
// delivery contract required here: no persistence, no replay, no ordering
// across channels.
type RedisNotifier struct {
	client  *redis.Client
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewRedisNotifier constructs a notifier over the given client.
func NewRedisNotifier(client *redis.Client, logger *slog.Logger, metrics *observability.Metrics) *RedisNotifier {
	return &RedisNotifier{client: client, logger: logger, metrics: metrics}
}

func (n *RedisNotifier) publish(ctx context.Context, channel, event string, payload any) {
	body, err := json.Marshal(Envelope{Event: event, Data: payload})
	if err != nil {
		n.logger.Error("marshal event", slog.String("event", event), slog.Any("error", err))
		n.metrics.EventDropped(event)
		return
	}
	if err := n.client.Publish(ctx, channel, body).Err(); err != nil {
		n.logger.Warn("publish event",
			slog.String("event", event),
			slog.String("channel", channel),
			slog.Any("error", err))
		n.metrics.EventDropped(event)
		return
	}
	n.metrics.EventPublished(event)
}

// PublishStatusUpdate implements Notifier.
func (n *RedisNotifier) PublishStatusUpdate(ctx context.Context, orderNumber, status string, history []HistoryEntry, orderID *uuid.UUID) {
	update := StatusUpdate{
		OrderNumber:   orderNumber,
		Status:        status,
		StatusHistory: history,
		Timestamp:     time.Now().UTC(),
	}
	n.publish(ctx, OrderChannel(orderNumber), EventOrderStatusUpdate, update)

	update.OrderID = orderID
	n.publish(ctx, AdminChannel, EventAdminOrderStatusUpdate, update)
}

// PublishLocationUpdate implements Notifier.
func (n *RedisNotifier) PublishLocationUpdate(ctx context.Context, orderNumber string, lat, lng float64, pilotID *uuid.UUID) {
	now := time.Now().UTC()
	n.publish(ctx, OrderChannel(orderNumber), EventDeliveryLocationUpdate, LocationUpdate{
		OrderNumber: orderNumber,
		Lat:         lat,
		Lng:         lng,
		Timestamp:   now,
	})
	if pilotID != nil {
		n.publish(ctx, PilotChannel(*pilotID), EventPilotLocation, LocationUpdate{
			Lat:       lat,
			Lng:       lng,
			Timestamp: now,
		})
	}
}

// PublishPilotAssigned implements Notifier.
func (n *RedisNotifier) PublishPilotAssigned(ctx context.Context, orderNumber, pilotName, pilotPhone string) {
	n.publish(ctx, OrderChannel(orderNumber), EventPilotAssigned, PilotAssigned{
		OrderNumber: orderNumber,
		Pilot:       PilotInfo{Name: pilotName, Phone: pilotPhone},
		Timestamp:   time.Now().UTC(),
	})
}

// PublishNewOrder implements Notifier.
func (n *RedisNotifier) PublishNewOrder(ctx context.Context, orderNumber string, total float64, customerName string) {
	if customerName == "" {
		customerName = "Guest"
	}
	n.publish(ctx, AdminChannel, EventNewOrder, NewOrder{
		OrderNumber: orderNumber,
		Total:       total,
		Customer:    customerName,
		Timestamp:   time.Now().UTC(),
	})
}
