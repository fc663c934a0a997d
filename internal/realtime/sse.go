package realtime

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Handler exposes server-sent-event subscriber endpoints. Each connection
// joins exactly one channel for its lifetime; closing the connection leaves
// the channel. Nothing about a subscription survives a disconnect.
type Handler struct {
	client *redis.Client
	logger *slog.Logger
}

// NewHandler constructs the subscriber surface.
func NewHandler(client *redis.Client, logger *slog.Logger) *Handler {
	return &Handler{client: client, logger: logger}
}

// MountRoutes registers subscriber routes on the router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/orders/{orderNumber}", h.subscribeOrder)
	r.Get("/admin", h.subscribeAdmin)
	r.Get("/pilots/{id}", h.subscribePilot)
}

func (h *Handler) subscribeOrder(w http.ResponseWriter, r *http.Request) {
	orderNumber := chi.URLParam(r, "orderNumber")
	if orderNumber == "" {
		http.Error(w, "order number required", http.StatusBadRequest)
		return
	}
	h.stream(w, r, OrderChannel(orderNumber))
}

func (h *Handler) subscribeAdmin(w http.ResponseWriter, r *http.Request) {
	h.stream(w, r, AdminChannel)
}

func (h *Handler) subscribePilot(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid pilot id", http.StatusBadRequest)
		return
	}
	h.stream(w, r, PilotChannel(id))
}

// stream pumps channel messages to the client until it disconnects.
func (h *Handler) stream(w http.ResponseWriter, r *http.Request, channel string) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	ctx := r.Context()
	sub := h.client.Subscribe(ctx, channel)
	defer func() {
		if err := sub.Close(); err != nil {
			h.logger.Warn("close subscription", slog.String("channel", channel), slog.Any("error", err))
		}
	}()

	// Confirm the subscription before declaring the stream open.
	if _, err := sub.Receive(ctx); err != nil {
		h.logger.Warn("subscribe", slog.String("channel", channel), slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	h.logger.Info("subscriber joined", slog.String("channel", channel))
	defer h.logger.Info("subscriber left", slog.String("channel", channel))

	msgs := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, open := <-msgs:
			if !open {
				return
			}
			if _, err := fmt.Fprintf(w, "data: %s\n\n", msg.Payload); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
