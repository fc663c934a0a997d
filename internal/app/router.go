package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/artisouq/artisouq/internal/cart"
	"github.com/artisouq/artisouq/internal/catalog"
	"github.com/artisouq/artisouq/internal/observability"
	"github.com/artisouq/artisouq/internal/orders"
	"github.com/artisouq/artisouq/internal/pilots"
	"github.com/artisouq/artisouq/internal/realtime"
	"github.com/artisouq/artisouq/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger          *slog.Logger
	Config          *Config
	CatalogHandler  *catalog.Handler
	CartHandler     *cart.Handler
	OrdersHandler   *orders.Handler
	DeliveryHandler *pilots.Handler
	RealtimeHandler *realtime.Handler
	JobHandler      *jobs.Handler
	Metrics         *observability.Metrics
}

// NewRouter constructs the chi.Router with storefront defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api", func(r chi.Router) {
		r.Route("/products", params.CatalogHandler.MountRoutes)
		r.Route("/cart", params.CartHandler.MountRoutes)
		r.Route("/orders", params.OrdersHandler.MountRoutes)
		r.Route("/delivery", params.DeliveryHandler.MountRoutes)
	})
	if params.RealtimeHandler != nil {
		r.Route("/realtime", params.RealtimeHandler.MountRoutes)
	}
	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	return r
}
