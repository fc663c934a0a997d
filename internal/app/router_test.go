package app

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/artisouq/artisouq/internal/cart"
	"github.com/artisouq/artisouq/internal/catalog"
	"github.com/artisouq/artisouq/internal/observability"
	"github.com/artisouq/artisouq/internal/orders"
	"github.com/artisouq/artisouq/internal/pilots"
	_ "github.com/artisouq/artisouq/internal/testing/guard"
)

func testRouter(t *testing.T) http.Handler {
	t.Helper()
	cfg := &Config{AppEnv: "development", RateLimitPerMinute: 1000}
	logger := NewLogger(cfg)
	return NewRouter(RouterParams{
		Logger:          logger,
		Config:          cfg,
		CatalogHandler:  catalog.NewHandler(logger, nil),
		CartHandler:     cart.NewHandler(logger, nil),
		OrdersHandler:   orders.NewHandler(logger, nil),
		DeliveryHandler: pilots.NewHandler(logger, nil),
		Metrics:         observability.NewMetrics(),
	})
}

func TestHealthz(t *testing.T) {
	router := testRouter(t)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestMetricsEndpointExposed(t *testing.T) {
	router := testRouter(t)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestSecurityHeadersApplied(t *testing.T) {
	router := testRouter(t)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	require.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
}

func TestUnknownRouteIs404(t *testing.T) {
	router := testRouter(t)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/nope", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
}
