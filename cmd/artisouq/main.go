package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/artisouq/artisouq/internal/app"
	"github.com/artisouq/artisouq/internal/cart"
	"github.com/artisouq/artisouq/internal/catalog"
	"github.com/artisouq/artisouq/internal/observability"
	"github.com/artisouq/artisouq/internal/orders"
	"github.com/artisouq/artisouq/internal/pilots"
	"github.com/artisouq/artisouq/internal/platform/cache"
	"github.com/artisouq/artisouq/internal/platform/db"
	"github.com/artisouq/artisouq/internal/realtime"
	"github.com/artisouq/artisouq/jobs"
)

// stockClient adapts the catalog service to the order service's inventory
// port, translating restoration lists between the two packages' types.
type stockClient struct {
	catalog *catalog.Service
}

func (s stockClient) Reserve(ctx context.Context, productID uuid.UUID, quantity int) error {
	return s.catalog.Reserve(ctx, productID, quantity)
}

func (s stockClient) Restore(ctx context.Context, restorations []orders.StockRestoration) {
	adjustments := make([]catalog.StockAdjustment, 0, len(restorations))
	for _, r := range restorations {
		adjustments = append(adjustments, catalog.StockAdjustment{
			ProductID: r.ProductID,
			Quantity:  r.Quantity,
		})
	}
	s.catalog.Restore(ctx, adjustments)
}

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	dbpool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis unavailable, realtime fan-out disabled", slog.Any("error", err))
	}
	defer func() {
		if redisClient != nil {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}
	}()

	metrics := observability.NewMetrics()

	var notifier realtime.Notifier = realtime.NopNotifier{}
	var realtimeHandler *realtime.Handler
	if redisClient != nil {
		notifier = realtime.NewRedisNotifier(redisClient, logger, metrics)
		realtimeHandler = realtime.NewHandler(redisClient, logger)
	}

	catalogRepo := catalog.NewRepository(dbpool)
	catalogService := catalog.NewService(catalogRepo, logger)
	catalogHandler := catalog.NewHandler(logger, catalogService)

	cartRepo := cart.NewRepository(dbpool)
	cartService := cart.NewService(cartRepo, catalogService, logger)
	cartHandler := cart.NewHandler(logger, cartService)

	ordersRepo := orders.NewRepository(dbpool)
	ordersService := orders.NewService(ordersRepo, cartService, stockClient{catalog: catalogService}, notifier, logger)
	ordersHandler := orders.NewHandler(logger, ordersService)

	pilotsRepo := pilots.NewRepository(dbpool)
	pilotsService := pilots.NewService(pilotsRepo, ordersService, notifier, logger)
	pilotsHandler := pilots.NewHandler(logger, pilotsService)

	// Delivered orders free their courier through this hook.
	ordersService.SetPilotReleaser(pilotsService)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobClient, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Warn("job client unavailable, manual triggers disabled", slog.Any("error", err))
		jobClient = nil
	} else {
		defer func() {
			if err := jobClient.Close(); err != nil {
				logger.Warn("job client close", slog.Any("error", err))
			}
		}()
	}
	jobHandler := jobs.NewHandler(inspector, jobClient, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:          logger,
		Config:          cfg,
		CatalogHandler:  catalogHandler,
		CartHandler:     cartHandler,
		OrdersHandler:   ordersHandler,
		DeliveryHandler: pilotsHandler,
		RealtimeHandler: realtimeHandler,
		JobHandler:      jobHandler,
		Metrics:         metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
