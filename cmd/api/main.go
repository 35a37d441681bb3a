package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/angelmondragon/stockroute-backend/api"
	"github.com/angelmondragon/stockroute-backend/api/routes"
	"github.com/angelmondragon/stockroute-backend/internal/allocation"
	"github.com/angelmondragon/stockroute-backend/internal/branches"
	"github.com/angelmondragon/stockroute-backend/internal/checkout"
	"github.com/angelmondragon/stockroute-backend/internal/idempotency"
	"github.com/angelmondragon/stockroute-backend/internal/orders"
	"github.com/angelmondragon/stockroute-backend/internal/shipments"
	"github.com/angelmondragon/stockroute-backend/internal/stock"
	pkgcheckout "github.com/angelmondragon/stockroute-backend/pkg/checkout"
	"github.com/angelmondragon/stockroute-backend/pkg/config"
	"github.com/angelmondragon/stockroute-backend/pkg/courier"
	"github.com/angelmondragon/stockroute-backend/pkg/db"
	"github.com/angelmondragon/stockroute-backend/pkg/instance"
	"github.com/angelmondragon/stockroute-backend/pkg/logger"
	"github.com/angelmondragon/stockroute-backend/pkg/maps"
	"github.com/angelmondragon/stockroute-backend/pkg/metrics"
	"github.com/angelmondragon/stockroute-backend/pkg/migrate"
	"github.com/angelmondragon/stockroute-backend/pkg/redis"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       cfg.App.LogLevel,
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbClient, err := db.New(ctx, cfg.DB, cfg.FeatureFlags.UseSQLite, logg)
	requireResource(ctx, logg, "database", err)
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		logg.Error(ctx, "failed to run dev migrations", err)
		os.Exit(1)
	}
	caps := dbClient.ResolveCapabilities(ctx, logg)

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	requireResource(ctx, logg, "redis", err)
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	courierMetrics := metrics.NewCourierMetrics(registry)

	courierClient, err := courier.NewClient(cfg.Courier.Email, cfg.Courier.Password,
		courier.WithBaseURL(cfg.Courier.BaseURL),
		courier.WithTimeout(cfg.Courier.Timeout),
		courier.WithMetrics(courierMetrics),
		courier.WithLogger(logg),
	)
	requireResource(ctx, logg, "courier client", err)
	defer courierClient.Close()

	allocOpts := []allocation.Option{
		allocation.WithSplitOrders(cfg.Allocation.SplitOrders),
		allocation.WithLogger(logg),
	}
	if cfg.GoogleMaps.APIKey != "" {
		geocoder, err := maps.NewClient(cfg.GoogleMaps.APIKey)
		requireResource(ctx, logg, "maps client", err)
		allocOpts = append(allocOpts, allocation.WithGeocoder(geocoder))
	}
	allocator, err := allocation.NewAllocator(allocation.NewRepository(dbClient.DB()), allocOpts...)
	requireResource(ctx, logg, "allocator", err)

	ledger := stock.NewLedger()
	guard := idempotency.NewGuard()
	salesRepo := orders.NewRepository(dbClient.DB(), caps)

	orchestrator, err := shipments.NewOrchestrator(shipments.OrchestratorParams{
		Repo:    shipments.NewRepository(dbClient.DB()),
		Tx:      dbClient,
		Courier: courierClient,
		Locker:  redisClient,
		Metrics: courierMetrics,
		Logger:  logg,
		Settings: shipments.Settings{
			LengthCm:     cfg.Courier.PackageLength,
			BreadthCm:    cfg.Courier.PackageBreadth,
			HeightCm:     cfg.Courier.PackageHeight,
			UnitWeightKg: cfg.Courier.UnitWeightKg,
			PickupDelay:  cfg.Courier.PickupDelay,
		},
	})
	requireResource(ctx, logg, "shipment orchestrator", err)

	ordersService, err := orders.NewService(orders.ServiceParams{
		Repo:        salesRepo,
		Tx:          dbClient,
		Ledger:      ledger,
		Claims:      guard,
		Courier:     courierClient,
		Fulfiller:   orchestrator,
		AutoFulfill: cfg.Allocation.AutoFulfill,
		Logger:      logg,
	})
	requireResource(ctx, logg, "orders service", err)

	convenienceFee, giftWrapFee := cfg.Checkout.Fees()
	checkoutService, err := checkout.NewService(checkout.ServiceParams{
		Catalog:     checkout.NewRepository(dbClient.DB()),
		Sales:       salesRepo,
		Tx:          dbClient,
		Planner:     allocator,
		Ledger:      ledger,
		Claims:      guard,
		Fulfiller:   orchestrator,
		Fees:        pkgcheckout.Fees{Convenience: convenienceFee, GiftWrap: giftWrapFee},
		AutoFulfill: cfg.Allocation.AutoFulfill,
		Logger:      logg,
	})
	requireResource(ctx, logg, "checkout service", err)

	branchService, err := branches.NewService(branches.NewRepository(dbClient.DB()), courierClient, logg)
	requireResource(ctx, logg, "branch service", err)

	router := routes.NewRouter(cfg, logg, dbClient, redisClient, registry, routes.Services{
		Checkout:  checkoutService,
		Orders:    ordersService,
		Shipments: orchestrator,
		Couriers:  orchestrator,
		Branches:  branchService,
	})
	server := api.NewServer(cfg, router)

	logCtx := logg.WithFields(ctx, map[string]any{
		"env":          cfg.App.Env,
		"addr":         server.Addr,
		"instance":     instance.GetID(),
		"split_orders": cfg.Allocation.SplitOrders,
		"auto_fulfill": cfg.Allocation.AutoFulfill,
	})
	logg.Info(logCtx, "starting api server")

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			logg.Error(logCtx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		logg.Info(logCtx, "shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logg.Error(logCtx, "graceful shutdown failed", err)
		return
	}
	logg.Info(logCtx, "api server stopped")
}

func requireResource(ctx context.Context, logg *logger.Logger, name string, err error) {
	if err == nil {
		return
	}
	logg.Error(logg.WithField(ctx, "resource", name), "failed to initialize resource", err)
	os.Exit(1)
}
