package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/stockroute-backend/api/controllers"
	couriercontrollers "github.com/angelmondragon/stockroute-backend/api/controllers/couriers"
	ordercontrollers "github.com/angelmondragon/stockroute-backend/api/controllers/orders"
	shipmentcontrollers "github.com/angelmondragon/stockroute-backend/api/controllers/shipments"
	"github.com/angelmondragon/stockroute-backend/api/middleware"
	"github.com/angelmondragon/stockroute-backend/internal/branches"
	"github.com/angelmondragon/stockroute-backend/internal/checkout"
	"github.com/angelmondragon/stockroute-backend/internal/orders"
	pkgAuth "github.com/angelmondragon/stockroute-backend/pkg/auth"
	"github.com/angelmondragon/stockroute-backend/pkg/config"
	"github.com/angelmondragon/stockroute-backend/pkg/db"
	"github.com/angelmondragon/stockroute-backend/pkg/logger"
	"github.com/angelmondragon/stockroute-backend/pkg/redis"
)

// Services groups the domain services exposed over HTTP.
type Services struct {
	Checkout  checkout.Service
	Orders    orders.Service
	Shipments shipmentcontrollers.Service
	Couriers  couriercontrollers.Service
	Branches  branches.Service
}

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *redis.Client,
	gatherer prometheus.Gatherer,
	svc Services,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	// a nil *redis.Client must not reach the middleware as a non-nil interface
	var (
		idemStore   redis.IdempotencyStore
		limitStore  middleware.RateLimitStore
		cachePinger controllers.Pinger
	)
	if redisClient != nil {
		idemStore = redisClient
		limitStore = redisClient
		cachePinger = redisClient
	}
	idempotent := middleware.Idempotency(idemStore, logg)
	placeLimit := middleware.RateLimit(middleware.PlacementPolicy(cfg.RateLimit), limitStore, logg)
	operator := middleware.RequireRole(logg, pkgAuth.RoleOperator, pkgAuth.RoleAdmin)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, dbP, cachePinger, logg))
	})
	if cfg.Metrics.Enabled && gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		// storefront
		r.Group(func(r chi.Router) {
			r.With(placeLimit, idempotent).Post("/orders/place", ordercontrollers.Place(svc.Checkout, logg))
			r.With(idempotent).Post("/orders/cancel", ordercontrollers.Cancel(svc.Orders, logg))
			r.Get("/orders/{saleId}", ordercontrollers.Get(svc.Orders, logg))
			r.Get("/couriers/serviceability", couriercontrollers.Serviceability(svc.Couriers, logg))
		})

		r.With(middleware.WebhookToken(cfg.Courier.WebhookToken, logg)).
			Post("/couriers/webhook", couriercontrollers.Webhook(svc.Couriers, logg))

		// operator
		r.Group(func(r chi.Router) {
			r.Use(middleware.OperatorAuth(cfg.JWT, logg))
			r.Use(operator)

			r.Get("/operator/ping", controllers.OperatorPing())

			r.Post("/orders/confirm", ordercontrollers.Confirm(svc.Orders, logg))
			r.Post("/orders/{saleId}/payment-status", ordercontrollers.SetPaymentStatus(svc.Orders, logg))

			r.With(idempotent).Post("/shipments/fulfill/{saleId}", shipmentcontrollers.Fulfill(svc.Shipments, logg))
			r.Get("/shipments/by-sale/{saleId}", shipmentcontrollers.BySale(svc.Shipments, logg))

			r.Route("/couriers", func(r chi.Router) {
				r.With(idempotent).Post("/assign", couriercontrollers.Assign(svc.Couriers, logg))
				r.With(idempotent).Post("/pickup", couriercontrollers.SchedulePickup(svc.Couriers, logg))
				r.Get("/invoice/{saleId}", couriercontrollers.Invoice(svc.Couriers, logg))
				r.Get("/manifest/{saleId}", couriercontrollers.Manifest(svc.Couriers, logg))
				r.Post("/pickup-locations/sync", couriercontrollers.SyncPickupLocations(svc.Branches, logg))
				r.Post("/pickup-locations/import", couriercontrollers.ImportPickupLocations(svc.Branches, logg))
			})
		})
	})

	return r
}
