package routes

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/deshcart/deshcart-backend/api/controllers"
	"github.com/deshcart/deshcart-backend/api/middleware"
	"github.com/deshcart/deshcart-backend/internal/orders"
	"github.com/deshcart/deshcart-backend/internal/settlement"
	"github.com/deshcart/deshcart-backend/pkg/config"
	"github.com/deshcart/deshcart-backend/pkg/db"
	"github.com/deshcart/deshcart-backend/pkg/logger"
	pkgredis "github.com/deshcart/deshcart-backend/pkg/redis"
)

type redisDependency interface {
	pkgredis.IdempotencyStore
	Ping(ctx context.Context) error
}

// NewRouter wires the storefront, back-office, and provider callback surfaces.
func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient redisDependency,
	ordersSvc orders.Service,
	settlementSvc settlement.Service,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisClient))
	})

	// Provider callbacks authenticate by body signature, not by identity
	// headers, and must never be wrapped in response caching.
	r.Route("/api/v1/callbacks", func(r chi.Router) {
		r.Post("/card", controllers.CardCallback(settlementSvc, logg))
		r.Post("/wallet", controllers.WalletCallback(settlementSvc, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.CustomerContext(logg))
		r.Use(middleware.Idempotency(redisClient, logg))

		r.Post("/checkout", controllers.Checkout(settlementSvc, logg))
		r.Route("/orders", func(r chi.Router) {
			r.Get("/", controllers.ListOrders(ordersSvc, logg))
			r.Get("/{orderID}", controllers.OrderDetail(ordersSvc, logg))
			r.Post("/{orderID}/cancel", controllers.CancelOrder(ordersSvc, settlementSvc, logg))
			r.Post("/{orderID}/return", controllers.ReturnOrder(ordersSvc, settlementSvc, logg))
		})
	})

	r.Route("/api/ops/v1", func(r chi.Router) {
		r.Use(middleware.OperatorContext(logg))
		r.Use(middleware.Idempotency(redisClient, logg))

		r.Route("/orders", func(r chi.Router) {
			r.Post("/{orderID}/fulfill", controllers.FulfillOrder(ordersSvc, settlementSvc, logg))
			r.Post("/{orderID}/complete", controllers.CompleteOrder(ordersSvc, settlementSvc, logg))
		})
	})

	return r
}
