package rest

import (
	"database/sql"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	chiMiddleware "github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/frahmantamala/payment-orchestrator/api"
	"github.com/frahmantamala/payment-orchestrator/internal/auth"
	"github.com/frahmantamala/payment-orchestrator/internal/ipn"
	"github.com/frahmantamala/payment-orchestrator/internal/paymentorder"
	"github.com/frahmantamala/payment-orchestrator/internal/transport/middleware"
	"github.com/frahmantamala/payment-orchestrator/internal/transport/swagger"
)

type Handlers struct {
	Auth         *auth.Handler
	PaymentOrder *paymentorder.Handler
	Ipn          *ipn.Handler
}

func RegisterAllRoutes(router *chi.Mux, db *sql.DB, redisClient redis.UniversalClient, handlers Handlers, metricsEnabled bool, logger *slog.Logger) error {
	healthHandler := NewHealthHandler(db, redisClient)

	validator, err := middleware.OpenAPIValidator(api.OpenAPISpec, logger)
	if err != nil {
		return err
	}

	// Apply global middleware
	router.Use(chiMiddleware.RequestID)
	router.Use(middleware.RequestID)
	router.Use(middleware.RecoveryMiddleware(logger))
	router.Use(middleware.LoggingMiddleware(logger))

	// Serve OpenAPI spec at root
	router.Get("/openapi.yml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/yaml")
		w.Write(api.OpenAPISpec)
	})
	// Swagger UI route at root
	router.Handle("/swagger/*", swagger.Handler("/openapi.yml"))

	router.Get("/health", healthHandler.healthCheckHandler)
	router.Get("/ping", healthHandler.pingHandler)
	if metricsEnabled {
		router.Handle("/metrics", promhttp.Handler())
	}

	router.Route("/{tenant}/v1", func(r chi.Router) {
		r.Use(validator)
		r.Use(handlers.Auth.TenantMiddleware)

		// Gateways cannot send tenant keys.
		r.Post("/gateways/{gatewayType}/ipn", handlers.Ipn.Receive)

		r.Group(func(pr chi.Router) {
			pr.Use(handlers.Auth.APIKeyMiddleware)

			pr.Route("/payment-orders", func(or chi.Router) {
				or.Post("/", handlers.PaymentOrder.CreatePaymentOrder)
				or.Get("/{reference}", handlers.PaymentOrder.GetPaymentOrder)
				or.Post("/{reference}/cancel", handlers.PaymentOrder.CancelPaymentOrder)
				or.Post("/{reference}/execute", handlers.PaymentOrder.ExecutePaymentOrder)
				or.Post("/{reference}/charge-back", handlers.PaymentOrder.ChargeBackPaymentOrder)
				or.Post("/{reference}/manual-refunded", handlers.PaymentOrder.ManualRefundPaymentOrder)
			})
		})
	})
	return nil
}
