package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/frahmantamala/payment-orchestrator/internal/auth"
	"github.com/frahmantamala/payment-orchestrator/internal/ipn"
	"github.com/frahmantamala/payment-orchestrator/internal/paymentorder"
	"github.com/frahmantamala/payment-orchestrator/internal/transport/rest"

	"github.com/go-chi/chi"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

var httpServerCmd = &cobra.Command{
	Use:   "server",
	Short: "Start HTTP server",
	Long:  `Start the HTTP server to handle tenant API requests and gateway notifications`,
	Run: func(cmd *cobra.Command, args []string) {
		startHTTPServer()
	},
}

func startHTTPServer() {
	deps, err := initializeDependencies()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize dependencies: %v\n", err)
		os.Exit(1)
	}

	router := chi.NewRouter()
	if err := setupRoutes(router, deps); err != nil {
		deps.Logger.Error("failed to register routes", "error", err)
		deps.Close(context.Background())
		os.Exit(1)
	}

	addr := fmt.Sprintf(":%d", deps.Config.Server.Port)
	deps.Logger.Info("Starting HTTP server", "address", addr, "tasks_driver", deps.Config.Tasks.Driver)

	server := &http.Server{
		Addr:              addr,
		Handler:           otelhttp.NewHandler(router, "payment-orchestrator"),
		ReadHeaderTimeout: deps.Config.Server.ReadHeaderTimeout,
		ReadTimeout:       deps.Config.Server.ReadTimeout,
		WriteTimeout:      deps.Config.Server.WriteTimeout,
		IdleTimeout:       deps.Config.Server.IdleTimeout,
	}

	// Signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	serverErrChan := make(chan error, 1)
	go func() {
		serverErrChan <- server.ListenAndServe()
	}()

	select {
	case sig := <-sigChan:
		deps.Logger.Info("Received signal, shutting down...", "signal", sig)
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			deps.Logger.Error("Server shutdown error", "error", err)
		}
		deps.Close(ctx)
	case err := <-serverErrChan:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			deps.Logger.Error("Server failed to start", "error", err)
			deps.Close(context.Background())
			os.Exit(1)
		}
	}

	deps.Logger.Info("Server stopped")
}

func setupRoutes(router *chi.Mux, deps *Dependencies) error {
	handlers := rest.Handlers{
		Auth:         auth.NewHandler(deps.Auth, deps.Logger),
		PaymentOrder: paymentorder.NewHandler(deps.Orders, deps.Logger),
		Ipn:          ipn.NewHandler(deps.Pipeline, deps.Logger),
	}

	return rest.RegisterAllRoutes(router, deps.DB.DB, deps.Redis, handlers, deps.Config.Observability.Metrics.Enabled, deps.Logger)
}
