// Package app wires the catalog service together.
package app

import (
	"log/slog"
	"net/http"

	"github.com/abgdnv/petcatalog/internal/auth"
	"github.com/abgdnv/petcatalog/internal/config"
	"github.com/abgdnv/petcatalog/internal/service"
	"github.com/abgdnv/petcatalog/internal/store"
	"github.com/abgdnv/petcatalog/internal/transport/rest"
	"github.com/abgdnv/petcatalog/pkg/messaging"
	"github.com/abgdnv/petcatalog/pkg/server"
	"github.com/go-chi/chi/v5"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
)

// ServiceName names the service in configuration, telemetry and logs.
const ServiceName = "catalog"

type Dependencies struct {
	ProductService service.ProductService
	Gate           *auth.Gate
	Health         *health.Server
	// Metrics serves /metrics when set.
	Metrics http.Handler
	Logger  *slog.Logger
}

// SetupDependencies builds the service graph on top of an already opened store.
func SetupDependencies(productStore store.ProductStore, publisher messaging.Publisher, cfg *config.Config, logger *slog.Logger) *Dependencies {
	if cfg.Auth.UsesPlaceholder() {
		logger.Warn("auth.apikey is the insecure placeholder, set CATALOG_AUTH_APIKEY before exposing this service")
	}
	pService := service.NewService(productStore, publisher, logger,
		service.WithMaxRetries(cfg.Sell.MaxRetries))

	return &Dependencies{
		ProductService: pService,
		Gate:           auth.NewGate(cfg.Auth.APIKey, logger),
		Health:         health.NewServer(),
		Logger:         logger,
	}
}

// SetupHttpHandler initializes the router and routes for the catalog.
// Used by E2E tests to set up the HTTP server with the necessary routes and middleware.
func SetupHttpHandler(deps *Dependencies) http.Handler {
	mux := server.NewChiRouter(deps.Logger)
	wireRoutes(mux, deps)
	return server.Instrument(ServiceName, mux)
}

func wireRoutes(mux *chi.Mux, deps *Dependencies) {
	productHandler := rest.NewHandler(deps.ProductService, deps.Logger)
	productHandler.RegisterRoutes(mux, deps.Gate.Middleware)
	if deps.Metrics != nil {
		mux.Method(http.MethodGet, "/metrics", deps.Metrics)
	}
}

// SetupHttpServer creates and configures the HTTP server.
func SetupHttpServer(deps *Dependencies, cfg *config.Config) *http.Server {
	httpCfg := server.HTTPConfig{
		Port:           cfg.HTTPServer.Port,
		MaxHeaderBytes: cfg.HTTPServer.MaxHeaderBytes,
		ReadTimeout:    cfg.HTTPServer.Timeout.Read,
		WriteTimeout:   cfg.HTTPServer.Timeout.Write,
		IdleTimeout:    cfg.HTTPServer.Timeout.Idle,
		ReadHeader:     cfg.HTTPServer.Timeout.ReadHeader,
	}
	return server.NewHTTPServer(httpCfg, SetupHttpHandler(deps))
}

// SetupGrpcServer initializes the gRPC server. It only carries the health service.
func SetupGrpcServer(deps *Dependencies, reflectionEnabled bool) *grpc.Server {
	return server.NewGRPCServer(reflectionEnabled, server.WithHealth(deps.Health))
}
