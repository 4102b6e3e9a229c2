package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/utafrali/shopify-product-bridge/internal/service"
	apperrors "github.com/utafrali/shopify-product-bridge/pkg/errors"
	"github.com/utafrali/shopify-product-bridge/pkg/health"
	"github.com/utafrali/shopify-product-bridge/pkg/httputil"
	"github.com/utafrali/shopify-product-bridge/pkg/middleware"
)

// RouterConfig holds the settings the router needs beyond its handlers.
type RouterConfig struct {
	ServiceName       string
	DefaultLocationID string
	RequestTimeout    time.Duration
	CORS              middleware.CORSConfig

	// RateLimiter throttles /api routes per shop. Nil disables it.
	RateLimiter *middleware.RateLimiter
}

// NewRouter creates a chi router with all routes registered.
func NewRouter(
	productService *service.ProductService,
	healthHandler *health.Handler,
	cfg RouterConfig,
	logger *slog.Logger,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.CORS(cfg.CORS))
	r.Use(middleware.Recovery(logger))
	r.Use(chimw.Compress(5))
	if cfg.RequestTimeout > 0 {
		r.Use(chimw.Timeout(cfg.RequestTimeout))
	}
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.PrometheusMetrics(cfg.ServiceName))
	r.Use(middleware.Tracing(cfg.ServiceName))
	r.Use(middleware.RequestLogger(logger))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteError(w, r, apperrors.NotFound("route not found"), logger)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteError(w, r, apperrors.MethodNotAllowed(r.Method), logger)
	})

	// Health check endpoints
	r.Get("/health/live", healthHandler.LivenessHandler())
	r.Get("/health/ready", healthHandler.ReadinessHandler())
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	productHandler := NewProductHandler(productService, cfg.DefaultLocationID, logger)

	r.Route("/api", func(r chi.Router) {
		if cfg.RateLimiter != nil {
			r.Use(cfg.RateLimiter.Handler)
		}
		r.Post("/products", productHandler.CreateProduct)
	})

	return r
}
