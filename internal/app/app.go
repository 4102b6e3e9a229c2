package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/utafrali/shopify-product-bridge/internal/config"
	handler "github.com/utafrali/shopify-product-bridge/internal/handler/http"
	"github.com/utafrali/shopify-product-bridge/internal/service"
	"github.com/utafrali/shopify-product-bridge/internal/shopify"
	"github.com/utafrali/shopify-product-bridge/pkg/health"
	"github.com/utafrali/shopify-product-bridge/pkg/middleware"
	"github.com/utafrali/shopify-product-bridge/pkg/tracing"
)

const serviceName = "shopify-product-bridge"

// Version is reported to the tracing backend. The CLI overrides it at startup.
var Version = "dev"

// App wires together all dependencies and runs the bridge.
type App struct {
	cfg            *config.Config
	logger         *slog.Logger
	rateLimiter    *middleware.RateLimiter
	httpServer     *http.Server
	tracerShutdown tracing.ShutdownFunc
}

// NewApp creates a new application instance, initializing all dependencies.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	tracerShutdown, err := tracing.InitTracer(ctx, tracing.Config{
		ServiceName:    serviceName,
		ServiceVersion: Version,
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.OTELEndpoint,
		SampleRate:     cfg.OTELSampleRate,
		Enabled:        cfg.OTELEnabled,
	})
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}

	breaker := cfg.CircuitBreaker()
	client := shopify.NewClient(shopify.Config{
		APIVersion: cfg.ShopifyAPIVersion,
		Timeout:    cfg.ShopifyTimeout(),
		Breaker:    breaker,
		BaseURL:    cfg.ShopifyBaseURL,
		UserAgent:  serviceName + "/" + Version,
	}, logger)
	logger.Info("shopify client initialized",
		slog.String("api_version", cfg.ShopifyAPIVersion),
		slog.Int("timeout_seconds", cfg.ShopifyTimeoutSeconds),
		slog.Uint64("cb_min_requests", uint64(breaker.MinRequests)),
		slog.Int("cb_timeout_seconds", cfg.CBTimeout),
	)
	if cfg.ShopifyLocationID == "" {
		logger.Warn("SHOPIFY_LOCATION_ID is not set; inventory quantities are only sent when a request names a location")
	}

	productService := service.NewProductService(client, logger)

	healthHandler := health.NewHandler()
	healthHandler.RegisterCritical("config", func(context.Context) error {
		return cfg.Validate()
	})
	healthHandler.RegisterNonCritical("shopify", client.Ready)

	rateLimiter := middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst, 10*time.Minute, logger)

	cors := middleware.DefaultCORSConfig()
	cors.AllowedOrigins = cfg.CORSAllowedOrigins

	router := handler.NewRouter(productService, healthHandler, handler.RouterConfig{
		ServiceName:       serviceName,
		DefaultLocationID: cfg.ShopifyLocationID,
		RequestTimeout:    cfg.RequestTimeout(),
		CORS:              cors,
		RateLimiter:       rateLimiter,
	}, logger)

	// WriteTimeout leaves room for the outbound call plus the envelope.
	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      cfg.RequestTimeout() + 5*time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return &App{
		cfg:            cfg,
		logger:         logger,
		rateLimiter:    rateLimiter,
		httpServer:     httpServer,
		tracerShutdown: tracerShutdown,
	}, nil
}

// Handler exposes the router, mainly for tests.
func (a *App) Handler() http.Handler {
	return a.httpServer.Handler
}

// Run starts the HTTP server and blocks until the context is canceled.
func (a *App) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", a.httpServer.Addr)
	if err != nil {
		a.closeBackground()
		return fmt.Errorf("listen %s: %w", a.httpServer.Addr, err)
	}
	return a.Serve(ctx, ln)
}

// Serve runs the HTTP server on ln until the context is canceled, then shuts
// down.
func (a *App) Serve(ctx context.Context, ln net.Listener) error {
	errCh := make(chan error, 1)

	go func() {
		a.logger.Info("starting HTTP server",
			slog.String("addr", ln.Addr().String()),
		)
		if err := a.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-errCh:
		a.closeBackground()
		return err
	}

	return a.Shutdown()
}

// Shutdown gracefully stops all components in order:
// 1. HTTP server (drain in-flight requests)
// 2. Tracer (flush spans of drained requests)
// 3. Rate limiter cleanup loop
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	var errs []error

	httpCtx, httpCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer httpCancel()
	if err := a.httpServer.Shutdown(httpCtx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	if a.tracerShutdown != nil {
		tracerCtx, tracerCancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer tracerCancel()
		if err := a.tracerShutdown(tracerCtx); err != nil {
			a.logger.Error("tracer shutdown error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	a.rateLimiter.Stop()

	a.logger.Info("application shutdown complete")
	return errors.Join(errs...)
}

func (a *App) closeBackground() {
	a.rateLimiter.Stop()
	if a.tracerShutdown != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = a.tracerShutdown(ctx)
	}
}
