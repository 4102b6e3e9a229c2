package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/utafrali/shopify-product-bridge/internal/domain"
	"github.com/utafrali/shopify-product-bridge/internal/shopify"
	"github.com/utafrali/shopify-product-bridge/pkg/logger"
)

const tracerName = "github.com/utafrali/shopify-product-bridge/internal/service"

var (
	productCreationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shopify_product_creations_total",
			Help: "Product creation attempts forwarded to Shopify by outcome",
		},
		[]string{"outcome"},
	)

	productCreationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "shopify_product_creation_duration_seconds",
			Help:    "Time spent creating a product on Shopify",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"outcome"},
	)
)

// CreateProductInput carries a validated product and the shop it goes to.
type CreateProductInput struct {
	Product     domain.ProductCreationRequest
	Credentials domain.Credentials
	LocationID  string
}

// ProductService forwards validated products to Shopify.
type ProductService struct {
	creator shopify.ProductCreator
	logger  *slog.Logger
}

// NewProductService creates a new product service.
func NewProductService(creator shopify.ProductCreator, logger *slog.Logger) *ProductService {
	return &ProductService{
		creator: creator,
		logger:  logger,
	}
}

// CreateProduct makes exactly one creation attempt and returns its result
// unchanged.
func (s *ProductService) CreateProduct(ctx context.Context, in CreateProductInput) domain.CreationResult {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "ProductService.CreateProduct")
	defer span.End()

	span.SetAttributes(
		attribute.String("shopify.shop_domain", in.Credentials.ShopDomain),
		attribute.Bool("shopify.location_set", in.LocationID != ""),
		attribute.Int("product.variation_count", len(in.Product.Variations)),
	)

	start := time.Now()
	result := s.creator.CreateProductWithVariations(ctx, in.Product,
		in.Credentials.ShopDomain, in.Credentials.AccessToken, in.LocationID)
	elapsed := time.Since(start)

	outcome := result.Outcome()
	productCreationsTotal.WithLabelValues(outcome).Inc()
	productCreationDuration.WithLabelValues(outcome).Observe(elapsed.Seconds())
	span.SetAttributes(attribute.String("product.outcome", outcome))

	log := s.log(ctx).With(
		slog.String("outcome", outcome),
		slog.String("title", in.Product.Title),
		slog.Int("variations", len(in.Product.Variations)),
		slog.Duration("duration", elapsed),
	)

	switch outcome {
	case domain.OutcomeCreated:
		log.InfoContext(ctx, "product created")
	case domain.OutcomeRejected:
		log.WarnContext(ctx, "product rejected by shopify", slog.Any("errors", result.Errors))
	default:
		span.SetStatus(codes.Error, result.Error)
		log.ErrorContext(ctx, "product creation failed", slog.String("error", result.Error))
	}

	return result
}

// log prefers the request-scoped logger set by the RequestLogger middleware.
func (s *ProductService) log(ctx context.Context) *slog.Logger {
	if l := logger.FromContext(ctx); l != slog.Default() {
		return l
	}
	return logger.WithContext(ctx, s.logger)
}
