package shopify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/utafrali/shopify-product-bridge/internal/domain"
	apperrors "github.com/utafrali/shopify-product-bridge/pkg/errors"
	"github.com/utafrali/shopify-product-bridge/pkg/httpclient"
	"github.com/utafrali/shopify-product-bridge/pkg/logger"
)

const (
	serviceName    = "shopify"
	tracerName     = "github.com/utafrali/shopify-product-bridge/internal/shopify"
	maxResponseLen = 10 << 20
)

// ProductCreator creates a product with its variations on a shop. It never
// returns an error: every failure is described by the result.
type ProductCreator interface {
	CreateProductWithVariations(ctx context.Context, payload domain.ProductCreationRequest,
		shopDomain, accessToken, locationID string) domain.CreationResult
}

// Config holds Shopify Admin API settings.
type Config struct {
	APIVersion string
	Timeout    time.Duration
	Breaker    httpclient.CircuitBreakerConfig

	// BaseURL replaces https://{shop} when set, e.g. to reach a proxy or a
	// test server.
	BaseURL string

	UserAgent string
}

// Client talks to the Shopify Admin GraphQL API.
type Client struct {
	http       *httpclient.CircuitBreakerClient
	apiVersion string
	baseURL    string
	logger     *slog.Logger
}

var _ ProductCreator = (*Client)(nil)

// NewClient creates a Shopify client. Requests are sent once and never
// retried, because creating a product is not idempotent.
func NewClient(cfg Config, logger *slog.Logger) *Client {
	base := httpclient.New(httpclient.Config{
		Timeout:         cfg.Timeout,
		MaxConnsPerHost: 50,
		UserAgent:       cfg.UserAgent,
	})

	return &Client{
		http:       httpclient.NewCircuitBreakerClient(base, cfg.Breaker, logger).WithFallback(circuitOpenFallback),
		apiVersion: cfg.APIVersion,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		logger:     logger,
	}
}

// Endpoint returns the GraphQL URL for a shop. Without a BaseURL only
// *.myshopify.com hosts are reachable.
func (c *Client) Endpoint(shopDomain string) (string, error) {
	path := "/admin/api/" + c.apiVersion + "/graphql.json"
	if c.baseURL != "" {
		return c.baseURL + path, nil
	}

	shop, err := NormalizeShopDomain(shopDomain)
	if err != nil {
		return "", err
	}
	if !IsShopifyHost(shop) {
		return "", fmt.Errorf("shop domain %q is not a %s host", shopDomain, strings.TrimPrefix(shopSuffix, "."))
	}
	return "https://" + shop + path, nil
}

// BreakerState reports the state of the circuit breaker in front of a shop.
func (c *Client) BreakerState(shopDomain string) gobreaker.State {
	return c.http.State(breakerKey(shopDomain))
}

// Ready fails while the circuit breaker of any shop is open.
func (c *Client) Ready(context.Context) error {
	if open := c.http.OpenKeys(); len(open) > 0 {
		return fmt.Errorf("%s circuit breaker %s is open for %d shop(s)", serviceName, c.http.Name(), len(open))
	}
	return nil
}

// breakerKey names the breaker for a shop. Spellings of the same shop share
// one breaker.
func breakerKey(shopDomain string) string {
	if shop, err := NormalizeShopDomain(shopDomain); err == nil {
		return shop
	}
	return strings.ToLower(strings.TrimSpace(shopDomain))
}

// CreateProductWithVariations sends one productSet mutation. Payload
// rejections reported by Shopify come back as Errors keyed by field path;
// anything else that goes wrong comes back as Error.
func (c *Client) CreateProductWithVariations(
	ctx context.Context,
	payload domain.ProductCreationRequest,
	shopDomain, accessToken, locationID string,
) domain.CreationResult {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "shopify.productSet",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("shopify.shop_domain", shopDomain),
			attribute.String("shopify.api_version", c.apiVersion),
			attribute.Int("shopify.variant_count", len(payload.Variations)),
		),
	)
	defer span.End()

	log := logger.WithContext(ctx, c.logger)

	result := c.create(ctx, log, payload, shopDomain, accessToken, LocationGID(locationID))
	switch result.Outcome() {
	case domain.OutcomeFailed:
		span.SetStatus(codes.Error, result.Error)
	case domain.OutcomeRejected:
		span.SetAttributes(attribute.Int("shopify.user_error_count", len(result.Errors)))
	}
	return result
}

func (c *Client) create(
	ctx context.Context,
	log *slog.Logger,
	payload domain.ProductCreationRequest,
	shopDomain, accessToken, locationGID string,
) domain.CreationResult {
	endpoint, err := c.Endpoint(shopDomain)
	if err != nil {
		return domain.Failed(err.Error())
	}

	if locationGID == "" && payload.HasInventory() {
		log.WarnContext(ctx, "no inventory location configured, stock levels not set")
	}

	body, err := json.Marshal(graphQLRequest{
		Query: productSetMutation,
		Variables: map[string]any{
			"input":       buildProductSetInput(payload, locationGID),
			"synchronous": true,
		},
	})
	if err != nil {
		return domain.Failed(fmt.Sprintf("%s: encode request: %v", serviceName, err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return domain.Failed(fmt.Sprintf("%s: build request: %v", serviceName, err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set(domain.HeaderAccessToken, accessToken)

	start := time.Now()
	resp, err := c.http.Do(ctx, breakerKey(shopDomain), req)
	if err != nil {
		log.ErrorContext(ctx, "shopify request failed",
			slog.String("error", err.Error()),
			slog.Duration("duration", time.Since(start)),
		)
		return domain.Failed(describeTransportError(err))
	}

	log.DebugContext(ctx, "shopify responded",
		slog.Int("status", resp.StatusCode),
		slog.Duration("duration", time.Since(start)),
		slog.String("request_id", resp.Header.Get("X-Request-Id")),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return domain.Failed(describeAppError(httpclient.ParseResponseError(resp, serviceName)))
	}
	defer func() { _ = resp.Body.Close() }()

	var out graphQLResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseLen)).Decode(&out); err != nil {
		return domain.Failed(fmt.Sprintf("%s: decode response: %v", serviceName, err))
	}
	return interpret(out)
}

// interpret maps a decoded GraphQL response onto a creation result.
func interpret(out graphQLResponse) domain.CreationResult {
	if len(out.Errors) > 0 && string(out.Errors) != "null" {
		detail := httpclient.DescribeErrors(out.Errors)
		if detail == "" {
			detail = string(out.Errors)
		}
		return domain.Failed(serviceName + ": " + detail)
	}
	if out.Data == nil || out.Data.ProductSet == nil {
		return domain.Failed(serviceName + ": empty productSet response")
	}

	set := out.Data.ProductSet
	if len(set.UserErrors) > 0 {
		return domain.Rejected(userErrorMap(set.UserErrors))
	}
	if len(set.Product) == 0 || string(set.Product) == "null" {
		return domain.Failed(serviceName + ": productSet returned no product")
	}
	return domain.Created(set.Product)
}

// userErrorMap groups user errors by their dotted field path. Errors that
// are not tied to a field are filed under "base".
func userErrorMap(errs []userError) map[string]any {
	grouped := make(map[string][]string)
	for _, ue := range errs {
		key := strings.Join(ue.Field, ".")
		if key == "" {
			key = "base"
		}
		grouped[key] = append(grouped[key], ue.Message)
	}

	out := make(map[string]any, len(grouped))
	for k, msgs := range grouped {
		out[k] = msgs
	}
	return out
}

const unavailableMessage = serviceName + ": temporarily unavailable (circuit breaker open)"

// circuitOpenFallback answers for Shopify while the breaker is open.
func circuitOpenFallback(_ context.Context, _ error) (*http.Response, error) {
	return nil, apperrors.ServiceUnavailable(unavailableMessage)
}

func describeTransportError(err error) string {
	var (
		appErr    *apperrors.AppError
		serverErr *httpclient.ServerError
		netErr    net.Error
	)
	switch {
	case errors.As(err, &appErr):
		return appErr.Message
	case errors.Is(err, httpclient.ErrCircuitOpen), errors.Is(err, gobreaker.ErrTooManyRequests):
		return unavailableMessage
	case errors.Is(err, context.DeadlineExceeded), errors.As(err, &netErr) && netErr.Timeout():
		return serviceName + ": request timed out"
	case errors.Is(err, context.Canceled):
		return serviceName + ": request canceled"
	case errors.As(err, &serverErr):
		return fmt.Sprintf("%s: server error %d", serviceName, serverErr.StatusCode)
	default:
		return fmt.Sprintf("%s: request failed: %v", serviceName, err)
	}
}

func describeAppError(err error) string {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return err.Error()
}
