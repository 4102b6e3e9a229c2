package config

import (
	"fmt"
	"net/url"
	"regexp"
	"time"

	pkgconfig "github.com/utafrali/shopify-product-bridge/pkg/config"
	"github.com/utafrali/shopify-product-bridge/pkg/httpclient"
)

var apiVersionPattern = regexp.MustCompile(`^\d{4}-(0[1-9]|1[0-2])$`)

// Config holds all configuration for the product bridge.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// HTTP server
	HTTPPort              int `env:"HTTP_PORT" envDefault:"8080"`
	RequestTimeoutSeconds int `env:"REQUEST_TIMEOUT_SECONDS" envDefault:"45"`

	// Shopify Admin API
	ShopifyLocationID     string `env:"SHOPIFY_LOCATION_ID"`
	ShopifyAPIVersion     string `env:"SHOPIFY_API_VERSION" envDefault:"2025-01"`
	ShopifyTimeoutSeconds int    `env:"SHOPIFY_TIMEOUT_SECONDS" envDefault:"30"`
	ShopifyBaseURL        string `env:"SHOPIFY_BASE_URL"`

	// Circuit breaker around Shopify calls
	CBMaxRequests  uint32  `env:"CB_MAX_REQUESTS" envDefault:"1"`
	CBInterval     int     `env:"CB_INTERVAL_SECONDS" envDefault:"60"`
	CBTimeout      int     `env:"CB_TIMEOUT_SECONDS" envDefault:"30"`
	CBFailureRatio float64 `env:"CB_FAILURE_RATIO" envDefault:"0.5"`
	CBMinRequests  uint32  `env:"CB_MIN_REQUESTS" envDefault:"5"`

	// Inbound rate limiting, keyed by shop domain
	RateLimitRPS   float64 `env:"RATE_LIMIT_RPS" envDefault:"5"`
	RateLimitBurst int     `env:"RATE_LIMIT_BURST" envDefault:"10"`

	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envDefault:"*" envSeparator:","`

	// OpenTelemetry
	OTELEnabled    bool    `env:"OTEL_ENABLED" envDefault:"false"`
	OTELEndpoint   string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4318"`
	OTELSampleRate float64 `env:"OTEL_SAMPLE_RATE" envDefault:"1.0"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.Load(cfg); err != nil {
		return nil, fmt.Errorf("load bridge config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks configuration invariants.
func (c *Config) Validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTPPort)
	}
	if !apiVersionPattern.MatchString(c.ShopifyAPIVersion) {
		return fmt.Errorf("SHOPIFY_API_VERSION must look like YYYY-MM, got %q", c.ShopifyAPIVersion)
	}
	if c.ShopifyBaseURL != "" {
		u, err := url.ParseRequestURI(c.ShopifyBaseURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("invalid SHOPIFY_BASE_URL %q: must be an absolute URL", c.ShopifyBaseURL)
		}
	}
	for name, v := range map[string]int{
		"SHOPIFY_TIMEOUT_SECONDS": c.ShopifyTimeoutSeconds,
		"REQUEST_TIMEOUT_SECONDS": c.RequestTimeoutSeconds,
		"CB_INTERVAL_SECONDS":     c.CBInterval,
		"CB_TIMEOUT_SECONDS":      c.CBTimeout,
	} {
		if v <= 0 {
			return fmt.Errorf("%s must be positive, got %d", name, v)
		}
	}
	if c.CBFailureRatio <= 0 || c.CBFailureRatio > 1.0 {
		return fmt.Errorf("CB_FAILURE_RATIO must be in (0.0, 1.0], got %f", c.CBFailureRatio)
	}
	if c.RateLimitRPS <= 0 {
		return fmt.Errorf("RATE_LIMIT_RPS must be positive, got %f", c.RateLimitRPS)
	}
	if c.RateLimitBurst < 1 {
		return fmt.Errorf("RATE_LIMIT_BURST must be at least 1, got %d", c.RateLimitBurst)
	}
	if len(c.CORSAllowedOrigins) == 0 {
		return fmt.Errorf("CORS_ALLOWED_ORIGINS is required")
	}
	if c.OTELSampleRate < 0 || c.OTELSampleRate > 1.0 {
		return fmt.Errorf("OTEL_SAMPLE_RATE must be between 0.0 and 1.0, got %f", c.OTELSampleRate)
	}
	return nil
}

// ShopifyTimeout is the outbound request timeout.
func (c *Config) ShopifyTimeout() time.Duration {
	return time.Duration(c.ShopifyTimeoutSeconds) * time.Second
}

// RequestTimeout bounds a whole inbound request.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSeconds) * time.Second
}

// CircuitBreaker returns the breaker settings for the Shopify client.
func (c *Config) CircuitBreaker() httpclient.CircuitBreakerConfig {
	return httpclient.CircuitBreakerConfig{
		Name:         "shopify",
		MaxRequests:  c.CBMaxRequests,
		Interval:     time.Duration(c.CBInterval) * time.Second,
		Timeout:      time.Duration(c.CBTimeout) * time.Second,
		FailureRatio: c.CBFailureRatio,
		MinRequests:  c.CBMinRequests,
	}
}
