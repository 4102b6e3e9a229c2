package shopify

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/shopify-product-bridge/internal/domain"
	"github.com/utafrali/shopify-product-bridge/pkg/httpclient"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *int32) {
	t.Helper()
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		handler(w, r)
	}))
	t.Cleanup(srv.Close)

	breaker := httpclient.DefaultCircuitBreakerConfig("shopify-test-" + t.Name())
	breaker.MinRequests = 1

	c := NewClient(Config{
		APIVersion: "2025-01",
		Timeout:    2 * time.Second,
		Breaker:    breaker,
		BaseURL:    srv.URL + "/",
	}, testLogger())
	return c, &calls
}

func price(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func qty(n int64) *int64 { return &n }

func samplePayload() domain.ProductCreationRequest {
	desc := "<p>Soft</p>"
	return domain.ProductCreationRequest{
		Title:       "Test Product",
		Description: &desc,
		Variations: []domain.Variation{
			{
				Title:             "Red / Small",
				Price:             price("10"),
				InventoryQuantity: qty(5),
				Images:            []domain.Image{{Src: "https://cdn.example.com/red.png"}},
			},
			{Title: "Blue / Large", Price: price("12.5")},
		},
	}
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}

func TestCreateProductWithVariations_Success(t *testing.T) {
	var got graphQLRequest
	var gotInput productSetInput

	c, calls := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/admin/api/2025-01/graphql.json", r.URL.Path)
		assert.Equal(t, "shpat_token", r.Header.Get("X-Shopify-Access-Token"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		raw, _ := json.Marshal(got.Variables["input"])
		assert.NoError(t, json.Unmarshal(raw, &gotInput))

		writeJSON(w, http.StatusOK, `{"data":{"productSet":{"product":{"id":"gid://shopify/Product/1","title":"Test Product"},"userErrors":[]}}}`)
	})

	result := c.CreateProductWithVariations(context.Background(), samplePayload(), "demo.myshopify.com", "shpat_token", "777")

	require.True(t, result.Success, result.Error)
	assert.Equal(t, int32(1), atomic.LoadInt32(calls))
	assert.JSONEq(t, `{"id":"gid://shopify/Product/1","title":"Test Product"}`, string(result.Product))
	assert.Nil(t, result.Errors)
	assert.Empty(t, result.Error)

	assert.Contains(t, got.Query, "productSet(input: $input, synchronous: $synchronous)")
	assert.Equal(t, true, got.Variables["synchronous"])

	assert.Equal(t, "Test Product", gotInput.Title)
	require.NotNil(t, gotInput.DescriptionHTML)
	assert.Equal(t, "<p>Soft</p>", *gotInput.DescriptionHTML)
	require.Len(t, gotInput.Variants, 2)
	assert.Equal(t, "10.00", gotInput.Variants[0].Price)
	assert.Equal(t, []inventoryQuantityInput{{LocationID: "gid://shopify/Location/777", Name: "available", Quantity: 5}},
		gotInput.Variants[0].InventoryQuantities)
	assert.Equal(t, "12.50", gotInput.Variants[1].Price)
	assert.Nil(t, gotInput.Variants[1].InventoryQuantities)
}

func TestCreateProductWithVariations_UserErrors(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{"data":{"productSet":{"product":null,"userErrors":[
			{"field":["input","title"],"message":"Title has already been taken","code":"TAKEN"},
			{"field":["input","title"],"message":"Title is reserved","code":"INVALID"},
			{"field":null,"message":"Something about the product","code":"INVALID"}
		]}}}`)
	})

	result := c.CreateProductWithVariations(context.Background(), samplePayload(), "demo", "shpat_token", "")

	assert.False(t, result.Success)
	assert.Equal(t, map[string]any{
		"input.title": []string{"Title has already been taken", "Title is reserved"},
		"base":        []string{"Something about the product"},
	}, result.Errors)
	assert.Empty(t, result.Error)
	assert.Equal(t, domain.OutcomeRejected, result.Outcome())
}

func TestCreateProductWithVariations_Failures(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr string
	}{
		{
			name:    "graphql errors",
			status:  http.StatusOK,
			body:    `{"errors":[{"message":"Throttled"}]}`,
			wantErr: "shopify: Throttled",
		},
		{
			name:    "unauthorized",
			status:  http.StatusUnauthorized,
			body:    `{"errors":"[API] Invalid API key or access token (unrecognized login or wrong password)"}`,
			wantErr: "shopify: [API] Invalid API key or access token (unrecognized login or wrong password)",
		},
		{
			name:    "not json",
			status:  http.StatusOK,
			body:    `<html>maintenance</html>`,
			wantErr: "shopify: decode response",
		},
		{
			name:    "missing payload",
			status:  http.StatusOK,
			body:    `{"data":{"productSet":null}}`,
			wantErr: "shopify: empty productSet response",
		},
		{
			name:    "server error",
			status:  http.StatusBadGateway,
			body:    `bad gateway`,
			wantErr: "shopify: server error 502",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, calls := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, tt.status, tt.body)
			})

			result := c.CreateProductWithVariations(context.Background(), samplePayload(), "demo", "shpat_token", "1")

			assert.False(t, result.Success)
			assert.Nil(t, result.Errors)
			assert.Contains(t, result.Error, tt.wantErr)
			assert.Equal(t, int32(1), atomic.LoadInt32(calls), "request must not be retried")
		})
	}
}

func TestCreateProductWithVariations_Timeout(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(time.Second):
		case <-r.Context().Done():
		}
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	result := c.CreateProductWithVariations(ctx, samplePayload(), "demo", "shpat_token", "")

	assert.False(t, result.Success)
	assert.Equal(t, "shopify: request timed out", result.Error)
}

func TestCreateProductWithVariations_CircuitOpen(t *testing.T) {
	c, calls := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusServiceUnavailable, `{"errors":"down"}`)
	})

	first := c.CreateProductWithVariations(context.Background(), samplePayload(), "demo", "shpat_token", "")
	assert.Contains(t, first.Error, "server error 503")
	assert.Equal(t, gobreaker.StateOpen, c.BreakerState("demo"))
	assert.Equal(t, gobreaker.StateOpen, c.BreakerState("https://DEMO.myshopify.com/"))
	assert.Error(t, c.Ready(context.Background()))

	second := c.CreateProductWithVariations(context.Background(), samplePayload(), "demo", "shpat_token", "")
	assert.Equal(t, "shopify: temporarily unavailable (circuit breaker open)", second.Error)
	assert.Equal(t, int32(1), atomic.LoadInt32(calls))
}

func TestCreateProductWithVariations_ShopsHaveIndependentBreakers(t *testing.T) {
	c, calls := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get(domain.HeaderAccessToken) == "shpat_bad" {
			writeJSON(w, http.StatusServiceUnavailable, `{"errors":"down"}`)
			return
		}
		writeJSON(w, http.StatusOK, `{"data":{"productSet":{"product":{"id":"gid://shopify/Product/1"},"userErrors":[]}}}`)
	})

	failed := c.CreateProductWithVariations(context.Background(), samplePayload(), "alpha", "shpat_bad", "")
	require.Contains(t, failed.Error, "server error 503")
	require.Equal(t, gobreaker.StateOpen, c.BreakerState("alpha"))

	blocked := c.CreateProductWithVariations(context.Background(), samplePayload(), "alpha", "shpat_bad", "")
	assert.Equal(t, "shopify: temporarily unavailable (circuit breaker open)", blocked.Error)
	assert.Equal(t, int32(1), atomic.LoadInt32(calls))

	other := c.CreateProductWithVariations(context.Background(), samplePayload(), "beta", "shpat_good", "")
	assert.True(t, other.Success, other.Error)
	assert.Equal(t, int32(2), atomic.LoadInt32(calls))
	assert.Equal(t, gobreaker.StateClosed, c.BreakerState("beta"))
	assert.Equal(t, gobreaker.StateOpen, c.BreakerState("alpha"))
}

func TestCreateProductWithVariations_InvalidShop(t *testing.T) {
	c := NewClient(Config{
		APIVersion: "2025-01",
		Timeout:    time.Second,
		Breaker:    httpclient.DefaultCircuitBreakerConfig("shopify-invalid-shop"),
	}, testLogger())

	result := c.CreateProductWithVariations(context.Background(), samplePayload(), "evil.com/path?x=1", "shpat_token", "")

	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "invalid shop domain")
	assert.NoError(t, c.Ready(context.Background()))
}

func TestEndpoint(t *testing.T) {
	c := NewClient(Config{
		APIVersion: "2024-10",
		Breaker:    httpclient.DefaultCircuitBreakerConfig("shopify-endpoint"),
	}, testLogger())

	got, err := c.Endpoint("https://Demo.myshopify.com/")
	require.NoError(t, err)
	assert.Equal(t, "https://demo.myshopify.com/admin/api/2024-10/graphql.json", got)

	got, err = c.Endpoint("demo")
	require.NoError(t, err)
	assert.Equal(t, "https://demo.myshopify.com/admin/api/2024-10/graphql.json", got)
}

func TestEndpoint_OnlyShopifyHostsWithoutBaseURL(t *testing.T) {
	c := NewClient(Config{
		APIVersion: "2024-10",
		Breaker:    httpclient.DefaultCircuitBreakerConfig("shopify-endpoint-hosts"),
	}, testLogger())

	for _, shop := range []string{
		"shop.example.com",
		"127.0.0.1:1",
		"localhost:8443",
		"demo.myshopify.com:8443",
		"169.254.169.254",
		"myshopify.com.evil.com",
	} {
		t.Run(shop, func(t *testing.T) {
			_, err := c.Endpoint(shop)
			assert.Error(t, err)
		})
	}
}

func TestEndpoint_BaseURLAcceptsAnyShop(t *testing.T) {
	c := NewClient(Config{
		APIVersion: "2024-10",
		Breaker:    httpclient.DefaultCircuitBreakerConfig("shopify-endpoint-base"),
		BaseURL:    "http://127.0.0.1:9000/",
	}, testLogger())

	got, err := c.Endpoint("shop.example.com")
	require.NoError(t, err)
	assert.Equal(t, "http://127.0.0.1:9000/admin/api/2024-10/graphql.json", got)
}
