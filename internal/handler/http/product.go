package http

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/utafrali/shopify-product-bridge/internal/domain"
	"github.com/utafrali/shopify-product-bridge/internal/service"
	"github.com/utafrali/shopify-product-bridge/internal/validation"
	apperrors "github.com/utafrali/shopify-product-bridge/pkg/errors"
	"github.com/utafrali/shopify-product-bridge/pkg/httputil"
	"github.com/utafrali/shopify-product-bridge/pkg/logger"
)

const (
	maxBodyBytes = 1 << 20

	missingCredentialsMessage = "Missing Shopify shop domain or access token"
	invalidPayloadMessage     = "The given data was invalid."
)

// ProductHandler handles HTTP requests for product endpoints.
type ProductHandler struct {
	service           *service.ProductService
	defaultLocationID string
	logger            *slog.Logger
}

// NewProductHandler creates a product handler. defaultLocationID is used
// when a request body carries no location_id.
func NewProductHandler(svc *service.ProductService, defaultLocationID string, logger *slog.Logger) *ProductHandler {
	return &ProductHandler{
		service:           svc,
		defaultLocationID: defaultLocationID,
		logger:            logger,
	}
}

// CreateProduct handles POST /api/products
func (h *ProductHandler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	creds := domain.CredentialsFromHeaders(r.Header.Get)
	if !creds.Complete() {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.Notice{
			Success: false,
			Message: missingCredentialsMessage,
		})
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			httputil.WriteError(w, r, apperrors.InvalidInput("request body must not exceed 1 MiB"), h.logger)
			return
		}
		httputil.WriteError(w, r, apperrors.InvalidInput("could not read request body"), h.logger)
		return
	}

	sub, err := validation.Validate(body)
	if err != nil {
		var invalid validation.Errors
		if !errors.As(err, &invalid) {
			httputil.WriteError(w, r, err, h.logger)
			return
		}
		logger.FromContext(r.Context()).DebugContext(r.Context(), "product payload rejected",
			slog.Int("fields", len(invalid)),
		)
		httputil.WriteJSON(w, http.StatusUnprocessableEntity, httputil.Response{
			Success: false,
			Message: invalidPayloadMessage,
			Errors:  invalid,
		})
		return
	}

	locationID := sub.LocationID
	if locationID == "" {
		locationID = h.defaultLocationID
	}

	result := h.service.CreateProduct(r.Context(), service.CreateProductInput{
		Product:     sub.Product,
		Credentials: creds,
		LocationID:  locationID,
	})

	httputil.WriteJSON(w, statusFor(result), envelope(result))
}

// statusFor maps a creation result onto 201, 422 or 500.
func statusFor(result domain.CreationResult) int {
	switch {
	case result.Success:
		return http.StatusCreated
	case result.Errors != nil:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// envelope puts the product under data and the remote errors, or failing
// that the error description, under errors.
func envelope(result domain.CreationResult) httputil.Response {
	resp := httputil.Response{
		Success: result.Success,
		Message: result.Message,
	}
	if len(result.Product) > 0 {
		resp.Data = result.Product
	}

	switch {
	case result.Errors != nil:
		resp.Errors = result.Errors
	case result.Error != "":
		resp.Errors = result.Error
	}
	return resp
}
