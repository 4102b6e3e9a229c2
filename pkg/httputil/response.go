package httputil

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	apperrors "github.com/utafrali/shopify-product-bridge/pkg/errors"
	"github.com/utafrali/shopify-product-bridge/pkg/logger"
)

// Response is the JSON envelope returned by the service. Data and Errors are
// always present and serialize as null when empty.
type Response struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data"`
	Errors  any    `json:"errors"`
}

// Notice is the short envelope used when a request is rejected before any
// processing happens.
type Notice struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// ErrorDetail is placed under Errors for infrastructure-level failures
// (unknown route, rate limiting, panics).
type ErrorDetail struct {
	Code      string `json:"code"`
	RequestID string `json:"request_id,omitempty"`
}

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// Headers are already sent; nothing meaningful can be done if encoding fails.
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError renders err as a failed Response. AppErrors keep their status,
// code and message; anything else becomes an opaque 500 and is logged with
// the request-scoped logger when one is present.
func WriteError(w http.ResponseWriter, r *http.Request, err error, fallback *slog.Logger) {
	l := logger.FromContext(r.Context())
	if l == slog.Default() && fallback != nil {
		l = fallback
	}

	requestID := logger.CorrelationIDFromContext(r.Context())

	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) {
		appErr = apperrors.Internal(err)
	}

	if appErr.Status >= http.StatusInternalServerError {
		l.ErrorContext(r.Context(), "request failed",
			slog.String("error", err.Error()),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
		)
	}

	WriteJSON(w, appErr.Status, Response{
		Success: false,
		Message: appErr.Message,
		Errors:  ErrorDetail{Code: appErr.Code, RequestID: requestID},
	})
}
