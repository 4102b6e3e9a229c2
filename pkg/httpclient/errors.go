package httpclient

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"

	apperrors "github.com/utafrali/shopify-product-bridge/pkg/errors"
)

const maxErrorBody = 1 << 20

// ParseResponseError reads the body of a non-2xx response and translates it
// into an AppError carrying the remote explanation. Bodies of the form
// {"errors": ...} are understood whether errors is a string, a list of
// {"message": ...} objects or a field -> messages map. Anything else is
// quoted verbatim.
//
// The response body is fully consumed and closed.
func ParseResponseError(resp *http.Response, serviceName string) error {
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil {
		return fmt.Errorf("%s returned status %d (failed to read body: %w)", serviceName, resp.StatusCode, err)
	}

	detail := strings.TrimSpace(string(body))
	var envelope struct {
		Errors json.RawMessage `json:"errors"`
	}
	if json.Unmarshal(body, &envelope) == nil && len(envelope.Errors) > 0 {
		if msg := DescribeErrors(envelope.Errors); msg != "" {
			detail = msg
		}
	}
	if detail == "" {
		detail = http.StatusText(resp.StatusCode)
	}

	return mapStatus(resp.StatusCode, fmt.Sprintf("%s: %s", serviceName, detail))
}

// DescribeErrors flattens a remote "errors" value into one line.
func DescribeErrors(raw json.RawMessage) string {
	var text string
	if json.Unmarshal(raw, &text) == nil {
		return text
	}

	var list []struct {
		Message string `json:"message"`
	}
	if json.Unmarshal(raw, &list) == nil {
		msgs := make([]string, 0, len(list))
		for _, item := range list {
			if item.Message != "" {
				msgs = append(msgs, item.Message)
			}
		}
		return strings.Join(msgs, "; ")
	}

	var fields map[string]any
	if json.Unmarshal(raw, &fields) == nil {
		keys := make([]string, 0, len(fields))
		for k := range fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, fmt.Sprintf("%s %s", k, joinMessages(fields[k])))
		}
		return strings.Join(parts, "; ")
	}

	return ""
}

func joinMessages(v any) string {
	switch msgs := v.(type) {
	case []any:
		out := make([]string, 0, len(msgs))
		for _, m := range msgs {
			out = append(out, fmt.Sprint(m))
		}
		return strings.Join(out, ", ")
	default:
		return fmt.Sprint(v)
	}
}

func mapStatus(status int, message string) error {
	switch {
	case status == http.StatusBadRequest:
		return apperrors.InvalidInput(message)
	case status == http.StatusUnauthorized:
		return apperrors.Unauthorized(message)
	case status == http.StatusPaymentRequired, status == http.StatusForbidden, status == http.StatusLocked:
		return apperrors.Forbidden(message)
	case status == http.StatusNotFound:
		return apperrors.NotFound(message)
	case status == http.StatusConflict:
		return apperrors.Conflict(message)
	case status == http.StatusUnprocessableEntity:
		return apperrors.Unprocessable(message)
	case status == http.StatusTooManyRequests:
		return apperrors.TooManyRequests(message)
	case status == http.StatusServiceUnavailable:
		return apperrors.ServiceUnavailable(message)
	default:
		return &apperrors.AppError{
			Code:    "DOWNSTREAM_ERROR",
			Message: message,
			Status:  status,
		}
	}
}
