// Package response provides HTTP response helpers for the aliasmap API
// server. Successful responses carry their payload as the top-level JSON
// document; failures use an envelope with a null data field and an error.
package response

import (
	"encoding/json"
	"net/http"

	"github.com/agentstation/aliasmap/pkg/errors"
)

// Response is the envelope written for failed requests.
type Response struct {
	Data  any    `json:"data"`
	Error *Error `json:"error"`
}

// Error represents an API error with code, message, and optional details.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// Fail creates an error response.
func Fail(code, message, details string) Response {
	return Response{
		Data: nil,
		Error: &Error{
			Code:    code,
			Message: message,
			Details: details,
		},
	}
}

// JSON writes v as a JSON document with the given status code.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// Encoding errors are ignored as headers are already sent (best effort)
	_ = json.NewEncoder(w).Encode(v)
}

// OK writes data unwrapped with 200 status.
func OK(w http.ResponseWriter, data any) {
	JSON(w, http.StatusOK, data)
}

// BadRequest writes a 400 error response.
func BadRequest(w http.ResponseWriter, message, details string) {
	JSON(w, http.StatusBadRequest, Fail("BAD_REQUEST", message, details))
}

// Unauthorized writes a 401 error response.
func Unauthorized(w http.ResponseWriter, message, details string) {
	JSON(w, http.StatusUnauthorized, Fail("UNAUTHORIZED", message, details))
}

// NotFound writes a 404 error response.
func NotFound(w http.ResponseWriter, message, details string) {
	JSON(w, http.StatusNotFound, Fail("NOT_FOUND", message, details))
}

// MethodNotAllowed writes a 405 error response.
func MethodNotAllowed(w http.ResponseWriter, method string) {
	JSON(w, http.StatusMethodNotAllowed, Fail(
		"METHOD_NOT_ALLOWED",
		"Method not allowed",
		"Method "+method+" is not supported for this endpoint",
	))
}

// RateLimited writes a 429 error response.
func RateLimited(w http.ResponseWriter, message string) {
	JSON(w, http.StatusTooManyRequests, Fail(
		"RATE_LIMITED",
		"Rate limit exceeded",
		message,
	))
}

// InternalError writes a 500 error response.
func InternalError(w http.ResponseWriter, _ error) {
	// Log the actual error but don't expose details to client
	// Note: Logging should be handled by middleware or passed via context
	JSON(w, http.StatusInternalServerError, Fail(
		"INTERNAL_ERROR",
		"Internal server error",
		"An unexpected error occurred",
	))
}

// ServiceUnavailable writes a 503 error response.
func ServiceUnavailable(w http.ResponseWriter, message string) {
	JSON(w, http.StatusServiceUnavailable, Fail(
		"SERVICE_UNAVAILABLE",
		"Service unavailable",
		message,
	))
}

// ErrorFromType maps typed errors to appropriate HTTP responses.
// Failures of the management API never reach the client verbatim; they
// all surface as a 503 naming the class of problem.
func ErrorFromType(w http.ResponseWriter, err error) {
	var validationErr *errors.ValidationError
	var notFoundErr *errors.NotFoundError

	switch {
	case errors.As(err, &validationErr):
		BadRequest(w, validationErr.Error(), "")
	case errors.As(err, &notFoundErr):
		NotFound(w, notFoundErr.Error(), "")
	case errors.IsUnauthorized(err):
		ServiceUnavailable(w, "Catalog unavailable: the management API rejected the configured credentials")
	case errors.IsProviderListUnavailable(err):
		ServiceUnavailable(w, "Catalog unavailable: providers could not be listed, retry later")
	case errors.IsCanceled(err), errors.IsTimeout(err):
		ServiceUnavailable(w, "Catalog is still being built, retry later")
	case errors.Is(err, errors.ErrNoCatalog), errors.IsRetryable(err):
		ServiceUnavailable(w, "Catalog unavailable, retry later")
	default:
		InternalError(w, err)
	}
}
