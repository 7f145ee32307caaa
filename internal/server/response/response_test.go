package response

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	pkgerrors "github.com/agentstation/aliasmap/pkg/errors"
)

func decode(t *testing.T, w *httptest.ResponseRecorder) Response {
	t.Helper()
	var resp Response
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return resp
}

// TestOK tests that successful payloads are written without an envelope.
func TestOK(t *testing.T) {
	w := httptest.NewRecorder()
	OK(w, map[string]int{"count": 42})

	if w.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected Content-Type=application/json, got %s", ct)
	}

	var body map[string]any
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body["count"] != float64(42) {
		t.Errorf("unexpected body: %v", body)
	}
	if _, wrapped := body["data"]; wrapped {
		t.Errorf("expected no data envelope, got %v", body)
	}
}

// TestErrorHelpers tests the fixed-code error writers.
func TestErrorHelpers(t *testing.T) {
	tests := []struct {
		name   string
		write  func(w http.ResponseWriter)
		status int
		code   string
	}{
		{"bad request", func(w http.ResponseWriter) { BadRequest(w, "bad", "") }, http.StatusBadRequest, "BAD_REQUEST"},
		{"unauthorized", func(w http.ResponseWriter) { Unauthorized(w, "no key", "") }, http.StatusUnauthorized, "UNAUTHORIZED"},
		{"not found", func(w http.ResponseWriter) { NotFound(w, "missing", "") }, http.StatusNotFound, "NOT_FOUND"},
		{"method", func(w http.ResponseWriter) { MethodNotAllowed(w, http.MethodDelete) }, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED"},
		{"rate limited", func(w http.ResponseWriter) { RateLimited(w, "slow down") }, http.StatusTooManyRequests, "RATE_LIMITED"},
		{"internal", func(w http.ResponseWriter) { InternalError(w, errors.New("secret")) }, http.StatusInternalServerError, "INTERNAL_ERROR"},
		{"unavailable", func(w http.ResponseWriter) { ServiceUnavailable(w, "later") }, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			tt.write(w)

			if w.Code != tt.status {
				t.Errorf("expected status %d, got %d", tt.status, w.Code)
			}
			resp := decode(t, w)
			if resp.Data != nil {
				t.Error("expected Data to be nil for error response")
			}
			if resp.Error == nil || resp.Error.Code != tt.code {
				t.Fatalf("expected code %s, got %+v", tt.code, resp.Error)
			}
		})
	}
}

// TestErrorFromType tests typed error mapping.
func TestErrorFromType(t *testing.T) {
	tests := []struct {
		name           string
		err            error
		expectedStatus int
		expectedCode   string
	}{
		{
			name:           "validation",
			err:            pkgerrors.NewValidationError("namespace", "", "cannot be empty"),
			expectedStatus: http.StatusBadRequest,
			expectedCode:   "BAD_REQUEST",
		},
		{
			name:           "not found",
			err:            pkgerrors.NewNotFoundError("namespace", "Microsoft.Nope"),
			expectedStatus: http.StatusNotFound,
			expectedCode:   "NOT_FOUND",
		},
		{
			name:           "credentials rejected",
			err:            &pkgerrors.ProviderListError{Attempts: 1, Err: pkgerrors.NewAPIError("", 401, "InvalidAuthenticationToken")},
			expectedStatus: http.StatusServiceUnavailable,
			expectedCode:   "SERVICE_UNAVAILABLE",
		},
		{
			name:           "provider list exhausted",
			err:            &pkgerrors.ProviderListError{Attempts: 3, Err: pkgerrors.NewAPIError("", 503, "busy")},
			expectedStatus: http.StatusServiceUnavailable,
			expectedCode:   "SERVICE_UNAVAILABLE",
		},
		{
			name:           "caller gave up",
			err:            fmt.Errorf("%w: context canceled", pkgerrors.ErrCanceled),
			expectedStatus: http.StatusServiceUnavailable,
			expectedCode:   "SERVICE_UNAVAILABLE",
		},
		{
			name:           "no catalog",
			err:            pkgerrors.ErrNoCatalog,
			expectedStatus: http.StatusServiceUnavailable,
			expectedCode:   "SERVICE_UNAVAILABLE",
		},
		{
			name:           "generic error",
			err:            errors.New("generic error"),
			expectedStatus: http.StatusInternalServerError,
			expectedCode:   "INTERNAL_ERROR",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			ErrorFromType(w, tt.err)

			if w.Code != tt.expectedStatus {
				t.Errorf("expected status %d, got %d", tt.expectedStatus, w.Code)
			}

			resp := decode(t, w)
			if resp.Error == nil {
				t.Fatal("expected Error to be set")
			}
			if resp.Error.Code != tt.expectedCode {
				t.Errorf("expected Code=%s, got %s", tt.expectedCode, resp.Error.Code)
			}
		})
	}
}

// TestErrorFromTypeHidesUpstreamDetail ensures raw upstream messages stay server-side.
func TestErrorFromTypeHidesUpstreamDetail(t *testing.T) {
	w := httptest.NewRecorder()
	ErrorFromType(w, &pkgerrors.ProviderListError{
		Attempts: 3,
		Err:      pkgerrors.WrapAPI("", 0, errors.New("dial tcp 10.0.0.1:443: connection refused")),
	})

	if strings.Contains(w.Body.String(), "10.0.0.1") {
		t.Errorf("response leaked transport error: %s", w.Body.String())
	}
}

// TestErrorDetailsOmitted tests details omitempty behavior.
func TestErrorDetailsOmitted(t *testing.T) {
	data, err := json.Marshal(Fail("TEST", "message", ""))
	if err != nil {
		t.Fatalf("failed to marshal: %v", err)
	}
	if strings.Contains(string(data), "details") {
		t.Errorf("expected details to be omitted, got %s", data)
	}
}
