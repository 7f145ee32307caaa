package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

// TestCORS tests origin handling for simple requests.
func TestCORS(t *testing.T) {
	tests := []struct {
		name           string
		origins        []string
		origin         string
		expectedOrigin string
	}{
		{"wildcard", []string{"*"}, "https://a.example", "*"},
		{"empty list means wildcard", nil, "https://a.example", "*"},
		{"listed origin", []string{"https://a.example"}, "https://a.example", "https://a.example"},
		{"unlisted origin", []string{"https://a.example"}, "https://b.example", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := DefaultCORSConfig()
			config.AllowedOrigins = tt.origins

			called := false
			handler := CORS(config)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				called = true
			}))

			req := httptest.NewRequest(http.MethodGet, "/api/aliases", nil)
			req.Header.Set("Origin", tt.origin)
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			if !called {
				t.Error("expected request to reach handler")
			}
			if got := w.Header().Get("Access-Control-Allow-Origin"); got != tt.expectedOrigin {
				t.Errorf("expected Allow-Origin %q, got %q", tt.expectedOrigin, got)
			}
			if got := w.Header().Get("Access-Control-Expose-Headers"); got == "" {
				t.Error("expected exposed headers")
			}
		})
	}
}

// TestCORS_PreflightShortCircuit tests that preflight requests never reach the handler.
func TestCORS_PreflightShortCircuit(t *testing.T) {
	handler := CORS(DefaultCORSConfig())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("preflight reached handler")
	}))

	req := httptest.NewRequest(http.MethodOptions, "/api/refresh", nil)
	req.Header.Set("Origin", "https://a.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Errorf("expected status 204, got %d", w.Code)
	}
	if w.Header().Get("Access-Control-Allow-Methods") == "" {
		t.Error("expected Allow-Methods header")
	}
}
