package middleware

import (
	"bytes"
	"compress/gzip"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/agentstation/aliasmap/internal/metrics"
	"github.com/agentstation/aliasmap/pkg/logging"
)

// TestChain tests middleware composition order.
func TestChain(t *testing.T) {
	var callOrder []string
	mark := func(name string) func(http.Handler) http.Handler {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				callOrder = append(callOrder, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	handler := Chain(mark("m1"), mark("m2"), mark("m3"))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		callOrder = append(callOrder, "handler")
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	expected := []string{"m1", "m2", "m3", "handler"}
	if strings.Join(callOrder, ",") != strings.Join(expected, ",") {
		t.Errorf("expected order %v, got %v", expected, callOrder)
	}
}

// TestRequestID tests generation and propagation of request identifiers.
func TestRequestID(t *testing.T) {
	var seen string
	handler := RequestID()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = logging.RequestID(r.Context())
	}))

	t.Run("generated", func(t *testing.T) {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/aliases", nil))

		got := w.Header().Get(RequestIDHeader)
		if len(got) != 36 {
			t.Errorf("expected a UUID request id, got %q", got)
		}
		if seen != got {
			t.Errorf("context id %q does not match header %q", seen, got)
		}
	})

	t.Run("propagated", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/aliases", nil)
		req.Header.Set(RequestIDHeader, "abc-123")
		handler.ServeHTTP(w, req)

		if got := w.Header().Get(RequestIDHeader); got != "abc-123" {
			t.Errorf("expected propagated id, got %q", got)
		}
		if seen != "abc-123" {
			t.Errorf("expected context id abc-123, got %q", seen)
		}
	})
}

// TestLogger tests that requests are logged with status and request id.
func TestLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	handler := Chain(RequestID(), Logger(&logger))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logging.FromContext(r.Context()).Debug().Msg("inside handler")
		w.WriteHeader(http.StatusTeapot)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/statistics", nil)
	req.Header.Set(RequestIDHeader, "req-42")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 log lines, got %d: %s", len(lines), buf.String())
	}

	var entry map[string]any
	if err := json.Unmarshal([]byte(lines[1]), &entry); err != nil {
		t.Fatalf("failed to parse log line: %v", err)
	}
	if entry["status"] != float64(http.StatusTeapot) {
		t.Errorf("expected status 418, got %v", entry["status"])
	}
	if entry["request_id"] != "req-42" {
		t.Errorf("expected request_id req-42, got %v", entry["request_id"])
	}
	if entry["path"] != "/api/statistics" {
		t.Errorf("expected path /api/statistics, got %v", entry["path"])
	}
	if !strings.Contains(lines[0], `"request_id":"req-42"`) {
		t.Errorf("handler log line missing request id: %s", lines[0])
	}
}

// TestRecovery tests that panics become a JSON 500 response.
func TestRecovery(t *testing.T) {
	logger := zerolog.Nop()
	handler := Recovery(&logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/aliases", nil))

	if w.Code != http.StatusInternalServerError {
		t.Errorf("expected status 500, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "INTERNAL_ERROR") {
		t.Errorf("unexpected body: %s", w.Body.String())
	}
	if strings.Contains(w.Body.String(), "boom") {
		t.Error("panic value leaked to client")
	}
}

// TestProcessTime tests the processing time header.
func TestProcessTime(t *testing.T) {
	handler := ProcessTime()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	raw := w.Header().Get(ProcessTimeHeader)
	if raw == "" {
		t.Fatal("expected process time header")
	}
	if v, err := strconv.ParseFloat(raw, 64); err != nil || v < 0 {
		t.Errorf("invalid process time %q", raw)
	}
}

// TestMetrics tests that requests are recorded under their route pattern.
func TestMetrics(t *testing.T) {
	m := metrics.New()

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/aliases", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	handler := Metrics(m)(mux)

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/aliases?query=sku", nil))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/nope", nil))

	families, err := m.Registry().Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	routes := map[string]bool{}
	for _, mf := range families {
		if mf.GetName() != "aliasmap_http_request_duration_seconds" {
			continue
		}
		for _, metric := range mf.GetMetric() {
			for _, label := range metric.GetLabel() {
				if label.GetName() == "route" {
					routes[label.GetValue()] = true
				}
			}
		}
	}
	if !routes["GET /api/aliases"] || !routes["unmatched"] {
		t.Errorf("expected pattern and unmatched routes, got %v", routes)
	}
}

// TestMetrics_NilPassthrough tests that a nil recorder leaves the handler untouched.
func TestMetrics_NilPassthrough(t *testing.T) {
	called := false
	handler := Metrics(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true }))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	if !called {
		t.Error("expected handler to be called")
	}
}

// TestGzip tests size-gated compression.
func TestGzip(t *testing.T) {
	gz, err := Gzip()
	if err != nil {
		t.Fatalf("Gzip() returned error: %v", err)
	}

	tests := []struct {
		name       string
		size       int
		accept     string
		compressed bool
	}{
		{"large body", 4 * GzipMinSize, "", true},
		{"small body", 10, "", false},
		{"event stream", 4 * GzipMinSize, "text/event-stream", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := strings.Repeat("a", tt.size)
			handler := gz(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				_, _ = w.Write([]byte(body))
			}))

			req := httptest.NewRequest(http.MethodGet, "/api/aliases", nil)
			req.Header.Set("Accept-Encoding", "gzip")
			if tt.accept != "" {
				req.Header.Set("Accept", tt.accept)
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			isGzip := w.Header().Get("Content-Encoding") == "gzip"
			if isGzip != tt.compressed {
				t.Fatalf("expected compressed=%v, got Content-Encoding=%q", tt.compressed, w.Header().Get("Content-Encoding"))
			}
			if !isGzip {
				return
			}
			zr, err := gzip.NewReader(w.Body)
			if err != nil {
				t.Fatalf("gzip reader: %v", err)
			}
			decoded, _ := io.ReadAll(zr)
			if string(decoded) != body {
				t.Error("decompressed body does not match")
			}
		})
	}
}

// TestResponseWriter tests status capture and flush forwarding.
func TestResponseWriter(t *testing.T) {
	rec := httptest.NewRecorder()
	rw := wrap(rec)

	rw.WriteHeader(http.StatusAccepted)
	rw.WriteHeader(http.StatusInternalServerError)
	rw.Flush()

	if rw.statusCode != http.StatusAccepted {
		t.Errorf("expected first status to win, got %d", rw.statusCode)
	}
	if rec.Code != http.StatusAccepted {
		t.Errorf("expected recorder status 202, got %d", rec.Code)
	}
	if !rec.Flushed {
		t.Error("expected Flush to reach the underlying writer")
	}
	if _, _, err := rw.Hijack(); err == nil {
		t.Error("expected Hijack to fail on a recorder")
	}
}
