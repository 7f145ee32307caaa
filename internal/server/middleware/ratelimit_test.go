package middleware

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func newTestLimiter(t *testing.T, perMinute int) *RateLimiter {
	t.Helper()
	logger := zerolog.Nop()
	rl := NewRateLimiter(perMinute, &logger)
	t.Cleanup(rl.Stop)
	return rl
}

// TestRateLimiter_Allow tests that the burst is enforced per IP.
func TestRateLimiter_Allow(t *testing.T) {
	rl := newTestLimiter(t, 5)

	for i := 0; i < 5; i++ {
		if !rl.allow("10.0.0.1") {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}
	if rl.allow("10.0.0.1") {
		t.Error("request 6 should be rejected")
	}
	if !rl.allow("10.0.0.2") {
		t.Error("other IPs keep their own budget")
	}
}

// TestRateLimiter_Refill tests that tokens return with time.
func TestRateLimiter_Refill(t *testing.T) {
	rl := newTestLimiter(t, 60)
	now := time.Now()
	rl.now = func() time.Time { return now }

	for i := 0; i < 60; i++ {
		rl.allow("10.0.0.1")
	}
	if rl.allow("10.0.0.1") {
		t.Fatal("expected budget to be exhausted")
	}

	now = now.Add(2 * time.Second)
	if !rl.allow("10.0.0.1") {
		t.Error("expected a token after two seconds at 60/min")
	}
}

// TestRateLimiter_Cleanup tests that idle visitors are forgotten.
func TestRateLimiter_Cleanup(t *testing.T) {
	rl := newTestLimiter(t, 10)
	now := time.Now()
	rl.now = func() time.Time { return now }

	rl.allow("10.0.0.1")
	now = now.Add(visitorIdleTimeout + time.Minute)
	rl.allow("10.0.0.2")
	rl.cleanup()

	rl.mu.Lock()
	defer rl.mu.Unlock()
	if _, ok := rl.visitors["10.0.0.1"]; ok {
		t.Error("expected idle visitor to be removed")
	}
	if _, ok := rl.visitors["10.0.0.2"]; !ok {
		t.Error("expected active visitor to remain")
	}
}

// TestRateLimiter_Middleware tests the 429 response and Retry-After header.
func TestRateLimiter_Middleware(t *testing.T) {
	rl := newTestLimiter(t, 2)
	handler := RateLimit(rl)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	codes := make([]int, 3)
	for i := range codes {
		req := httptest.NewRequest(http.MethodGet, "/api/aliases", nil)
		req.RemoteAddr = "192.0.2.7:51000"
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		codes[i] = w.Code
		if w.Code == http.StatusTooManyRequests && w.Header().Get("Retry-After") == "" {
			t.Error("expected Retry-After header")
		}
	}

	if codes[0] != http.StatusOK || codes[1] != http.StatusOK || codes[2] != http.StatusTooManyRequests {
		t.Errorf("unexpected status sequence %v", codes)
	}
}

// TestClientIP tests peer address extraction.
func TestClientIP(t *testing.T) {
	tests := []struct {
		name      string
		remote    string
		forwarded string
		expected  string
	}{
		{"peer with port", "192.0.2.1:1234", "", "192.0.2.1"},
		{"forwarded chain", "10.0.0.1:1", "203.0.113.5, 10.0.0.1", "203.0.113.5"},
		{"no port", "192.0.2.9", "", "192.0.2.9"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			if tt.forwarded != "" {
				req.Header.Set("X-Forwarded-For", tt.forwarded)
			}
			if got := clientIP(req); got != tt.expected {
				t.Errorf("expected %s, got %s", tt.expected, got)
			}
		})
	}
}

// TestRateLimiter_ConcurrentRequests tests that the budget holds under concurrency.
func TestRateLimiter_ConcurrentRequests(t *testing.T) {
	rl := newTestLimiter(t, 50)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		allowed int
	)
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if rl.allow("10.0.0.1") {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	// A few tokens may refill while the goroutines run.
	if allowed < 50 || allowed > 52 {
		t.Errorf("expected about 50 allowed, got %d", allowed)
	}
}
