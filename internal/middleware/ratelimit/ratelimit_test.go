package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestAllowWithinLimit(t *testing.T) {
	rl := NewLimiter(Config{RequestsPerMinute: 5, CleanupInterval: time.Minute})
	defer rl.Stop()

	for i := 0; i < 5; i++ {
		if !rl.Allow("10.0.0.1") {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}
	if rl.Allow("10.0.0.1") {
		t.Error("sixth request should be rejected")
	}
}

func TestAllowIsolatesClients(t *testing.T) {
	rl := NewLimiter(Config{RequestsPerMinute: 1, CleanupInterval: time.Minute})
	defer rl.Stop()

	if !rl.Allow("10.0.0.1") {
		t.Fatal("first client should be allowed")
	}
	if !rl.Allow("10.0.0.2") {
		t.Error("second client should have its own window")
	}
	if rl.Allow("10.0.0.1") {
		t.Error("first client should now be over its limit")
	}
}

func TestMetricsCountHits(t *testing.T) {
	rl := NewLimiter(Config{RequestsPerMinute: 1, CleanupInterval: time.Minute})
	defer rl.Stop()

	rl.Allow("10.0.0.1")
	rl.Allow("10.0.0.1")
	rl.Allow("10.0.0.1")

	m := rl.GetMetrics()
	if m.TotalHits != 2 {
		t.Errorf("TotalHits = %d, want 2", m.TotalHits)
	}
	if m.ClientCount != 1 {
		t.Errorf("ClientCount = %d, want 1", m.ClientCount)
	}
}

func TestMiddlewareSkipsReads(t *testing.T) {
	rl := NewLimiter(Config{RequestsPerMinute: 1, CleanupInterval: time.Minute})
	defer rl.Stop()

	handler := rl.Middleware(func(*http.Request) string { return "10.0.0.1" }, nil)(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))

	for i := 0; i < 10; i++ {
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/entries", nil))
		if rr.Code != http.StatusOK {
			t.Fatalf("GET %d got %d, reads must not be limited", i, rr.Code)
		}
	}
}

func TestMiddlewareLimitsWrites(t *testing.T) {
	rl := NewLimiter(Config{RequestsPerMinute: 2, CleanupInterval: time.Minute})
	defer rl.Stop()

	handler := rl.Middleware(func(*http.Request) string { return "10.0.0.1" }, nil)(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/entries", nil))
		codes = append(codes, rr.Code)
	}

	if codes[0] != http.StatusOK || codes[1] != http.StatusOK {
		t.Errorf("first two writes should pass, got %v", codes)
	}
	if codes[2] != http.StatusTooManyRequests {
		t.Errorf("third write should get 429, got %d", codes[2])
	}
}

func TestMiddlewareCustomOnLimit(t *testing.T) {
	rl := NewLimiter(Config{RequestsPerMinute: 1, CleanupInterval: time.Minute})
	defer rl.Stop()

	called := false
	handler := rl.Middleware(
		func(*http.Request) string { return "10.0.0.1" },
		func(w http.ResponseWriter, r *http.Request) {
			called = true
			w.WriteHeader(http.StatusTooManyRequests)
		})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/entries", nil))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/entries", nil))

	if !called {
		t.Error("custom onLimit should have been invoked")
	}
}

func TestStopIsIdempotent(t *testing.T) {
	rl := NewLimiter(DefaultConfig())
	rl.Stop()
	rl.Stop() // must not panic
}
