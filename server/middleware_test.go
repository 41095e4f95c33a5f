package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestRateLimitOnSearch(t *testing.T) {
	t.Setenv("RATE_LIMIT_REQUESTS_PER_IP", "2")
	mux := newTestMux(t)

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodGet, "/emotes/search?q=x", nil)
		rr := httptest.NewRecorder()
		mux.ServeHTTP(rr, req)
		if rr.Code != http.StatusOK {
			t.Fatalf("request %d = %d, want 200", i+1, rr.Code)
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/emotes/search?q=x", nil)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("request over limit = %d, want 429", rr.Code)
	}
	if rr.Header().Get("Retry-After") == "" {
		t.Error("missing Retry-After header")
	}

	// Other endpoints are not rate limited.
	req = httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rr = httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Errorf("healthz after limit = %d, want 200", rr.Code)
	}
}

func TestRateLimitDisabled(t *testing.T) {
	t.Setenv("RATE_LIMIT_ENABLED", "0")
	t.Setenv("RATE_LIMIT_REQUESTS_PER_IP", "1")
	mux := newTestMux(t)

	for i := 0; i < 5; i++ {
		req := httptest.NewRequest(http.MethodGet, "/emotes/search?q=x", nil)
		rr := httptest.NewRecorder()
		mux.ServeHTTP(rr, req)
		if rr.Code != http.StatusOK {
			t.Fatalf("request %d = %d, want 200 with limiter disabled", i+1, rr.Code)
		}
	}
}

func TestRateLimiterSlidingWindow(t *testing.T) {
	cfg := &rateLimiterConfig{enabled: true, requestsPerIP: 1, window: 50 * time.Millisecond}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	limiter := newIPRateLimiter(ctx, cfg)

	if !limiter.allow("10.0.0.1") {
		t.Fatal("first request should pass")
	}
	if limiter.allow("10.0.0.1") {
		t.Fatal("second request inside window should be blocked")
	}
	// A different IP has its own budget.
	if !limiter.allow("10.0.0.2") {
		t.Error("other IP should pass")
	}

	time.Sleep(60 * time.Millisecond)
	if !limiter.allow("10.0.0.1") {
		t.Error("request after window expiry should pass")
	}
}

func TestCORSRestrictedOrigins(t *testing.T) {
	t.Setenv("CORS_PERMISSIVE", "0")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://app.example.com, *.chat.example.com")
	mux := newTestMux(t)

	cases := []struct {
		origin  string
		allowed bool
	}{
		{"https://app.example.com", true},
		{"https://widget.chat.example.com", true},
		{"https://evil.example.net", false},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
		req.Header.Set("Origin", tc.origin)
		rr := httptest.NewRecorder()
		mux.ServeHTTP(rr, req)

		got := rr.Header().Get("Access-Control-Allow-Origin")
		if tc.allowed && got != tc.origin {
			t.Errorf("origin %s: Allow-Origin = %q, want echoed", tc.origin, got)
		}
		if !tc.allowed && got != "" {
			t.Errorf("origin %s: Allow-Origin = %q, want empty", tc.origin, got)
		}
	}
}
