package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
)

func newTestLimiter(t *testing.T, config *RateLimitConfig) (*SignInRateLimiter, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return NewSignInRateLimiter(client, config, nil), mr
}

func TestSignInRateLimiter_Allow(t *testing.T) {
	limiter, _ := newTestLimiter(t, &RateLimitConfig{
		RequestsPerWindow: 3,
		WindowDuration:    time.Minute,
	})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		allowed, err := limiter.Allow(ctx, "ip:1.2.3.4")
		if err != nil {
			t.Fatalf("Allow() error: %v", err)
		}
		if !allowed {
			t.Errorf("request %d should be allowed", i+1)
		}
	}

	allowed, err := limiter.Allow(ctx, "ip:1.2.3.4")
	if err != nil {
		t.Fatalf("Allow() error: %v", err)
	}
	if allowed {
		t.Error("request over the limit should be denied")
	}

	// Other keys are unaffected
	allowed, err = limiter.Allow(ctx, "ip:5.6.7.8")
	if err != nil {
		t.Fatalf("Allow() error: %v", err)
	}
	if !allowed {
		t.Error("different key should be allowed")
	}
}

func TestSignInRateLimiter_WindowReset(t *testing.T) {
	limiter, mr := newTestLimiter(t, &RateLimitConfig{
		RequestsPerWindow: 1,
		WindowDuration:    time.Minute,
	})
	ctx := context.Background()

	if allowed, _ := limiter.Allow(ctx, "ip:1.2.3.4"); !allowed {
		t.Fatal("first request should be allowed")
	}
	if allowed, _ := limiter.Allow(ctx, "ip:1.2.3.4"); allowed {
		t.Fatal("second request should be denied")
	}

	// Advance past the window; the key expires and quota resets
	mr.FastForward(2 * time.Minute)

	if allowed, _ := limiter.Allow(ctx, "ip:1.2.3.4"); !allowed {
		t.Error("request after window reset should be allowed")
	}
}

func TestSignInRateLimiter_Remaining(t *testing.T) {
	limiter, _ := newTestLimiter(t, &RateLimitConfig{
		RequestsPerWindow: 5,
		WindowDuration:    time.Minute,
	})
	ctx := context.Background()

	remaining, err := limiter.Remaining(ctx, "ip:1.2.3.4")
	if err != nil {
		t.Fatalf("Remaining() error: %v", err)
	}
	if remaining != 5 {
		t.Errorf("fresh key should have full quota, got %d", remaining)
	}

	limiter.Allow(ctx, "ip:1.2.3.4")
	limiter.Allow(ctx, "ip:1.2.3.4")

	remaining, err = limiter.Remaining(ctx, "ip:1.2.3.4")
	if err != nil {
		t.Fatalf("Remaining() error: %v", err)
	}
	if remaining != 3 {
		t.Errorf("expected 3 remaining, got %d", remaining)
	}
}

func TestSignInRateLimiter_Reset(t *testing.T) {
	limiter, _ := newTestLimiter(t, &RateLimitConfig{
		RequestsPerWindow: 1,
		WindowDuration:    time.Minute,
	})
	ctx := context.Background()

	limiter.Allow(ctx, "ip:1.2.3.4")
	if allowed, _ := limiter.Allow(ctx, "ip:1.2.3.4"); allowed {
		t.Fatal("should be over limit")
	}

	if err := limiter.Reset(ctx, "ip:1.2.3.4"); err != nil {
		t.Fatalf("Reset() error: %v", err)
	}

	if allowed, _ := limiter.Allow(ctx, "ip:1.2.3.4"); !allowed {
		t.Error("request after reset should be allowed")
	}
}

func TestSignInRateLimiter_Handler(t *testing.T) {
	limiter, _ := newTestLimiter(t, &RateLimitConfig{
		RequestsPerWindow: 2,
		WindowDuration:    time.Minute,
	})

	handler := limiter.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest("POST", "/api/v1/members/authenticate", nil)
		req.RemoteAddr = "1.2.3.4:5678"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Errorf("request %d: expected 200, got %d", i+1, rec.Code)
		}
		if rec.Header().Get("X-RateLimit-Limit") != "2" {
			t.Errorf("expected X-RateLimit-Limit 2, got %s", rec.Header().Get("X-RateLimit-Limit"))
		}
	}

	req := httptest.NewRequest("POST", "/api/v1/members/authenticate", nil)
	req.RemoteAddr = "1.2.3.4:5678"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("expected 429 over limit, got %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("expected Retry-After header")
	}
}

func TestSignInRateLimiter_HandlerUsesForwardedFor(t *testing.T) {
	limiter, _ := newTestLimiter(t, &RateLimitConfig{
		RequestsPerWindow: 1,
		WindowDuration:    time.Minute,
	})

	handler := limiter.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	send := func(forwardedFor string) int {
		req := httptest.NewRequest("POST", "/api/v1/members/authenticate", nil)
		req.RemoteAddr = "10.0.0.1:1111"
		req.Header.Set("X-Forwarded-For", forwardedFor)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec.Code
	}

	if code := send("1.1.1.1"); code != http.StatusOK {
		t.Errorf("first client: expected 200, got %d", code)
	}
	if code := send("1.1.1.1"); code != http.StatusTooManyRequests {
		t.Errorf("first client over limit: expected 429, got %d", code)
	}
	// Different forwarded IP has its own quota
	if code := send("2.2.2.2"); code != http.StatusOK {
		t.Errorf("second client: expected 200, got %d", code)
	}
}

func TestSignInRateLimiter_NilRedisDisablesLimiting(t *testing.T) {
	limiter := NewSignInRateLimiter(nil, &RateLimitConfig{
		RequestsPerWindow: 1,
		WindowDuration:    time.Minute,
	}, nil)

	handler := limiter.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for i := 0; i < 5; i++ {
		req := httptest.NewRequest("POST", "/api/v1/members/authenticate", nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Errorf("request %d: expected 200 with limiting disabled, got %d", i+1, rec.Code)
		}
	}
}
