package ratelimit

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestLimiter(t *testing.T) (Limiter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return Limiter{Client: client, Prefix: "rl:test:"}, mr
}

func TestAllowWithinLimit(t *testing.T) {
	limiter, _ := newTestLimiter(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		allowed, _, _, err := limiter.Allow(ctx, "client-a", time.Minute, 3)
		if err != nil {
			t.Fatalf("allow: %v", err)
		}
		if !allowed {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}

	allowed, remaining, _, err := limiter.Allow(ctx, "client-a", time.Minute, 3)
	if err != nil {
		t.Fatalf("allow: %v", err)
	}
	if allowed {
		t.Fatal("fourth request should be blocked")
	}
	if remaining != 0 {
		t.Fatalf("remaining = %d, want 0", remaining)
	}
}

func TestAllowKeysAreIndependent(t *testing.T) {
	limiter, _ := newTestLimiter(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if allowed, _, _, _ := limiter.Allow(ctx, "client-a", time.Minute, 2); !allowed {
			t.Fatal("client-a should be within limit")
		}
	}
	if allowed, _, _, _ := limiter.Allow(ctx, "client-b", time.Minute, 2); !allowed {
		t.Fatal("client-b must not share client-a's window")
	}
}

func TestAllowWindowSlides(t *testing.T) {
	limiter, mr := newTestLimiter(t)
	ctx := context.Background()

	limiter.Allow(ctx, "client-a", time.Minute, 1)
	if allowed, _, _, _ := limiter.Allow(ctx, "client-a", time.Minute, 1); allowed {
		t.Fatal("second request inside window should be blocked")
	}

	mr.FastForward(2 * time.Minute)
	if allowed, _, _, _ := limiter.Allow(ctx, "client-a", time.Minute, 1); !allowed {
		t.Fatal("request after window expiry should be allowed")
	}
}

func TestAllowDisabled(t *testing.T) {
	var limiter Limiter
	allowed, _, _, err := limiter.Allow(context.Background(), "any", time.Minute, 5)
	if err != nil {
		t.Fatalf("allow: %v", err)
	}
	if !allowed {
		t.Fatal("nil client must disable limiting")
	}
}

func TestMiddlewareBlocksAndSetsHeaders(t *testing.T) {
	limiter, _ := newTestLimiter(t)
	h := Handler{
		Limiter: limiter,
		Config: Config{
			Key:    func(r *http.Request) string { return r.RemoteAddr },
			Window: time.Minute,
			Max:    1,
		},
	}
	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	wrapped := h.Middleware(next)

	req := httptest.NewRequest(http.MethodPost, "/pay", nil)
	req.RemoteAddr = "192.0.2.1:1111"

	first := httptest.NewRecorder()
	wrapped.ServeHTTP(first, req)
	if first.Code != http.StatusOK {
		t.Fatalf("first request: code = %d", first.Code)
	}
	if got := first.Header().Get("X-RateLimit-Limit"); got != "1" {
		t.Fatalf("X-RateLimit-Limit = %q", got)
	}

	second := httptest.NewRecorder()
	wrapped.ServeHTTP(second, req)
	if second.Code != http.StatusTooManyRequests {
		t.Fatalf("second request: code = %d, want 429", second.Code)
	}
	if second.Header().Get("Retry-After") == "" {
		t.Fatal("blocked response must carry Retry-After")
	}
}

func TestMiddlewareFallsOpenOnRedisError(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	mr.Close()

	var sawErr bool
	h := Handler{
		Limiter: Limiter{Client: client, Prefix: "rl:test:"},
		Config: Config{
			Key:    func(r *http.Request) string { return r.RemoteAddr },
			Window: time.Minute,
			Max:    1,
		},
		OnError: func(error) { sawErr = true },
	}
	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	rec := httptest.NewRecorder()
	h.Middleware(next).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/pay", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("code = %d, limiter errors must fall open", rec.Code)
	}
	if !sawErr {
		t.Fatal("OnError should have been called")
	}
}
