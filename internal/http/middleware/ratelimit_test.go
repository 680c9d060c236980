package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestRateLimiterAllowsWithinBurst(t *testing.T) {
	rl := NewRateLimiter(1, 3)

	for i := 0; i < 3; i++ {
		if !rl.Allow("1.2.3.4") {
			t.Fatalf("request %d rejected within burst", i+1)
		}
	}
	if rl.Allow("1.2.3.4") {
		t.Fatalf("expected rejection after burst exhausted")
	}
}

func TestRateLimiterSeparateClients(t *testing.T) {
	rl := NewRateLimiter(1, 1)

	if !rl.Allow("1.2.3.4") {
		t.Fatalf("first client rejected")
	}
	if !rl.Allow("5.6.7.8") {
		t.Fatalf("second client should have its own bucket")
	}
	if rl.Allow("1.2.3.4") {
		t.Fatalf("first client should be exhausted")
	}
}

func TestRateLimitMiddleware(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	mw := RateLimit(1, 2)
	wrapped := mw(handler)

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/widget/message", nil)
		req.Header.Set("X-Real-Ip", "9.9.9.9")
		rec := httptest.NewRecorder()
		wrapped.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d: status %d", i+1, rec.Code)
		}
	}

	req := httptest.NewRequest(http.MethodPost, "/widget/message", nil)
	req.Header.Set("X-Real-Ip", "9.9.9.9")
	rec := httptest.NewRecorder()
	wrapped.ServeHTTP(rec, req)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}
}
