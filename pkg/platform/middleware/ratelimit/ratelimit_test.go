package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMiddleware(t *testing.T) {
	limiter := New(Config{RequestsPerSecond: 0.001, Burst: 2})
	h := limiter.Middleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	call := func(remote string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = remote
		h.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusNoContent, call("10.0.0.1:1").Code)
	assert.Equal(t, http.StatusNoContent, call("10.0.0.1:2").Code)

	rejected := call("10.0.0.1:3")
	assert.Equal(t, http.StatusTooManyRequests, rejected.Code)
	assert.NotEmpty(t, rejected.Header().Get("Retry-After"))
	assert.Contains(t, rejected.Body.String(), "rate_limit_exceeded")

	// Buckets are per client.
	assert.Equal(t, http.StatusNoContent, call("10.0.0.2:1").Code)
}

func TestStaleClientsAreSwept(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	limiter := New(Config{RequestsPerSecond: 1, Burst: 1})
	limiter.now = func() time.Time { return now }

	limiter.limiterFor("a")
	now = now.Add(staleAfter + sweepInterval + time.Second)
	limiter.limiterFor("b")

	assert.NotContains(t, limiter.clients, "a")
	assert.Contains(t, limiter.clients, "b")
}
