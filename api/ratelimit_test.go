package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func hit(h http.Handler, remoteAddr string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.RemoteAddr = remoteAddr
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestClientRateLimiter_BurstThenReject(t *testing.T) {
	// GIVEN: A burst of 2 and a negligible refill rate
	rl := NewClientRateLimiter(RateLimiterConfig{RequestsPerSecond: 0.001, Burst: 2})
	h := rl.Middleware(okHandler())

	// WHEN: One client sends three requests
	first := hit(h, "10.0.0.1:5000")
	second := hit(h, "10.0.0.1:5001")
	third := hit(h, "10.0.0.1:5002")

	// THEN: The third is rejected with rate limit headers
	assert.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, "2", first.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, http.StatusOK, second.Code)
	require.Equal(t, http.StatusTooManyRequests, third.Code)
	assert.Equal(t, "0", third.Header().Get("X-RateLimit-Remaining"))
	assert.Equal(t, "1", third.Header().Get("Retry-After"))
	assert.Contains(t, third.Body.String(), "too_many_requests")
}

func TestClientRateLimiter_ClientsAreIndependent(t *testing.T) {
	rl := NewClientRateLimiter(RateLimiterConfig{RequestsPerSecond: 0.001, Burst: 1})
	h := rl.Middleware(okHandler())

	assert.Equal(t, http.StatusOK, hit(h, "10.0.0.1:1").Code)
	assert.Equal(t, http.StatusTooManyRequests, hit(h, "10.0.0.1:2").Code)
	assert.Equal(t, http.StatusOK, hit(h, "10.0.0.2:1").Code)
	assert.Equal(t, 2, rl.Clients())
}

func TestClientRateLimiter_StaleEntriesAreSwept(t *testing.T) {
	// GIVEN: A limiter with a controllable clock
	now := time.Date(2025, 3, 3, 12, 0, 0, 0, time.UTC)
	rl := NewClientRateLimiter(RateLimiterConfig{
		RequestsPerSecond: 1, Burst: 1, CleanupInterval: time.Minute, EntryTTL: 5 * time.Minute,
	})
	rl.now = func() time.Time { return now }
	rl.lastCleanup = now
	h := rl.Middleware(okHandler())

	hit(h, "10.0.0.1:1")
	hit(h, "10.0.0.2:1")
	require.Equal(t, 2, rl.Clients())

	// WHEN: Only one client returns after the TTL
	now = now.Add(10 * time.Minute)
	hit(h, "10.0.0.2:2")

	// THEN: The idle client is dropped
	assert.Equal(t, 1, rl.Clients())
}

func TestRouter_RateLimitIsWired(t *testing.T) {
	ts := setupTestServer(t)
	cfg := DefaultRouterConfig()
	cfg.RateLimit = RateLimiterConfig{RequestsPerSecond: 0.001, Burst: 1}
	router := NewRouter(ts.handler, cfg)

	assert.Equal(t, http.StatusOK, hit(router, "192.0.2.1:1").Code)
	assert.Equal(t, http.StatusTooManyRequests, hit(router, "192.0.2.1:2").Code)
}
