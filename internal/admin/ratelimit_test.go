package admin

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

func TestRateLimitSweepEndpoint(t *testing.T) {
	rl := NewRateLimitMiddleware(testLogger())
	defer rl.Stop()
	handler := rl.Wrap(okHandler())

	req := httptest.NewRequest(http.MethodPost, "/admin/v1/sweep", nil)
	req.RemoteAddr = "10.0.0.1:5000"

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	// Burst is 1: an immediate second trigger is rejected.
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
}

func TestRateLimitPerIPIsolation(t *testing.T) {
	rl := NewRateLimitMiddleware(testLogger())
	defer rl.Stop()
	handler := rl.Wrap(okHandler())

	first := httptest.NewRequest(http.MethodPost, "/admin/v1/sweep", nil)
	first.RemoteAddr = "10.0.0.1:5000"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, first)
	require.Equal(t, http.StatusOK, rec.Code)

	// A different client gets its own limiter.
	second := httptest.NewRequest(http.MethodPost, "/admin/v1/sweep", nil)
	second.RemoteAddr = "10.0.0.2:5000"
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, second)
	assert.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, 2, rl.LimiterCount())
}

func TestRateLimitDefaultRuleAllowsBurst(t *testing.T) {
	rl := NewRateLimitMiddleware(testLogger())
	defer rl.Stop()
	handler := rl.Wrap(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/admin/v1/transactions", nil)
	req.RemoteAddr = "10.0.0.1:5000"

	for i := 0; i < 5; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, "request %d within burst", i+1)
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestRateLimitHonorsForwardedFor(t *testing.T) {
	rl := NewRateLimitMiddleware(testLogger())
	defer rl.Stop()
	handler := rl.Wrap(okHandler())

	req := httptest.NewRequest(http.MethodPost, "/admin/v1/sweep", nil)
	req.RemoteAddr = "127.0.0.1:5000"
	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	// Same origin IP via a different proxy hop shares the limiter.
	req2 := httptest.NewRequest(http.MethodPost, "/admin/v1/sweep", nil)
	req2.RemoteAddr = "127.0.0.2:5000"
	req2.Header.Set("X-Forwarded-For", "203.0.113.9")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req2)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestRateLimitEvictsStaleEntries(t *testing.T) {
	rl := NewRateLimitMiddleware(testLogger())
	defer rl.Stop()
	handler := rl.Wrap(okHandler())

	now := time.Now()
	rl.nowFunc = func() time.Time { return now }

	req := httptest.NewRequest(http.MethodGet, "/admin/v1/status", nil)
	req.RemoteAddr = "10.0.0.1:5000"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, 1, rl.LimiterCount())

	now = now.Add(staleLimiterTTL + time.Minute)
	rl.evictStale()
	assert.Equal(t, 0, rl.LimiterCount())
}

func TestExtractClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:5000"
	assert.Equal(t, "10.0.0.1", extractClientIP(req))

	req.Header.Set("X-Real-IP", "198.51.100.4")
	assert.Equal(t, "198.51.100.4", extractClientIP(req))

	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	assert.Equal(t, "203.0.113.9", extractClientIP(req))
}
