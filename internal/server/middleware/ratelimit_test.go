package middleware

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"golang.org/x/time/rate"
)

func newTestLimiter(t *testing.T, limit rate.Limit, burst int) *RateLimiter {
	t.Helper()

	rl := NewRateLimiter(limit, burst, time.Minute, slog.New(slog.NewTextHandler(io.Discard, nil)))
	t.Cleanup(rl.Stop)
	return rl
}

func TestRateLimiter_Allow(t *testing.T) {
	rl := newTestLimiter(t, rate.Every(time.Hour), 3)

	for i := 0; i < 3; i++ {
		assert.True(t, rl.Allow("10.0.0.1"), "request %d within burst", i+1)
	}
	assert.False(t, rl.Allow("10.0.0.1"), "burst exhausted")

	// Другие ключи не затронуты
	assert.True(t, rl.Allow("10.0.0.2"))
	assert.Equal(t, 2, rl.Len())
}

func TestRateLimiter_Refill(t *testing.T) {
	rl := newTestLimiter(t, rate.Every(20*time.Millisecond), 1)

	assert.True(t, rl.Allow("ip"))
	assert.False(t, rl.Allow("ip"))

	assert.Eventually(t, func() bool {
		return rl.Allow("ip")
	}, time.Second, 5*time.Millisecond)
}

func TestRateLimiter_CleanupIdle(t *testing.T) {
	rl := newTestLimiter(t, rate.Inf, 1)

	rl.Allow("old")
	rl.cleanupIdle(time.Now().Add(2 * time.Minute))

	assert.Equal(t, 0, rl.Len())
}

func TestRateLimiter_Middleware(t *testing.T) {
	var logBuf strings.Builder
	rl := NewRateLimiter(rate.Every(time.Hour), 1, time.Minute, slog.New(slog.NewTextHandler(&logBuf, nil)))
	t.Cleanup(rl.Stop)

	handler := rl.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/collaboration/demo", nil)
	req.RemoteAddr = "10.0.0.1:1000"

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	// Другой порт того же адреса делит лимит
	req.RemoteAddr = "10.0.0.1:2000"
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Contains(t, w.Body.String(), "rate limit exceeded")
	assert.Contains(t, logBuf.String(), "Rate limit exceeded")
}

func TestGetClientIP(t *testing.T) {
	tests := []struct {
		headers    map[string]string
		name       string
		remoteAddr string
		expected   string
	}{
		{
			name:       "X-Forwarded-For with several addresses",
			headers:    map[string]string{"X-Forwarded-For": "203.0.113.1, 10.0.0.1"},
			remoteAddr: "127.0.0.1:1234",
			expected:   "203.0.113.1",
		},
		{
			name:       "X-Real-IP",
			headers:    map[string]string{"X-Real-IP": "203.0.113.2"},
			remoteAddr: "127.0.0.1:1234",
			expected:   "203.0.113.2",
		},
		{
			name:       "RemoteAddr without port",
			remoteAddr: "127.0.0.1:1234",
			expected:   "127.0.0.1",
		},
		{
			name:       "RemoteAddr that is not host:port",
			remoteAddr: "pipe",
			expected:   "pipe",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remoteAddr
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}

			assert.Equal(t, tt.expected, getClientIP(req))
		})
	}
}
