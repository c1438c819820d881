package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func TestRateLimiterHandle_BlocksWithinWindow(t *testing.T) {
	gin.SetMode(gin.TestMode)
	now := time.Now()
	limiter := &rateLimiter{
		window:        10 * time.Second,
		last:          make(map[string]time.Time),
		sweepInterval: 10 * time.Second,
		now: func() time.Time {
			return now
		},
	}

	c1, _ := gin.CreateTestContext(httptest.NewRecorder())
	c1.Request = httptest.NewRequest(http.MethodPost, "/api/v1/query", nil)
	limiter.handle(c1)
	require.False(t, c1.IsAborted())

	rec := httptest.NewRecorder()
	c2, _ := gin.CreateTestContext(rec)
	c2.Request = httptest.NewRequest(http.MethodPost, "/api/v1/query", nil)
	limiter.handle(c2)
	require.True(t, c2.IsAborted())
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	require.Contains(t, rec.Body.String(), `"error"`)

	c3, _ := gin.CreateTestContext(httptest.NewRecorder())
	c3.Request = httptest.NewRequest(http.MethodPost, "/api/v1/query", nil)
	c3.Request.Header.Set("Authorization", "Bearer other")
	limiter.handle(c3)
	require.False(t, c3.IsAborted())

	now = now.Add(11 * time.Second)
	c4, _ := gin.CreateTestContext(httptest.NewRecorder())
	c4.Request = httptest.NewRequest(http.MethodPost, "/api/v1/query", nil)
	limiter.handle(c4)
	require.False(t, c4.IsAborted())
}

func TestRateLimiterCleanupExpiredLocked_RemovesExpiredEntries(t *testing.T) {
	base := time.Now()
	limiter := &rateLimiter{
		window:        10 * time.Second,
		last:          make(map[string]time.Time),
		sweepInterval: 10 * time.Second,
		now:           time.Now,
	}
	limiter.last["expired"] = base.Add(-20 * time.Second)
	limiter.last["active"] = base.Add(-2 * time.Second)

	limiter.mu.Lock()
	limiter.cleanupExpiredLocked(base)
	limiter.mu.Unlock()

	require.NotContains(t, limiter.last, "expired")
	require.Contains(t, limiter.last, "active")
	require.False(t, limiter.lastSweep.IsZero())
}

func TestRateLimitDisabled(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := RateLimit(0)
	for i := 0; i < 3; i++ {
		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		c.Request = httptest.NewRequest(http.MethodPost, "/api/v1/query", nil)
		h(c)
		require.False(t, c.IsAborted())
	}
}

func TestRateLimiterIgnoresForwardedHeadersFromUntrustedPeer(t *testing.T) {
	gin.SetMode(gin.TestMode)
	now := time.Now()
	limiter := &rateLimiter{
		window:        10 * time.Second,
		last:          make(map[string]time.Time),
		sweepInterval: 10 * time.Second,
		now:           func() time.Time { return now },
		trusted:       ParseTrustedProxies([]string{"10.0.0.0/8"}),
	}
	request := func(remote, forwarded string) *gin.Context {
		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		c.Request = httptest.NewRequest(http.MethodPost, "/api/v1/query", nil)
		c.Request.RemoteAddr = remote
		if forwarded != "" {
			c.Request.Header.Set("X-Real-IP", forwarded)
			c.Request.Header.Set("X-Forwarded-For", forwarded)
		}
		limiter.handle(c)
		return c
	}

	require.False(t, request("192.0.2.7:4000", "198.51.100.1").IsAborted())
	require.True(t, request("192.0.2.7:4001", "198.51.100.2").IsAborted())

	require.False(t, request("10.1.2.3:5000", "198.51.100.1").IsAborted())
	require.False(t, request("10.1.2.3:5001", "198.51.100.2").IsAborted())
	require.True(t, request("10.1.2.3:5002", "198.51.100.2").IsAborted())
}

func TestParseTrustedProxies(t *testing.T) {
	prefixes := ParseTrustedProxies([]string{"10.0.0.0/8", " 127.0.0.1 ", "::1", "bogus"})
	require.Len(t, prefixes, 3)
	require.Equal(t, "10.0.0.0/8", prefixes[0].String())
	require.Equal(t, "127.0.0.1/32", prefixes[1].String())
	require.Equal(t, "::1/128", prefixes[2].String())
}
