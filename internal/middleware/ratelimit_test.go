package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func newTestLimiter(limit int, window time.Duration, now *time.Time) *rateLimiter {
	return &rateLimiter{
		limit:         limit,
		window:        window,
		visitors:      make(map[string]*visitor),
		sweepInterval: window,
		now: func() time.Time {
			return *now
		},
	}
}

func hit(l *rateLimiter, path string) *gin.Context {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodPost, path, nil)
	l.handle(c)
	return c
}

func TestRateLimiterHandle_BlocksAfterBurst(t *testing.T) {
	gin.SetMode(gin.TestMode)
	now := time.Now()
	limiter := newTestLimiter(2, 10*time.Second, &now)

	require.False(t, hit(limiter, "/api/v1/query").IsAborted())
	require.False(t, hit(limiter, "/api/v1/query").IsAborted())
	require.True(t, hit(limiter, "/api/v1/query").IsAborted())
	require.False(t, hit(limiter, "/api/v1/upload").IsAborted())

	now = now.Add(5 * time.Second)
	require.False(t, hit(limiter, "/api/v1/query").IsAborted())
}

func TestRateLimiterHandle_Disabled(t *testing.T) {
	gin.SetMode(gin.TestMode)
	now := time.Now()
	limiter := newTestLimiter(0, time.Second, &now)
	for i := 0; i < 5; i++ {
		require.False(t, hit(limiter, "/api/v1/query").IsAborted())
	}
}

func TestRateLimiterCleanupExpiredLocked_RemovesExpiredEntries(t *testing.T) {
	base := time.Now()
	limiter := newTestLimiter(1, 10*time.Second, &base)
	limiter.visitors["expired"] = &visitor{seen: base.Add(-20 * time.Second)}
	limiter.visitors["active"] = &visitor{seen: base.Add(-2 * time.Second)}

	limiter.mu.Lock()
	limiter.cleanupExpiredLocked(base)
	limiter.mu.Unlock()

	require.NotContains(t, limiter.visitors, "expired")
	require.Contains(t, limiter.visitors, "active")
	require.False(t, limiter.lastSweep.IsZero())
}

func TestCORSAllowlist(t *testing.T) {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	engine.Use(RequestID(), CORS([]string{"https://kb.example.com/"}))
	engine.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("Origin", "https://kb.example.com")
	resp := httptest.NewRecorder()
	engine.ServeHTTP(resp, req)
	require.Equal(t, "https://kb.example.com", resp.Header().Get("Access-Control-Allow-Origin"))
	require.NotEmpty(t, resp.Header().Get("X-Request-Id"))

	req = httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	resp = httptest.NewRecorder()
	engine.ServeHTTP(resp, req)
	require.Empty(t, resp.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodOptions, "/ping", nil)
	resp = httptest.NewRecorder()
	engine.ServeHTTP(resp, req)
	require.Equal(t, http.StatusNoContent, resp.Code)
}
