package security

import (
	"net/http"
	"net/http/httptest"
	"runtime"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLimiterStoreBurst(t *testing.T) {
	s := newLimiterStore(2, time.Minute)
	now := time.Now()

	assert.True(t, s.allow("a", now))
	assert.True(t, s.allow("a", now))
	assert.False(t, s.allow("a", now))
	assert.True(t, s.allow("b", now), "buckets are per key")
}

func TestLimiterStoreSweep(t *testing.T) {
	s := newLimiterStore(1, time.Minute)
	now := time.Now()
	s.allow("old", now.Add(-time.Hour))
	s.allow("fresh", now)

	s.sweep(time.Minute, now)

	assert.NotContains(t, s.visitors, "old")
	assert.Contains(t, s.visitors, "fresh")
}

func TestLimiterStoreSweepsOnRequestPath(t *testing.T) {
	s := newLimiterStore(1, time.Second)
	now := s.lastSweep
	s.allow("idle", now)

	s.allow("busy", now.Add(30*time.Second))
	assert.Contains(t, s.visitors, "idle", "no sweep before the interval elapsed")

	later := now.Add(sweepInterval + 2*time.Second)
	s.allow("busy", later)
	assert.NotContains(t, s.visitors, "idle")
	assert.Contains(t, s.visitors, "busy")
	assert.Equal(t, later, s.lastSweep)
}

func TestRateLimiterStartsNoGoroutine(t *testing.T) {
	before := runtime.NumGoroutine()
	for i := 0; i < 50; i++ {
		RateLimiter(10, time.Minute, nil)
	}
	assert.LessOrEqual(t, runtime.NumGoroutine(), before)
}

func TestRateLimiterMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RateLimiter(1, time.Hour, func(c *gin.Context) string { return "fixed" }))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
}

func TestCORSWhitelist(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(CORS([]string{"https://exam.example.com"}))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://exam.example.com")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "https://exam.example.com", w.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodOptions, "/", nil)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
}
