package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/AgentOS/exthost/internal/infrastructure/reporting"
	"github.com/GriffinCanCode/AgentOS/exthost/internal/shared/id"
	"github.com/GriffinCanCode/AgentOS/exthost/internal/testutil"
)

func setupTestRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	return gin.New()
}

func ok(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "success"})
}

func serve(router *gin.Engine, method, path, remote string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if remote != "" {
		req.RemoteAddr = remote
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestCORS(t *testing.T) {
	router := setupTestRouter()
	router.Use(CORS(DefaultCORSConfig()))
	router.POST("/open", ok)

	tests := []struct {
		name           string
		method         string
		origin         string
		wantStatus     int
		wantCORSHeader bool
	}{
		{name: "simple POST with origin", method: http.MethodPost, origin: "http://localhost:3000", wantStatus: http.StatusOK, wantCORSHeader: true},
		{name: "preflight OPTIONS", method: http.MethodOptions, origin: "http://localhost:3000", wantStatus: http.StatusNoContent, wantCORSHeader: true},
		{name: "no origin header", method: http.MethodPost, wantStatus: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/open", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
				req.Header.Set("Access-Control-Request-Method", http.MethodPost)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			if tt.wantCORSHeader {
				assert.NotEmpty(t, w.Header().Get("Access-Control-Allow-Origin"))
			} else {
				assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
			}
		})
	}
}

func TestDefaultCORSConfig(t *testing.T) {
	cfg := DefaultCORSConfig()

	assert.Contains(t, cfg.AllowOrigins, "*")
	assert.Contains(t, cfg.AllowMethods, http.MethodPost)
	assert.Contains(t, cfg.AllowHeaders, HeaderRequestID)
	assert.Contains(t, cfg.ExposeHeaders, HeaderRequestID)
	assert.False(t, cfg.AllowCredentials)
	assert.Equal(t, 12*time.Hour, cfg.MaxAge)
}

func TestRateLimit(t *testing.T) {
	router := setupTestRouter()
	router.Use(RateLimit(RateLimitConfig{RequestsPerSecond: 2, Burst: 2}))
	router.GET("/test", ok)

	for i := 0; i < 2; i++ {
		w := serve(router, http.MethodGet, "/test", "192.168.1.1:1234")
		assert.Equal(t, http.StatusOK, w.Code, "Request %d should succeed", i+1)
	}

	w := serve(router, http.MethodGet, "/test", "192.168.1.1:1234")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.JSONEq(t, `{"success":false,"error":"rate limit exceeded"}`, w.Body.String())
}

func TestRateLimitDifferentClients(t *testing.T) {
	router := setupTestRouter()
	router.Use(RateLimit(RateLimitConfig{RequestsPerSecond: 1, Burst: 1}))
	router.GET("/test", ok)

	assert.Equal(t, http.StatusOK, serve(router, http.MethodGet, "/test", "192.168.1.1:1234").Code)
	assert.Equal(t, http.StatusOK, serve(router, http.MethodGet, "/test", "192.168.1.2:1234").Code)
	assert.Equal(t, http.StatusTooManyRequests, serve(router, http.MethodGet, "/test", "192.168.1.1:1234").Code)
}

func TestLimiterSetEvictsIdleClients(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	set := newLimiterSet(RateLimitConfig{RequestsPerSecond: 1, Burst: 1}, func() time.Time { return now })

	require.True(t, set.allow("10.0.0.1"))
	require.False(t, set.allow("10.0.0.1"))
	require.True(t, set.allow("10.0.0.2"))
	assert.Equal(t, 2, set.size())

	now = now.Add(clientIdleTTL + time.Second)
	require.True(t, set.allow("10.0.0.3"))
	assert.Equal(t, 1, set.size())
}

func TestGlobalRateLimit(t *testing.T) {
	router := setupTestRouter()
	router.Use(GlobalRateLimit(RateLimitConfig{RequestsPerSecond: 2, Burst: 2}))
	router.GET("/test", ok)

	assert.Equal(t, http.StatusOK, serve(router, http.MethodGet, "/test", "192.168.1.1:1234").Code)
	assert.Equal(t, http.StatusOK, serve(router, http.MethodGet, "/test", "192.168.1.2:1234").Code)
	assert.Equal(t, http.StatusTooManyRequests, serve(router, http.MethodGet, "/test", "192.168.1.3:1234").Code)
}

func TestDefaultRateLimitConfig(t *testing.T) {
	cfg := DefaultRateLimitConfig()

	assert.Equal(t, 100, cfg.RequestsPerSecond)
	assert.Equal(t, 200, cfg.Burst)
}

func TestRequestID(t *testing.T) {
	router := setupTestRouter()
	router.Use(RequestID())
	router.GET("/test", func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString(ContextRequestID))
	})

	w := serve(router, http.MethodGet, "/test", "")
	rid := w.Header().Get(HeaderRequestID)
	assert.True(t, id.IsValid(rid))
	assert.Equal(t, rid, w.Body.String())

	valid := id.NewRequestID().String()
	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set(HeaderRequestID, valid)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, valid, w.Header().Get(HeaderRequestID))

	req = httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set(HeaderRequestID, "not an id")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.NotEqual(t, "not an id", w.Header().Get(HeaderRequestID))
}

func TestRecovery(t *testing.T) {
	reporter := testutil.NewRecordingReporter()
	router := setupTestRouter()
	router.Use(Recovery(reporter))
	router.GET("/boom", func(*gin.Context) { panic("boom") })

	w := serve(router, http.MethodGet, "/boom", "")

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	errs := reporter.Errors()
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], reporting.ErrPanic)
	assert.Contains(t, errs[0].Error(), "GET /boom")
}

func BenchmarkRateLimit(b *testing.B) {
	router := setupTestRouter()
	router.Use(RateLimit(DefaultRateLimitConfig()))
	router.GET("/test", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.RemoteAddr = "192.168.1.1:1234"

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
	}
}
