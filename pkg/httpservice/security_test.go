package httpservice

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yourorg/pdf-converter-service/pkg/logging"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

// MockLogger implements logging.Logger for testing
type MockLogger struct{}

func (m *MockLogger) Info(msg string, fields ...logging.Field)    {}
func (m *MockLogger) Error(msg string, fields ...logging.Field)   {}
func (m *MockLogger) Debug(msg string, fields ...logging.Field)   {}
func (m *MockLogger) Warn(msg string, fields ...logging.Field)    {}
func (m *MockLogger) Fatal(msg string, fields ...logging.Field)   {}
func (m *MockLogger) With(fields ...logging.Field) logging.Logger { return m }
func (m *MockLogger) WithError(err error) logging.Logger          { return m }

func TestRateLimitMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	// Allow 2 requests per second with burst of 2
	cfg := RateLimitConfig{RPS: 2, Burst: 2}
	router := gin.New()
	router.Use(RateLimitMiddleware(cfg))
	router.GET("/", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", "/", nil)
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
	}

	// 3rd request should fail (too fast)
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/", nil)
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)

	// Wait for token refill
	time.Sleep(600 * time.Millisecond)

	w = httptest.NewRecorder()
	req, _ = http.NewRequest("GET", "/", nil)
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestSecurityHeadersMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(SecurityHeadersMiddleware())
	router.GET("/", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
	assert.Equal(t, "1; mode=block", w.Header().Get("X-XSS-Protection"))
	assert.Equal(t, "default-src 'self'", w.Header().Get("Content-Security-Policy"))
}

func TestHTTPMethodWhitelistMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(HTTPMethodWhitelistMiddleware(AllowedHTTPMethods, &MockLogger{}))
	router.Any("/", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	tests := []struct {
		method string
		status int
	}{
		{http.MethodGet, http.StatusOK},
		{http.MethodPost, http.StatusOK},
		{http.MethodDelete, http.StatusMethodNotAllowed},
		{http.MethodPut, http.StatusMethodNotAllowed},
	}
	for _, tt := range tests {
		t.Run(tt.method, func(t *testing.T) {
			w := httptest.NewRecorder()
			req, _ := http.NewRequest(tt.method, "/", nil)
			router.ServeHTTP(w, req)
			assert.Equal(t, tt.status, w.Code)
		})
	}
}

func TestRequestSizeLimitMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(RequestSizeLimitMiddleware(8, &MockLogger{}))
	router.POST("/", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/", strings.NewReader("0123456789"))
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.Contains(t, w.Body.String(), "Request body too large")

	w = httptest.NewRecorder()
	req, _ = http.NewRequest("POST", "/", strings.NewReader("0123"))
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestCORSMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name           string
		cfg            CORSConfig
		origin         string
		expectedOrigin string
	}{
		{
			name:           "Allow All",
			cfg:            CORSConfig{AllowedOrigins: []string{"*"}},
			origin:         "http://example.com",
			expectedOrigin: "*",
		},
		{
			name:           "Allow Specific",
			cfg:            CORSConfig{AllowedOrigins: []string{"http://example.com"}},
			origin:         "http://example.com",
			expectedOrigin: "http://example.com",
		},
		{
			name:           "Disallow Specific",
			cfg:            CORSConfig{AllowedOrigins: []string{"http://example.com"}},
			origin:         "http://evil.com",
			expectedOrigin: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := gin.New()
			router.Use(CORSMiddleware(tt.cfg))
			router.GET("/", func(c *gin.Context) {
				c.Status(http.StatusOK)
			})

			w := httptest.NewRecorder()
			req, _ := http.NewRequest("GET", "/", nil)
			req.Header.Set("Origin", tt.origin)
			router.ServeHTTP(w, req)

			assert.Equal(t, tt.expectedOrigin, w.Header().Get("Access-Control-Allow-Origin"))
		})
	}
}

func TestCORSMiddleware_Preflight(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(CORSMiddleware(CORSConfig{}))
	router.POST("/convert/", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodOptions, "/convert/", nil)
	req.Header.Set("Origin", "http://localhost:8080")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "GET, POST, OPTIONS, HEAD", w.Header().Get("Access-Control-Allow-Methods"))
}

func TestBodyLoggingMiddleware_SkipsBinaryBodies(t *testing.T) {
	gin.SetMode(gin.TestMode)
	core, logs := observer.New(zap.InfoLevel)
	logger := logging.NewLoggerFromZap(zap.New(core))

	router := gin.New()
	router.Use(BodyLoggingMiddleware(logger))
	router.POST("/json", func(c *gin.Context) {
		var body map[string]string
		require.NoError(t, c.ShouldBindJSON(&body))
		c.JSON(http.StatusOK, gin.H{"echo": body["filename"]})
	})
	router.GET("/file", func(c *gin.Context) {
		c.Data(http.StatusOK, "application/octet-stream", []byte("%PDF-1.4 binary"))
	})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/json", strings.NewReader(`{"filename":"sample.pdf"}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"echo":"sample.pdf"}`, w.Body.String())

	w = httptest.NewRecorder()
	req, _ = http.NewRequest("GET", "/file", nil)
	router.ServeHTTP(w, req)
	require.Equal(t, "%PDF-1.4 binary", w.Body.String())

	entries := logs.All()
	require.Len(t, entries, 2)

	jsonFields := entries[0].ContextMap()
	assert.Equal(t, map[string]interface{}{"filename": "sample.pdf"}, jsonFields["request_body"])
	assert.Equal(t, map[string]interface{}{"echo": "sample.pdf"}, jsonFields["response_body"])

	fileFields := entries[1].ContextMap()
	assert.NotContains(t, fileFields, "response_body")
	assert.EqualValues(t, len("%PDF-1.4 binary"), fileFields["bytes_out"])
}
