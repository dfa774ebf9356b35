package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/yourorg/pdf-converter-service/pkg/logging"
	"github.com/yourorg/pdf-converter-service/pkg/utils"
)

func tracedRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(TracingMiddleware(logging.NewNopLogger(), "pdf-converter-service"))
	router.GET("/test", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"gin": GetTraceIDFromGin(c),
			"ctx": GetTraceID(c.Request.Context()),
		})
	})
	return router
}

func TestTracingMiddleware(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		want    string // empty means a generated UUID
	}{
		{"generates when absent", nil, ""},
		{"keeps X-Trace-ID", map[string]string{TraceIDHeader: "existing-trace-id"}, "existing-trace-id"},
		{
			"reads traceparent",
			map[string]string{TraceParentHeader: "00-4BF92F3577B34DA6A3CE929D0E0E4736-00f067aa0ba902b7-01"},
			"4bf92f3577b34da6a3ce929d0e0e4736",
		},
		{
			"X-Trace-ID wins over traceparent",
			map[string]string{
				TraceIDHeader:     "explicit",
				TraceParentHeader: "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01",
			},
			"explicit",
		},
		{"rejects whitespace", map[string]string{TraceIDHeader: "two words"}, ""},
		{"rejects all-zero traceparent", map[string]string{TraceParentHeader: "00-00000000000000000000000000000000-00f067aa0ba902b7-01"}, ""},
		{"rejects unknown traceparent version", map[string]string{TraceParentHeader: "01-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01"}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/test", nil)
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			w := httptest.NewRecorder()
			tracedRouter().ServeHTTP(w, req)

			assert.Equal(t, http.StatusOK, w.Code)
			got := w.Header().Get(TraceIDHeader)
			if tt.want == "" {
				assert.True(t, utils.IsValidUUID(got), got)
			} else {
				assert.Equal(t, tt.want, got)
			}
			assert.JSONEq(t, `{"gin":"`+got+`","ctx":"`+got+`"}`, w.Body.String())
		})
	}
}

func TestGetTraceID_Missing(t *testing.T) {
	assert.Empty(t, GetTraceID(context.Background()))
}
