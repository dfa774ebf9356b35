package httpservice

import (
	"bytes"
	"encoding/json"
	"io"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/yourorg/pdf-converter-service/pkg/logging"
)

// maxLoggedBody caps how much of a JSON body is kept for the access log.
const maxLoggedBody = 64 << 10

// responseWriter wraps gin.ResponseWriter to capture JSON response bodies.
type responseWriter struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

func (w *responseWriter) Write(b []byte) (int, error) {
	if isJSON(w.Header().Get("Content-Type")) && w.body.Len()+len(b) <= maxLoggedBody {
		w.body.Write(b)
	}
	return w.ResponseWriter.Write(b)
}

func isJSON(contentType string) bool {
	return strings.HasPrefix(contentType, "application/json")
}

// BodyLoggingMiddleware logs every request with its outcome. JSON request and
// response bodies are included; uploads and file downloads are not buffered.
func BodyLoggingMiddleware(logger logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		var requestBodyJSON interface{}
		if c.Request.Body != nil && isJSON(c.ContentType()) && c.Request.ContentLength <= maxLoggedBody {
			requestBody, err := io.ReadAll(c.Request.Body)
			// Restore the body for handlers to read
			c.Request.Body = io.NopCloser(bytes.NewBuffer(requestBody))
			if err == nil && len(requestBody) > 0 {
				_ = json.Unmarshal(requestBody, &requestBodyJSON)
			}
		}

		responseBodyWriter := &responseWriter{
			ResponseWriter: c.Writer,
			body:           &bytes.Buffer{},
		}
		c.Writer = responseBodyWriter

		c.Next()

		latency := time.Since(start)

		fields := []logging.Field{
			logging.NewField("method", c.Request.Method),
			logging.NewField("path", c.Request.URL.Path),
			logging.NewField("status", c.Writer.Status()),
			logging.NewField("latency_ms", latency.Milliseconds()),
			logging.NewField("bytes_out", c.Writer.Size()),
		}

		if requestID, exists := c.Get("request_id"); exists {
			fields = append(fields, logging.NewField("request_id", requestID))
		}
		if traceID, exists := c.Get("trace_id"); exists {
			fields = append(fields, logging.NewField("trace_id", traceID))
		}
		if raw := c.Request.URL.RawQuery; raw != "" {
			fields = append(fields, logging.NewField("query", raw))
		}
		if requestBodyJSON != nil {
			fields = append(fields, logging.NewField("request_body", requestBodyJSON))
		}
		if responseBodyWriter.body.Len() > 0 {
			var responseBodyJSON interface{}
			if json.Unmarshal(responseBodyWriter.body.Bytes(), &responseBodyJSON) == nil {
				fields = append(fields, logging.NewField("response_body", responseBodyJSON))
			}
		}

		switch {
		case c.Writer.Status() >= 500:
			logger.Error("HTTP Request/Response", fields...)
		case c.Writer.Status() >= 400:
			logger.Warn("HTTP Request/Response", fields...)
		default:
			logger.Info("HTTP Request/Response", fields...)
		}
	}
}
