package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/yourorg/pdf-converter-service/pkg/logging"
	"github.com/yourorg/pdf-converter-service/pkg/utils"
)

const (
	TraceIDKey         = "trace_id"
	TraceIDHeader      = "X-Trace-ID"
	TraceParentHeader  = "traceparent"
	maxTraceIDLength   = 128
	traceParentVersion = "00"
)

// TracingMiddleware attaches a trace ID to the request. It prefers
// X-Trace-ID, then the trace-id of a W3C traceparent header, and generates a
// UUID otherwise. The ID is echoed in X-Trace-ID and ends up in logs and
// conversion events.
func TracingMiddleware(logger logging.Logger, serviceName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		traceID, source := incomingTraceID(c)
		if traceID == "" {
			traceID = utils.GenerateUUID()
			source = "generated"
		}
		logger.Debug("Trace ID resolved",
			logging.NewField("service", serviceName),
			logging.NewField("trace_id", traceID),
			logging.NewField("source", source),
		)

		ctx := context.WithValue(c.Request.Context(), TraceIDKey, traceID)
		c.Request = c.Request.WithContext(ctx)
		c.Set(TraceIDKey, traceID)
		c.Header(TraceIDHeader, traceID)

		c.Next()
	}
}

func incomingTraceID(c *gin.Context) (string, string) {
	if id := c.GetHeader(TraceIDHeader); validTraceID(id) {
		return id, "header"
	}
	if id := traceIDFromParent(c.GetHeader(TraceParentHeader)); id != "" {
		return id, "traceparent"
	}
	return "", ""
}

// validTraceID accepts printable tokens without whitespace.
func validTraceID(id string) bool {
	if id == "" || len(id) > maxTraceIDLength {
		return false
	}
	for _, r := range id {
		if r <= ' ' || r > '~' {
			return false
		}
	}
	return true
}

// traceIDFromParent extracts the trace-id of a version 00 traceparent:
// 00-<32 hex trace-id>-<16 hex parent-id>-<2 hex flags>.
func traceIDFromParent(header string) string {
	parts := strings.Split(strings.TrimSpace(header), "-")
	if len(parts) != 4 || parts[0] != traceParentVersion {
		return ""
	}
	id := strings.ToLower(parts[1])
	if len(id) != 32 || !isHex(id) || id == strings.Repeat("0", 32) {
		return ""
	}
	return id
}

func isHex(s string) bool {
	for _, r := range s {
		if !(r >= '0' && r <= '9' || r >= 'a' && r <= 'f') {
			return false
		}
	}
	return true
}

// GetTraceID retrieves the trace ID from context.
func GetTraceID(ctx context.Context) string {
	if traceID, ok := ctx.Value(TraceIDKey).(string); ok {
		return traceID
	}
	return ""
}

// GetTraceIDFromGin retrieves the trace ID from Gin context.
func GetTraceIDFromGin(c *gin.Context) string {
	return c.GetString(TraceIDKey)
}
