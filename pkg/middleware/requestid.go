package middleware

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/yourorg/pdf-converter-service/pkg/utils"
)

const (
	RequestIDKey    = "request_id"
	RequestIDHeader = "X-Request-ID"
)

// RequestIDMiddleware attaches a request ID to the context and echoes it in
// headerName. A well-formed incoming ID is reused; anything else is replaced.
func RequestIDMiddleware(headerName string) gin.HandlerFunc {
	if headerName == "" {
		headerName = RequestIDHeader
	}

	return func(c *gin.Context) {
		requestID := c.GetHeader(headerName)
		if !utils.IsValidUUID(requestID) {
			requestID = utils.GenerateUUID()
		}

		ctx := context.WithValue(c.Request.Context(), RequestIDKey, requestID)
		c.Request = c.Request.WithContext(ctx)

		c.Set(RequestIDKey, requestID)
		c.Header(headerName, requestID)

		c.Next()
	}
}

// GetRequestID retrieves the request ID from context.
func GetRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(RequestIDKey).(string); ok {
		return requestID
	}
	return ""
}

// GetRequestIDFromGin retrieves the request ID from Gin context.
func GetRequestIDFromGin(c *gin.Context) string {
	if requestID, exists := c.Get(RequestIDKey); exists {
		if id, ok := requestID.(string); ok {
			return id
		}
	}
	return ""
}
