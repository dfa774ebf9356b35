package httpservice

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/yourorg/pdf-converter-service/pkg/logging"
)

// HandlerFunc is a handler function that returns an error.
type HandlerFunc func(c *gin.Context) error

// Wrap adapts a HandlerFunc to gin. Entry and exit are logged at debug level
// with the handler name and latency; a returned error becomes the response.
func Wrap(handlerName string, fn HandlerFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		logger := logging.FromContext(c.Request.Context()).With(logging.NewField("handler", handlerName))
		start := time.Now()

		logger.Debug("Handler started",
			logging.NewField("method", c.Request.Method),
			logging.NewField("path", c.Request.URL.Path),
		)

		if err := fn(c); err != nil {
			logger.Debug("Handler failed",
				logging.NewField("latency_ms", time.Since(start).Milliseconds()),
				logging.NewField("error", err),
			)
			HandleError(c, err)
			return
		}

		logger.Debug("Handler completed", logging.NewField("latency_ms", time.Since(start).Milliseconds()))
	}
}
