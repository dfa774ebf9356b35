package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yourorg/pdf-converter-service/pkg/errors"
	"github.com/yourorg/pdf-converter-service/pkg/logging"
)

// ErrorHandlerMiddleware provides centralized error handling for HTTP handlers.
// It converts the last error recorded on the context into an ErrorResponse
// unless the handler already wrote one.
func ErrorHandlerMiddleware(logger logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}

		appErr := errors.FromError(c.Errors.Last().Err)

		// Already carries trace_id and request_id.
		ctxLogger := logging.FromContext(c.Request.Context())

		fields := []logging.Field{
			logging.NewField("error", appErr.Error()),
			logging.NewField("code", string(appErr.Code)),
			logging.NewField("status_code", appErr.HTTPStatus),
		}
		if appErr.HTTPStatus >= http.StatusInternalServerError {
			ctxLogger.Error("Request failed", fields...)
		} else {
			ctxLogger.Warn("Request rejected", fields...)
		}

		if !c.Writer.Written() {
			c.JSON(appErr.HTTPStatus, appErr.ToErrorResponse())
		}
	}
}
