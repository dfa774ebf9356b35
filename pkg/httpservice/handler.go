package httpservice

import (
	"github.com/gin-gonic/gin"
	"github.com/yourorg/pdf-converter-service/pkg/errors"
	"github.com/yourorg/pdf-converter-service/pkg/logging"
)

// GetLogger retrieves the contextual logger from the request.
func GetLogger(c *gin.Context) logging.Logger {
	return logging.FromContext(c.Request.Context())
}

// HandleError writes err as an ErrorResponse and records it on the context
// so ErrorHandlerMiddleware and alerting middleware can see it.
func HandleError(c *gin.Context, err error) {
	appErr := errors.FromError(err)
	_ = c.Error(appErr)
	c.AbortWithStatusJSON(appErr.HTTPStatus, appErr.ToErrorResponse())
}
