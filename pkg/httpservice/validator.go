package httpservice

import (
	stderrors "errors"
	"io"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/yourorg/pdf-converter-service/pkg/errors"
)

var validate *validator.Validate

func init() {
	validate = validator.New()
}

// ValidateRequest binds req from the body (JSON or form, by content type) and
// the query string, then validates it. Query parameters win over body fields.
// An empty body is not an error.
func ValidateRequest(c *gin.Context, req interface{}) error {
	if err := c.ShouldBind(req); err != nil && !stderrors.Is(err, io.EOF) {
		return errors.NewValidationError("Invalid request: " + err.Error())
	}

	if err := c.ShouldBindQuery(req); err != nil {
		return errors.NewValidationError("Invalid query parameters: " + err.Error())
	}

	return ValidateStruct(req)
}

// ValidateStruct runs the validate tags on req.
func ValidateStruct(req interface{}) error {
	if err := validate.Struct(req); err != nil {
		return errors.NewValidationError("Validation failed: " + err.Error())
	}
	return nil
}
