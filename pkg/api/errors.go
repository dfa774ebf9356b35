package api

import (
	stderrors "errors"

	"github.com/yourorg/pdf-converter-service/pkg/conversion"
	"github.com/yourorg/pdf-converter-service/pkg/errors"
)

// toAppError maps a conversion failure to its HTTP representation. Only an
// unsupported format is the client's fault.
func toAppError(err error) *errors.AppError {
	var ce *conversion.Error
	if !stderrors.As(err, &ce) {
		return errors.FromError(err)
	}

	if ce.Kind == conversion.KindUnsupportedFormat {
		return errors.New(errors.ErrorCodeUnsupportedFormat, ce.Public(), err)
	}

	var code errors.ErrorCode
	switch ce.Kind {
	case conversion.KindExtraction:
		code = errors.ErrorCodeExtraction
	case conversion.KindIO:
		code = errors.ErrorCodeIO
	case conversion.KindExternalTool:
		code = errors.ErrorCodeExternalTool
	case conversion.KindTimeout:
		code = errors.ErrorCodeTimeout
	default:
		code = errors.ErrorCodeInternal
	}

	appErr := errors.New(code, "Conversion failed: "+ce.Public(), err)
	if ce.Op != "" {
		appErr.WithDetails(map[string]interface{}{"step": ce.Op})
	}
	return appErr
}
