package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// ErrorCode represents a typed error code.
type ErrorCode string

const (
	// ErrorCodeInternal represents an internal server error.
	ErrorCodeInternal ErrorCode = "INTERNAL_ERROR"
	// ErrorCodeNotFound is returned for unknown uploads and artifacts.
	ErrorCodeNotFound ErrorCode = "NOT_FOUND"
	// ErrorCodeBadRequest represents a bad request error.
	ErrorCodeBadRequest ErrorCode = "BAD_REQUEST"
	// ErrorCodeValidation represents a request binding or validation error.
	ErrorCodeValidation ErrorCode = "VALIDATION_ERROR"
	// ErrorCodePayloadTooLarge is returned when an upload exceeds the body limit.
	ErrorCodePayloadTooLarge ErrorCode = "PAYLOAD_TOO_LARGE"
	// ErrorCodeMethodNotAllowed is returned for methods outside the whitelist.
	ErrorCodeMethodNotAllowed ErrorCode = "METHOD_NOT_ALLOWED"
	// ErrorCodeRateLimited is returned by the per-client rate limiter.
	ErrorCodeRateLimited ErrorCode = "RATE_LIMITED"

	// Conversion failures. Only ErrorCodeUnsupportedFormat is a client error.
	ErrorCodeUnsupportedFormat ErrorCode = "UNSUPPORTED_FORMAT"
	ErrorCodeExtraction        ErrorCode = "EXTRACTION_ERROR"
	ErrorCodeIO                ErrorCode = "IO_ERROR"
	ErrorCodeExternalTool      ErrorCode = "EXTERNAL_TOOL_ERROR"
	ErrorCodeTimeout           ErrorCode = "TIMEOUT"
)

// AppError represents an application error with code, message, and HTTP status.
type AppError struct {
	Code       ErrorCode
	Message    string
	HTTPStatus int
	Err        error
	Details    map[string]interface{}
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *AppError) Unwrap() error {
	return e.Err
}

// NewAppErrorWithErr creates a new application error with an underlying error.
func NewAppErrorWithErr(code ErrorCode, message string, httpStatus int, err error) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Err:        err,
	}
}

// New creates an error whose status follows from code.
func New(code ErrorCode, message string, err error) *AppError {
	return NewAppErrorWithErr(code, message, ToHTTPStatus(code), err)
}

// WithDetails adds details to the error.
func (e *AppError) WithDetails(details map[string]interface{}) *AppError {
	e.Details = details
	return e
}

// IsClientError reports whether the caller is at fault.
func (e *AppError) IsClientError() bool {
	return e.HTTPStatus >= 400 && e.HTTPStatus < 500
}

// ErrorResponse represents the JSON error response format.
type ErrorResponse struct {
	Code    ErrorCode              `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// ToErrorResponse converts an AppError to an ErrorResponse for JSON serialization.
func (e *AppError) ToErrorResponse() ErrorResponse {
	return ErrorResponse{
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
	}
}

// ToHTTPStatus maps an error code to HTTP status code. A conversion that ran
// out of time is a server failure, not a slow client.
func ToHTTPStatus(code ErrorCode) int {
	switch code {
	case ErrorCodeBadRequest, ErrorCodeValidation, ErrorCodeUnsupportedFormat:
		return http.StatusBadRequest
	case ErrorCodeNotFound:
		return http.StatusNotFound
	case ErrorCodeMethodNotAllowed:
		return http.StatusMethodNotAllowed
	case ErrorCodePayloadTooLarge:
		return http.StatusRequestEntityTooLarge
	case ErrorCodeRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// FromError converts a standard error to an AppError.
// If the error is already an AppError, it returns it as-is.
// Otherwise, it wraps it as an internal error.
func FromError(err error) *AppError {
	if err == nil {
		return nil
	}

	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr
	}

	return NewAppErrorWithErr(
		ErrorCodeInternal,
		"An internal error occurred",
		http.StatusInternalServerError,
		err,
	)
}

// Common error constructors

// NewBadRequestError creates a bad request error.
func NewBadRequestError(message string) *AppError {
	return New(ErrorCodeBadRequest, message, nil)
}

// NewNotFoundError creates a not found error.
func NewNotFoundError(message string) *AppError {
	return New(ErrorCodeNotFound, message, nil)
}

// NewInternalError creates an internal error.
func NewInternalError(message string) *AppError {
	return New(ErrorCodeInternal, message, nil)
}

// NewValidationError creates a validation error.
func NewValidationError(message string) *AppError {
	return New(ErrorCodeValidation, message, nil)
}

// NewPayloadTooLargeError creates a body limit error.
func NewPayloadTooLargeError(message string) *AppError {
	return New(ErrorCodePayloadTooLarge, message, nil)
}

// NewMethodNotAllowedError creates a method whitelist error.
func NewMethodNotAllowedError(message string) *AppError {
	return New(ErrorCodeMethodNotAllowed, message, nil)
}

// NewRateLimitedError creates a rate limit error.
func NewRateLimitedError(message string) *AppError {
	return New(ErrorCodeRateLimited, message, nil)
}

// NewIOError wraps a local storage failure.
func NewIOError(message string, err error) *AppError {
	return New(ErrorCodeIO, message, err)
}
