package errors

import (
	stderrors "errors"
	"fmt"

	"veritas/domain/core"
)

// AppError represents a structured application error
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// New creates a new AppError
func New(code, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an error with additional context
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	if appErr, ok := err.(*AppError); ok {
		return &AppError{
			Code:    appErr.Code,
			Message: message,
			Cause:   appErr,
		}
	}
	return &AppError{
		Code:    FromDomain(err),
		Message: message,
		Cause:   err,
	}
}

// Wrapf wraps an error with formatted additional context
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return Wrap(err, fmt.Sprintf(format, args...))
}

// GetCode returns the error code if it's an AppError, otherwise the code
// implied by the domain taxonomy
func GetCode(err error) string {
	if appErr, ok := err.(*AppError); ok {
		return appErr.Code
	}
	return FromDomain(err)
}

// Predefined error codes
const (
	CodeInvalidInput         = "INVALID_INPUT"
	CodeInsufficientData     = "INSUFFICIENT_DATA"
	CodeInvalidSpecification = "INVALID_SPECIFICATION"
	CodeInvalidParameter     = "INVALID_PARAMETER"
	CodeNotFound             = "NOT_FOUND"
	CodeConfigInvalid        = "CONFIG_INVALID"
	CodeInternalError        = "INTERNAL_ERROR"
)

// FromDomain maps a domain taxonomy error to its code
func FromDomain(err error) string {
	switch {
	case err == nil:
		return ""
	case core.IsInsufficientData(err):
		return CodeInsufficientData
	case core.IsNotFoundError(err):
		return CodeNotFound
	case core.IsCallerError(err):
		return callerCode(err)
	default:
		return CodeInternalError
	}
}

func callerCode(err error) string {
	switch {
	case stderrors.Is(err, core.ErrInvalidSpecification):
		return CodeInvalidSpecification
	case stderrors.Is(err, core.ErrInvalidParameter):
		return CodeInvalidParameter
	default:
		return CodeInvalidInput
	}
}

// ConfigInvalid builds a configuration error
func ConfigInvalid(message string) *AppError {
	return New(CodeConfigInvalid, message)
}
