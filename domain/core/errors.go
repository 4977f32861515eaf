package core

import (
	"errors"
	"fmt"
)

// Domain errors - centralized error definitions
var (
	// Input contract errors
	ErrInvalidInput = errors.New("invalid input")
	ErrNonNumeric   = fmt.Errorf("%w: non-numeric value in numeric field", ErrInvalidInput)
	ErrFieldMissing = fmt.Errorf("%w: required field missing", ErrInvalidInput)

	// Statistical preconditions
	ErrInsufficientData   = errors.New("insufficient data for analysis")
	ErrInsufficientGroups = fmt.Errorf("%w: fewer than two non-empty groups", ErrInsufficientData)
	ErrZeroVariance       = fmt.Errorf("%w: sample has zero variance", ErrInsufficientData)

	// Configuration errors
	ErrInvalidSpecification = errors.New("invalid specification limits")
	ErrInvalidParameter     = errors.New("parameter out of valid range")

	// Record store errors
	ErrNotFound          = errors.New("resource not found")
	ErrDeviationNotFound = fmt.Errorf("%w: deviation", ErrNotFound)
	ErrInvalidTransition = errors.New("invalid deviation status transition")
)

// Error constructors with context
func NewInsufficientDataError(operation string, need, got int) error {
	return fmt.Errorf("%w: %s requires at least %d observations, got %d", ErrInsufficientData, operation, need, got)
}

func NewInvalidSpecificationError(lsl, usl float64) error {
	return fmt.Errorf("%w: lsl %.4g must be below usl %.4g", ErrInvalidSpecification, lsl, usl)
}

func NewInvalidParameterError(name string, value float64, reason string) error {
	return fmt.Errorf("%w: %s=%.4g (%s)", ErrInvalidParameter, name, value, reason)
}

func NewInvalidInputError(field string, reason string) error {
	return fmt.Errorf("%w: field %s: %s", ErrInvalidInput, field, reason)
}

// Error checking helpers
func IsInsufficientData(err error) bool {
	return errors.Is(err, ErrInsufficientData)
}

func IsCallerError(err error) bool {
	return errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrInvalidSpecification) ||
		errors.Is(err, ErrInvalidParameter)
}

func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}
