package utils

import (
	"errors"
	"fmt"
)

// ValidationError marks a caller mistake: a bad request body, an unknown
// model family or a parameter outside its allowed range. Handlers map it
// to 400.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// NewValidationError returns a *ValidationError carrying message.
func NewValidationError(message string) error {
	return &ValidationError{Message: message}
}

// NewValidationErrorf is NewValidationError with fmt.Sprintf formatting.
func NewValidationErrorf(format string, args ...interface{}) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// IsValidationError reports whether any error in err's chain is a
// *ValidationError.
func IsValidationError(err error) bool {
	var validation *ValidationError
	return errors.As(err, &validation)
}
