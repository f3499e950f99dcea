package event

import (
	"errors"
	"fmt"
)

// ErrValidation matches every *ValidationError
var ErrValidation = errors.New("event validation failed")

// ValidationError describes why an event was refused
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid event: %s: %s", e.Field, e.Reason)
}

// Is lets errors.Is(err, ErrValidation) match
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func invalid(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}
