package config

import (
	"errors"
	"fmt"
)

var (
	// ErrConfigNotFound indicates the configuration file was not found
	ErrConfigNotFound = errors.New("configuration file not found")

	// ErrInvalidYAML indicates YAML parsing failed
	ErrInvalidYAML = errors.New("invalid YAML syntax")

	// ErrValidationFailed indicates configuration validation failed
	ErrValidationFailed = errors.New("configuration validation failed")
)

// ValidationError wraps configuration validation errors with context
type ValidationError struct {
	Section string // Section being validated (repos, board, deploy, hooks, ...)
	ID      string // Entry within the section (optional)
	Field   string // Field name (optional)
	Err     error  // Underlying error
}

// Error returns formatted error message
func (e *ValidationError) Error() string {
	switch {
	case e.ID != "" && e.Field != "":
		return fmt.Sprintf("%s '%s': field '%s': %v", e.Section, e.ID, e.Field, e.Err)
	case e.ID != "":
		return fmt.Sprintf("%s '%s': %v", e.Section, e.ID, e.Err)
	case e.Field != "":
		return fmt.Sprintf("%s: field '%s': %v", e.Section, e.Field, e.Err)
	default:
		return fmt.Sprintf("%s: %v", e.Section, e.Err)
	}
}

// Unwrap returns the underlying error
func (e *ValidationError) Unwrap() error {
	return e.Err
}

// NewValidationError creates a new validation error
func NewValidationError(section, id, field string, err error) *ValidationError {
	return &ValidationError{
		Section: section,
		ID:      id,
		Field:   field,
		Err:     err,
	}
}
