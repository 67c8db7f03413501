package errors

import (
	"errors"
	"fmt"
	"time"
)

// ErrorType represents the type of error
type ErrorType string

const (
	// ErrorTypeFetch represents page navigation or retrieval errors
	ErrorTypeFetch ErrorType = "fetch"
	// ErrorTypeParsing represents HTML or embedded JSON parsing errors
	ErrorTypeParsing ErrorType = "parsing"
	// ErrorTypeMissingField represents a required field absent from a raw record
	ErrorTypeMissingField ErrorType = "missing_field"
	// ErrorTypeStorage represents database errors
	ErrorTypeStorage ErrorType = "storage"
	// ErrorTypeValidation represents validation errors
	ErrorTypeValidation ErrorType = "validation"
	// ErrorTypeConfiguration represents configuration errors
	ErrorTypeConfiguration ErrorType = "configuration"
)

// ScrapeError represents a scraper-specific error
type ScrapeError struct {
	Type    ErrorType
	Source  string
	Message string
	Err     error
	Time    time.Time
}

// Error implements the error interface
func (e *ScrapeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %s - %v", e.Type, e.Source, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Type, e.Source, e.Message)
}

// Unwrap returns the underlying error
func (e *ScrapeError) Unwrap() error {
	return e.Err
}

// New creates a new ScrapeError
func New(errType ErrorType, source string, message string, err error) *ScrapeError {
	return &ScrapeError{
		Type:    errType,
		Source:  source,
		Message: message,
		Err:     err,
		Time:    time.Now(),
	}
}

// NewFetchError creates a fetch error
func NewFetchError(source string, message string, err error) *ScrapeError {
	return New(ErrorTypeFetch, source, message, err)
}

// NewParsingError creates a parsing error
func NewParsingError(source string, message string, err error) *ScrapeError {
	return New(ErrorTypeParsing, source, message, err)
}

// NewMissingFieldError creates a missing required field error
func NewMissingFieldError(source string, field string) *ScrapeError {
	return New(ErrorTypeMissingField, source, fmt.Sprintf("required field %q is missing", field), nil)
}

// NewStorageError creates a storage error
func NewStorageError(source string, message string, err error) *ScrapeError {
	return New(ErrorTypeStorage, source, message, err)
}

// NewValidationError creates a validation error
func NewValidationError(source string, message string) *ScrapeError {
	return New(ErrorTypeValidation, source, message, nil)
}

// NewConfigurationError creates a configuration error
func NewConfigurationError(message string) *ScrapeError {
	return New(ErrorTypeConfiguration, "config", message, nil)
}

// IsType reports whether err is a ScrapeError of the given type
func IsType(err error, errType ErrorType) bool {
	var se *ScrapeError
	if errors.As(err, &se) {
		return se.Type == errType
	}
	return false
}
