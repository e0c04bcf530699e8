// Package errors provides error handling utilities.
package errors

import (
	"fmt"
)

// Type identifies the category of error
type Type string

const (
	// TypeExtraction indicates a source file could not be parsed
	TypeExtraction Type = "EXTRACTION_ERROR"

	// TypeValidation indicates a record failed a validation rule
	TypeValidation Type = "VALIDATION_ERROR"

	// TypeMapping indicates a field mapping problem
	TypeMapping Type = "MAPPING_ERROR"

	// TypeMatching indicates a license-usage matching problem
	TypeMatching Type = "MATCHING_ERROR"

	// TypePricing indicates a price resolution problem
	TypePricing Type = "PRICING_ERROR"

	// TypeConfig indicates a configuration error
	TypeConfig Type = "CONFIG_ERROR"

	// TypeStructural indicates the run itself is misconfigured
	// (empty input, missing required configuration). Structural
	// errors are fatal; everything else is recoverable per record.
	TypeStructural Type = "STRUCTURAL_ERROR"

	// TypeExport indicates an output generation error
	TypeExport Type = "EXPORT_ERROR"

	// TypeInternal indicates an internal error
	TypeInternal Type = "INTERNAL_ERROR"
)

// Error represents a domain error with context
type Error struct {
	Type    Type                   `json:"type"`
	Message string                 `json:"message"`
	Cause   error                  `json:"-"`
	Context map[string]interface{} `json:"context,omitempty"`
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is checks if the error is of a specific type
func (e *Error) Is(t Type) bool {
	return e.Type == t
}

// WithContext adds context to the error
func (e *Error) WithContext(key string, value interface{}) *Error {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// New creates a new error
func New(errType Type, message string) *Error {
	return &Error{
		Type:    errType,
		Message: message,
	}
}

// Newf creates a new formatted error
func Newf(errType Type, format string, args ...interface{}) *Error {
	return &Error{
		Type:    errType,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap wraps an error with context
func Wrap(errType Type, message string, cause error) *Error {
	return &Error{
		Type:    errType,
		Message: message,
		Cause:   cause,
	}
}

// Wrapf wraps an error with formatted context
func Wrapf(errType Type, cause error, format string, args ...interface{}) *Error {
	return &Error{
		Type:    errType,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

// IsType checks if an error is of a specific type
func IsType(err error, t Type) bool {
	if e, ok := err.(*Error); ok {
		return e.Type == t
	}
	return false
}

// IsFatal reports whether an error should halt the run rather
// than being collected into the issue report.
func IsFatal(err error) bool {
	return IsType(err, TypeStructural) || IsType(err, TypeConfig)
}

// Extraction creates an extraction error for a source file
func Extraction(message string, path string, cause error) *Error {
	e := Wrap(TypeExtraction, message, cause)
	if path != "" {
		e = e.WithContext("file", path)
	}
	return e
}

// Validation creates a validation error
func Validation(message string) *Error {
	return New(TypeValidation, message)
}

// Pricing creates a pricing error
func Pricing(message string, cause error) *Error {
	return Wrap(TypePricing, message, cause)
}

// Config creates a configuration error
func Config(message string, cause error) *Error {
	return Wrap(TypeConfig, message, cause)
}

// Structural creates a structural (fatal) error
func Structural(message string) *Error {
	return New(TypeStructural, message)
}

// Export creates an export error
func Export(message string, cause error) *Error {
	return Wrap(TypeExport, message, cause)
}

// Internal creates an internal error
func Internal(message string, cause error) *Error {
	return Wrap(TypeInternal, message, cause)
}
