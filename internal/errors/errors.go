// Package errors provides a lightweight structured error type (DocgenError)
// for kind-based classification across the generation pipeline, the HTTP
// adapter, and the CLI.
package errors

import (
	"errors"
	"fmt"
)

// ErrorCategory groups errors by the subsystem that raised them.
type ErrorCategory string

const (
	// User-facing configuration and input errors
	CategoryConfig     ErrorCategory = "config"
	CategoryValidation ErrorCategory = "validation"

	// Template and package errors
	CategoryTemplate ErrorCategory = "template"
	CategoryPackage  ErrorCategory = "package"

	// Conversion and composition errors
	CategoryConversion ErrorCategory = "conversion"
	CategoryCompose    ErrorCategory = "compose"

	// Artifact lifecycle errors
	CategoryArtifact ErrorCategory = "artifact"

	// Runtime and infrastructure errors
	CategoryStorage    ErrorCategory = "storage"
	CategoryFileSystem ErrorCategory = "filesystem"
	CategoryInternal   ErrorCategory = "internal"
)

// ErrorKind identifies a specific, contract-level failure mode. Kinds are
// stable strings so callers and HTTP clients can switch on them.
type ErrorKind string

const (
	KindUnsupportedPackage     ErrorKind = "unsupported_package_kind"
	KindTemplateNotFound       ErrorKind = "template_not_found"
	KindArtifactNotFound       ErrorKind = "artifact_not_found"
	KindArtifactExpired        ErrorKind = "artifact_expired"
	KindConversionTimeout      ErrorKind = "conversion_timeout"
	KindConversionFailed       ErrorKind = "conversion_failed"
	KindUnsupportedEmbedTarget ErrorKind = "unsupported_embed_target"
	KindEmbedNotFound          ErrorKind = "embed_placeholder_not_found"
	KindPartialPropertyUpdate  ErrorKind = "partial_property_update"
	KindValidation             ErrorKind = "validation"
	KindInternal               ErrorKind = "internal"
)

// ErrorSeverity indicates how critical an error is.
type ErrorSeverity string

const (
	SeverityFatal   ErrorSeverity = "fatal"   // Stops execution
	SeverityError   ErrorSeverity = "error"   // Error, but not fatal
	SeverityWarning ErrorSeverity = "warning" // Continues with degraded functionality
)

// DocgenError is a structured error with category, kind, and context.
type DocgenError struct {
	Category ErrorCategory `json:"category"`
	Kind     ErrorKind     `json:"kind"`
	Severity ErrorSeverity `json:"severity"`
	Message  string        `json:"message"`
	Cause    error         `json:"cause,omitempty"`
	Context  ContextFields `json:"context,omitempty"`
}

// ContextFields carries structured context for DocgenError.
type ContextFields map[string]any

// Error implements the error interface.
func (e *DocgenError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s (%s): %s: %v", e.Category, e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s (%s): %s", e.Category, e.Kind, e.Message)
}

// Unwrap implements error unwrapping for Go 1.13+ error handling.
func (e *DocgenError) Unwrap() error {
	return e.Cause
}

// WithContext adds context information to the error.
func (e *DocgenError) WithContext(key string, value any) *DocgenError {
	if e.Context == nil {
		e.Context = make(ContextFields)
	}
	e.Context[key] = value
	return e
}

// WithCause attaches a wrapped error.
func (e *DocgenError) WithCause(err error) *DocgenError {
	e.Cause = err
	return e
}

// New creates a new DocgenError.
func New(category ErrorCategory, kind ErrorKind, message string) *DocgenError {
	return &DocgenError{
		Category: category,
		Kind:     kind,
		Severity: SeverityError,
		Message:  message,
	}
}

// Wrap creates a new DocgenError that wraps an existing error.
func Wrap(err error, category ErrorCategory, kind ErrorKind, message string) *DocgenError {
	return &DocgenError{
		Category: category,
		Kind:     kind,
		Severity: SeverityError,
		Message:  message,
		Cause:    err,
	}
}

// IsKind reports whether err (or any error it wraps) carries the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var de *DocgenError
	if errors.As(err, &de) {
		return de.Kind == kind
	}
	return false
}

// GetKind extracts the kind from an error, or KindInternal when the error is
// not a DocgenError.
func GetKind(err error) ErrorKind {
	var de *DocgenError
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindInternal
}

// GetCategory extracts the category from an error, or CategoryInternal.
func GetCategory(err error) ErrorCategory {
	var de *DocgenError
	if errors.As(err, &de) {
		return de.Category
	}
	return CategoryInternal
}
