// Package apperror provides a structured way to handle orchestration errors
// with specific codes, severity levels, and additional details. Missing
// entities fail as NotFound, cyclic edges fail as InvariantViolation,
// insufficient capacity is never an error (it's a typed placement outcome),
// and divide-by-zero defences never surface as NaN.
package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorCode represents a specific application error code.
type ErrorCode string

const (
	// Missing entities.
	CodeServiceNotFound ErrorCode = "SERVICE_NOT_FOUND"
	CodeNodeNotFound    ErrorCode = "NODE_NOT_FOUND"
	CodeChainNotFound   ErrorCode = "CHAIN_NOT_FOUND"

	// Graph invariants.
	CodeCyclicDependency    ErrorCode = "CYCLIC_DEPENDENCY"
	CodeUnknownEdgeEndpoint ErrorCode = "UNKNOWN_EDGE_ENDPOINT"
	CodeDuplicateService    ErrorCode = "DUPLICATE_SERVICE"

	// Parameter vector validation.
	CodeInvalidWeights   ErrorCode = "INVALID_WEIGHTS"
	CodeInvalidThreshold ErrorCode = "INVALID_THRESHOLD"

	// Deployment / refinement (non-fatal outcomes carried as warnings, not
	// these codes, except where the caller genuinely passed bad input).
	CodeConvergenceNotReached ErrorCode = "CONVERGENCE_NOT_REACHED"
	CodeEmptyGraph            ErrorCode = "EMPTY_GRAPH"

	// General.
	CodeInternal        ErrorCode = "INTERNAL_ERROR"
	CodeInvalidArgument ErrorCode = "INVALID_ARGUMENT"
	CodeUnauthenticated ErrorCode = "UNAUTHENTICATED"
	CodeNilInput        ErrorCode = "NIL_INPUT"
)

// Severity defines the criticality level of an error.
type Severity int

const (
	SeverityWarning Severity = iota
	SeverityError
	SeverityCritical
)

// String returns the string representation of the Severity.
func (s Severity) String() string {
	switch s {
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// Error is a custom error type that includes an ErrorCode, message, an
// optional field, additional details, an underlying cause, and a severity.
type Error struct {
	Code     ErrorCode
	Message  string
	Field    string
	Details  map[string]any
	Cause    error
	Severity Severity
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("[%s] %s (field: %s)", e.Code, e.Message, e.Field)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the wrapped error, allowing error chain introspection.
func (e *Error) Unwrap() error {
	return e.Cause
}

// HTTPStatus maps the error code to an HTTP status, used by the admin HTTP
// surface instead of a gRPC status (this repo exposes its external
// interface over HTTP/JSON, not gRPC — see DESIGN.md).
func (e *Error) HTTPStatus() int {
	switch e.Code {
	case CodeServiceNotFound, CodeNodeNotFound, CodeChainNotFound:
		return http.StatusNotFound
	case CodeCyclicDependency, CodeUnknownEdgeEndpoint, CodeDuplicateService,
		CodeInvalidWeights, CodeInvalidThreshold, CodeInvalidArgument,
		CodeEmptyGraph, CodeNilInput:
		return http.StatusUnprocessableEntity
	case CodeConvergenceNotReached:
		return http.StatusAccepted // non-fatal: result returned with a warning
	case CodeUnauthenticated:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// New creates a new application error with SeverityError.
func New(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message, Details: make(map[string]any), Severity: SeverityError}
}

// NewWithField creates a new application error tied to an input field.
func NewWithField(code ErrorCode, message, field string) *Error {
	return &Error{Code: code, Message: message, Field: field, Details: make(map[string]any), Severity: SeverityError}
}

// NewWarning creates a new application error with SeverityWarning.
func NewWarning(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message, Details: make(map[string]any), Severity: SeverityWarning}
}

// Wrap creates a new application error that wraps an existing cause.
func Wrap(cause error, code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message, Cause: cause, Details: make(map[string]any), Severity: SeverityError}
}

// WithDetails adds a key-value pair to the error's details map.
func (e *Error) WithDetails(key string, value any) *Error {
	e.Details[key] = value
	return e
}

// WithSeverity sets the severity level of the error.
func (e *Error) WithSeverity(s Severity) *Error {
	e.Severity = s
	return e
}

// Is checks whether err is an *Error with a matching code.
func Is(err error, code ErrorCode) bool {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

// Code extracts the ErrorCode from err, defaulting to CodeInternal.
func Code(err error) ErrorCode {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeInternal
}

// IsWarning reports whether err is an *Error with SeverityWarning.
func IsWarning(err error) bool {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Severity == SeverityWarning
	}
	return false
}

// Predefined errors for common scenarios.
var (
	ErrEmptyGraph            = New(CodeEmptyGraph, "dependency graph is empty")
	ErrNilGraph              = New(CodeNilInput, "graph is nil")
	ErrSourceEqualsSink      = New(CodeInvalidArgument, "source and sink cannot be the same service")
	ErrConvergenceNotReached = New(CodeConvergenceNotReached, "refinement did not converge within maxIterations")
)

// ValidationErrors aggregates results of multiple validation checks.
type ValidationErrors struct {
	Errors   []*Error
	Warnings []*Error
}

// NewValidationErrors creates an empty ValidationErrors collection.
func NewValidationErrors() *ValidationErrors {
	return &ValidationErrors{Errors: make([]*Error, 0), Warnings: make([]*Error, 0)}
}

// Add appends err to Errors or Warnings based on its Severity.
func (v *ValidationErrors) Add(err *Error) {
	if err.Severity == SeverityWarning {
		v.Warnings = append(v.Warnings, err)
	} else {
		v.Errors = append(v.Errors, err)
	}
}

// HasErrors reports whether the collection contains any non-warning errors.
func (v *ValidationErrors) HasErrors() bool {
	return len(v.Errors) > 0
}

// IsValid reports whether the collection contains no errors (warnings are fine).
func (v *ValidationErrors) IsValid() bool {
	return !v.HasErrors()
}

// ErrorMessages returns the string messages of all collected errors.
func (v *ValidationErrors) ErrorMessages() []string {
	messages := make([]string, len(v.Errors))
	for i, err := range v.Errors {
		messages[i] = err.Error()
	}
	return messages
}
