// Package failure defines the closed set of typed failures surfaced by the
// bridge and the normalizer that maps raw transport, backend, and validation
// errors onto it. No other error shape crosses a handler boundary.
package failure

import (
	"errors"
	"fmt"
)

// Code is the symbolic identifier of a failure class.
type Code string

const (
	// CodeInvalidParameters marks rejected request parameters (status 400).
	CodeInvalidParameters Code = "invalid_parameters"

	// CodeUnauthorized marks missing or rejected credentials (status 401).
	CodeUnauthorized Code = "unauthorized"

	// CodeForbidden marks insufficient permissions (status 403).
	CodeForbidden Code = "forbidden"

	// CodeNotFound marks a resource that does not exist (status 404).
	CodeNotFound Code = "resource_not_found"

	// CodeValidation marks a backend payload that failed shape validation
	// (status 422).
	CodeValidation Code = "validation_error"

	// CodeAborted marks a client-initiated cancellation (status 499).
	CodeAborted Code = "request_aborted"

	// CodeUnexpected marks any unclassified internal error (status 500).
	CodeUnexpected Code = "unexpected_error"

	// CodeNetwork marks connection-refused or host-not-found transport
	// failures (status 503).
	CodeNetwork Code = "network_error"

	// CodeTimeout marks an upstream timeout (status 504).
	CodeTimeout Code = "request_timeout"

	// CodeBackend marks a status-coded backend failure outside the mapped
	// set (409, 429, backend-side 503, ...). The status is passed through
	// and never reclassified.
	CodeBackend Code = "backend_error"
)

// StatusAborted is the non-standard status reported for client aborts.
const StatusAborted = 499

// Issue is one structured schema-validation finding.
type Issue struct {
	Field      string `json:"field"`
	Constraint string `json:"constraint"`
	Message    string `json:"message"`
}

// Failure is the only error type surfaced across handler boundaries.
type Failure struct {
	Status  int
	Code    Code
	Message string

	// Issues carries structured validation findings for
	// invalid_parameters and validation_error failures.
	Issues []Issue

	// Err is the underlying cause, if any.
	Err error
}

// New creates a failure with a formatted message.
func New(status int, code Code, format string, args ...any) *Failure {
	return &Failure{
		Status:  status,
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Error implements the error interface.
func (f *Failure) Error() string {
	if f.Err != nil {
		return fmt.Sprintf("%s (status %d): %s: %v", f.Code, f.Status, f.Message, f.Err)
	}
	return fmt.Sprintf("%s (status %d): %s", f.Code, f.Status, f.Message)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (f *Failure) Unwrap() error {
	return f.Err
}

// Is reports whether err is a Failure carrying the given code.
func Is(err error, code Code) bool {
	var f *Failure
	return errors.As(err, &f) && f.Code == code
}

// FromStatus classifies an HTTP status code from the backend into a typed
// failure. 401, 403, and 404 map to their dedicated codes; every other
// status is passed through as a backend_error with its original status.
func FromStatus(status int, message string) *Failure {
	switch status {
	case 401:
		return New(status, CodeUnauthorized, "%s", message)
	case 403:
		return New(status, CodeForbidden, "%s", message)
	case 404:
		return New(status, CodeNotFound, "%s", message)
	default:
		return New(status, CodeBackend, "%s", message)
	}
}
