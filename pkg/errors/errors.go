package errors

import (
	"errors"
	"fmt"
)

var (
	// ErrBundleNotFound indicates that the Nextflow engine bundle is missing on disk
	ErrBundleNotFound = errors.New("engine bundle not found")

	// ErrAlreadyStarted indicates an attempt to boot the engine a second time
	// with a different bundle. The embedded engine cannot be restarted within
	// one process.
	ErrAlreadyStarted = errors.New("engine already started")

	// ErrSessionState indicates a session lifecycle method was called out of order
	ErrSessionState = errors.New("invalid session state")

	// ErrUnsupportedAPI indicates the engine bundle declares an API version
	// this build has no adapter for
	ErrUnsupportedAPI = errors.New("unsupported engine API version")
)

// Error codes used across the runtime layer.
const (
	CodeArtifactNotFound = "ARTIFACT_NOT_FOUND"
	CodeScriptLoad       = "SCRIPT_LOAD"
	CodeSchemaMismatch   = "SCHEMA_MISMATCH"
	CodeInjection        = "INJECTION"
	CodeExecution        = "EXECUTION"
	CodeRuntimeRestart   = "RUNTIME_RESTART"
)

// Error represents a structured gonf error
type Error struct {
	// Code is a machine-readable error code
	Code string

	// Message is a human-readable error message
	Message string

	// Err is the underlying error, if any
	Err error
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Err
}

// NewError creates a new gonf error
func NewError(code, message string, err error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// codeOf extracts the code from a structured error, or "" for plain errors.
func codeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsArtifactNotFound checks if an error reports a missing engine bundle
func IsArtifactNotFound(err error) bool {
	return errors.Is(err, ErrBundleNotFound) || codeOf(err) == CodeArtifactNotFound
}

// IsScriptLoad checks if an error is a script parse failure
func IsScriptLoad(err error) bool {
	return codeOf(err) == CodeScriptLoad
}

// IsSchemaMismatch checks if an error is an input validation failure
func IsSchemaMismatch(err error) bool {
	return codeOf(err) == CodeSchemaMismatch
}

// IsInjection checks if an error is a parameter conversion failure
func IsInjection(err error) bool {
	return codeOf(err) == CodeInjection
}

// IsExecution checks if an error is an engine-side run failure
func IsExecution(err error) bool {
	return codeOf(err) == CodeExecution
}
