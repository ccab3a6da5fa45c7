// Package errors holds the error taxonomy shared by every groundlink
// component.
//
// This file provides:
// - Sentinel errors for all error conditions
// - Error category checking functions
// - Codes used as structured log attributes
// - Error wrapping utilities
package errors

import (
	"errors"
	"fmt"
)

// ============================================================================
// Error codes - logged as the "code" attribute next to an error
// ============================================================================

const (
	CodeUnknown     int32 = 1
	CodeConnection  int32 = 2
	CodeTimeout     int32 = 3
	CodeParse       int32 = 4
	CodeFraming     int32 = 5
	CodePersistence int32 = 6
	CodeCapacity    int32 = 7
	CodeInvalid     int32 = 8
	CodeCanceled    int32 = 9
	CodeDecode      int32 = 10
)

// CodeName returns a human-readable name for an error code.
func CodeName(code int32) string {
	switch code {
	case CodeUnknown:
		return "Unknown"
	case CodeConnection:
		return "Connection"
	case CodeTimeout:
		return "Timeout"
	case CodeParse:
		return "Parse"
	case CodeFraming:
		return "Framing"
	case CodePersistence:
		return "Persistence"
	case CodeCapacity:
		return "CapacityInvariant"
	case CodeInvalid:
		return "InvalidConfig"
	case CodeCanceled:
		return "Canceled"
	case CodeDecode:
		return "Decode"
	default:
		return fmt.Sprintf("Code(%d)", code)
	}
}

// ============================================================================
// Sentinel errors
// ============================================================================

var (
	// Connection errors end the current session only.
	ErrConnection = errors.New("connection error")
	ErrTimeout    = errors.New("read timeout")
	ErrCanceled   = errors.New("canceled")

	// Record errors skip one record; the session continues.
	ErrParse          = errors.New("parse error")
	ErrFieldCount     = errors.New("wrong field count")
	ErrNotNumeric     = errors.New("non-numeric field")
	ErrRecordTooLarge = errors.New("record too large")

	// Persistence errors are fatal to the session.
	ErrPersistence    = errors.New("persistence error")
	ErrHeaderMismatch = errors.New("table header mismatch")
	ErrSinkClosed     = errors.New("sink is closed")

	// ErrCapacityInvariant marks a defect: a window grew past capacity.
	ErrCapacityInvariant = errors.New("window capacity invariant violated")

	// Configuration errors
	ErrInvalidConfig = errors.New("invalid configuration")
	ErrMissingField  = errors.New("missing required field")

	// Offline decode errors
	ErrDecode = errors.New("decode error")

	// Lifecycle errors
	ErrAlreadyRunning = errors.New("already running")
	ErrNotRunning     = errors.New("not running")
)

// ============================================================================
// Helper functions for error checking
// ============================================================================

// Is is a convenience wrapper for errors.Is
var Is = errors.Is

// As is a convenience wrapper for errors.As
var As = errors.As

// New is a convenience wrapper for errors.New
var New = errors.New

// IsParse returns true if err means one record was unusable.
func IsParse(err error) bool {
	return errors.Is(err, ErrParse) ||
		errors.Is(err, ErrFieldCount) ||
		errors.Is(err, ErrNotNumeric) ||
		errors.Is(err, ErrRecordTooLarge)
}

// IsConnection returns true if err is a connection-level failure.
func IsConnection(err error) bool {
	return errors.Is(err, ErrConnection) ||
		errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrCanceled)
}

// IsPersistence returns true if err is a durable-write failure.
func IsPersistence(err error) bool {
	return errors.Is(err, ErrPersistence) ||
		errors.Is(err, ErrHeaderMismatch) ||
		errors.Is(err, ErrSinkClosed)
}

// IsRecoverable returns true if the session may continue after err.
func IsRecoverable(err error) bool {
	return IsParse(err)
}

// IsSessionFatal returns true if err ends the current session.
func IsSessionFatal(err error) bool {
	return err != nil && !IsRecoverable(err)
}

// ErrorToCode maps an error to its log code.
func ErrorToCode(err error) int32 {
	if err == nil {
		return CodeUnknown
	}

	switch {
	case Is(err, ErrCanceled):
		return CodeCanceled
	case Is(err, ErrTimeout):
		return CodeTimeout
	case Is(err, ErrConnection):
		return CodeConnection
	case Is(err, ErrRecordTooLarge):
		return CodeFraming
	case IsParse(err):
		return CodeParse
	case IsPersistence(err):
		return CodePersistence
	case Is(err, ErrCapacityInvariant):
		return CodeCapacity
	case Is(err, ErrInvalidConfig), Is(err, ErrMissingField):
		return CodeInvalid
	case Is(err, ErrDecode):
		return CodeDecode
	default:
		return CodeUnknown
	}
}

// ============================================================================
// Error wrapping utilities
// ============================================================================

// Wrap wraps an error with additional context.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with formatted context.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// NewValidation creates a validation error with context.
func NewValidation(field, reason string) error {
	return fmt.Errorf("invalid %s: %s: %w", field, reason, ErrInvalidConfig)
}

// NewMissingField creates a missing field error.
func NewMissingField(field string) error {
	return fmt.Errorf("%s: %w", field, ErrMissingField)
}

// ============================================================================
// Validation Errors Collection
// ============================================================================

// ValidationErrors collects multiple validation errors.
type ValidationErrors struct {
	Errors []error
}

// NewValidationErrors creates a new ValidationErrors collector.
func NewValidationErrors() *ValidationErrors {
	return &ValidationErrors{}
}

// Add adds an error to the collection.
func (v *ValidationErrors) Add(err error) {
	if err != nil {
		v.Errors = append(v.Errors, err)
	}
}

// AddField adds a field validation error.
func (v *ValidationErrors) AddField(field, reason string) {
	v.Errors = append(v.Errors, NewValidation(field, reason))
}

// AddMissing adds a missing field error.
func (v *ValidationErrors) AddMissing(field string) {
	v.Errors = append(v.Errors, NewMissingField(field))
}

// HasErrors returns true if there are any errors.
func (v *ValidationErrors) HasErrors() bool {
	return len(v.Errors) > 0
}

// Error implements the error interface.
func (v *ValidationErrors) Error() string {
	if len(v.Errors) == 0 {
		return ""
	}
	if len(v.Errors) == 1 {
		return v.Errors[0].Error()
	}

	msg := fmt.Sprintf("validation failed with %d errors:", len(v.Errors))
	for _, err := range v.Errors {
		msg += "\n  - " + err.Error()
	}
	return msg
}

// Err returns nil if no errors, otherwise returns the ValidationErrors.
func (v *ValidationErrors) Err() error {
	if len(v.Errors) == 0 {
		return nil
	}
	return v
}

// Unwrap returns the collected errors for errors.Is/As support.
func (v *ValidationErrors) Unwrap() []error {
	return v.Errors
}
