// Package errors provides structured error handling for alicorn operations.
// It defines error codes, error types, and provides utilities for creating
// and handling errors with context and structured information.
package errors

import (
	"errors"
	"fmt"
)

// ErrorCode represents different types of errors that can occur.
type ErrorCode string

const (
	// General errors.
	CodeUnknown       ErrorCode = "UNKNOWN"
	CodeValidation    ErrorCode = "VALIDATION"
	CodeConfiguration ErrorCode = "CONFIGURATION"
	CodeTimeout       ErrorCode = "TIMEOUT"
	CodeCanceled      ErrorCode = "CANCELED"
	CodeNotFound      ErrorCode = "NOT_FOUND"
	CodeConflict      ErrorCode = "CONFLICT"

	// Comparison errors.
	CodeStore        ErrorCode = "STORE"
	CodeDataNotReady ErrorCode = "DATA_NOT_READY"
	CodeGateState    ErrorCode = "GATE_STATE"
	CodeSessionGone  ErrorCode = "SESSION_GONE"
	CodeExportFormat ErrorCode = "EXPORT_FORMAT"

	// Database errors.
	CodeDatabaseConnection ErrorCode = "DATABASE_CONNECTION"
	CodeDatabaseQuery      ErrorCode = "DATABASE_QUERY"
	CodeDatabaseMigration  ErrorCode = "DATABASE_MIGRATION"
	CodeDatabaseTimeout    ErrorCode = "DATABASE_TIMEOUT"

	// Service errors.
	CodeServiceUnavailable ErrorCode = "SERVICE_UNAVAILABLE"
	CodeRateLimited        ErrorCode = "RATE_LIMITED"
)

// ComparisonError represents an error raised by a comparison session.
type ComparisonError struct {
	Code      ErrorCode
	Message   string
	Operation string
	Cause     error
	Context   map[string]interface{}
}

// Error implements the error interface.
func (e *ComparisonError) Error() string {
	if e.Operation != "" {
		return fmt.Sprintf("[%s] %s (operation: %s)", e.Code, e.Message, e.Operation)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for error unwrapping.
func (e *ComparisonError) Unwrap() error {
	return e.Cause
}

// WithContext adds context information to the error.
func (e *ComparisonError) WithContext(key string, value interface{}) *ComparisonError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// NewComparisonError creates a new comparison error with the specified code and message.
func NewComparisonError(code ErrorCode, message string) *ComparisonError {
	return &ComparisonError{
		Code:    code,
		Message: message,
		Context: make(map[string]interface{}),
	}
}

// WrapComparisonError wraps an existing error as a comparison error.
func WrapComparisonError(code ErrorCode, operation string, err error) *ComparisonError {
	msg := "comparison operation failed"
	if err != nil {
		msg = err.Error()
	}
	return &ComparisonError{
		Code:      code,
		Message:   msg,
		Operation: operation,
		Cause:     err,
		Context:   make(map[string]interface{}),
	}
}

// DatabaseError represents database-related errors.
type DatabaseError struct {
	Code      ErrorCode
	Message   string
	Operation string
	Query     string
	Cause     error
	Context   map[string]interface{}
}

// Error implements the error interface.
func (e *DatabaseError) Error() string {
	if e.Operation != "" {
		return fmt.Sprintf("[%s] %s (operation: %s)", e.Code, e.Message, e.Operation)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *DatabaseError) Unwrap() error {
	return e.Cause
}

// WithQuery adds the SQL query that caused the error.
func (e *DatabaseError) WithQuery(query string) *DatabaseError {
	e.Query = query
	return e
}

// NewDatabaseError creates a new database error.
func NewDatabaseError(code ErrorCode, message string) *DatabaseError {
	return &DatabaseError{
		Code:    code,
		Message: message,
		Context: make(map[string]interface{}),
	}
}

// WrapDatabaseError wraps an existing error as a database error.
func WrapDatabaseError(code ErrorCode, message string, err error) *DatabaseError {
	return &DatabaseError{
		Code:    code,
		Message: message,
		Cause:   err,
		Context: make(map[string]interface{}),
	}
}

// ConfigError represents configuration-related errors.
type ConfigError struct {
	Code    ErrorCode
	Message string
	Field   string
	Value   interface{}
	Cause   error
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("[%s] %s (field: %s)", e.Code, e.Message, e.Field)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *ConfigError) Unwrap() error {
	return e.Cause
}

// NewConfigFieldError creates a configuration error for a specific field.
func NewConfigFieldError(code ErrorCode, message, field string, value interface{}) *ConfigError {
	return &ConfigError{
		Code:    code,
		Message: message,
		Field:   field,
		Value:   value,
	}
}

// Utility functions for common error operations

// GetCode extracts the error code from an error chain if it has one.
func GetCode(err error) ErrorCode {
	code, _ := lookupCode(err)
	return code
}

// lookupCode reports the code of the first coded error in the chain and
// whether one was found.
func lookupCode(err error) (ErrorCode, bool) {
	var cmpErr *ComparisonError
	if errors.As(err, &cmpErr) {
		return cmpErr.Code, true
	}
	var dbErr *DatabaseError
	if errors.As(err, &dbErr) {
		return dbErr.Code, true
	}
	var cfgErr *ConfigError
	if errors.As(err, &cfgErr) {
		return cfgErr.Code, true
	}
	return CodeUnknown, false
}

// IsCode checks if an error has a specific error code. Errors without a
// code never match.
func IsCode(err error, code ErrorCode) bool {
	got, ok := lookupCode(err)
	return ok && got == code
}

// IsNotFound reports whether err denotes a missing resource.
func IsNotFound(err error) bool {
	return IsCode(err, CodeNotFound)
}

// IsConflict reports whether err denotes a conflicting state.
func IsConflict(err error) bool {
	code := GetCode(err)
	return code == CodeConflict || code == CodeGateState
}

// IsRetryable determines if an error indicates a retryable condition.
func IsRetryable(err error) bool {
	switch GetCode(err) {
	case CodeTimeout, CodeDatabaseTimeout, CodeDatabaseConnection, CodeServiceUnavailable:
		return true
	default:
		return false
	}
}

// Common error creation functions

// ErrInsufficientScans is returned when fewer than two usable scan ids remain.
func ErrInsufficientScans(raw string) *ComparisonError {
	return NewComparisonError(CodeValidation, "at least two distinct scan ids are required").
		WithContext("ids", raw)
}

// ErrDataNotReady is returned when an export is requested before data loaded.
func ErrDataNotReady() *ComparisonError {
	return NewComparisonError(CodeDataNotReady, "Comparison data not loaded yet")
}

// ErrNoPendingRemoval is returned when a removal is confirmed or canceled
// without the confirmation gate being open.
func ErrNoPendingRemoval() *ComparisonError {
	return NewComparisonError(CodeGateState, "no removal is awaiting confirmation")
}

// ErrStore wraps a failed save or remove call.
func ErrStore(operation string, err error) *ComparisonError {
	return WrapComparisonError(CodeStore, operation, err)
}

// ErrDatabaseConnection creates an error for database connection failures.
func ErrDatabaseConnection(err error) *DatabaseError {
	return WrapDatabaseError(CodeDatabaseConnection, "Failed to connect to database", err)
}

// ErrConfigInvalid creates an error for invalid configuration.
func ErrConfigInvalid(field string, value interface{}) *ConfigError {
	return NewConfigFieldError(CodeValidation, "Invalid configuration value", field, value)
}

// ErrConfigMissing creates an error for missing required configuration.
func ErrConfigMissing(field string) *ConfigError {
	return NewConfigFieldError(CodeConfiguration, "Required configuration field missing", field, nil)
}

// ErrNotFound creates a not-found error for the named entity.
func ErrNotFound(entity string) *DatabaseError {
	return NewDatabaseError(CodeNotFound, fmt.Sprintf("%s not found", entity))
}

// ErrNotFoundWithID creates a not-found error for a specific entity id.
func ErrNotFoundWithID(entity, id string) *DatabaseError {
	return NewDatabaseError(CodeNotFound, fmt.Sprintf("%s with ID %s not found", entity, id))
}
