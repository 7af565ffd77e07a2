// Package errors provides a structured error system for tierstore with
// error codes, categories, and context.
package errors

import (
	"fmt"
	"strings"
	"time"
)

// ErrorCode represents a structured error code for cache operations.
type ErrorCode string

// Error code constants organized by category.
const (
	// Configuration errors
	ErrCodeInvalidConfig    ErrorCode = "INVALID_CONFIG"
	ErrCodeConfigLoad       ErrorCode = "CONFIG_LOAD"
	ErrCodeConfigSave       ErrorCode = "CONFIG_SAVE"
	ErrCodeConfigValidation ErrorCode = "CONFIG_VALIDATION"

	// Storage errors (persistent tier)
	ErrCodeBlobCorrupt ErrorCode = "BLOB_CORRUPT"
	ErrCodeBlobWrite   ErrorCode = "BLOB_WRITE"
	ErrCodeBlobRead    ErrorCode = "BLOB_READ"
	ErrCodeStoreClear  ErrorCode = "STORE_CLEAR"

	// Resource errors
	ErrCodeResourceExhausted ErrorCode = "RESOURCE_EXHAUSTED"
	ErrCodeDiskUnavailable   ErrorCode = "DISK_UNAVAILABLE"

	// Operation errors
	ErrCodeInvalidPattern ErrorCode = "INVALID_PATTERN"
	ErrCodeEncodeFailed   ErrorCode = "ENCODE_FAILED"
	ErrCodeDecodeFailed   ErrorCode = "DECODE_FAILED"
	ErrCodeRetryExhausted ErrorCode = "RETRY_EXHAUSTED"
	ErrCodeLedgerLoad     ErrorCode = "LEDGER_LOAD"
	ErrCodeLedgerSave     ErrorCode = "LEDGER_SAVE"

	// Internal errors
	ErrCodeInternalError  ErrorCode = "INTERNAL_ERROR"
	ErrCodePanicRecovered ErrorCode = "PANIC_RECOVERED"
)

// ErrorCategory represents the general category of an error.
type ErrorCategory string

const (
	CategoryConfiguration ErrorCategory = "configuration"
	CategoryStorage       ErrorCategory = "storage"
	CategoryResource      ErrorCategory = "resource"
	CategoryOperation     ErrorCategory = "operation"
	CategoryInternal      ErrorCategory = "internal"
)

// CacheError represents a structured error with context and metadata.
type CacheError struct {
	Code     ErrorCode         `json:"code"`
	Category ErrorCategory     `json:"category"`
	Message  string            `json:"message"`
	Context  map[string]string `json:"context,omitempty"`
	Cause    error             `json:"-"` // Not serialized to avoid circular refs

	Component string    `json:"component,omitempty"`
	Operation string    `json:"operation,omitempty"`
	Timestamp time.Time `json:"timestamp"`

	// Retryable hints to the retry layer that the failure is transient.
	Retryable bool `json:"retryable"`
}

// Error implements the error interface.
func (e *CacheError) Error() string {
	if e.Component != "" {
		if e.Operation != "" {
			return fmt.Sprintf("[%s:%s] %s: %s", e.Component, e.Operation, e.Code, e.Message)
		}
		return fmt.Sprintf("[%s] %s: %s", e.Component, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause error for error wrapping compatibility.
func (e *CacheError) Unwrap() error {
	return e.Cause
}

// Is checks if the error matches the target error (for errors.Is compatibility).
func (e *CacheError) Is(target error) bool {
	if cacheErr, ok := target.(*CacheError); ok {
		return e.Code == cacheErr.Code
	}
	return false
}

// NewError creates a new cache error with defaults derived from the code.
func NewError(code ErrorCode, message string) *CacheError {
	return &CacheError{
		Code:      code,
		Category:  GetCategory(code),
		Message:   message,
		Timestamp: time.Now(),
		Retryable: IsRetryableByDefault(code),
	}
}

// WrapError creates a new cache error wrapping an underlying cause.
func WrapError(code ErrorCode, message string, cause error) *CacheError {
	err := NewError(code, message)
	err.Cause = cause
	return err
}

// WithComponent sets the component that produced the error.
func (e *CacheError) WithComponent(component string) *CacheError {
	e.Component = component
	return e
}

// WithOperation sets the operation during which the error occurred.
func (e *CacheError) WithOperation(operation string) *CacheError {
	e.Operation = operation
	return e
}

// WithContext attaches a contextual key/value pair.
func (e *CacheError) WithContext(key, value string) *CacheError {
	if e.Context == nil {
		e.Context = make(map[string]string)
	}
	e.Context[key] = value
	return e
}

// WithRetryable overrides the default retryable hint.
func (e *CacheError) WithRetryable(retryable bool) *CacheError {
	e.Retryable = retryable
	return e
}

// GetCategory determines the category based on the error code.
func GetCategory(code ErrorCode) ErrorCategory {
	codeStr := string(code)
	switch {
	case strings.HasPrefix(codeStr, "INVALID_CONFIG") || strings.HasPrefix(codeStr, "CONFIG_"):
		return CategoryConfiguration
	case strings.HasPrefix(codeStr, "BLOB_") || strings.HasPrefix(codeStr, "STORE_"):
		return CategoryStorage
	case strings.HasPrefix(codeStr, "RESOURCE_") || strings.HasPrefix(codeStr, "DISK_"):
		return CategoryResource
	case strings.HasPrefix(codeStr, "INVALID_PATTERN") || strings.HasPrefix(codeStr, "ENCODE_") ||
		strings.HasPrefix(codeStr, "DECODE_") || strings.HasPrefix(codeStr, "RETRY_") ||
		strings.HasPrefix(codeStr, "LEDGER_"):
		return CategoryOperation
	default:
		return CategoryInternal
	}
}

// IsRetryableByDefault determines if an error code is retryable by default.
// Corruption and malformed input are permanent; transient disk pressure is
// worth another attempt.
func IsRetryableByDefault(code ErrorCode) bool {
	switch code {
	case ErrCodeBlobWrite, ErrCodeResourceExhausted, ErrCodeDiskUnavailable, ErrCodeInternalError:
		return true
	default:
		return false
	}
}

// IsCode reports whether err is a CacheError with the given code anywhere
// in its chain.
func IsCode(err error, code ErrorCode) bool {
	for err != nil {
		if cacheErr, ok := err.(*CacheError); ok && cacheErr.Code == code {
			return true
		}
		unwrapper, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = unwrapper.Unwrap()
	}
	return false
}
