package errors

import (
	stderrors "errors"
	"fmt"
)

// RetrievalError is the structured error type for groundctx.
// It provides rich context for error handling, logging, and user presentation.
type RetrievalError struct {
	// Code is the unique error code (e.g., "ERR_402_DIMENSION_MISMATCH").
	Code string

	// Message is the human-readable error message.
	Message string

	// Category is the error category (Config, Provider, Validation, Internal).
	Category Category

	// Severity is the error severity level.
	Severity Severity

	// Details contains additional context as key-value pairs.
	Details map[string]string

	// Cause is the underlying error that caused this error.
	Cause error

	// Retryable indicates if the operation can be retried.
	Retryable bool

	// Suggestion is an actionable suggestion for the user.
	Suggestion string
}

// Error implements the error interface.
func (e *RetrievalError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *RetrievalError) Unwrap() error {
	return e.Cause
}

// Is checks if this error matches the target error by code.
// This enables errors.Is() to work with RetrievalError.
func (e *RetrievalError) Is(target error) bool {
	if t, ok := target.(*RetrievalError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail to the error.
// Returns the error for method chaining.
func (e *RetrievalError) WithDetail(key, value string) *RetrievalError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// WithSuggestion adds an actionable suggestion for the user.
// Returns the error for method chaining.
func (e *RetrievalError) WithSuggestion(suggestion string) *RetrievalError {
	e.Suggestion = suggestion
	return e
}

// New creates a new RetrievalError with the given code and message.
// Category, severity, and retryable flag are derived from the code.
func New(code string, message string, cause error) *RetrievalError {
	return &RetrievalError{
		Code:      code,
		Message:   message,
		Category:  categoryFromCode(code),
		Severity:  severityFromCode(code),
		Cause:     cause,
		Retryable: isRetryableCode(code),
	}
}

// Wrap creates a RetrievalError from an existing error.
// The error's message becomes the RetrievalError message.
func Wrap(code string, err error) *RetrievalError {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// EmbedTimeout creates an embedding timeout error.
// The query path treats a provider hang as a timeout, never an indefinite block.
func EmbedTimeout(cause error) *RetrievalError {
	return New(ErrCodeEmbedTimeout, "embedding provider timed out", cause).
		WithSuggestion("retry the query or enable degraded keyword-only search")
}

// EmbedUnavailable creates an embedding provider failure error.
func EmbedUnavailable(cause error) *RetrievalError {
	return New(ErrCodeEmbedUnavailable, "embedding provider unavailable", cause).
		WithSuggestion("check the provider endpoint or enable degraded keyword-only search")
}

// EmptyQuery creates an empty-query validation error.
func EmptyQuery() *RetrievalError {
	return New(ErrCodeQueryEmpty, "query is empty after normalization", nil)
}

// ConfigError creates a configuration-related error.
func ConfigError(message string, cause error) *RetrievalError {
	return New(ErrCodeConfigInvalid, message, cause)
}

// ValidationError creates a validation-related error.
func ValidationError(message string, cause error) *RetrievalError {
	return New(ErrCodeInvalidInput, message, cause)
}

// InternalError creates an internal error.
func InternalError(message string, cause error) *RetrievalError {
	return New(ErrCodeInternal, message, cause)
}

// IsRetryable checks if an error is retryable.
// Walks the error chain looking for a RetrievalError with the flag set.
func IsRetryable(err error) bool {
	var re *RetrievalError
	if stderrors.As(err, &re) {
		return re.Retryable
	}
	return false
}

// IsEmbedTimeout reports whether err is an embedding timeout anywhere in its chain.
func IsEmbedTimeout(err error) bool {
	return GetCode(err) == ErrCodeEmbedTimeout
}

// IsEmbedUnavailable reports whether err is an embedding provider failure.
func IsEmbedUnavailable(err error) bool {
	return GetCode(err) == ErrCodeEmbedUnavailable
}

// IsEmbedFailure reports whether err originates from the embedding provider,
// timeout or otherwise. Used by the coordinator to decide on degraded fallback.
func IsEmbedFailure(err error) bool {
	code := GetCode(err)
	return code == ErrCodeEmbedTimeout || code == ErrCodeEmbedUnavailable
}

// IsEmptyQuery reports whether err is the empty-query rejection.
func IsEmptyQuery(err error) bool {
	return GetCode(err) == ErrCodeQueryEmpty
}

// GetCode extracts the error code from a RetrievalError in the chain.
// Returns empty string if no RetrievalError is found.
func GetCode(err error) string {
	var re *RetrievalError
	if stderrors.As(err, &re) {
		return re.Code
	}
	return ""
}

// GetCategory extracts the category from a RetrievalError in the chain.
// Returns empty string if no RetrievalError is found.
func GetCategory(err error) Category {
	var re *RetrievalError
	if stderrors.As(err, &re) {
		return re.Category
	}
	return ""
}
