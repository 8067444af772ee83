package errors

import (
	"errors"
	"fmt"
)

// ErrorType represents the type of error
type ErrorType string

const (
	ErrTypeBadRequest ErrorType = "BAD_REQUEST"
	ErrTypeNotFound   ErrorType = "NOT_FOUND"
	ErrTypeForbidden  ErrorType = "FORBIDDEN"
	ErrTypeInternal   ErrorType = "INTERNAL"
	ErrTypeParsing    ErrorType = "PARSING"
	ErrTypeStorage    ErrorType = "STORAGE"
	ErrTypeConfig     ErrorType = "CONFIG"
)

// AppError represents an application-specific error
type AppError struct {
	Type    ErrorType
	Message string
	Cause   error
	Context map[string]interface{}
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

// Unwrap allows errors.Is and errors.As to work with AppError
func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithContext adds context to the error
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// NewAppError creates a new application error
func NewAppError(errType ErrorType, message string, cause error) *AppError {
	return &AppError{
		Type:    errType,
		Message: message,
		Cause:   cause,
		Context: make(map[string]interface{}),
	}
}

// NewBadRequestError reports malformed or structurally invalid input.
func NewBadRequestError(message string) *AppError {
	return NewAppError(ErrTypeBadRequest, message, nil)
}

// NewNotFoundError reports a missing or soft-deleted resource.
func NewNotFoundError(resource string) *AppError {
	return NewAppError(ErrTypeNotFound, fmt.Sprintf("%s not found", resource), nil)
}

// NewForbiddenError reports a resource owned by someone else.
func NewForbiddenError(message string) *AppError {
	return NewAppError(ErrTypeForbidden, message, nil)
}

// NewInternalError wraps an unexpected failure.
func NewInternalError(message string, cause error) *AppError {
	return NewAppError(ErrTypeInternal, message, cause)
}

// NewParsingError creates a parsing-related error
func NewParsingError(message string, cause error) *AppError {
	return NewAppError(ErrTypeParsing, message, cause)
}

// NewStorageError creates a storage-related error
func NewStorageError(message string, cause error) *AppError {
	return NewAppError(ErrTypeStorage, message, cause)
}

// NewConfigError creates a configuration error
func NewConfigError(message string, cause error) *AppError {
	return NewAppError(ErrTypeConfig, message, cause)
}

// TypeOf returns the ErrorType of the first AppError in err's chain,
// or ErrTypeInternal when there is none.
func TypeOf(err error) ErrorType {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type
	}
	return ErrTypeInternal
}

// IsBadRequest reports whether err carries ErrTypeBadRequest.
func IsBadRequest(err error) bool { return TypeOf(err) == ErrTypeBadRequest }

// IsNotFound reports whether err carries ErrTypeNotFound.
func IsNotFound(err error) bool { return TypeOf(err) == ErrTypeNotFound }

// IsForbidden reports whether err carries ErrTypeForbidden.
func IsForbidden(err error) bool { return TypeOf(err) == ErrTypeForbidden }
