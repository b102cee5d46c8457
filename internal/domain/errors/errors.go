package errors

import (
	"errors"
	"fmt"
)

// ErrorType partitions errors by how callers should react to them.
type ErrorType string

const (
	ErrorTypeValidation      ErrorType = "validation"
	ErrorTypeNotFound        ErrorType = "not_found"
	ErrorTypeStateTransition ErrorType = "state_transition"
	ErrorTypeConflict        ErrorType = "conflict"
	ErrorTypeUpstream        ErrorType = "upstream"
	ErrorTypeInternal        ErrorType = "internal"
)

// AppError is the structured error passed across component boundaries.
// Calculators raise only validation errors; orchestrators add the rest.
type AppError struct {
	Type      ErrorType              `json:"type"`
	Code      string                 `json:"code"`
	Message   string                 `json:"message"`
	Details   map[string]interface{} `json:"details,omitempty"`
	Cause     error                  `json:"-"`
	Retryable bool                   `json:"retryable"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

func (e *AppError) WithDetails(details map[string]interface{}) *AppError {
	e.Details = details
	return e
}

func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	return e
}

// NewValidationError rejects malformed input before any computation runs.
func NewValidationError(code, message string) *AppError {
	return &AppError{
		Type:    ErrorTypeValidation,
		Code:    code,
		Message: message,
	}
}

// NewNotFoundError reports an absent user, creditor or request.
func NewNotFoundError(resource string) *AppError {
	return &AppError{
		Type:    ErrorTypeNotFound,
		Code:    "RESOURCE_NOT_FOUND",
		Message: fmt.Sprintf("%s not found", resource),
	}
}

// NewStateTransitionError rejects an illegal state machine transition,
// leaving existing state unchanged.
func NewStateTransitionError(from, to string) *AppError {
	return &AppError{
		Type:    ErrorTypeStateTransition,
		Code:    "ILLEGAL_TRANSITION",
		Message: fmt.Sprintf("illegal transition from %s to %s", from, to),
		Details: map[string]interface{}{"from": from, "to": to},
	}
}

func NewConflictError(message string) *AppError {
	return &AppError{
		Type:    ErrorTypeConflict,
		Code:    "CONFLICT",
		Message: message,
	}
}

// NewUpstreamError wraps a collaborator (repository, notifier) failure.
// Upstream failures are retryable and must never abort a whole scheduler tick.
func NewUpstreamError(service, message string) *AppError {
	return &AppError{
		Type:      ErrorTypeUpstream,
		Code:      "UPSTREAM_UNAVAILABLE",
		Message:   fmt.Sprintf("%s: %s", service, message),
		Retryable: true,
		Details:   map[string]interface{}{"service": service},
	}
}

func NewInternalError(message string) *AppError {
	return &AppError{
		Type:      ErrorTypeInternal,
		Code:      "INTERNAL_ERROR",
		Message:   message,
		Retryable: true,
	}
}

// Wrap wraps an error with a message using fmt.Errorf with %w.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// IsType checks if an error is of a specific type.
func IsType(err error, errorType ErrorType) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type == errorType
	}
	return false
}

// IsRetryable checks if an error is retryable.
func IsRetryable(err error) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Retryable
	}
	return false
}
