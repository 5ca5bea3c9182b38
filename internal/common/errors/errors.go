// Package errors provides standardized error handling across the licensing services.
package errors

import (
	"fmt"
	"time"
)

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodeLicenseNotFound    ErrorCode = "LICENSE_NOT_FOUND"
	ErrCodeUnauthorized       ErrorCode = "UNAUTHORIZED"
	ErrCodeValidationFailed   ErrorCode = "VALIDATION_FAILED"
	ErrCodeDeliveryFailed     ErrorCode = "DELIVERY_FAILED"
	ErrCodeTransitionConflict ErrorCode = "TRANSITION_CONFLICT"
	ErrCodeStorageUnavailable ErrorCode = "STORAGE_UNAVAILABLE"
	ErrCodeJobNotFound        ErrorCode = "JOB_NOT_FOUND"
	ErrCodeInternal           ErrorCode = "INTERNAL_ERROR"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// NewLicenseNotFoundError is returned for admin mutations on unknown keys.
// The validate read path never uses it; unknown keys there are a normal answer.
func NewLicenseNotFoundError(key string) *StandardError {
	return &StandardError{
		Code:      ErrCodeLicenseNotFound,
		Message:   "License key not found",
		Details:   key,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewUnauthorizedError() *StandardError {
	return &StandardError{
		Code:      ErrCodeUnauthorized,
		Message:   "Missing or invalid internal key",
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewValidationError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeValidationFailed,
		Message:   "Request validation failed",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewDeliveryFailedError covers email sender timeouts and refusals. It is
// retryable; the queue's retry counter bounds how often.
func NewDeliveryFailedError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeDeliveryFailed,
		Message:   "Notification delivery failed",
		Details:   details,
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewTransitionConflictError marks a lost per-license compare-and-swap.
// The losing sweep simply re-evaluates on its next run.
func NewTransitionConflictError(key string) *StandardError {
	return &StandardError{
		Code:      ErrCodeTransitionConflict,
		Message:   "License was transitioned concurrently",
		Details:   key,
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

func NewStorageUnavailableError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeStorageUnavailable,
		Message:   "Storage layer unavailable",
		Details:   details,
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

func NewJobNotFoundError(id string) *StandardError {
	return &StandardError{
		Code:      ErrCodeJobNotFound,
		Message:   "Notification job not found",
		Details:   id,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewInternalError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeInternal,
		Message:   "Unexpected error",
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}
