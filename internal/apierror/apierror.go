package apierror

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
)

type ErrorCode string

// The pipeline error taxonomy. The code decides retry behavior: only
// TRANSIENT_EXTERNAL errors are retried, PERSISTENCE gets one inline retry,
// CACHE is never fatal, everything else fails fast.
const (
	ErrValidation     ErrorCode = "VALIDATION"
	ErrNotFound       ErrorCode = "NOT_FOUND"
	ErrTransient      ErrorCode = "TRANSIENT_EXTERNAL"
	ErrPersistence    ErrorCode = "PERSISTENCE"
	ErrCache          ErrorCode = "CACHE"
	ErrInternalServer ErrorCode = "INTERNAL_SERVER_ERROR"
)

type APIError struct {
	Code    ErrorCode   `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

func (e APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func NewAPIError(code ErrorCode, message string, details interface{}) APIError {
	logrus.Error(details)
	return APIError{
		Code:    code,
		Message: message,
		Details: details,
	}
}

func Validation(message string, details interface{}) APIError {
	return NewAPIError(ErrValidation, message, details)
}

func NotFound(message string, details interface{}) APIError {
	return NewAPIError(ErrNotFound, message, details)
}

func Transient(message string, details interface{}) APIError {
	return NewAPIError(ErrTransient, message, details)
}

func Persistence(message string, details interface{}) APIError {
	return NewAPIError(ErrPersistence, message, details)
}

func CacheFailure(message string, details interface{}) APIError {
	return NewAPIError(ErrCache, message, details)
}

// CodeOf extracts the taxonomy code from an error chain. Unclassified errors
// report INTERNAL_SERVER_ERROR.
func CodeOf(err error) ErrorCode {
	var apiErr APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	return ErrInternalServer
}

// IsRetryable reports whether the dispatcher retry policy applies. Validation
// and not-found failures are permanent; only transient external failures are
// worth another attempt.
func IsRetryable(err error) bool {
	return CodeOf(err) == ErrTransient
}
