// internal/common/errors/handler.go
package errors

import (
	"encoding/json"
	"net/http"
	"time"
)

// HTTPStatus maps an error code to the HTTP status the API surfaces.
func HTTPStatus(code ErrorCode) int {
	switch code {
	case ErrCodeLicenseNotFound, ErrCodeJobNotFound:
		return http.StatusNotFound
	case ErrCodeUnauthorized:
		return http.StatusForbidden
	case ErrCodeValidationFailed:
		return http.StatusBadRequest
	case ErrCodeTransitionConflict:
		return http.StatusConflict
	case ErrCodeStorageUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// WriteHTTP normalizes err to a StandardError and writes it as JSON.
func WriteHTTP(w http.ResponseWriter, err error) {
	stdErr := Normalize(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(HTTPStatus(stdErr.Code))
	_ = json.NewEncoder(w).Encode(stdErr)
}

// Normalize ensures we always have a StandardError.
func Normalize(err error) *StandardError {
	if stdErr, ok := err.(*StandardError); ok {
		return stdErr
	}
	return &StandardError{
		Code:      ErrCodeInternal,
		Message:   "Unexpected error",
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}
