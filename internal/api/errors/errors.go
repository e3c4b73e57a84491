// Package errors defines the JSON error envelope of the HTTP API and
// the mapping from engine errors to status codes.
package errors

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/vitaliisemenov/msg-store/internal/core"
)

// ErrorCode represents standard API error codes
type ErrorCode string

const (
	CodeValidationError     ErrorCode = "VALIDATION_ERROR"
	CodeNotFound            ErrorCode = "NOT_FOUND"
	CodeExceedsStoreMax     ErrorCode = "EXCEEDS_STORE_MAX"
	CodeExceedsGroupMax     ErrorCode = "EXCEEDS_GROUP_MAX"
	CodeLacksPriority       ErrorCode = "LACKS_PRIORITY"
	CodeFileStorageDisabled ErrorCode = "FILE_STORAGE_DISABLED"
	CodeInternalError       ErrorCode = "INTERNAL_ERROR"
)

// APIError represents a structured API error
type APIError struct {
	Code      ErrorCode `json:"code"`
	Message   string    `json:"message"`
	RequestID string    `json:"request_id,omitempty"`
	Timestamp string    `json:"timestamp"`
}

// ErrorResponse wraps APIError for JSON responses
type ErrorResponse struct {
	Error APIError `json:"error"`
}

// NewAPIError creates a new API error
func NewAPIError(code ErrorCode, message string) *APIError {
	return &APIError{
		Code:      code,
		Message:   message,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}

// WithRequestID adds request ID to the error
func (e *APIError) WithRequestID(requestID string) *APIError {
	e.RequestID = requestID
	return e
}

// StatusCode returns the HTTP status code for the error code. Admission
// rejections are conflicts: the store is full of equal-or-better material.
func (e *APIError) StatusCode() int {
	switch e.Code {
	case CodeValidationError:
		return http.StatusBadRequest
	case CodeNotFound:
		return http.StatusNotFound
	case CodeFileStorageDisabled:
		return http.StatusForbidden
	case CodeExceedsStoreMax, CodeExceedsGroupMax, CodeLacksPriority:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// FromStoreError maps an engine error to its API shape.
func FromStoreError(err error) *APIError {
	switch {
	case errors.Is(err, core.ErrExceedsStoreMax):
		return NewAPIError(CodeExceedsStoreMax, err.Error())
	case errors.Is(err, core.ErrExceedsGroupMax):
		return NewAPIError(CodeExceedsGroupMax, err.Error())
	case errors.Is(err, core.ErrLacksPriority):
		return NewAPIError(CodeLacksPriority, err.Error())
	case errors.Is(err, core.ErrFileStorageDisabled):
		return NewAPIError(CodeFileStorageDisabled, err.Error())
	case errors.Is(err, core.ErrMalformedID):
		return NewAPIError(CodeValidationError, err.Error())
	case errors.Is(err, core.ErrMsgNotFound):
		return NewAPIError(CodeNotFound, err.Error())
	default:
		return NewAPIError(CodeInternalError, "internal storage error")
	}
}

// InternalError creates an INTERNAL_ERROR APIError.
func InternalError(message string) *APIError {
	return NewAPIError(CodeInternalError, message)
}

// ValidationError creates a VALIDATION_ERROR APIError.
func ValidationError(message string) *APIError {
	return NewAPIError(CodeValidationError, message)
}

// WriteError encodes the error envelope with its status code.
func WriteError(w http.ResponseWriter, apiErr *APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(apiErr.StatusCode())
	_ = json.NewEncoder(w).Encode(ErrorResponse{Error: *apiErr})
}
