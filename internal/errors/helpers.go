package errors

import (
	"fmt"
	"net/http"
)

// Sentinel errors shared across packages.
var (
	ErrDuplicateContact = New(ErrCodeDuplicate, "contact already exists")
	ErrNotFound         = New(ErrCodeNotFound, "")
	ErrDownloadMedia    = New(ErrCodeMediaDownload, "media download returned no data")
)

// NewValidationError creates a validation error with field context
func NewValidationError(field, value, message string) *AppError {
	return New(ErrCodeValidationFailed, message).
		WithContext("field", field).
		WithContext("value", value)
}

// NewConfigError creates a configuration error
func NewConfigError(key, message string) *AppError {
	return New(ErrCodeInvalidConfig, message).
		WithContext("config_key", key)
}

// NewDatabaseError creates a database error with operation context
func NewDatabaseError(operation string, err error) *AppError {
	return Wrap(err, ErrCodeDatabaseQuery, fmt.Sprintf("database %s failed", operation)).
		WithContext("operation", operation)
}

// NewNotFoundError creates a not found error with resource context
func NewNotFoundError(resource, identifier string) *AppError {
	return New(ErrCodeNotFound, fmt.Sprintf("%s not found", resource)).
		WithContext("resource", resource).
		WithContext("identifier", identifier)
}

// NewChannelAPIError creates an error for a failed bridge API call.
// Server side failures, throttling and timeouts are retryable.
func NewChannelAPIError(endpoint string, statusCode int, err error) *AppError {
	appErr := Wrap(err, ErrCodeChannelAPI, "channel API call failed").
		WithContext("endpoint", endpoint).
		WithContext("status_code", statusCode)

	if statusCode >= 500 || statusCode == http.StatusTooManyRequests || statusCode == http.StatusRequestTimeout {
		appErr.Retryable = true
	}
	return appErr
}

// NewMediaError creates a media processing error
func NewMediaError(code ErrorCode, operation, mimetype string, err error) *AppError {
	return Wrap(err, code, fmt.Sprintf("media %s failed", operation)).
		WithContext("operation", operation).
		WithContext("mimetype", mimetype)
}

// HTTPStatusCode maps error codes to appropriate HTTP status codes
func HTTPStatusCode(err error) int {
	switch GetCode(err) {
	case ErrCodeValidationFailed, ErrCodeInvalidInput, ErrCodeInvalidConfig:
		return http.StatusBadRequest
	case ErrCodeAuthentication:
		return http.StatusUnauthorized
	case ErrCodeNotFound:
		return http.StatusNotFound
	case ErrCodeDuplicate:
		return http.StatusConflict
	case ErrCodeTimeout:
		return http.StatusRequestTimeout
	case ErrCodeChannelAPI, ErrCodeMediaDownload:
		if IsRetryable(err) {
			return http.StatusBadGateway
		}
		return http.StatusInternalServerError
	case ErrCodeDatabaseConnection, ErrCodeDatabaseQuery, ErrCodeDatabaseMigration:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
