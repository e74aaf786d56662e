package errors

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewChannelAPIError_Retryable(t *testing.T) {
	tests := []struct {
		status    int
		retryable bool
	}{
		{http.StatusInternalServerError, true},
		{http.StatusBadGateway, true},
		{http.StatusTooManyRequests, true},
		{http.StatusRequestTimeout, true},
		{http.StatusBadRequest, false},
		{http.StatusNotFound, false},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("status_%d", tt.status), func(t *testing.T) {
			err := NewChannelAPIError("/api/sendText", tt.status, fmt.Errorf("failed"))
			assert.Equal(t, tt.retryable, err.Retryable)
			assert.Equal(t, "/api/sendText", err.Context["endpoint"])
			assert.Equal(t, tt.status, err.Context["status_code"])
		})
	}
}

func TestNewDatabaseError(t *testing.T) {
	err := NewDatabaseError("insert message", fmt.Errorf("locked"))
	assert.Equal(t, ErrCodeDatabaseQuery, err.Code)
	assert.Equal(t, "database insert message failed", err.Message)
	assert.Equal(t, "insert message", err.Context["operation"])
}

func TestNewMediaError(t *testing.T) {
	err := NewMediaError(ErrCodeMediaDownload, "download", "image/png", fmt.Errorf("timeout"))
	assert.Equal(t, ErrCodeMediaDownload, err.Code)
	assert.Equal(t, "image/png", err.Context["mimetype"])
}

func TestHTTPStatusCode(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{"validation", NewValidationError("port", "0", "bad port"), http.StatusBadRequest},
		{"auth", New(ErrCodeAuthentication, "bad signature"), http.StatusUnauthorized},
		{"not found", NewNotFoundError("message", "abc"), http.StatusNotFound},
		{"duplicate", ErrDuplicateContact, http.StatusConflict},
		{"retryable channel", NewChannelAPIError("/x", 503, nil), http.StatusBadGateway},
		{"channel", NewChannelAPIError("/x", 400, nil), http.StatusInternalServerError},
		{"database", NewDatabaseError("select", nil), http.StatusServiceUnavailable},
		{"plain", fmt.Errorf("plain"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, HTTPStatusCode(tt.err))
		})
	}
}
