package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppErrorError(t *testing.T) {
	err := New(ErrCodeValidation, "invalid status")
	assert.Equal(t, "VALIDATION: invalid status", err.Error())

	wrapped := Wrap(fmt.Errorf("disk full"), ErrCodeDatabase, "failed to save message")
	assert.Equal(t, "DATABASE: failed to save message: disk full", wrapped.Error())
}

func TestUnwrap(t *testing.T) {
	cause := fmt.Errorf("connection reset")
	err := Wrap(cause, ErrCodeDatabase, "query failed")

	assert.True(t, errors.Is(err, cause))
	assert.Nil(t, New(ErrCodeInternal, "no cause").Unwrap())
}

func TestWithContext(t *testing.T) {
	err := New(ErrCodeNotFound, "conversation not found").
		WithContext("conversation_id", "conv-1").
		WithContext("account_id", "acct-1")

	require.NotNil(t, err.Context)
	assert.Equal(t, "conv-1", err.Context["conversation_id"])
	assert.Equal(t, "acct-1", err.Context["account_id"])
}

func TestGetUserMessage(t *testing.T) {
	err := New(ErrCodeValidation, "bad transition").WithUserMessage("invalid status")
	assert.Equal(t, "invalid status", GetUserMessage(err))

	assert.Equal(t, "An internal error occurred", GetUserMessage(New(ErrCodeInternal, "oops")))
	assert.Equal(t, "An internal error occurred", GetUserMessage(fmt.Errorf("plain")))
}

func TestGetCode(t *testing.T) {
	assert.Equal(t, ErrCodeAuthorization, GetCode(New(ErrCodeAuthorization, "wrong tenant")))
	assert.Equal(t, ErrCodeInternal, GetCode(fmt.Errorf("plain")))
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(WrapRetryable(fmt.Errorf("locked"), ErrCodeDatabase, "busy")))
	assert.False(t, IsRetryable(New(ErrCodeDatabase, "constraint")))
	assert.False(t, IsRetryable(fmt.Errorf("plain")))
}

func TestHTTPStatusCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"validation", New(ErrCodeValidation, "x"), http.StatusBadRequest},
		{"authentication", New(ErrCodeAuthentication, "x"), http.StatusUnauthorized},
		{"authorization", New(ErrCodeAuthorization, "x"), http.StatusForbidden},
		{"not found", New(ErrCodeNotFound, "x"), http.StatusNotFound},
		{"idempotency conflict", New(ErrCodeIdempotencyConflict, "x"), http.StatusConflict},
		{"database", New(ErrCodeDatabase, "x"), http.StatusInternalServerError},
		{"retryable database", WrapRetryable(fmt.Errorf("busy"), ErrCodeDatabase, "x"), http.StatusServiceUnavailable},
		{"configuration", New(ErrCodeConfiguration, "x"), http.StatusInternalServerError},
		{"plain error", fmt.Errorf("plain"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HTTPStatusCode(tt.err))
		})
	}
}
