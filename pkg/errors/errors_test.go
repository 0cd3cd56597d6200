package errors

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewStorageError(t *testing.T) {
	cause := fmt.Errorf("connection refused")
	err := NewStorageError("get_cached", cause)

	assert.Equal(t, ErrorTypeStorage, err.Type)
	assert.Equal(t, http.StatusServiceUnavailable, err.StatusCode)
	assert.Equal(t, "get_cached", err.Details["op"])
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestIsStorageError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{
			name:     "storage error",
			err:      NewStorageError("incr", fmt.Errorf("boom")),
			expected: true,
		},
		{
			name:     "wrapped storage error",
			err:      fmt.Errorf("record visit: %w", NewStorageError("incr", fmt.Errorf("boom"))),
			expected: true,
		},
		{
			name:     "validation error",
			err:      NewValidationError("bad input", nil),
			expected: false,
		},
		{
			name:     "plain error",
			err:      fmt.Errorf("plain"),
			expected: false,
		},
		{
			name:     "nil",
			err:      nil,
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, IsStorageError(tt.err))
		})
	}
}

func TestAsAppError(t *testing.T) {
	appErr := AsAppError(fmt.Errorf("wrap: %w", NewNotFoundError("missing")))
	require.NotNil(t, appErr)
	assert.Equal(t, ErrorTypeNotFound, appErr.Type)

	fallback := AsAppError(fmt.Errorf("plain"))
	assert.Equal(t, ErrorTypeInternal, fallback.Type)
	assert.Equal(t, http.StatusInternalServerError, fallback.StatusCode)
}
