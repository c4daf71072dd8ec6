package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConstructors_StatusMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    *Error
		typ    ErrorType
		status int
	}{
		{"validation", ValidationError("bad robot id"), TypeValidation, http.StatusBadRequest},
		{"not found", NotFoundError("robot not found"), TypeNotFound, http.StatusNotFound},
		{"conflict", ConflictError("duplicate"), TypeConflict, http.StatusConflict},
		{"internal", InternalError("boom", errors.New("cause")), TypeInternal, http.StatusInternalServerError},
		{"unavailable", UnavailableError("store down", errors.New("dial tcp")), TypeUnavailable, http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.typ, tt.err.Type)
			assert.Equal(t, tt.status, tt.err.HTTPStatus())
			assert.NotNil(t, tt.err.Context)
			assert.Contains(t, tt.err.Error(), string(tt.typ))
		})
	}
}

func TestError_UnwrapsCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := InternalError("failed to load robot", cause)

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestWithContext_Chainable(t *testing.T) {
	err := NotFoundError("mission not found").WithContext("mission_id", int64(5))

	resp := err.ToResponse()
	assert.Equal(t, "mission not found", resp.Error)
	assert.Equal(t, TypeNotFound, resp.Type)
	assert.Equal(t, int64(5), resp.Context["mission_id"])
}

func TestAsStructuredError(t *testing.T) {
	assert.Nil(t, AsStructuredError(nil))

	original := ValidationError("bad input")
	wrapped := fmt.Errorf("handler: %w", original)
	assert.Same(t, original, AsStructuredError(wrapped))

	plain := errors.New("plain")
	converted := AsStructuredError(plain)
	require.NotNil(t, converted)
	assert.Equal(t, TypeInternal, converted.Type)
	assert.ErrorIs(t, converted, plain)
}
