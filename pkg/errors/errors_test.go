package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppError_ErrorString(t *testing.T) {
	inner := fmt.Errorf("db connection lost")
	withCause := &AppError{Code: "INTERNAL_ERROR", Message: "something broke", Err: inner}
	assert.Equal(t, "INTERNAL_ERROR: something broke: db connection lost", withCause.Error())

	bare := &AppError{Code: "NOT_FOUND", Message: "order not found"}
	assert.Equal(t, "NOT_FOUND: order not found", bare.Error())
}

func TestConstructors_StatusAndSentinel(t *testing.T) {
	tests := []struct {
		name     string
		err      *AppError
		status   int
		sentinel error
	}{
		{"not found", NotFound("order", "ORD-000001"), http.StatusNotFound, ErrNotFound},
		{"already exists", AlreadyExists("color", "name", "Oak"), http.StatusConflict, ErrAlreadyExists},
		{"invalid input", InvalidInput("quantity must be positive"), http.StatusBadRequest, ErrInvalidInput},
		{"conflict", Conflict("ALREADY_REFUNDED", "order already refunded"), http.StatusConflict, ErrConflict},
		{"unprocessable", Unprocessable("NO_ACTIVE_VARIANT", "no active variant"), http.StatusUnprocessableEntity, ErrUnprocessable},
		{"unauthorized", Unauthorized("missing token"), http.StatusUnauthorized, ErrUnauthorized},
		{"forbidden", Forbidden("permission denied"), http.StatusForbidden, ErrForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NotNil(t, tt.err)
			assert.Equal(t, tt.status, tt.err.Status)
			assert.True(t, errors.Is(tt.err, tt.sentinel))
			assert.Equal(t, tt.status, HTTPStatus(tt.err))
		})
	}
}

func TestInternal_HidesCause(t *testing.T) {
	cause := errors.New("pq: relation does not exist")
	err := Internal(cause)
	assert.Equal(t, "an internal error occurred", err.Message)
	assert.ErrorIs(t, err, cause)
}

func TestHTTPStatus_WrappedSentinels(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, HTTPStatus(Wrap(ErrNotFound, "get order")))
	assert.Equal(t, http.StatusConflict, HTTPStatus(fmt.Errorf("reserve: %w", ErrConflict)))
	assert.Equal(t, http.StatusUnprocessableEntity, HTTPStatus(fmt.Errorf("save: %w", ErrUnprocessable)))
	assert.Equal(t, http.StatusServiceUnavailable, HTTPStatus(ErrServiceUnavail))
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(errors.New("boom")))
}

type stockShortage struct{ available int }

func (e *stockShortage) Error() string { return "insufficient stock" }

func (e *stockShortage) AppError() *AppError {
	ae := Conflict("INSUFFICIENT_STOCK", "insufficient stock")
	ae.Details = map[string]int{"available": e.available}
	return ae
}

func TestAs_Classifier(t *testing.T) {
	err := fmt.Errorf("add line: %w", &stockShortage{available: 2})

	appErr, ok := As(err)
	require.True(t, ok)
	assert.Equal(t, "INSUFFICIENT_STOCK", appErr.Code)
	assert.Equal(t, map[string]int{"available": 2}, appErr.Details)
	assert.Equal(t, http.StatusConflict, HTTPStatus(err))

	_, ok = As(errors.New("plain"))
	assert.False(t, ok)
}
