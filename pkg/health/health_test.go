package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ok(context.Context) error   { return nil }
func fail(context.Context) error { return errors.New("connection refused") }

func hit(t *testing.T, h http.HandlerFunc) (int, Response) {
	t.Helper()
	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	var resp Response
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return rec.Code, resp
}

func TestLiveness(t *testing.T) {
	code, resp := hit(t, NewHandler().LivenessHandler())
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, StatusUp, resp.Status)
}

func TestReadiness(t *testing.T) {
	tests := []struct {
		name       string
		setup      func(h *Handler)
		wantCode   int
		wantStatus Status
	}{
		{
			name: "all up",
			setup: func(h *Handler) {
				h.RegisterCritical("postgres", ok)
				h.RegisterNonCritical("kafka", ok)
			},
			wantCode:   http.StatusOK,
			wantStatus: StatusUp,
		},
		{
			name: "non-critical down",
			setup: func(h *Handler) {
				h.RegisterCritical("postgres", ok)
				h.RegisterNonCritical("kafka", fail)
			},
			wantCode:   http.StatusOK,
			wantStatus: StatusDegraded,
		},
		{
			name: "critical down",
			setup: func(h *Handler) {
				h.RegisterCritical("postgres", fail)
				h.RegisterNonCritical("kafka", fail)
			},
			wantCode:   http.StatusServiceUnavailable,
			wantStatus: StatusDown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHandler()
			tt.setup(h)
			code, resp := hit(t, h.ReadinessHandler())
			assert.Equal(t, tt.wantCode, code)
			assert.Equal(t, tt.wantStatus, resp.Status)
			assert.Len(t, resp.Checks, 2)
		})
	}
}
