package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	molapp "github.com/turtacn/molcore/internal/application/molecule"
)

type stubChecker struct {
	name string
	err  error
}

func (s stubChecker) Name() string                    { return s.name }
func (s stubChecker) Check(ctx context.Context) error { return s.err }

func get(h http.HandlerFunc) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	h(w, httptest.NewRequest(http.MethodGet, "/", nil))
	return w
}

func TestLiveness(t *testing.T) {
	h := NewHealthHandler("1.2.3", stubChecker{name: "broken", err: errors.New("down")})
	w := get(h.Liveness)

	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[LivenessResponse](t, w)
	assert.Equal(t, "alive", resp.Status)
	assert.Equal(t, "1.2.3", resp.Version)
}

func TestReadiness(t *testing.T) {
	svc, err := molapp.NewService(molapp.Options{})
	require.NoError(t, err)

	tests := []struct {
		name     string
		checkers []HealthChecker
		code     int
		status   string
	}{
		{"no checkers", nil, http.StatusOK, "ready"},
		{"chemistry", []HealthChecker{NewChemistryChecker(svc)}, http.StatusOK, "ready"},
		{"one failing", []HealthChecker{NewChemistryChecker(svc), stubChecker{name: "disk", err: errors.New("full")}}, http.StatusServiceUnavailable, "not_ready"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := get(NewHealthHandler("dev", tt.checkers...).Readiness)
			require.Equal(t, tt.code, w.Code)
			resp := decode[ReadinessResponse](t, w)
			assert.Equal(t, tt.status, resp.Status)
			assert.Len(t, resp.Components, len(tt.checkers))
			for _, c := range tt.checkers {
				assert.Contains(t, resp.Components, c.Name())
			}
		})
	}
}

func TestReadiness_ReportsFailure(t *testing.T) {
	h := NewHealthHandler("dev", stubChecker{name: "disk", err: errors.New("full")})
	resp := decode[ReadinessResponse](t, get(h.Readiness))
	assert.Equal(t, ComponentCheck{Status: "unhealthy", Error: "full"}, ComponentCheck{
		Status: resp.Components["disk"].Status,
		Error:  resp.Components["disk"].Error,
	})
}

func TestChemistryChecker_CancelledContext(t *testing.T) {
	svc, err := molapp.NewService(molapp.Options{})
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, NewChemistryChecker(svc).Check(ctx), context.Canceled)
}
