package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/davidmoltin/efiling-workflows/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubChecker struct{ err error }

func (s stubChecker) HealthCheck(ctx context.Context) error { return s.err }

func TestHealthHandler_Ready(t *testing.T) {
	tests := []struct {
		name       string
		checkers   *HealthCheckers
		wantStatus int
		wantChecks map[string]string
	}{
		{
			name:       "all healthy",
			checkers:   &HealthCheckers{DB: stubChecker{}, Redis: stubChecker{}},
			wantStatus: http.StatusOK,
			wantChecks: map[string]string{"database": "healthy", "redis": "healthy"},
		},
		{
			name:       "redis disabled",
			checkers:   &HealthCheckers{DB: stubChecker{}},
			wantStatus: http.StatusOK,
			wantChecks: map[string]string{"database": "healthy"},
		},
		{
			name:       "database down",
			checkers:   &HealthCheckers{DB: stubChecker{err: errors.New("connection refused")}, Redis: stubChecker{}},
			wantStatus: http.StatusServiceUnavailable,
			wantChecks: map[string]string{"database": "unhealthy", "redis": "healthy"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHealthHandler(logger.NewForTesting(), tt.checkers, "1.2.3")
			rec := httptest.NewRecorder()

			h.Ready(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))

			require.Equal(t, tt.wantStatus, rec.Code)
			var body HealthResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, "1.2.3", body.Version)
			assert.Equal(t, tt.wantChecks, body.Checks)
		})
	}
}

func TestHealthHandler_Health(t *testing.T) {
	h := NewHealthHandler(logger.NewForTesting(), nil, "1.2.3")
	rec := httptest.NewRecorder()

	h.Health(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","version":"1.2.3"}`, rec.Body.String())
}
