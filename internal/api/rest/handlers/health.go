package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/davidmoltin/efiling-workflows/pkg/logger"
)

// HealthChecker defines the interface for health checking
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// HealthHandler handles health check endpoints
type HealthHandler struct {
	logger  *logger.Logger
	checks  map[string]HealthChecker
	version string
}

// NewHealthHandler creates a new health handler. Nil checkers are skipped,
// so a deployment without Redis stays ready.
func NewHealthHandler(log *logger.Logger, checkers *HealthCheckers, version string) *HealthHandler {
	checks := make(map[string]HealthChecker)
	if checkers != nil {
		if checkers.DB != nil {
			checks["database"] = checkers.DB
		}
		if checkers.Redis != nil {
			checks["redis"] = checkers.Redis
		}
	}
	return &HealthHandler{logger: log, checks: checks, version: version}
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status  string            `json:"status"`
	Version string            `json:"version"`
	Checks  map[string]string `json:"checks,omitempty"`
}

// Health is a simple liveness endpoint
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, HealthResponse{Status: "ok", Version: h.version})
}

// Ready checks if the service is ready to accept traffic
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	checks := make(map[string]string, len(h.checks))
	allHealthy := true

	for name, checker := range h.checks {
		if err := checker.HealthCheck(ctx); err != nil {
			h.logger.Errorf("%s health check failed: %v", name, err)
			checks[name] = "unhealthy"
			allHealthy = false
			continue
		}
		checks[name] = "healthy"
	}

	status := "ready"
	statusCode := http.StatusOK
	if !allHealthy {
		status = "not ready"
		statusCode = http.StatusServiceUnavailable
	}

	respondJSON(w, statusCode, HealthResponse{Status: status, Version: h.version, Checks: checks})
}
