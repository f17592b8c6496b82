package handlers

import (
	"net/http"

	"github.com/davidmoltin/efiling-workflows/pkg/logger"
)

// Handlers aggregates all HTTP handlers
type Handlers struct {
	Health       *HealthHandler
	Workflow     *WorkflowHandler
	File         *FileHandler
	Notification *NotificationHandler
	// Stream serves the live notification feed; nil disables the route.
	Stream http.Handler
}

// HealthCheckers holds all health check dependencies
type HealthCheckers struct {
	DB    HealthChecker
	Redis HealthChecker
}

// Services holds the application services the handlers delegate to
type Services struct {
	Workflows     WorkflowCommands
	Signatures    Signer
	Notifications NotificationReader
}

// NewHandlers creates a new handlers instance
func NewHandlers(log *logger.Logger, svc Services, healthCheckers *HealthCheckers, version string) *Handlers {
	return &Handlers{
		Health:       NewHealthHandler(log, healthCheckers, version),
		Workflow:     NewWorkflowHandler(log, svc.Workflows),
		File:         NewFileHandler(log, svc.Workflows, svc.Signatures),
		Notification: NewNotificationHandler(log, svc.Notifications),
	}
}
