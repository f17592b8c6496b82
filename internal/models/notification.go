package models

import (
	"time"

	"github.com/google/uuid"
)

// NotificationType classifies emitted notifications
type NotificationType string

const (
	NotificationWorkflowStarted NotificationType = "WORKFLOW_STARTED"
	NotificationWorkflowAction  NotificationType = "WORKFLOW_ACTION"
	NotificationAssigned        NotificationType = "FILE_ASSIGNED"
	NotificationSLABreached     NotificationType = "SLA_BREACHED"
)

// NotificationPriority is the display priority of a notification
type NotificationPriority string

const (
	PriorityLow    NotificationPriority = "LOW"
	PriorityNormal NotificationPriority = "NORMAL"
	PriorityHigh   NotificationPriority = "HIGH"
)

// Notification is an output record consumed by the notification UI
type Notification struct {
	ID             uuid.UUID            `json:"id" db:"id"`
	UserID         uuid.UUID            `json:"user_id" db:"user_id"`
	FileID         uuid.UUID            `json:"file_id" db:"file_id"`
	WorkflowID     *uuid.UUID           `json:"workflow_id,omitempty" db:"workflow_id"`
	Type           NotificationType     `json:"type" db:"type"`
	Message        string               `json:"message" db:"message"`
	Priority       NotificationPriority `json:"priority" db:"priority"`
	ActionRequired bool                 `json:"action_required" db:"action_required"`
	IsRead         bool                 `json:"is_read" db:"is_read"`
	CreatedAt      time.Time            `json:"created_at" db:"created_at"`
}
