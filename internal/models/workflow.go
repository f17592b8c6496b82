package models

import (
	"time"

	"github.com/google/uuid"
)

// WorkflowStatus represents the status of a workflow instance
type WorkflowStatus string

const (
	WorkflowStatusActive    WorkflowStatus = "ACTIVE"
	WorkflowStatusCompleted WorkflowStatus = "COMPLETED"
	WorkflowStatusRejected  WorkflowStatus = "REJECTED"
	WorkflowStatusReturned  WorkflowStatus = "RETURNED"
	WorkflowStatusEscalated WorkflowStatus = "ESCALATED"
)

// IsTerminal reports whether no further action may change the workflow
func (s WorkflowStatus) IsTerminal() bool {
	return s != WorkflowStatusActive
}

// WorkflowInstance tracks where a file is in its template. At most one
// instance per file is ACTIVE at a time.
type WorkflowInstance struct {
	ID                uuid.UUID      `json:"id" db:"id"`
	FileID            uuid.UUID      `json:"file_id" db:"file_id"`
	TemplateID        uuid.UUID      `json:"template_id" db:"template_id"`
	CurrentStageID    uuid.UUID      `json:"current_stage_id" db:"current_stage_id"`
	CurrentAssigneeID *uuid.UUID     `json:"current_assignee_id,omitempty" db:"current_assignee_id"`
	Status            WorkflowStatus `json:"status" db:"status"`
	SLADeadline       *time.Time     `json:"sla_deadline,omitempty" db:"sla_deadline"`
	Version           int            `json:"version" db:"version"`
	CreatedBy         uuid.UUID      `json:"created_by" db:"created_by"`
	CreatedAt         time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at" db:"updated_at"`
	CompletedAt       *time.Time     `json:"completed_at,omitempty" db:"completed_at"`
}

// IsSLABreached reports whether an active workflow is past its deadline
func (w *WorkflowInstance) IsSLABreached(now time.Time) bool {
	return w.Status == WorkflowStatusActive && w.SLADeadline != nil && now.After(*w.SLADeadline)
}

// WorkflowDetail is the read model for a single workflow
type WorkflowDetail struct {
	Workflow *WorkflowInstance `json:"workflow"`
	Stages   []StageInstance   `json:"stages"`
	Actions  []WorkflowAction  `json:"actions"`
}
