package models

import (
	"time"

	"github.com/google/uuid"
)

// StageStatus is the outcome of one stage visit
type StageStatus string

const (
	StageStatusInProgress StageStatus = "IN_PROGRESS"
	StageStatusCompleted  StageStatus = "COMPLETED"
	StageStatusRejected   StageStatus = "REJECTED"
	StageStatusReturned   StageStatus = "RETURNED"
	StageStatusEscalated  StageStatus = "ESCALATED"
)

// StageInstance is one visit of a workflow to a stage. A revisit after a
// return creates a new row.
type StageInstance struct {
	ID          uuid.UUID   `json:"id" db:"id"`
	WorkflowID  uuid.UUID   `json:"workflow_id" db:"workflow_id"`
	StageID     uuid.UUID   `json:"stage_id" db:"stage_id"`
	Status      StageStatus `json:"status" db:"status"`
	AssignedTo  *uuid.UUID  `json:"assigned_to,omitempty" db:"assigned_to"`
	StartedAt   time.Time   `json:"started_at" db:"started_at"`
	CompletedAt *time.Time  `json:"completed_at,omitempty" db:"completed_at"`
}
