package models

import (
	"time"

	"github.com/google/uuid"
)

// MovementType is the custody change a FileMovement records. It is wider
// than ActionType because files also move when a workflow starts.
type MovementType string

const (
	MovementCreate   MovementType = "CREATE"
	MovementApprove  MovementType = MovementType(ActionApprove)
	MovementReject   MovementType = MovementType(ActionReject)
	MovementForward  MovementType = MovementType(ActionForward)
	MovementReturn   MovementType = MovementType(ActionReturn)
	MovementEscalate MovementType = MovementType(ActionEscalate)
)

// FileMovement is an append-only custody record for a file
type FileMovement struct {
	ID               uuid.UUID    `json:"id" db:"id"`
	FileID           uuid.UUID    `json:"file_id" db:"file_id"`
	FromUserID       *uuid.UUID   `json:"from_user_id,omitempty" db:"from_user_id"`
	FromRole         *string      `json:"from_role,omitempty" db:"from_role"`
	ToUserID         *uuid.UUID   `json:"to_user_id,omitempty" db:"to_user_id"`
	ActionType       MovementType `json:"action_type" db:"action_type"`
	Remarks          *string      `json:"remarks,omitempty" db:"remarks"`
	CreatedAt        time.Time    `json:"created_at" db:"created_at"`
	WorkflowActionID *uuid.UUID   `json:"workflow_action_id,omitempty" db:"workflow_action_id"`
	// StageTransitionID is the stage instance opened by this movement, nil
	// when the workflow did not enter a new stage.
	StageTransitionID *uuid.UUID `json:"stage_transition_id,omitempty" db:"stage_transition_id"`
}
