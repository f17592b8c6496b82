package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ActionType is the closed set of actions an actor can take on a stage
type ActionType string

const (
	ActionApprove  ActionType = "APPROVE"
	ActionReject   ActionType = "REJECT"
	ActionForward  ActionType = "FORWARD"
	ActionReturn   ActionType = "RETURN"
	ActionEscalate ActionType = "ESCALATE"
)

// ActionTypes lists every valid action in display order
var ActionTypes = []ActionType{ActionApprove, ActionForward, ActionReject, ActionReturn, ActionEscalate}

// Valid reports whether a is one of the known actions
func (a ActionType) Valid() bool {
	switch a {
	case ActionApprove, ActionReject, ActionForward, ActionReturn, ActionEscalate:
		return true
	}
	return false
}

// Advances reports whether the action moves the workflow to its next stage
func (a ActionType) Advances() bool {
	return a == ActionApprove || a == ActionForward
}

// ParseActionType parses a case-insensitive action name
func ParseActionType(s string) (ActionType, error) {
	a := ActionType(strings.ToUpper(strings.TrimSpace(s)))
	if !a.Valid() {
		return "", fmt.Errorf("unknown action type %q", s)
	}
	return a, nil
}

// WorkflowAction is the immutable audit row written for every action
type WorkflowAction struct {
	ID              uuid.UUID  `json:"id" db:"id"`
	WorkflowID      uuid.UUID  `json:"workflow_id" db:"workflow_id"`
	StageInstanceID *uuid.UUID `json:"stage_instance_id" db:"stage_instance_id"`
	FromStageID     uuid.UUID  `json:"from_stage_id" db:"from_stage_id"`
	ToStageID       *uuid.UUID `json:"to_stage_id" db:"to_stage_id"`
	ActionType      ActionType `json:"action_type" db:"action_type"`
	ActionData      JSONB      `json:"action_data" db:"action_data"`
	PerformedBy     uuid.UUID  `json:"performed_by" db:"performed_by"`
	PerformedAt     time.Time  `json:"performed_at" db:"performed_at"`
}
