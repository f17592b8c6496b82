package postgres

import (
	"context"
	"fmt"

	"github.com/davidmoltin/efiling-workflows/internal/models"
	"github.com/google/uuid"
)

// ActionRepository appends workflow action audit rows
type ActionRepository struct {
	db queryer
}

// NewActionRepository creates a new action repository
func NewActionRepository(db queryer) *ActionRepository {
	return &ActionRepository{db: db}
}

// CreateWorkflowAction appends one audit row
func (r *ActionRepository) CreateWorkflowAction(ctx context.Context, a *models.WorkflowAction) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO workflow_actions (
			id, workflow_id, stage_instance_id, from_stage_id, to_stage_id,
			action_type, action_data, performed_by, performed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		a.ID, a.WorkflowID, a.StageInstanceID, a.FromStageID, a.ToStageID,
		a.ActionType, a.ActionData, a.PerformedBy, a.PerformedAt,
	)
	if err != nil {
		return wrapErr(err, "failed to record %s action", a.ActionType)
	}
	return nil
}

// ListWorkflowActions returns a workflow's actions in the order performed
func (r *ActionRepository) ListWorkflowActions(ctx context.Context, workflowID uuid.UUID) ([]models.WorkflowAction, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, workflow_id, stage_instance_id, from_stage_id, to_stage_id,
		       action_type, action_data, performed_by, performed_at
		FROM workflow_actions
		WHERE workflow_id = $1
		ORDER BY performed_at, id`, workflowID)
	if err != nil {
		return nil, wrapErr(err, "failed to list actions of workflow %s", workflowID)
	}
	defer rows.Close()

	var actions []models.WorkflowAction
	for rows.Next() {
		var a models.WorkflowAction
		if err := rows.Scan(
			&a.ID, &a.WorkflowID, &a.StageInstanceID, &a.FromStageID, &a.ToStageID,
			&a.ActionType, &a.ActionData, &a.PerformedBy, &a.PerformedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan action: %w", err)
		}
		actions = append(actions, a)
	}
	return actions, rows.Err()
}
