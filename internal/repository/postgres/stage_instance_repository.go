package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/davidmoltin/efiling-workflows/internal/models"
	"github.com/davidmoltin/efiling-workflows/internal/repository"
	"github.com/google/uuid"
)

// StageInstanceRepository handles stage visit rows
type StageInstanceRepository struct {
	db queryer
}

// NewStageInstanceRepository creates a new stage instance repository
func NewStageInstanceRepository(db queryer) *StageInstanceRepository {
	return &StageInstanceRepository{db: db}
}

// GetOpenStageInstance returns the IN_PROGRESS visit of a stage
func (r *StageInstanceRepository) GetOpenStageInstance(ctx context.Context, workflowID, stageID uuid.UUID) (*models.StageInstance, error) {
	si := &models.StageInstance{}
	err := r.db.QueryRowContext(ctx, `
		SELECT id, workflow_id, stage_id, status, assigned_to, started_at, completed_at
		FROM workflow_stage_instances
		WHERE workflow_id = $1 AND stage_id = $2 AND status = $3`,
		workflowID, stageID, models.StageStatusInProgress,
	).Scan(&si.ID, &si.WorkflowID, &si.StageID, &si.Status, &si.AssignedTo, &si.StartedAt, &si.CompletedAt)
	if err != nil {
		return nil, rowErr(err, "failed to get open visit of stage %s", stageID)
	}
	return si, nil
}

// CreateStageInstance opens a visit. uq_stage_instances_open turns a
// second open visit into repository.ErrConflict.
func (r *StageInstanceRepository) CreateStageInstance(ctx context.Context, si *models.StageInstance) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO workflow_stage_instances (id, workflow_id, stage_id, status, assigned_to, started_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		si.ID, si.WorkflowID, si.StageID, si.Status, si.AssignedTo, si.StartedAt, si.CompletedAt,
	)
	if err != nil {
		return wrapErr(err, "failed to open visit of stage %s", si.StageID)
	}
	return nil
}

// CloseStageInstance records the outcome of an open visit
func (r *StageInstanceRepository) CloseStageInstance(ctx context.Context, id uuid.UUID, status models.StageStatus, at time.Time) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE workflow_stage_instances
		SET status = $2, completed_at = $3
		WHERE id = $1 AND status = $4`,
		id, status, at, models.StageStatusInProgress,
	)
	if err != nil {
		return wrapErr(err, "failed to close stage visit %s", id)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("stage visit %s is no longer open: %w", id, repository.ErrConflict)
	}
	return nil
}

// ListStageInstances returns a workflow's visits in the order they opened
func (r *StageInstanceRepository) ListStageInstances(ctx context.Context, workflowID uuid.UUID) ([]models.StageInstance, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, workflow_id, stage_id, status, assigned_to, started_at, completed_at
		FROM workflow_stage_instances
		WHERE workflow_id = $1
		ORDER BY started_at, id`, workflowID)
	if err != nil {
		return nil, wrapErr(err, "failed to list visits of workflow %s", workflowID)
	}
	defer rows.Close()

	var visits []models.StageInstance
	for rows.Next() {
		var si models.StageInstance
		if err := rows.Scan(&si.ID, &si.WorkflowID, &si.StageID, &si.Status, &si.AssignedTo, &si.StartedAt, &si.CompletedAt); err != nil {
			return nil, fmt.Errorf("failed to scan stage visit: %w", err)
		}
		visits = append(visits, si)
	}
	return visits, rows.Err()
}
