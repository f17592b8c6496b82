package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/davidmoltin/efiling-workflows/internal/models"
	"github.com/davidmoltin/efiling-workflows/internal/repository"
	"github.com/google/uuid"
)

const workflowColumns = `
	id, file_id, template_id, current_stage_id, current_assignee_id, status,
	sla_deadline, version, created_by, created_at, updated_at, completed_at`

// WorkflowRepository handles workflow instance database operations
type WorkflowRepository struct {
	db queryer
}

// NewWorkflowRepository creates a new workflow repository
func NewWorkflowRepository(db queryer) *WorkflowRepository {
	return &WorkflowRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanWorkflow(row rowScanner) (*models.WorkflowInstance, error) {
	wf := &models.WorkflowInstance{}
	err := row.Scan(
		&wf.ID, &wf.FileID, &wf.TemplateID, &wf.CurrentStageID, &wf.CurrentAssigneeID, &wf.Status,
		&wf.SLADeadline, &wf.Version, &wf.CreatedBy, &wf.CreatedAt, &wf.UpdatedAt, &wf.CompletedAt,
	)
	return wf, err
}

// GetWorkflow retrieves a workflow instance by ID
func (r *WorkflowRepository) GetWorkflow(ctx context.Context, id uuid.UUID) (*models.WorkflowInstance, error) {
	wf, err := scanWorkflow(r.db.QueryRowContext(ctx,
		`SELECT `+workflowColumns+` FROM workflow_instances WHERE id = $1`, id))
	if err != nil {
		return nil, rowErr(err, "failed to get workflow %s", id)
	}
	return wf, nil
}

// GetWorkflowForUpdate reads the workflow and locks its row until the
// enclosing transaction ends
func (r *WorkflowRepository) GetWorkflowForUpdate(ctx context.Context, id uuid.UUID) (*models.WorkflowInstance, error) {
	wf, err := scanWorkflow(r.db.QueryRowContext(ctx,
		`SELECT `+workflowColumns+` FROM workflow_instances WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return nil, rowErr(err, "failed to lock workflow %s", id)
	}
	return wf, nil
}

// GetActiveWorkflowByFile returns the file's ACTIVE workflow
func (r *WorkflowRepository) GetActiveWorkflowByFile(ctx context.Context, fileID uuid.UUID) (*models.WorkflowInstance, error) {
	wf, err := scanWorkflow(r.db.QueryRowContext(ctx,
		`SELECT `+workflowColumns+` FROM workflow_instances WHERE file_id = $1 AND status = $2`,
		fileID, models.WorkflowStatusActive))
	if err != nil {
		return nil, rowErr(err, "failed to get active workflow of file %s", fileID)
	}
	return wf, nil
}

// CreateWorkflow inserts a workflow instance. A second ACTIVE instance for
// the same file violates uq_workflow_instances_active_file and is reported
// as repository.ErrConflict.
func (r *WorkflowRepository) CreateWorkflow(ctx context.Context, wf *models.WorkflowInstance) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO workflow_instances (`+workflowColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		wf.ID, wf.FileID, wf.TemplateID, wf.CurrentStageID, wf.CurrentAssigneeID, wf.Status,
		wf.SLADeadline, wf.Version, wf.CreatedBy, wf.CreatedAt, wf.UpdatedAt, wf.CompletedAt,
	)
	if err != nil {
		return wrapErr(err, "failed to create workflow for file %s", wf.FileID)
	}
	return nil
}

// UpdateWorkflow writes wf when the stored version still equals wf.Version
func (r *WorkflowRepository) UpdateWorkflow(ctx context.Context, wf *models.WorkflowInstance) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE workflow_instances
		SET current_stage_id = $3,
		    current_assignee_id = $4,
		    status = $5,
		    sla_deadline = $6,
		    updated_at = $7,
		    completed_at = $8,
		    version = version + 1
		WHERE id = $1 AND version = $2`,
		wf.ID, wf.Version, wf.CurrentStageID, wf.CurrentAssigneeID, wf.Status,
		wf.SLADeadline, wf.UpdatedAt, wf.CompletedAt,
	)
	if err != nil {
		return wrapErr(err, "failed to update workflow %s", wf.ID)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("workflow %s changed since version %d: %w", wf.ID, wf.Version, repository.ErrConflict)
	}

	wf.Version++
	return nil
}

// ListWorkflowsByFile returns every workflow instance a file has been
// through, oldest first
func (r *WorkflowRepository) ListWorkflowsByFile(ctx context.Context, fileID uuid.UUID) ([]models.WorkflowInstance, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+workflowColumns+` FROM workflow_instances WHERE file_id = $1 ORDER BY created_at`, fileID)
	if err != nil {
		return nil, wrapErr(err, "failed to list workflows of file %s", fileID)
	}
	return collectWorkflows(rows)
}

// ListOverdueWorkflows returns ACTIVE workflows whose SLA deadline is
// before now, most overdue first
func (r *WorkflowRepository) ListOverdueWorkflows(ctx context.Context, now time.Time, limit int) ([]models.WorkflowInstance, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+workflowColumns+`
		FROM workflow_instances
		WHERE status = $1 AND sla_deadline < $2
		ORDER BY sla_deadline
		LIMIT $3`, models.WorkflowStatusActive, now, limit)
	if err != nil {
		return nil, wrapErr(err, "failed to list overdue workflows")
	}
	return collectWorkflows(rows)
}

func collectWorkflows(rows *sql.Rows) ([]models.WorkflowInstance, error) {
	defer rows.Close()

	var workflows []models.WorkflowInstance
	for rows.Next() {
		wf, err := scanWorkflow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan workflow: %w", err)
		}
		workflows = append(workflows, *wf)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate workflows: %w", err)
	}
	return workflows, nil
}
