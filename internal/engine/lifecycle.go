package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/davidmoltin/efiling-workflows/internal/models"
	"github.com/davidmoltin/efiling-workflows/internal/repository"
	"github.com/davidmoltin/efiling-workflows/pkg/logger"
	"github.com/google/uuid"
)

// StartRequest puts a file into a workflow
type StartRequest struct {
	FileID     uuid.UUID
	TemplateID uuid.UUID
	Initiator  models.Actor
	// AssigneeID overrides the assignee of the first stage
	AssigneeID *uuid.UUID
	Remarks    *string
}

// StartWorkflow creates an ACTIVE workflow at the template's first stage.
// A returned file re-enters its workflow this way, as a new instance.
func (p *Processor) StartWorkflow(ctx context.Context, req StartRequest) (*models.WorkflowInstance, error) {
	var (
		wf    *models.WorkflowInstance
		notes []*models.Notification
	)

	err := p.store.WithTransaction(ctx, func(tx Tx) error {
		var err error
		wf, notes, err = p.start(ctx, tx, req)
		return err
	})
	if err != nil {
		return nil, p.classify(err, "failed to start workflow for file %s", req.FileID)
	}

	p.publish(ctx, notes)
	p.metrics.WorkflowStarted()
	p.logger.Info("Workflow started",
		logger.UUID("workflow_id", wf.ID),
		logger.UUID("file_id", wf.FileID),
		logger.UUID("template_id", wf.TemplateID),
		logger.UUID("initiator_id", req.Initiator.ID),
	)

	return wf, nil
}

func (p *Processor) start(ctx context.Context, tx Tx, req StartRequest) (*models.WorkflowInstance, []*models.Notification, error) {
	file, err := tx.GetFile(ctx, req.FileID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil, NotFound("file %s not found", req.FileID)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load file: %w", err)
	}

	if file.CreatedBy != req.Initiator.ID && !p.authorizer.IsAdmin(req.Initiator) {
		return nil, nil, Forbidden("only the creator of file %s may start its workflow", file.FileNumber)
	}

	active, err := tx.GetActiveWorkflowByFile(ctx, file.ID)
	switch {
	case err == nil:
		return nil, nil, Conflict(nil, "file %s already has active workflow %s", file.FileNumber, active.ID)
	case !errors.Is(err, repository.ErrNotFound):
		return nil, nil, fmt.Errorf("failed to check active workflow: %w", err)
	}

	tmpl, err := p.catalog.Template(ctx, req.TemplateID)
	if err != nil {
		return nil, nil, err
	}
	first, err := p.catalog.FirstStage(tmpl)
	if err != nil {
		return nil, nil, err
	}

	assignee := req.AssigneeID
	if assignee == nil {
		assignee, err = p.assignees.ResolveAssignee(ctx, first.RequiredRole, first.RequiredDepartment)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to resolve assignee for stage %s: %w", first.Name, err)
		}
	}

	now := p.now().UTC()
	deadline := now.Add(first.SLA())
	wf := &models.WorkflowInstance{
		ID:                uuid.New(),
		FileID:            file.ID,
		TemplateID:        tmpl.ID,
		CurrentStageID:    first.ID,
		CurrentAssigneeID: assignee,
		Status:            models.WorkflowStatusActive,
		SLADeadline:       &deadline,
		Version:           1,
		CreatedBy:         req.Initiator.ID,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := tx.CreateWorkflow(ctx, wf); err != nil {
		return nil, nil, fmt.Errorf("failed to create workflow: %w", err)
	}

	visit, err := p.tracker.Open(ctx, tx, wf.ID, first.ID, assignee, now)
	if err != nil {
		return nil, nil, err
	}
	if err := tx.UpdateFileCurrentStage(ctx, file.ID, &first.ID, now); err != nil {
		return nil, nil, fmt.Errorf("failed to move file pointer: %w", err)
	}

	role := req.Initiator.Role
	movement := &models.FileMovement{
		ID:                uuid.New(),
		FileID:            file.ID,
		FromUserID:        &req.Initiator.ID,
		FromRole:          &role,
		ToUserID:          assignee,
		ActionType:        models.MovementCreate,
		Remarks:           req.Remarks,
		CreatedAt:         now,
		StageTransitionID: &visit.ID,
	}
	if err := tx.CreateFileMovement(ctx, movement); err != nil {
		return nil, nil, fmt.Errorf("failed to record movement: %w", err)
	}

	notes := p.notifier.Emit(ctx, tx, NotificationEvent{
		File:      file,
		Workflow:  wf,
		Actor:     req.Initiator,
		Action:    models.MovementCreate,
		StageName: first.Name,
		Remarks:   req.Remarks,
	}, now)

	return wf, notes, nil
}
