package services

import (
	"context"
	"errors"

	"github.com/davidmoltin/efiling-workflows/internal/engine"
	"github.com/davidmoltin/efiling-workflows/internal/models"
	"github.com/davidmoltin/efiling-workflows/internal/repository"
	"github.com/davidmoltin/efiling-workflows/pkg/logger"
	"github.com/google/uuid"
)

// WorkflowReader is the read side of the workflow tables
type WorkflowReader interface {
	GetFile(ctx context.Context, id uuid.UUID) (*models.File, error)
	GetWorkflow(ctx context.Context, id uuid.UUID) (*models.WorkflowInstance, error)
	ListWorkflowsByFile(ctx context.Context, fileID uuid.UUID) ([]models.WorkflowInstance, error)
	ListStageInstances(ctx context.Context, workflowID uuid.UUID) ([]models.StageInstance, error)
	ListWorkflowActions(ctx context.Context, workflowID uuid.UUID) ([]models.WorkflowAction, error)
	ListFileMovements(ctx context.Context, fileID uuid.UUID) ([]models.FileMovement, error)
}

// WorkflowService is the entry point for workflow commands and queries
type WorkflowService struct {
	processor *engine.Processor
	reader    WorkflowReader
	logger    *logger.Logger
}

// NewWorkflowService creates a new workflow service
func NewWorkflowService(processor *engine.Processor, reader WorkflowReader, log *logger.Logger) *WorkflowService {
	return &WorkflowService{processor: processor, reader: reader, logger: log}
}

// StartWorkflow puts a file into a workflow template
func (s *WorkflowService) StartWorkflow(ctx context.Context, req engine.StartRequest) (*models.WorkflowInstance, error) {
	return s.processor.StartWorkflow(ctx, req)
}

// PerformAction applies an actor's action to a workflow stage
func (s *WorkflowService) PerformAction(ctx context.Context, req engine.ActionRequest) (*engine.ActionResult, error) {
	return s.processor.PerformWorkflowAction(ctx, req)
}

// GetWorkflow returns a workflow with its stage visits and actions
func (s *WorkflowService) GetWorkflow(ctx context.Context, id uuid.UUID) (*models.WorkflowDetail, error) {
	wf, err := s.reader.GetWorkflow(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, engine.NotFound("workflow %s not found", id)
	}
	if err != nil {
		return nil, engine.Internal(err, "failed to load workflow %s", id)
	}

	stages, err := s.reader.ListStageInstances(ctx, id)
	if err != nil {
		return nil, engine.Internal(err, "failed to load stage visits of workflow %s", id)
	}

	actions, err := s.reader.ListWorkflowActions(ctx, id)
	if err != nil {
		return nil, engine.Internal(err, "failed to load actions of workflow %s", id)
	}

	if stages == nil {
		stages = []models.StageInstance{}
	}
	if actions == nil {
		actions = []models.WorkflowAction{}
	}
	return &models.WorkflowDetail{Workflow: wf, Stages: stages, Actions: actions}, nil
}

// GetFileHistory returns every movement of a file, oldest first
func (s *WorkflowService) GetFileHistory(ctx context.Context, fileID uuid.UUID) ([]models.FileMovement, error) {
	if err := s.requireFile(ctx, fileID); err != nil {
		return nil, err
	}

	movements, err := s.reader.ListFileMovements(ctx, fileID)
	if err != nil {
		return nil, engine.Internal(err, "failed to load movements of file %s", fileID)
	}
	if movements == nil {
		movements = []models.FileMovement{}
	}
	return movements, nil
}

// ListFileWorkflows returns every workflow instance a file went through
func (s *WorkflowService) ListFileWorkflows(ctx context.Context, fileID uuid.UUID) ([]models.WorkflowInstance, error) {
	if err := s.requireFile(ctx, fileID); err != nil {
		return nil, err
	}

	workflows, err := s.reader.ListWorkflowsByFile(ctx, fileID)
	if err != nil {
		return nil, engine.Internal(err, "failed to load workflows of file %s", fileID)
	}
	if workflows == nil {
		workflows = []models.WorkflowInstance{}
	}
	return workflows, nil
}

func (s *WorkflowService) requireFile(ctx context.Context, fileID uuid.UUID) error {
	_, err := s.reader.GetFile(ctx, fileID)
	if errors.Is(err, repository.ErrNotFound) {
		return engine.NotFound("file %s not found", fileID)
	}
	if err != nil {
		return engine.Internal(err, "failed to load file %s", fileID)
	}
	return nil
}
