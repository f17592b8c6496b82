package engine

import (
	"context"
	"time"

	"github.com/davidmoltin/efiling-workflows/internal/models"
	"github.com/google/uuid"
)

// Tx is the set of storage operations available inside one atomic unit of
// work. Lookups return repository.ErrNotFound for missing rows; writes that
// lose a race return repository.ErrConflict.
type Tx interface {
	GetFile(ctx context.Context, id uuid.UUID) (*models.File, error)
	UpdateFileCurrentStage(ctx context.Context, fileID uuid.UUID, stageID *uuid.UUID, at time.Time) error

	// GetWorkflowForUpdate reads the workflow and serializes other writers
	// on the same row until the transaction ends.
	GetWorkflowForUpdate(ctx context.Context, id uuid.UUID) (*models.WorkflowInstance, error)
	GetActiveWorkflowByFile(ctx context.Context, fileID uuid.UUID) (*models.WorkflowInstance, error)
	CreateWorkflow(ctx context.Context, wf *models.WorkflowInstance) error
	// UpdateWorkflow writes wf if its stored version still equals wf.Version
	// and increments wf.Version on success.
	UpdateWorkflow(ctx context.Context, wf *models.WorkflowInstance) error

	GetOpenStageInstance(ctx context.Context, workflowID, stageID uuid.UUID) (*models.StageInstance, error)
	CreateStageInstance(ctx context.Context, si *models.StageInstance) error
	CloseStageInstance(ctx context.Context, id uuid.UUID, status models.StageStatus, at time.Time) error

	CreateWorkflowAction(ctx context.Context, action *models.WorkflowAction) error
	CreateFileMovement(ctx context.Context, movement *models.FileMovement) error
	ListFileMovements(ctx context.Context, fileID uuid.UUID) ([]models.FileMovement, error)

	CreateNotification(ctx context.Context, n *models.Notification) error

	// Savepoint runs fn so that its writes are discarded, without aborting
	// the enclosing transaction, when fn fails.
	Savepoint(ctx context.Context, name string, fn func() error) error
}

// Store opens transactions. fn's writes commit together when it returns
// nil and are discarded otherwise.
type Store interface {
	WithTransaction(ctx context.Context, fn func(tx Tx) error) error
}

// TemplateSource loads workflow templates with their stages
type TemplateSource interface {
	GetTemplate(ctx context.Context, id uuid.UUID) (*models.WorkflowTemplate, error)
}

// AssigneeResolver picks the user to receive a file entering a stage.
// A nil id means any holder of the role may act.
type AssigneeResolver interface {
	ResolveAssignee(ctx context.Context, role string, department *string) (*uuid.UUID, error)
}

// NotificationPublisher fans out committed notifications to delivery
// channels
type NotificationPublisher interface {
	Publish(ctx context.Context, notifications []*models.Notification) error
}
