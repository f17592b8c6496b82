package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/davidmoltin/efiling-workflows/internal/models"
	"github.com/davidmoltin/efiling-workflows/internal/repository"
	"github.com/google/uuid"
)

// StageTracker keeps the stage visit rows. It holds at most one
// IN_PROGRESS row per (workflow, stage).
type StageTracker struct{}

// Open starts a new visit to stageID
func (StageTracker) Open(ctx context.Context, tx Tx, workflowID, stageID uuid.UUID, assignee *uuid.UUID, at time.Time) (*models.StageInstance, error) {
	existing, err := tx.GetOpenStageInstance(ctx, workflowID, stageID)
	switch {
	case err == nil:
		return nil, Conflict(nil, "stage %s already has an open visit %s", stageID, existing.ID)
	case !errors.Is(err, repository.ErrNotFound):
		return nil, fmt.Errorf("failed to check open stage visit: %w", err)
	}

	si := &models.StageInstance{
		ID:         uuid.New(),
		WorkflowID: workflowID,
		StageID:    stageID,
		Status:     models.StageStatusInProgress,
		AssignedTo: assignee,
		StartedAt:  at,
	}
	if err := tx.CreateStageInstance(ctx, si); err != nil {
		return nil, fmt.Errorf("failed to open stage visit: %w", err)
	}
	return si, nil
}

// Current returns the open visit for the stage, or nil when there is none
func (StageTracker) Current(ctx context.Context, tx Tx, workflowID, stageID uuid.UUID) (*models.StageInstance, error) {
	si, err := tx.GetOpenStageInstance(ctx, workflowID, stageID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load open stage visit: %w", err)
	}
	return si, nil
}

// Close resolves an open visit with a terminal stage status
func (StageTracker) Close(ctx context.Context, tx Tx, si *models.StageInstance, status models.StageStatus, at time.Time) error {
	if status == models.StageStatusInProgress {
		return fmt.Errorf("cannot close stage visit %s as %s", si.ID, status)
	}
	if err := tx.CloseStageInstance(ctx, si.ID, status, at); err != nil {
		return fmt.Errorf("failed to close stage visit: %w", err)
	}
	si.Status = status
	si.CompletedAt = &at
	return nil
}
