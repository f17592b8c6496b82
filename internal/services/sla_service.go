package services

import (
	"context"
	"fmt"
	"time"

	"github.com/davidmoltin/efiling-workflows/internal/models"
	"github.com/davidmoltin/efiling-workflows/pkg/logger"
	"github.com/google/uuid"
)

// OverdueStore lists workflows past their SLA deadline
type OverdueStore interface {
	ListOverdueWorkflows(ctx context.Context, now time.Time, limit int) ([]models.WorkflowInstance, error)
	ListStageInstances(ctx context.Context, workflowID uuid.UUID) ([]models.StageInstance, error)
	GetFile(ctx context.Context, id uuid.UUID) (*models.File, error)
}

// ReminderLedger records which stage visits were already reminded about
type ReminderLedger interface {
	Claim(ctx context.Context, workflowID, stageID uuid.UUID, visitStart time.Time) (bool, error)
}

// Notifier stores and publishes a single notification
type Notifier interface {
	Notify(ctx context.Context, n *models.Notification) error
}

// SLAService sends SLA breach reminders. Reminders are advisory: the
// service never changes workflow state.
type SLAService struct {
	store    OverdueStore
	ledger   ReminderLedger
	notifier Notifier
	logger   *logger.Logger
}

// NewSLAService creates a new SLA service
func NewSLAService(store OverdueStore, ledger ReminderLedger, notifier Notifier, log *logger.Logger) *SLAService {
	return &SLAService{store: store, ledger: ledger, notifier: notifier, logger: log}
}

// RemindOverdue notifies the assignee of every overdue workflow once per
// stage visit and returns the number of reminders sent
func (s *SLAService) RemindOverdue(ctx context.Context, now time.Time, batch int) (int, error) {
	overdue, err := s.store.ListOverdueWorkflows(ctx, now, batch)
	if err != nil {
		return 0, fmt.Errorf("failed to list overdue workflows: %w", err)
	}

	sent := 0
	for i := range overdue {
		wf := &overdue[i]
		ok, err := s.remind(ctx, wf, now)
		if err != nil {
			s.logger.Error("Failed to send SLA reminder",
				logger.UUID("workflow_id", wf.ID),
				logger.Err(err),
			)
			continue
		}
		if ok {
			sent++
		}
	}

	return sent, nil
}

func (s *SLAService) remind(ctx context.Context, wf *models.WorkflowInstance, now time.Time) (bool, error) {
	if wf.CurrentAssigneeID == nil {
		s.logger.Debugf("Workflow %s is overdue but has no assignee to remind", wf.ID)
		return false, nil
	}

	visitStart, err := s.openVisitStart(ctx, wf)
	if err != nil {
		return false, err
	}

	claimed, err := s.ledger.Claim(ctx, wf.ID, wf.CurrentStageID, visitStart)
	if err != nil {
		return false, fmt.Errorf("failed to claim reminder: %w", err)
	}
	if !claimed {
		return false, nil
	}

	file, err := s.store.GetFile(ctx, wf.FileID)
	if err != nil {
		return false, fmt.Errorf("failed to load file: %w", err)
	}

	overdueBy := now.Sub(*wf.SLADeadline).Round(time.Minute)
	n := &models.Notification{
		ID:             uuid.New(),
		UserID:         *wf.CurrentAssigneeID,
		FileID:         wf.FileID,
		WorkflowID:     &wf.ID,
		Type:           models.NotificationSLABreached,
		Message:        fmt.Sprintf("File %s is overdue by %s at its current stage", file.FileNumber, overdueBy),
		Priority:       models.PriorityHigh,
		ActionRequired: true,
		CreatedAt:      now,
	}
	if err := s.notifier.Notify(ctx, n); err != nil {
		return false, err
	}
	return true, nil
}

// openVisitStart returns the start of the current stage's open visit,
// falling back to the workflow's last update when the visit is missing
func (s *SLAService) openVisitStart(ctx context.Context, wf *models.WorkflowInstance) (time.Time, error) {
	visits, err := s.store.ListStageInstances(ctx, wf.ID)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to load stage visits: %w", err)
	}
	for i := len(visits) - 1; i >= 0; i-- {
		v := visits[i]
		if v.StageID == wf.CurrentStageID && v.Status == models.StageStatusInProgress {
			return v.StartedAt, nil
		}
	}
	return wf.UpdatedAt, nil
}
