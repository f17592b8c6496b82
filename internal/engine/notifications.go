package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/davidmoltin/efiling-workflows/internal/models"
	"github.com/davidmoltin/efiling-workflows/pkg/logger"
	"github.com/davidmoltin/efiling-workflows/pkg/metrics"
	"github.com/google/uuid"
)

// NotificationEvent describes a transition to announce
type NotificationEvent struct {
	File      *models.File
	Workflow  *models.WorkflowInstance
	Actor     models.Actor
	Action    models.MovementType
	StageName string
	// NextStageName is empty when the workflow did not enter a new stage
	NextStageName string
	Remarks       *string
}

// Recipients returns everyone who should hear about a transition, each
// once and never the actor: the file creator, the current assignee and
// every user the file was ever moved to.
func Recipients(actorID, creatorID uuid.UUID, assignee *uuid.UUID, history []models.FileMovement) []uuid.UUID {
	seen := map[uuid.UUID]bool{actorID: true, uuid.Nil: true}
	var out []uuid.UUID

	add := func(id uuid.UUID) {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}

	add(creatorID)
	if assignee != nil {
		add(*assignee)
	}
	for _, m := range history {
		if m.ToUserID != nil {
			add(*m.ToUserID)
		}
	}
	return out
}

// NotificationEmitter writes notification rows for a transition. Emission
// is best effort: failures are logged and never fail the transition.
type NotificationEmitter struct {
	logger  *logger.Logger
	metrics *metrics.Metrics
}

// NewNotificationEmitter creates a notification emitter
func NewNotificationEmitter(log *logger.Logger, m *metrics.Metrics) *NotificationEmitter {
	return &NotificationEmitter{logger: log, metrics: m}
}

// Emit writes the notifications inside a savepoint of tx and returns the
// rows written, or nil when emission failed.
func (e *NotificationEmitter) Emit(ctx context.Context, tx Tx, ev NotificationEvent, at time.Time) []*models.Notification {
	var written []*models.Notification

	err := tx.Savepoint(ctx, "notifications", func() error {
		history, err := tx.ListFileMovements(ctx, ev.File.ID)
		if err != nil {
			return fmt.Errorf("failed to load movement history: %w", err)
		}

		for _, userID := range Recipients(ev.Actor.ID, ev.File.CreatedBy, ev.Workflow.CurrentAssigneeID, history) {
			n := e.build(ev, userID, at)
			if err := tx.CreateNotification(ctx, n); err != nil {
				return fmt.Errorf("failed to write notification for %s: %w", userID, err)
			}
			written = append(written, n)
		}
		return nil
	})
	if err != nil {
		e.logger.Error("Notification emission failed; transition kept",
			logger.UUID("workflow_id", ev.Workflow.ID),
			logger.UUID("file_id", ev.File.ID),
			logger.String("action", string(ev.Action)),
			logger.Err(err),
		)
		return nil
	}

	for _, n := range written {
		e.metrics.NotificationCreated(string(n.Type))
	}
	return written
}

func (e *NotificationEmitter) build(ev NotificationEvent, userID uuid.UUID, at time.Time) *models.Notification {
	n := &models.Notification{
		ID:         uuid.New(),
		UserID:     userID,
		FileID:     ev.File.ID,
		WorkflowID: &ev.Workflow.ID,
		Type:       models.NotificationWorkflowAction,
		Message:    summarize(ev),
		Priority:   models.PriorityNormal,
		CreatedAt:  at,
	}

	isAssignee := ev.Workflow.CurrentAssigneeID != nil && *ev.Workflow.CurrentAssigneeID == userID
	switch {
	case ev.Action == models.MovementCreate && isAssignee:
		n.Type = models.NotificationWorkflowStarted
		n.Priority = models.PriorityHigh
		n.ActionRequired = true
	case ev.Workflow.Status == models.WorkflowStatusActive && isAssignee:
		n.Type = models.NotificationAssigned
		n.Priority = models.PriorityHigh
		n.ActionRequired = true
	case ev.Action == models.MovementReturn && userID == ev.File.CreatedBy:
		n.Priority = models.PriorityHigh
		n.ActionRequired = true
	case ev.Action == models.MovementCreate:
		n.Type = models.NotificationWorkflowStarted
	}
	return n
}

func summarize(ev NotificationEvent) string {
	var b strings.Builder
	fmt.Fprintf(&b, "File %s", ev.File.FileNumber)

	switch ev.Action {
	case models.MovementCreate:
		fmt.Fprintf(&b, " entered workflow at %s", ev.StageName)
	case models.MovementApprove, models.MovementForward:
		fmt.Fprintf(&b, " %s by %s at %s", pastTense(ev.Action), ev.Actor.Role, ev.StageName)
		if ev.NextStageName != "" {
			fmt.Fprintf(&b, "; now at %s", ev.NextStageName)
		} else if ev.Workflow.Status == models.WorkflowStatusCompleted {
			b.WriteString("; workflow completed")
		}
	default:
		fmt.Fprintf(&b, " %s by %s at %s", pastTense(ev.Action), ev.Actor.Role, ev.StageName)
	}

	if ev.Remarks != nil {
		fmt.Fprintf(&b, ": %s", *ev.Remarks)
	}
	return b.String()
}

func pastTense(a models.MovementType) string {
	switch a {
	case models.MovementApprove:
		return "approved"
	case models.MovementForward:
		return "forwarded"
	case models.MovementReject:
		return "rejected"
	case models.MovementReturn:
		return "returned"
	case models.MovementEscalate:
		return "escalated"
	}
	return strings.ToLower(string(a))
}
