package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/davidmoltin/efiling-workflows/internal/models"
	"github.com/davidmoltin/efiling-workflows/internal/repository"
	"github.com/davidmoltin/efiling-workflows/pkg/logger"
	"github.com/davidmoltin/efiling-workflows/pkg/metrics"
	"github.com/google/uuid"
)

// Keys read from an action's details payload
const (
	DetailNextAssignee = "nextAssignee"
	DetailRemarks      = "remarks"
	DetailReason       = "reason"
)

// Outcome summarizes what an action did to the workflow
type Outcome string

const (
	OutcomeAdvanced  Outcome = "ADVANCED"
	OutcomeCompleted Outcome = "COMPLETED"
	OutcomeRejected  Outcome = "REJECTED"
	OutcomeReturned  Outcome = "RETURNED"
	OutcomeEscalated Outcome = "ESCALATED"
)

// ActionRequest is an actor's action against a workflow's stage
type ActionRequest struct {
	WorkflowID uuid.UUID
	StageID    uuid.UUID
	Actor      models.Actor
	ActionType models.ActionType
	Details    models.JSONB
}

// ActionResult is the workflow state after a successful action
type ActionResult struct {
	WorkflowID       uuid.UUID             `json:"workflow_id"`
	ActionType       models.ActionType     `json:"action_type"`
	Result           Outcome               `json:"result"`
	NextStageID      *uuid.UUID            `json:"next_stage_id,omitempty"`
	WorkflowStatus   models.WorkflowStatus `json:"workflow_status"`
	WorkflowActionID uuid.UUID             `json:"workflow_action_id"`
	MovementID       uuid.UUID             `json:"movement_id"`
}

type effect int

const (
	effectAdvance effect = iota
	effectTerminate
)

type transition struct {
	stageStatus    models.StageStatus
	effect         effect
	workflowStatus models.WorkflowStatus
	outcome        Outcome
}

// transitionFor is the action table. Every ActionType has exactly one row.
func transitionFor(a models.ActionType) (transition, error) {
	switch a {
	case models.ActionApprove, models.ActionForward:
		return transition{models.StageStatusCompleted, effectAdvance, models.WorkflowStatusActive, OutcomeAdvanced}, nil
	case models.ActionReject:
		return transition{models.StageStatusRejected, effectTerminate, models.WorkflowStatusRejected, OutcomeRejected}, nil
	case models.ActionReturn:
		return transition{models.StageStatusReturned, effectTerminate, models.WorkflowStatusReturned, OutcomeReturned}, nil
	case models.ActionEscalate:
		return transition{models.StageStatusEscalated, effectTerminate, models.WorkflowStatusEscalated, OutcomeEscalated}, nil
	}
	return transition{}, InvalidAction("unknown action type %q", a)
}

// Option configures a Processor
type Option func(*Processor)

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(p *Processor) { p.now = now }
}

// WithPublisher fans committed notifications out after each transaction
func WithPublisher(pub NotificationPublisher) Option {
	return func(p *Processor) { p.publisher = pub }
}

// WithMetrics records action outcomes
func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Processor) { p.metrics = m }
}

// Processor is the workflow state machine. Each call runs in one
// transaction; a failed call leaves no trace.
type Processor struct {
	store      Store
	catalog    *Catalog
	assignees  AssigneeResolver
	authorizer *Authorizer
	tracker    StageTracker
	notifier   *NotificationEmitter
	publisher  NotificationPublisher
	metrics    *metrics.Metrics
	logger     *logger.Logger
	now        func() time.Time
}

// NewProcessor creates the action processor
func NewProcessor(
	store Store,
	catalog *Catalog,
	assignees AssigneeResolver,
	authorizer *Authorizer,
	log *logger.Logger,
	opts ...Option,
) *Processor {
	p := &Processor{
		store:      store,
		catalog:    catalog,
		assignees:  assignees,
		authorizer: authorizer,
		logger:     log,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.notifier = NewNotificationEmitter(log, p.metrics)
	return p
}

// PerformWorkflowAction validates and applies an action to a workflow
func (p *Processor) PerformWorkflowAction(ctx context.Context, req ActionRequest) (*ActionResult, error) {
	start := time.Now()
	result, err := p.perform(ctx, req)

	outcome := "OK"
	if err != nil {
		outcome = string(CodeOf(err))
	}
	p.metrics.ObserveAction(string(req.ActionType), outcome, time.Since(start))

	return result, err
}

func (p *Processor) perform(ctx context.Context, req ActionRequest) (*ActionResult, error) {
	t, err := transitionFor(req.ActionType)
	if err != nil {
		return nil, err
	}

	override, err := req.Details.UUID(DetailNextAssignee)
	if err != nil {
		return nil, InvalidAction("%v", err)
	}
	if req.Details == nil {
		req.Details = models.JSONB{}
	}

	var (
		result *ActionResult
		notes  []*models.Notification
	)
	err = p.store.WithTransaction(ctx, func(tx Tx) error {
		var err error
		result, notes, err = p.apply(ctx, tx, req, t, override)
		return err
	})
	if err != nil {
		err = p.classify(err, "failed to %s workflow %s", req.ActionType, req.WorkflowID)
		p.logger.Warn("Workflow action failed",
			logger.UUID("workflow_id", req.WorkflowID),
			logger.String("action", string(req.ActionType)),
			logger.UUID("actor_id", req.Actor.ID),
			logger.String("code", string(CodeOf(err))),
			logger.Err(err),
		)
		return nil, err
	}

	p.publish(ctx, notes)
	if result.WorkflowStatus.IsTerminal() {
		p.metrics.WorkflowFinished(string(result.WorkflowStatus))
	}

	p.logger.Info("Workflow action performed",
		logger.UUID("workflow_id", req.WorkflowID),
		logger.String("action", string(req.ActionType)),
		logger.UUID("actor_id", req.Actor.ID),
		logger.String("result", string(result.Result)),
		logger.OptionalUUID("next_stage_id", result.NextStageID),
	)

	return result, nil
}

func (p *Processor) apply(
	ctx context.Context,
	tx Tx,
	req ActionRequest,
	t transition,
	override *uuid.UUID,
) (*ActionResult, []*models.Notification, error) {
	wf, err := tx.GetWorkflowForUpdate(ctx, req.WorkflowID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil, NotFound("workflow %s not found", req.WorkflowID)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load workflow: %w", err)
	}

	tmpl, err := p.catalog.Template(ctx, wf.TemplateID)
	if err != nil {
		return nil, nil, err
	}

	stage, ok := tmpl.StageByID(req.StageID)
	if !ok {
		return nil, nil, NotFound("stage %s not found in template %s", req.StageID, tmpl.Code)
	}
	if wf.Status.IsTerminal() {
		return nil, nil, Conflict(nil, "workflow %s is already %s", wf.ID, wf.Status)
	}
	if wf.CurrentStageID != stage.ID {
		return nil, nil, Conflict(nil, "workflow %s is no longer at stage %s", wf.ID, stage.Name)
	}
	if !p.authorizer.CanAct(req.Actor, wf, stage) {
		return nil, nil, Forbidden("user %s with role %s may not act on stage %s", req.Actor.ID, req.Actor.Role, stage.Name)
	}

	file, err := tx.GetFile(ctx, wf.FileID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load file %s: %w", wf.FileID, err)
	}

	now := p.now().UTC()

	visit, err := p.tracker.Current(ctx, tx, wf.ID, stage.ID)
	if err != nil {
		return nil, nil, err
	}
	var visitID *uuid.UUID
	if visit == nil {
		// Proceed without a visit; the audit row records a null stage instance.
		p.logger.Warn("No open stage visit for action",
			logger.UUID("workflow_id", wf.ID),
			logger.UUID("stage_id", stage.ID),
		)
	} else {
		if err := p.tracker.Close(ctx, tx, visit, t.stageStatus, now); err != nil {
			return nil, nil, err
		}
		visitID = &visit.ID
	}

	var (
		next   *models.StageDefinition
		opened *models.StageInstance
		toUser *uuid.UUID
	)
	outcome := t.outcome

	switch t.effect {
	case effectAdvance:
		if candidate, found := p.catalog.NextStage(tmpl, stage.Order); found {
			next = candidate
			assignee := override
			if assignee == nil {
				assignee, err = p.assignees.ResolveAssignee(ctx, next.RequiredRole, next.RequiredDepartment)
				if err != nil {
					return nil, nil, fmt.Errorf("failed to resolve assignee for stage %s: %w", next.Name, err)
				}
			}
			deadline := now.Add(next.SLA())
			wf.CurrentStageID = next.ID
			wf.CurrentAssigneeID = assignee
			wf.SLADeadline = &deadline
			toUser = assignee
		} else {
			wf.Status = models.WorkflowStatusCompleted
			wf.CompletedAt = &now
			wf.CurrentAssigneeID = nil
			wf.SLADeadline = nil
			outcome = OutcomeCompleted
		}
	case effectTerminate:
		wf.Status = t.workflowStatus
		if req.ActionType == models.ActionEscalate {
			if override != nil {
				wf.CurrentAssigneeID = override
			}
			toUser = override
		} else {
			creator := file.CreatedBy
			toUser = &creator
		}
	}

	wf.UpdatedAt = now
	if err := tx.UpdateWorkflow(ctx, wf); err != nil {
		return nil, nil, fmt.Errorf("failed to update workflow: %w", err)
	}

	var nextID *uuid.UUID
	if next != nil {
		nextID = &next.ID
		opened, err = p.tracker.Open(ctx, tx, wf.ID, next.ID, wf.CurrentAssigneeID, now)
		if err != nil {
			return nil, nil, err
		}
		if err := tx.UpdateFileCurrentStage(ctx, file.ID, nextID, now); err != nil {
			return nil, nil, fmt.Errorf("failed to move file pointer: %w", err)
		}
	}

	action := &models.WorkflowAction{
		ID:              uuid.New(),
		WorkflowID:      wf.ID,
		StageInstanceID: visitID,
		FromStageID:     stage.ID,
		ToStageID:       nextID,
		ActionType:      req.ActionType,
		ActionData:      req.Details,
		PerformedBy:     req.Actor.ID,
		PerformedAt:     now,
	}
	if err := tx.CreateWorkflowAction(ctx, action); err != nil {
		return nil, nil, fmt.Errorf("failed to record action: %w", err)
	}

	remarks := remarksFrom(req.Details)
	role := req.Actor.Role
	movement := &models.FileMovement{
		ID:               uuid.New(),
		FileID:           file.ID,
		FromUserID:       &req.Actor.ID,
		FromRole:         &role,
		ToUserID:         toUser,
		ActionType:       models.MovementType(req.ActionType),
		Remarks:          remarks,
		CreatedAt:        now,
		WorkflowActionID: &action.ID,
	}
	if opened != nil {
		movement.StageTransitionID = &opened.ID
	}
	if err := tx.CreateFileMovement(ctx, movement); err != nil {
		return nil, nil, fmt.Errorf("failed to record movement: %w", err)
	}

	event := NotificationEvent{
		File:      file,
		Workflow:  wf,
		Actor:     req.Actor,
		Action:    movement.ActionType,
		StageName: stage.Name,
		Remarks:   remarks,
	}
	if next != nil {
		event.NextStageName = next.Name
	}
	notes := p.notifier.Emit(ctx, tx, event, now)

	return &ActionResult{
		WorkflowID:       wf.ID,
		ActionType:       req.ActionType,
		Result:           outcome,
		NextStageID:      nextID,
		WorkflowStatus:   wf.Status,
		WorkflowActionID: action.ID,
		MovementID:       movement.ID,
	}, notes, nil
}

// classify maps a transaction failure onto the error taxonomy
func (p *Processor) classify(err error, format string, args ...interface{}) error {
	var engineErr *Error
	if errors.As(err, &engineErr) {
		if engineErr.Code == CodeConflict {
			p.metrics.TransactionConflict()
		}
		return engineErr
	}
	if errors.Is(err, repository.ErrConflict) {
		p.metrics.TransactionConflict()
		return Conflict(err, "concurrent update lost the race; retry the action")
	}
	return Internal(err, format, args...)
}

func (p *Processor) publish(ctx context.Context, notes []*models.Notification) {
	if p.publisher == nil || len(notes) == 0 {
		return
	}
	if err := p.publisher.Publish(ctx, notes); err != nil {
		p.logger.Warnf("Failed to publish %d notifications: %v", len(notes), err)
	}
}

func remarksFrom(details models.JSONB) *string {
	if s, ok := details.String(DetailRemarks); ok {
		return &s
	}
	if s, ok := details.String(DetailReason); ok {
		return &s
	}
	return nil
}
