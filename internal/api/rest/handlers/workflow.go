package handlers

import (
	"context"
	"net/http"

	"github.com/davidmoltin/efiling-workflows/internal/engine"
	"github.com/davidmoltin/efiling-workflows/internal/models"
	"github.com/davidmoltin/efiling-workflows/pkg/logger"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// WorkflowCommands is the workflow service surface the handlers use
type WorkflowCommands interface {
	StartWorkflow(ctx context.Context, req engine.StartRequest) (*models.WorkflowInstance, error)
	PerformAction(ctx context.Context, req engine.ActionRequest) (*engine.ActionResult, error)
	GetWorkflow(ctx context.Context, id uuid.UUID) (*models.WorkflowDetail, error)
	GetFileHistory(ctx context.Context, fileID uuid.UUID) ([]models.FileMovement, error)
	ListFileWorkflows(ctx context.Context, fileID uuid.UUID) ([]models.WorkflowInstance, error)
}

// StartWorkflowRequest is the body of POST /workflows
type StartWorkflowRequest struct {
	FileID     uuid.UUID  `json:"file_id" validate:"required"`
	TemplateID uuid.UUID  `json:"template_id" validate:"required"`
	AssigneeID *uuid.UUID `json:"assignee_id,omitempty"`
	Remarks    *string    `json:"remarks,omitempty" validate:"omitempty,max=4000"`
}

// PerformActionRequest is the body of POST /workflows/{id}/stages/{stageId}/actions
type PerformActionRequest struct {
	ActionType string       `json:"action_type" validate:"required"`
	Details    models.JSONB `json:"details,omitempty"`
}

// WorkflowHandler handles workflow-related HTTP requests
type WorkflowHandler struct {
	logger    *logger.Logger
	workflows WorkflowCommands
}

// NewWorkflowHandler creates a new workflow handler
func NewWorkflowHandler(log *logger.Logger, workflows WorkflowCommands) *WorkflowHandler {
	return &WorkflowHandler{logger: log, workflows: workflows}
}

// Start handles POST /api/v1/workflows
func (h *WorkflowHandler) Start(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	var req StartWorkflowRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	wf, err := h.workflows.StartWorkflow(r.Context(), engine.StartRequest{
		FileID:     req.FileID,
		TemplateID: req.TemplateID,
		Initiator:  actor,
		AssigneeID: req.AssigneeID,
		Remarks:    req.Remarks,
	})
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}

	respondJSON(w, http.StatusCreated, wf)
}

// Get handles GET /api/v1/workflows/{id}
func (h *WorkflowHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	detail, err := h.workflows.GetWorkflow(r.Context(), id)
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}

	respondJSON(w, http.StatusOK, detail)
}

// PerformAction handles POST /api/v1/workflows/{id}/stages/{stageId}/actions.
// The action type is passed through verbatim; the engine rejects anything
// outside the closed set.
func (h *WorkflowHandler) PerformAction(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	workflowID, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	stageID, ok := uuidParam(w, r, "stageId")
	if !ok {
		return
	}

	var req PerformActionRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	res, err := h.workflows.PerformAction(r.Context(), engine.ActionRequest{
		WorkflowID: workflowID,
		StageID:    stageID,
		Actor:      actor,
		ActionType: models.ActionType(req.ActionType),
		Details:    req.Details,
	})
	if err != nil {
		h.logger.Debug("Workflow action refused",
			logger.UUID("workflow_id", workflowID),
			zap.String("action", req.ActionType),
			zap.String("code", string(engine.CodeOf(err))),
		)
		respondServiceError(w, h.logger, err)
		return
	}

	respondJSON(w, http.StatusOK, res)
}
