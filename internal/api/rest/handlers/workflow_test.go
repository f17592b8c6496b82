package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/davidmoltin/efiling-workflows/internal/engine"
	"github.com/davidmoltin/efiling-workflows/internal/models"
	"github.com/davidmoltin/efiling-workflows/pkg/testutil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkflowHandler_Start(t *testing.T) {
	t.Run("creates an active workflow at the first stage", func(t *testing.T) {
		h := newAPIHarness(t)

		wf := h.startWorkflow(t)

		assert.Equal(t, models.WorkflowStatusActive, wf.Status)
		assert.Equal(t, h.stageID(1), wf.CurrentStageID.String())
		require.NotNil(t, wf.CurrentAssigneeID)
		assert.Equal(t, h.ce.ID, *wf.CurrentAssigneeID)
	})

	t.Run("second start on the same file conflicts", func(t *testing.T) {
		h := newAPIHarness(t)
		h.startWorkflow(t)

		rec := h.do(t, http.MethodPost, "/workflows", &h.creator, StartWorkflowRequest{FileID: h.file.ID, TemplateID: h.tmpl.ID})

		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.Equal(t, string(engine.CodeConflict), decodeError(t, rec).Code)
	})

	t.Run("unknown file is not found", func(t *testing.T) {
		h := newAPIHarness(t)

		rec := h.do(t, http.MethodPost, "/workflows", &h.creator, StartWorkflowRequest{FileID: uuid.New(), TemplateID: h.tmpl.ID})

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("missing ids fail validation", func(t *testing.T) {
		h := newAPIHarness(t)

		rec := h.do(t, http.MethodPost, "/workflows", &h.creator, map[string]string{})

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, CodeValidationFailed, decodeError(t, rec).Code)
	})

	t.Run("malformed body", func(t *testing.T) {
		h := newAPIHarness(t)

		rec := h.do(t, http.MethodPost, "/workflows", &h.creator, "{not json")

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, CodeBadRequest, decodeError(t, rec).Code)
	})

	t.Run("anonymous request is unauthorized", func(t *testing.T) {
		h := newAPIHarness(t)

		rec := h.do(t, http.MethodPost, "/workflows", nil, StartWorkflowRequest{FileID: h.file.ID, TemplateID: h.tmpl.ID})

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestWorkflowHandler_PerformAction(t *testing.T) {
	tests := []struct {
		name       string
		actor      func(h *apiHarness) *models.User
		stage      func(h *apiHarness) string
		body       interface{}
		wantStatus int
		wantCode   string
	}{
		{
			name:       "assignee approves",
			actor:      func(h *apiHarness) *models.User { return &h.ce },
			stage:      func(h *apiHarness) string { return h.stageID(1) },
			body:       PerformActionRequest{ActionType: "APPROVE", Details: models.JSONB{"remarks": "looks fine"}},
			wantStatus: http.StatusOK,
		},
		{
			name:       "wrong role is forbidden",
			actor:      func(h *apiHarness) *models.User { return &h.ceo },
			stage:      func(h *apiHarness) string { return h.stageID(1) },
			body:       PerformActionRequest{ActionType: "APPROVE"},
			wantStatus: http.StatusForbidden,
			wantCode:   string(engine.CodeForbidden),
		},
		{
			name:       "lowercase action is not in the closed set",
			actor:      func(h *apiHarness) *models.User { return &h.ce },
			stage:      func(h *apiHarness) string { return h.stageID(1) },
			body:       PerformActionRequest{ActionType: "approve"},
			wantStatus: http.StatusBadRequest,
			wantCode:   string(engine.CodeInvalidAction),
		},
		{
			name:       "stage that is not current",
			actor:      func(h *apiHarness) *models.User { return &h.ce },
			stage:      func(h *apiHarness) string { return h.stageID(2) },
			body:       PerformActionRequest{ActionType: "APPROVE"},
			wantStatus: http.StatusConflict,
			wantCode:   string(engine.CodeConflict),
		},
		{
			name:       "missing action type",
			actor:      func(h *apiHarness) *models.User { return &h.ce },
			stage:      func(h *apiHarness) string { return h.stageID(1) },
			body:       map[string]interface{}{"details": map[string]string{}},
			wantStatus: http.StatusBadRequest,
			wantCode:   CodeValidationFailed,
		},
		{
			name:       "stage id is not a uuid",
			actor:      func(h *apiHarness) *models.User { return &h.ce },
			stage:      func(h *apiHarness) string { return "stage-one" },
			body:       PerformActionRequest{ActionType: "APPROVE"},
			wantStatus: http.StatusBadRequest,
			wantCode:   CodeBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newAPIHarness(t)
			wf := h.startWorkflow(t)

			path := "/workflows/" + wf.ID.String() + "/stages/" + tt.stage(h) + "/actions"
			rec := h.do(t, http.MethodPost, path, tt.actor(h), tt.body)

			require.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
			if tt.wantCode != "" {
				assert.Equal(t, tt.wantCode, decodeError(t, rec).Code)
				return
			}

			var res engine.ActionResult
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
			assert.Equal(t, engine.OutcomeAdvanced, res.Result)
			require.NotNil(t, res.NextStageID)
			assert.Equal(t, h.stageID(2), res.NextStageID.String())
		})
	}
}

func TestWorkflowHandler_PerformAction_UnknownWorkflow(t *testing.T) {
	h := newAPIHarness(t)

	rec := h.do(t, http.MethodPost, "/workflows/"+uuid.NewString()+"/stages/"+h.stageID(1)+"/actions", &h.ce, PerformActionRequest{ActionType: "APPROVE"})

	testutil.AssertErrorResponse(t, rec, http.StatusNotFound, string(engine.CodeNotFound))
}

func TestWorkflowHandler_PerformAction_HidesInternalErrors(t *testing.T) {
	h := newAPIHarness(t)
	wf := h.startWorkflow(t)
	h.store.FailOn("CreateFileMovement", errors.New("pq: relation file_movements is locked by pid 4711"))

	rec := h.do(t, http.MethodPost, "/workflows/"+wf.ID.String()+"/stages/"+h.stageID(1)+"/actions", &h.ce, PerformActionRequest{ActionType: "APPROVE"})

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	detail := decodeError(t, rec)
	assert.Equal(t, string(engine.CodeInternal), detail.Code)
	assert.NotContains(t, detail.Message, "pid 4711")
}

func TestWorkflowHandler_Get(t *testing.T) {
	h := newAPIHarness(t)
	wf := h.startWorkflow(t)
	h.do(t, http.MethodPost, "/workflows/"+wf.ID.String()+"/stages/"+h.stageID(1)+"/actions", &h.ce, PerformActionRequest{ActionType: "FORWARD"})

	rec := h.do(t, http.MethodGet, "/workflows/"+wf.ID.String(), &h.ceo, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var detail models.WorkflowDetail
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &detail))
	assert.Equal(t, wf.ID, detail.Workflow.ID)
	assert.Len(t, detail.Stages, 2)
	require.Len(t, detail.Actions, 1)
	assert.Equal(t, models.ActionForward, detail.Actions[0].ActionType)

	rec = h.do(t, http.MethodGet, "/workflows/not-a-uuid", &h.ceo, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = h.do(t, http.MethodGet, "/workflows/"+uuid.NewString(), &h.ceo, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
