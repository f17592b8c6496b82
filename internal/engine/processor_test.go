package engine_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/davidmoltin/efiling-workflows/internal/engine"
	"github.com/davidmoltin/efiling-workflows/internal/models"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProcessor_ApproveThroughAllStages(t *testing.T) {
	h := newHarness(t)
	wf := h.start(t)

	s1, s2, s3 := h.stage(1), h.stage(2), h.stage(3)
	require.Equal(t, s1.ID, wf.CurrentStageID)
	require.NotNil(t, wf.CurrentAssigneeID)
	assert.Equal(t, h.ce.ID, *wf.CurrentAssigneeID)
	assert.Equal(t, h.now.Add(48*time.Hour), *wf.SLADeadline)

	// stage 1 -> 2
	h.now = h.now.Add(time.Hour)
	res, err := h.act(wf.ID, s1.ID, h.ce, models.ActionApprove, models.JSONB{"remarks": "estimate verified"})
	require.NoError(t, err)
	assert.Equal(t, engine.OutcomeAdvanced, res.Result)
	assert.Equal(t, models.WorkflowStatusActive, res.WorkflowStatus)
	require.NotNil(t, res.NextStageID)
	assert.Equal(t, s2.ID, *res.NextStageID)

	current := h.workflow(t, wf.ID)
	assert.Equal(t, s2.ID, current.CurrentStageID)
	assert.Equal(t, h.ceo.ID, *current.CurrentAssigneeID)
	assert.Equal(t, h.now.Add(24*time.Hour), *current.SLADeadline)

	visits := h.visits(t, wf.ID)
	require.Len(t, visits, 2)
	assert.Equal(t, models.StageStatusCompleted, visits[0].Status)
	assert.Equal(t, models.StageStatusInProgress, visits[1].Status)
	assert.Equal(t, s2.ID, visits[1].StageID)

	file, err := h.store.GetFile(context.Background(), h.file.ID)
	require.NoError(t, err)
	assert.Equal(t, s2.ID, *file.CurrentStageID)

	// stage 2 -> 3 by forward
	res, err = h.act(wf.ID, s2.ID, h.ceo, models.ActionForward, nil)
	require.NoError(t, err)
	assert.Equal(t, s3.ID, *res.NextStageID)

	// stage 3 -> completed
	h.now = h.now.Add(time.Hour)
	res, err = h.act(wf.ID, s3.ID, h.coo, models.ActionApprove, nil)
	require.NoError(t, err)
	assert.Equal(t, engine.OutcomeCompleted, res.Result)
	assert.Equal(t, models.WorkflowStatusCompleted, res.WorkflowStatus)
	assert.Nil(t, res.NextStageID)

	current = h.workflow(t, wf.ID)
	assert.Equal(t, models.WorkflowStatusCompleted, current.Status)
	require.NotNil(t, current.CompletedAt)
	assert.Equal(t, h.now, *current.CompletedAt)
	assert.Equal(t, s3.ID, current.CurrentStageID)
	assert.Equal(t, 0, openVisits(h.visits(t, wf.ID)))

	// one audit row per action and stage order advances by exactly one
	actions := h.store.AllActions()
	require.Len(t, actions, 3)
	for i, a := range actions {
		from, _ := h.tmpl.StageByID(a.FromStageID)
		assert.Equal(t, i+1, from.Order)
		if a.ToStageID != nil {
			to, _ := h.tmpl.StageByID(*a.ToStageID)
			assert.Equal(t, from.Order+1, to.Order)
		}
		require.NotNil(t, a.StageInstanceID)
	}
	assert.Nil(t, actions[2].ToStageID)
	assert.Equal(t, "estimate verified", actions[0].ActionData["remarks"])

	movements := h.store.AllMovements()
	require.Len(t, movements, 4)
	assert.Equal(t, models.MovementCreate, movements[0].ActionType)
	for i, a := range actions {
		assert.Equal(t, a.ID, *movements[i+1].WorkflowActionID)
	}
	// each stage-entering movement points at the visit it opened
	allVisits := h.visits(t, wf.ID)
	require.Len(t, allVisits, 3)
	for i := 0; i < 3; i++ {
		require.NotNil(t, movements[i].StageTransitionID)
		assert.Equal(t, allVisits[i].ID, *movements[i].StageTransitionID)
	}
	assert.Nil(t, movements[3].StageTransitionID)
	assert.Nil(t, movements[3].ToUserID)
	assert.Equal(t, "estimate verified", *movements[1].Remarks)
	assert.Equal(t, "CE", *movements[1].FromRole)

	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.WorkflowsFinished.WithLabelValues("COMPLETED")))
	assert.Equal(t, 2.0, testutil.ToFloat64(h.metrics.WorkflowActionsTotal.WithLabelValues("APPROVE", "OK")))
}

func TestProcessor_Authorization(t *testing.T) {
	dept := "ROADS"
	other := "WATER"

	tests := []struct {
		name    string
		user    func(h *harness) models.User
		wantErr bool
	}{
		{name: "current assignee", user: func(h *harness) models.User { return h.ce }},
		{name: "other holder of the required role", user: func(h *harness) models.User { return h.addUser("ce") }},
		{name: "administrative override", user: func(h *harness) models.User { return h.admin }},
		{name: "wrong role", user: func(h *harness) models.User { return h.coo }, wantErr: true},
		{name: "file creator", user: func(h *harness) models.User { return h.creator }, wantErr: true},
		{
			name: "role holder with a department on an unrestricted stage",
			user: func(h *harness) models.User {
				u := &models.User{Role: "CE", Department: &dept, Active: true}
				h.store.AddUser(u)
				return *u
			},
		},
		{
			name: "unrelated department still holds the role",
			user: func(h *harness) models.User {
				u := &models.User{Role: "CE", Department: &other, Active: true}
				h.store.AddUser(u)
				return *u
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			wf := h.start(t)
			commits := h.store.Commits()

			_, err := h.act(wf.ID, h.stage(1).ID, tt.user(h), models.ActionApprove, nil)
			if !tt.wantErr {
				require.NoError(t, err)
				return
			}

			require.Error(t, err)
			assert.Equal(t, engine.CodeForbidden, engine.CodeOf(err))
			assert.True(t, errors.Is(err, engine.ErrForbidden))
			assert.Equal(t, commits, h.store.Commits())
			assert.Empty(t, h.store.AllActions())
			assert.Len(t, h.visits(t, wf.ID), 1)
		})
	}
}

func TestProcessor_DepartmentRestrictedStage(t *testing.T) {
	h := newHarness(t)
	roads := "ROADS"
	water := "WATER"

	tmpl := &models.WorkflowTemplate{
		Code: "DEPT_ORDER",
		Name: "Department order",
		Stages: []models.StageDefinition{
			{Order: 1, Name: "Roads CE", RequiredRole: "CE", RequiredDepartment: &roads, SLAHours: 8},
		},
	}
	h.store.AddTemplate(tmpl)

	wf, err := h.processor.StartWorkflow(context.Background(), engine.StartRequest{
		FileID:     h.file.ID,
		TemplateID: tmpl.ID,
		Initiator:  actor(h.creator),
	})
	require.NoError(t, err)
	// no CE in ROADS exists, so the stage is open to any qualifying holder
	assert.Nil(t, wf.CurrentAssigneeID)

	waterCE := &models.User{Role: "CE", Department: &water, Active: true}
	h.store.AddUser(waterCE)
	_, err = h.act(wf.ID, tmpl.Stages[0].ID, *waterCE, models.ActionApprove, nil)
	assert.Equal(t, engine.CodeForbidden, engine.CodeOf(err))

	_, err = h.act(wf.ID, tmpl.Stages[0].ID, h.ce, models.ActionApprove, nil)
	assert.Equal(t, engine.CodeForbidden, engine.CodeOf(err), "role without department")

	roadsCE := &models.User{Role: "CE", Department: &roads, Active: true}
	h.store.AddUser(roadsCE)
	res, err := h.act(wf.ID, tmpl.Stages[0].ID, *roadsCE, models.ActionApprove, nil)
	require.NoError(t, err)
	assert.Equal(t, engine.OutcomeCompleted, res.Result)
}

func TestProcessor_RejectAtSecondStage(t *testing.T) {
	h := newHarness(t)
	wf := h.start(t)

	_, err := h.act(wf.ID, h.stage(1).ID, h.ce, models.ActionApprove, nil)
	require.NoError(t, err)

	res, err := h.act(wf.ID, h.stage(2).ID, h.ceo, models.ActionReject, models.JSONB{"reason": "budget exceeded"})
	require.NoError(t, err)
	assert.Equal(t, engine.OutcomeRejected, res.Result)
	assert.Equal(t, models.WorkflowStatusRejected, res.WorkflowStatus)
	assert.Nil(t, res.NextStageID)

	current := h.workflow(t, wf.ID)
	assert.Equal(t, models.WorkflowStatusRejected, current.Status)
	assert.Equal(t, h.stage(2).ID, current.CurrentStageID)
	assert.Nil(t, current.CompletedAt)

	visits := h.visits(t, wf.ID)
	require.Len(t, visits, 2)
	assert.Equal(t, models.StageStatusRejected, visits[1].Status)
	assert.Equal(t, 0, openVisits(visits))

	actions := h.store.AllActions()
	assert.Nil(t, actions[len(actions)-1].ToStageID)

	movements := h.store.AllMovements()
	last := movements[len(movements)-1]
	assert.Equal(t, models.MovementReject, last.ActionType)
	assert.Nil(t, last.StageTransitionID)
	assert.Equal(t, h.creator.ID, *last.ToUserID)
	assert.Equal(t, "budget exceeded", *last.Remarks)
}

func TestProcessor_ReturnAndReinitiate(t *testing.T) {
	h := newHarness(t)
	wf := h.start(t)

	h.now = h.now.Add(time.Hour)
	res, err := h.act(wf.ID, h.stage(1).ID, h.ce, models.ActionReturn, models.JSONB{"remarks": "attach site photos"})
	require.NoError(t, err)
	assert.Equal(t, engine.OutcomeReturned, res.Result)
	assert.Equal(t, models.WorkflowStatusReturned, h.workflow(t, wf.ID).Status)

	creatorNotes := notificationsFor(h.store.AllNotifications(), h.creator.ID, h.now)
	require.Len(t, creatorNotes, 1)
	assert.True(t, creatorNotes[0].ActionRequired)
	assert.Equal(t, models.PriorityHigh, creatorNotes[0].Priority)
	assert.Contains(t, creatorNotes[0].Message, "attach site photos")

	// the returned file re-enters through a new workflow and a new visit
	again, err := h.processor.StartWorkflow(context.Background(), engine.StartRequest{
		FileID:     h.file.ID,
		TemplateID: h.tmpl.ID,
		Initiator:  actor(h.creator),
	})
	require.NoError(t, err)
	assert.NotEqual(t, wf.ID, again.ID)
	assert.Equal(t, h.stage(1).ID, again.CurrentStageID)

	history, err := h.store.ListWorkflowsByFile(context.Background(), h.file.ID)
	require.NoError(t, err)
	assert.Len(t, history, 2)
}

func TestProcessor_Escalate(t *testing.T) {
	h := newHarness(t)
	wf := h.start(t)

	res, err := h.act(wf.ID, h.stage(1).ID, h.ce, models.ActionEscalate, models.JSONB{"nextAssignee": h.coo.ID.String()})
	require.NoError(t, err)
	assert.Equal(t, engine.OutcomeEscalated, res.Result)

	current := h.workflow(t, wf.ID)
	assert.Equal(t, models.WorkflowStatusEscalated, current.Status)
	assert.Equal(t, h.stage(1).ID, current.CurrentStageID)
	assert.Equal(t, h.coo.ID, *current.CurrentAssigneeID)
	assert.Equal(t, models.StageStatusEscalated, h.visits(t, wf.ID)[0].Status)

	movements := h.store.AllMovements()
	assert.Equal(t, h.coo.ID, *movements[len(movements)-1].ToUserID)
}

func TestProcessor_NextAssigneeOverride(t *testing.T) {
	h := newHarness(t)
	wf := h.start(t)
	deputy := h.addUser("CEO")

	_, err := h.act(wf.ID, h.stage(1).ID, h.ce, models.ActionApprove, models.JSONB{"nextAssignee": deputy.ID.String()})
	require.NoError(t, err)

	current := h.workflow(t, wf.ID)
	assert.Equal(t, deputy.ID, *current.CurrentAssigneeID)
	visits := h.visits(t, wf.ID)
	assert.Equal(t, deputy.ID, *visits[1].AssignedTo)
}

func TestProcessor_Conflicts(t *testing.T) {
	t.Run("stale stage", func(t *testing.T) {
		h := newHarness(t)
		wf := h.start(t)
		_, err := h.act(wf.ID, h.stage(1).ID, h.ce, models.ActionApprove, nil)
		require.NoError(t, err)

		_, err = h.act(wf.ID, h.stage(1).ID, h.admin, models.ActionApprove, nil)
		assert.Equal(t, engine.CodeConflict, engine.CodeOf(err))
		assert.Equal(t, h.stage(2).ID, h.workflow(t, wf.ID).CurrentStageID)
	})

	t.Run("terminal workflow", func(t *testing.T) {
		h := newHarness(t)
		wf := h.start(t)
		_, err := h.act(wf.ID, h.stage(1).ID, h.ce, models.ActionReject, nil)
		require.NoError(t, err)

		for _, action := range models.ActionTypes {
			_, err = h.act(wf.ID, h.stage(1).ID, h.admin, action, nil)
			assert.Equal(t, engine.CodeConflict, engine.CodeOf(err), string(action))
		}
		current := h.workflow(t, wf.ID)
		assert.Equal(t, models.WorkflowStatusRejected, current.Status)
		assert.Equal(t, h.stage(1).ID, current.CurrentStageID)
		assert.Len(t, h.store.AllActions(), 1)
	})

	t.Run("second active workflow for a file", func(t *testing.T) {
		h := newHarness(t)
		h.start(t)
		_, err := h.processor.StartWorkflow(context.Background(), engine.StartRequest{
			FileID:     h.file.ID,
			TemplateID: h.tmpl.ID,
			Initiator:  actor(h.creator),
		})
		assert.Equal(t, engine.CodeConflict, engine.CodeOf(err))
	})
}

func TestProcessor_ValidationErrors(t *testing.T) {
	h := newHarness(t)
	wf := h.start(t)
	stageID := h.stage(1).ID

	tests := []struct {
		name    string
		wfID    uuid.UUID
		stageID uuid.UUID
		action  models.ActionType
		details models.JSONB
		code    engine.Code
	}{
		{name: "unknown action", wfID: wf.ID, stageID: stageID, action: "DELETE", code: engine.CodeInvalidAction},
		{name: "lowercase action is not normalized here", wfID: wf.ID, stageID: stageID, action: "approve", code: engine.CodeInvalidAction},
		{name: "malformed next assignee", wfID: wf.ID, stageID: stageID, action: models.ActionApprove, details: models.JSONB{"nextAssignee": "someone"}, code: engine.CodeInvalidAction},
		{name: "unknown workflow", wfID: uuid.New(), stageID: stageID, action: models.ActionApprove, code: engine.CodeNotFound},
		{name: "stage outside template", wfID: wf.ID, stageID: uuid.New(), action: models.ActionApprove, code: engine.CodeNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.act(tt.wfID, tt.stageID, h.ce, tt.action, tt.details)
			require.Error(t, err)
			assert.Equal(t, tt.code, engine.CodeOf(err))
		})
	}

	assert.Empty(t, h.store.AllActions())
	assert.Equal(t, 1, openVisits(h.visits(t, wf.ID)))
}

func TestProcessor_MissingStageVisitIsLenient(t *testing.T) {
	h := newHarness(t)
	wf := h.start(t)
	h.store.DeleteStageInstances(wf.ID)

	res, err := h.act(wf.ID, h.stage(1).ID, h.ce, models.ActionApprove, nil)
	require.NoError(t, err)
	assert.Equal(t, h.stage(2).ID, *res.NextStageID)

	actions := h.store.AllActions()
	require.Len(t, actions, 1)
	assert.Nil(t, actions[0].StageInstanceID)
	assert.Len(t, h.visits(t, wf.ID), 1)
}

func TestProcessor_ConcurrentApprove(t *testing.T) {
	h := newHarness(t)
	wf := h.start(t)
	stageID := h.stage(1).ID

	const callers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		conflicts int
	)
	start := make(chan struct{})

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := h.act(wf.ID, stageID, h.ce, models.ActionApprove, nil)
			mu.Lock()
			defer mu.Unlock()
			switch engine.CodeOf(err) {
			case "":
				successes++
			case engine.CodeConflict:
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, callers-1, conflicts)

	current := h.workflow(t, wf.ID)
	assert.Equal(t, h.stage(2).ID, current.CurrentStageID)
	assert.Equal(t, 2, current.Version)

	visits := h.visits(t, wf.ID)
	assert.Len(t, visits, 2)
	assert.Equal(t, 1, openVisits(visits))
	assert.Len(t, h.store.AllActions(), 1)
}

func TestProcessor_AtomicityUnderFailure(t *testing.T) {
	faults := []struct {
		name   string
		inject func(h *harness)
	}{
		{
			name:   "commit fails after every write",
			inject: func(h *harness) { h.store.FailBeforeCommit(errors.New("connection reset")) },
		},
		{
			name:   "movement insert fails",
			inject: func(h *harness) { h.store.FailOn("CreateFileMovement", errors.New("disk full")) },
		},
		{
			name:   "opening the next visit fails",
			inject: func(h *harness) { h.store.FailOn("CreateStageInstance", errors.New("timeout")) },
		},
	}

	for _, tt := range faults {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			wf := h.start(t)
			movementsBefore := len(h.store.AllMovements())
			notesBefore := len(h.store.AllNotifications())
			publishedBefore := h.publisher.count()

			tt.inject(h)
			_, err := h.act(wf.ID, h.stage(1).ID, h.ce, models.ActionApprove, nil)
			require.Error(t, err)
			assert.Equal(t, engine.CodeInternal, engine.CodeOf(err))

			assert.Empty(t, h.store.AllActions())
			assert.Len(t, h.store.AllMovements(), movementsBefore)
			assert.Len(t, h.store.AllNotifications(), notesBefore)
			assert.Equal(t, publishedBefore, h.publisher.count())

			current := h.workflow(t, wf.ID)
			assert.Equal(t, wf.Version, current.Version)
			assert.Equal(t, h.stage(1).ID, current.CurrentStageID)
			visits := h.visits(t, wf.ID)
			require.Len(t, visits, 1)
			assert.Equal(t, models.StageStatusInProgress, visits[0].Status)
		})
	}
}

func TestProcessor_NotificationsReachEveryoneOnce(t *testing.T) {
	h := newHarness(t)
	wf := h.start(t)

	_, err := h.act(wf.ID, h.stage(1).ID, h.ce, models.ActionApprove, nil)
	require.NoError(t, err)

	h.now = h.now.Add(time.Hour)
	_, err = h.act(wf.ID, h.stage(2).ID, h.ceo, models.ActionApprove, nil)
	require.NoError(t, err)

	all := h.store.AllNotifications()
	assert.Len(t, notificationsFor(all, h.creator.ID, h.now), 1, "creator")
	assert.Len(t, notificationsFor(all, h.ce.ID, h.now), 1, "earlier assignee")
	assert.Empty(t, notificationsFor(all, h.ceo.ID, h.now), "actor")
	assert.Empty(t, notificationsFor(all, h.admin.ID, h.now), "uninvolved")

	cooNotes := notificationsFor(all, h.coo.ID, h.now)
	require.Len(t, cooNotes, 1, "new assignee")
	assert.Equal(t, models.NotificationAssigned, cooNotes[0].Type)
	assert.True(t, cooNotes[0].ActionRequired)
	assert.Equal(t, wf.ID, *cooNotes[0].WorkflowID)

	// start + two actions, each published once after commit
	assert.Equal(t, 3, h.publisher.count())
}

func TestProcessor_NotificationFailureIsNotFatal(t *testing.T) {
	h := newHarness(t)
	wf := h.start(t)
	notesBefore := len(h.store.AllNotifications())
	publishedBefore := h.publisher.count()

	h.store.FailOn("CreateNotification", errors.New("notifications table locked"))
	res, err := h.act(wf.ID, h.stage(1).ID, h.ce, models.ActionApprove, nil)
	require.NoError(t, err)
	assert.Equal(t, engine.OutcomeAdvanced, res.Result)

	assert.Len(t, h.store.AllActions(), 1)
	assert.Len(t, h.store.AllNotifications(), notesBefore)
	assert.Equal(t, publishedBefore, h.publisher.count())
	assert.Equal(t, h.stage(2).ID, h.workflow(t, wf.ID).CurrentStageID)
}

func TestProcessor_PublishFailureIsNotFatal(t *testing.T) {
	h := newHarness(t)
	h.publisher.err = errors.New("redis down")
	wf := h.start(t)

	_, err := h.act(wf.ID, h.stage(1).ID, h.ce, models.ActionApprove, nil)
	require.NoError(t, err)
	assert.NotEmpty(t, h.store.AllNotifications())
}

func TestProcessor_StartWorkflowErrors(t *testing.T) {
	h := newHarness(t)

	tests := []struct {
		name string
		req  engine.StartRequest
		code engine.Code
	}{
		{
			name: "unknown file",
			req:  engine.StartRequest{FileID: uuid.New(), TemplateID: h.tmpl.ID, Initiator: actor(h.creator)},
			code: engine.CodeNotFound,
		},
		{
			name: "not the creator",
			req:  engine.StartRequest{FileID: h.file.ID, TemplateID: h.tmpl.ID, Initiator: actor(h.ce)},
			code: engine.CodeForbidden,
		},
		{
			name: "unknown template",
			req:  engine.StartRequest{FileID: h.file.ID, TemplateID: uuid.New(), Initiator: actor(h.creator)},
			code: engine.CodeInternal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.processor.StartWorkflow(context.Background(), tt.req)
			require.Error(t, err)
			assert.Equal(t, tt.code, engine.CodeOf(err))
		})
	}

	assert.Empty(t, h.store.AllMovements())
}

func TestProcessor_StartWorkflowByAdmin(t *testing.T) {
	h := newHarness(t)
	assignee := h.addUser("CE")

	wf, err := h.processor.StartWorkflow(context.Background(), engine.StartRequest{
		FileID:     h.file.ID,
		TemplateID: h.tmpl.ID,
		Initiator:  actor(h.admin),
		AssigneeID: &assignee.ID,
	})
	require.NoError(t, err)
	assert.Equal(t, assignee.ID, *wf.CurrentAssigneeID)

	movements := h.store.AllMovements()
	require.Len(t, movements, 1)
	assert.Equal(t, models.MovementCreate, movements[0].ActionType)
	assert.Equal(t, assignee.ID, *movements[0].ToUserID)
	assert.NotNil(t, movements[0].StageTransitionID)
}
