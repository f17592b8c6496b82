package engine_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/davidmoltin/efiling-workflows/internal/engine"
	"github.com/davidmoltin/efiling-workflows/internal/mocks"
	"github.com/davidmoltin/efiling-workflows/internal/models"
	"github.com/davidmoltin/efiling-workflows/pkg/logger"
	"github.com/davidmoltin/efiling-workflows/pkg/metrics"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

type recordingPublisher struct {
	mu    sync.Mutex
	calls [][]*models.Notification
	err   error
}

func (p *recordingPublisher) Publish(ctx context.Context, notifications []*models.Notification) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, notifications)
	return p.err
}

func (p *recordingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.calls)
}

// harness wires a processor over the in-memory store with a three stage
// CE -> CEO -> COO template and one user per role.
type harness struct {
	store     *mocks.MemoryStore
	processor *engine.Processor
	metrics   *metrics.Metrics
	publisher *recordingPublisher
	tmpl      *models.WorkflowTemplate
	file      *models.File
	now       time.Time

	creator models.User
	ce      models.User
	ceo     models.User
	coo     models.User
	admin   models.User
}

func newHarness(t testing.TB) *harness {
	t.Helper()

	h := &harness{
		store:     mocks.NewMemoryStore(),
		metrics:   metrics.New(prometheus.NewRegistry()),
		publisher: &recordingPublisher{},
		now:       time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC),
	}

	h.creator = h.addUser("JE")
	h.ce = h.addUser("CE")
	h.ceo = h.addUser("CEO")
	h.coo = h.addUser("COO")
	h.admin = h.addUser("ADMIN")

	h.tmpl = &models.WorkflowTemplate{
		Code: "WORK_ORDER",
		Name: "Work order approval",
		Stages: []models.StageDefinition{
			{Order: 1, Name: "CE review", RequiredRole: "CE", SLAHours: 48},
			{Order: 2, Name: "CEO review", RequiredRole: "CEO", SLAHours: 24},
			{Order: 3, Name: "COO sign-off", RequiredRole: "COO", SLAHours: 24},
		},
	}
	h.store.AddTemplate(h.tmpl)

	h.file = &models.File{FileNumber: "WO-2026-0001", Subject: "Road resurfacing", CreatedBy: h.creator.ID}
	h.store.AddFile(h.file)

	log := logger.NewForTesting()
	catalog := engine.NewCatalog(h.store, nil, h.metrics, log)
	h.processor = engine.NewProcessor(
		h.store,
		catalog,
		h.store,
		engine.NewAuthorizer([]string{"ADMIN"}),
		log,
		engine.WithClock(func() time.Time { return h.now }),
		engine.WithMetrics(h.metrics),
		engine.WithPublisher(h.publisher),
	)

	return h
}

func (h *harness) addUser(role string) models.User {
	u := &models.User{Name: role + " user", Role: role, Active: true}
	h.store.AddUser(u)
	return *u
}

func (h *harness) stage(order int) models.StageDefinition {
	stage, _ := h.tmpl.StageByOrder(order)
	return *stage
}

func actor(u models.User) models.Actor {
	return models.Actor{ID: u.ID, Role: u.Role, Department: u.Department}
}

func (h *harness) start(t *testing.T) *models.WorkflowInstance {
	t.Helper()
	wf, err := h.processor.StartWorkflow(context.Background(), engine.StartRequest{
		FileID:     h.file.ID,
		TemplateID: h.tmpl.ID,
		Initiator:  actor(h.creator),
	})
	require.NoError(t, err)
	return wf
}

func (h *harness) act(wfID, stageID uuid.UUID, u models.User, action models.ActionType, details models.JSONB) (*engine.ActionResult, error) {
	return h.processor.PerformWorkflowAction(context.Background(), engine.ActionRequest{
		WorkflowID: wfID,
		StageID:    stageID,
		Actor:      actor(u),
		ActionType: action,
		Details:    details,
	})
}

func (h *harness) workflow(t *testing.T, id uuid.UUID) *models.WorkflowInstance {
	t.Helper()
	wf, err := h.store.GetWorkflow(context.Background(), id)
	require.NoError(t, err)
	return wf
}

func (h *harness) visits(t *testing.T, id uuid.UUID) []models.StageInstance {
	t.Helper()
	visits, err := h.store.ListStageInstances(context.Background(), id)
	require.NoError(t, err)
	return visits
}

func openVisits(visits []models.StageInstance) int {
	n := 0
	for _, v := range visits {
		if v.Status == models.StageStatusInProgress {
			n++
		}
	}
	return n
}

func notificationsFor(all []models.Notification, userID uuid.UUID, after time.Time) []models.Notification {
	var out []models.Notification
	for _, n := range all {
		if n.UserID == userID && !n.CreatedAt.Before(after) {
			out = append(out, n)
		}
	}
	return out
}
