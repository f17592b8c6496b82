package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/davidmoltin/efiling-workflows/internal/engine"
	"github.com/davidmoltin/efiling-workflows/internal/mocks"
	"github.com/davidmoltin/efiling-workflows/internal/models"
	"github.com/davidmoltin/efiling-workflows/pkg/config"
	"github.com/davidmoltin/efiling-workflows/pkg/logger"
	"github.com/davidmoltin/efiling-workflows/pkg/metrics"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

type published struct {
	channel string
	payload []byte
}

type fakeBroadcaster struct {
	mu       sync.Mutex
	messages []published
	err      error
}

func (b *fakeBroadcaster) Publish(ctx context.Context, channel string, message interface{}) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return b.err
	}
	b.messages = append(b.messages, published{channel: channel, payload: message.([]byte)})
	return nil
}

// fixture wires the services over the in-memory store with a
// CE -> CEO template
type fixture struct {
	store         *mocks.MemoryStore
	metrics       *metrics.Metrics
	broadcaster   *fakeBroadcaster
	notifications *NotificationService
	workflows     *WorkflowService
	now           time.Time

	tmpl    *models.WorkflowTemplate
	file    *models.File
	creator models.User
	ce      models.User
	ceo     models.User
	admin   models.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		store:       mocks.NewMemoryStore(),
		metrics:     metrics.New(prometheus.NewRegistry()),
		broadcaster: &fakeBroadcaster{},
		now:         time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC),
	}
	log := logger.NewForTesting()

	f.creator = f.addUser("JE")
	f.ce = f.addUser("CE")
	f.ceo = f.addUser("CEO")
	f.admin = f.addUser("ADMIN")

	f.tmpl = &models.WorkflowTemplate{
		Code: "WORK_ORDER",
		Name: "Work order approval",
		Stages: []models.StageDefinition{
			{Order: 1, Name: "CE review", RequiredRole: "CE", SLAHours: 48},
			{Order: 2, Name: "CEO review", RequiredRole: "CEO", SLAHours: 24},
		},
	}
	f.store.AddTemplate(f.tmpl)

	f.file = &models.File{FileNumber: "WO-2026-0042", Subject: "Drain repair", CreatedBy: f.creator.ID}
	f.store.AddFile(f.file)

	var err error
	f.notifications, err = NewNotificationService(&config.NotificationConfig{Channel: "efiling:notifications"}, f.store, f.broadcaster, f.metrics, log)
	require.NoError(t, err)

	processor := engine.NewProcessor(
		f.store,
		engine.NewCatalog(f.store, nil, f.metrics, log),
		f.store,
		engine.NewAuthorizer([]string{"ADMIN"}),
		log,
		engine.WithClock(func() time.Time { return f.now }),
		engine.WithMetrics(f.metrics),
		engine.WithPublisher(f.notifications),
	)
	f.workflows = NewWorkflowService(processor, f.store, log)

	return f
}

func (f *fixture) addUser(role string) models.User {
	u := &models.User{Name: role + " user", Role: role, Active: true}
	f.store.AddUser(u)
	return *u
}

func (f *fixture) stage(order int) uuid.UUID {
	stage, _ := f.tmpl.StageByOrder(order)
	return stage.ID
}

func (f *fixture) start(t *testing.T) *models.WorkflowInstance {
	t.Helper()
	wf, err := f.workflows.StartWorkflow(context.Background(), engine.StartRequest{
		FileID:     f.file.ID,
		TemplateID: f.tmpl.ID,
		Initiator:  asActor(f.creator),
	})
	require.NoError(t, err)
	return wf
}

func (f *fixture) act(t *testing.T, wfID uuid.UUID, order int, u models.User, action models.ActionType) *engine.ActionResult {
	t.Helper()
	res, err := f.workflows.PerformAction(context.Background(), engine.ActionRequest{
		WorkflowID: wfID,
		StageID:    f.stage(order),
		Actor:      asActor(u),
		ActionType: action,
		Details:    models.JSONB{"remarks": "ok"},
	})
	require.NoError(t, err)
	return res
}

func asActor(u models.User) models.Actor {
	return models.Actor{ID: u.ID, Role: u.Role, Department: u.Department}
}
