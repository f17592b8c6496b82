package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/davidmoltin/efiling-workflows/internal/api/rest/middleware"
	"github.com/davidmoltin/efiling-workflows/internal/engine"
	"github.com/davidmoltin/efiling-workflows/internal/mocks"
	"github.com/davidmoltin/efiling-workflows/internal/models"
	"github.com/davidmoltin/efiling-workflows/internal/services"
	"github.com/davidmoltin/efiling-workflows/pkg/config"
	"github.com/davidmoltin/efiling-workflows/pkg/logger"
	"github.com/davidmoltin/efiling-workflows/pkg/testutil"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
)

// apiHarness mounts the handlers on a chi router backed by the in-memory
// store. Requests carry the actor directly, skipping token parsing.
type apiHarness struct {
	store  *mocks.MemoryStore
	router chi.Router

	tmpl    *models.WorkflowTemplate
	file    *models.File
	creator models.User
	ce      models.User
	ceo     models.User
}

func newAPIHarness(t *testing.T) *apiHarness {
	t.Helper()

	h := &apiHarness{store: mocks.NewMemoryStore()}
	log := logger.NewForTesting()

	h.creator = h.addUser("JE")
	h.ce = h.addUser("CE")
	h.ceo = h.addUser("CEO")

	h.tmpl = &models.WorkflowTemplate{
		Code: "WORK_ORDER",
		Name: "Work order approval",
		Stages: []models.StageDefinition{
			{Order: 1, Name: "CE review", RequiredRole: "CE", SLAHours: 48},
			{Order: 2, Name: "CEO review", RequiredRole: "CEO", SLAHours: 24},
		},
	}
	h.store.AddTemplate(h.tmpl)

	h.file = &models.File{FileNumber: "WO-2026-0107", Subject: "Streetlight replacement", CreatedBy: h.creator.ID}
	h.store.AddFile(h.file)

	notifications, err := services.NewNotificationService(&config.NotificationConfig{Channel: "efiling:test"}, h.store, nil, nil, log)
	require.NoError(t, err)

	// each reading moves a second forward so signatures and movements order strictly
	now := time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)
	var clockMu sync.Mutex
	clock := func() time.Time {
		clockMu.Lock()
		defer clockMu.Unlock()
		now = now.Add(time.Second)
		return now
	}
	processor := engine.NewProcessor(
		h.store,
		engine.NewCatalog(h.store, nil, nil, log),
		h.store,
		engine.NewAuthorizer([]string{"ADMIN"}),
		log,
		engine.WithClock(clock),
		engine.WithPublisher(notifications),
	)

	hs := NewHandlers(log, Services{
		Workflows:     services.NewWorkflowService(processor, h.store, log),
		Signatures:    services.NewSignatureService(h.store, []string{"CE", "CEO", "COO"}, log).WithClock(clock),
		Notifications: notifications,
	}, nil, "test")

	r := chi.NewRouter()
	r.Post("/workflows", hs.Workflow.Start)
	r.Get("/workflows/{id}", hs.Workflow.Get)
	r.Post("/workflows/{id}/stages/{stageId}/actions", hs.Workflow.PerformAction)
	r.Get("/files/{id}/movements", hs.File.Movements)
	r.Get("/files/{id}/workflows", hs.File.Workflows)
	r.Get("/files/{id}/signatures", hs.File.Signatures)
	r.Post("/files/{id}/signatures", hs.File.Sign)
	r.Get("/notifications", hs.Notification.List)
	r.Post("/notifications/{id}/read", hs.Notification.MarkRead)
	h.router = r

	return h
}

func (h *apiHarness) addUser(role string) models.User {
	u := &models.User{Name: role + " user", Role: role, Active: true}
	h.store.AddUser(u)
	return *u
}

// do sends body as JSON on behalf of u. A nil u sends an anonymous request.
func (h *apiHarness) do(t *testing.T, method, path string, u *models.User, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		switch b := body.(type) {
		case string:
			buf.WriteString(b)
		default:
			require.NoError(t, json.NewEncoder(&buf).Encode(b))
		}
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if u != nil {
		req = req.WithContext(middleware.WithActor(req.Context(), models.Actor{ID: u.ID, Role: u.Role, Department: u.Department}))
	}

	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)
	return rec
}

func (h *apiHarness) startWorkflow(t *testing.T) models.WorkflowInstance {
	t.Helper()
	rec := h.do(t, http.MethodPost, "/workflows", &h.creator, StartWorkflowRequest{FileID: h.file.ID, TemplateID: h.tmpl.ID})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return testutil.DecodeJSON[models.WorkflowInstance](t, rec)
}

func (h *apiHarness) stageID(order int) string {
	stage, _ := h.tmpl.StageByOrder(order)
	return stage.ID.String()
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorDetail {
	t.Helper()
	var body ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return body.Error
}
