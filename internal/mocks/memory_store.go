package mocks

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/davidmoltin/efiling-workflows/internal/engine"
	"github.com/davidmoltin/efiling-workflows/internal/models"
	"github.com/davidmoltin/efiling-workflows/internal/repository"
	"github.com/google/uuid"
)

// MemoryStore is an in-memory transactional store for tests. Each
// transaction works on a private snapshot and commits by replaying its
// writes against the latest state, failing with repository.ErrConflict
// when a concurrent transaction changed a workflow it updated.
type MemoryStore struct {
	mu    sync.Mutex
	state *state

	// signMu serializes signing transactions like the file row lock does
	signMu sync.Mutex

	faultMu          sync.Mutex
	faults           map[string]error
	failBeforeCommit error
	commits          int
}

var _ engine.Store = (*MemoryStore)(nil)
var _ repository.SigningTx = memSigningTx{}

// NewMemoryStore creates an empty store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		state:  newState(),
		faults: make(map[string]error),
	}
}

// FailOn makes every call of the named transaction operation fail with err.
// Pass a nil err to clear the fault.
func (s *MemoryStore) FailOn(operation string, err error) {
	s.faultMu.Lock()
	defer s.faultMu.Unlock()
	if err == nil {
		delete(s.faults, operation)
		return
	}
	s.faults[operation] = err
}

// FailBeforeCommit makes the next commits fail after all writes succeeded
func (s *MemoryStore) FailBeforeCommit(err error) {
	s.faultMu.Lock()
	defer s.faultMu.Unlock()
	s.failBeforeCommit = err
}

// Commits returns the number of committed transactions
func (s *MemoryStore) Commits() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.commits
}

func (s *MemoryStore) fault(operation string) error {
	s.faultMu.Lock()
	defer s.faultMu.Unlock()
	return s.faults[operation]
}

// WithTransaction runs fn against a snapshot and commits its writes atomically
func (s *MemoryStore) WithTransaction(ctx context.Context, fn func(tx engine.Tx) error) error {
	s.mu.Lock()
	tx := &memTx{store: s, work: s.state.clone()}
	s.mu.Unlock()

	if err := fn(tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.faultMu.Lock()
	commitErr := s.failBeforeCommit
	s.faultMu.Unlock()
	if commitErr != nil {
		return fmt.Errorf("commit failed: %w", commitErr)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	candidate := s.state.clone()
	for _, apply := range tx.ops {
		if err := apply(candidate); err != nil {
			return err
		}
	}
	s.state = candidate
	s.commits++
	return nil
}

// read runs fn against the committed state
func (s *MemoryStore) read(fn func(st *state)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.state)
}

// write applies a single op outside any transaction
func (s *MemoryStore) write(apply op) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return apply(s.state)
}

// memTx implements engine.Tx over a private snapshot
type memTx struct {
	store *MemoryStore
	work  *state
	ops   []op
}

func (t *memTx) exec(operation string, apply op) error {
	if err := t.store.fault(operation); err != nil {
		return err
	}
	if err := apply(t.work); err != nil {
		return err
	}
	t.ops = append(t.ops, apply)
	return nil
}

func (t *memTx) GetFile(ctx context.Context, id uuid.UUID) (*models.File, error) {
	if err := t.store.fault("GetFile"); err != nil {
		return nil, err
	}
	f, ok := t.work.files[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &f, nil
}

func (t *memTx) UpdateFileCurrentStage(ctx context.Context, fileID uuid.UUID, stageID *uuid.UUID, at time.Time) error {
	return t.exec("UpdateFileCurrentStage", func(s *state) error {
		f, ok := s.files[fileID]
		if !ok {
			return repository.ErrNotFound
		}
		f.CurrentStageID = stageID
		f.UpdatedAt = at
		s.files[fileID] = f
		return nil
	})
}

func (t *memTx) GetWorkflowForUpdate(ctx context.Context, id uuid.UUID) (*models.WorkflowInstance, error) {
	if err := t.store.fault("GetWorkflowForUpdate"); err != nil {
		return nil, err
	}
	wf, ok := t.work.workflows[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &wf, nil
}

func (t *memTx) GetActiveWorkflowByFile(ctx context.Context, fileID uuid.UUID) (*models.WorkflowInstance, error) {
	wf, ok := t.work.activeWorkflow(fileID)
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &wf, nil
}

func (t *memTx) CreateWorkflow(ctx context.Context, wf *models.WorkflowInstance) error {
	row := *wf
	return t.exec("CreateWorkflow", func(s *state) error {
		if _, exists := s.workflows[row.ID]; exists {
			return repository.ErrConflict
		}
		if row.Status == models.WorkflowStatusActive {
			if _, busy := s.activeWorkflow(row.FileID); busy {
				return repository.ErrConflict
			}
		}
		s.workflows[row.ID] = row
		return nil
	})
}

func (t *memTx) UpdateWorkflow(ctx context.Context, wf *models.WorkflowInstance) error {
	row := *wf
	expected := wf.Version
	row.Version = expected + 1

	err := t.exec("UpdateWorkflow", func(s *state) error {
		current, ok := s.workflows[row.ID]
		if !ok {
			return repository.ErrNotFound
		}
		if current.Version != expected {
			return repository.ErrConflict
		}
		s.workflows[row.ID] = row
		return nil
	})
	if err != nil {
		return err
	}
	wf.Version = row.Version
	return nil
}

func (t *memTx) GetOpenStageInstance(ctx context.Context, workflowID, stageID uuid.UUID) (*models.StageInstance, error) {
	i, ok := t.work.openStage(workflowID, stageID)
	if !ok {
		return nil, repository.ErrNotFound
	}
	si := t.work.stages[i]
	return &si, nil
}

func (t *memTx) CreateStageInstance(ctx context.Context, si *models.StageInstance) error {
	row := *si
	return t.exec("CreateStageInstance", func(s *state) error {
		if row.Status == models.StageStatusInProgress {
			if _, open := s.openStage(row.WorkflowID, row.StageID); open {
				return repository.ErrConflict
			}
		}
		s.stages = append(s.stages, row)
		return nil
	})
}

func (t *memTx) CloseStageInstance(ctx context.Context, id uuid.UUID, status models.StageStatus, at time.Time) error {
	return t.exec("CloseStageInstance", func(s *state) error {
		for i := range s.stages {
			if s.stages[i].ID != id {
				continue
			}
			if s.stages[i].Status != models.StageStatusInProgress {
				return repository.ErrConflict
			}
			s.stages[i].Status = status
			s.stages[i].CompletedAt = &at
			return nil
		}
		return repository.ErrNotFound
	})
}

func (t *memTx) CreateWorkflowAction(ctx context.Context, action *models.WorkflowAction) error {
	row := *action
	return t.exec("CreateWorkflowAction", func(s *state) error {
		if row.StageInstanceID != nil && !s.hasStageInstance(*row.StageInstanceID) {
			return fmt.Errorf("workflow action %s: unknown stage instance %s", row.ID, *row.StageInstanceID)
		}
		s.actions = append(s.actions, row)
		return nil
	})
}

func (t *memTx) CreateFileMovement(ctx context.Context, movement *models.FileMovement) error {
	row := *movement
	return t.exec("CreateFileMovement", func(s *state) error {
		if row.StageTransitionID != nil && !s.hasStageInstance(*row.StageTransitionID) {
			return fmt.Errorf("file movement %s: unknown stage instance %s", row.ID, *row.StageTransitionID)
		}
		if row.WorkflowActionID != nil && !s.hasAction(*row.WorkflowActionID) {
			return fmt.Errorf("file movement %s: unknown workflow action %s", row.ID, *row.WorkflowActionID)
		}
		s.movements = append(s.movements, row)
		return nil
	})
}

func (t *memTx) ListFileMovements(ctx context.Context, fileID uuid.UUID) ([]models.FileMovement, error) {
	if err := t.store.fault("ListFileMovements"); err != nil {
		return nil, err
	}
	return t.work.movementsFor(fileID), nil
}

func (t *memTx) CreateNotification(ctx context.Context, n *models.Notification) error {
	row := *n
	return t.exec("CreateNotification", func(s *state) error {
		s.notifications = append(s.notifications, row)
		return nil
	})
}

func (t *memTx) Savepoint(ctx context.Context, name string, fn func() error) error {
	saved := t.work.clone()
	mark := len(t.ops)
	if err := fn(); err != nil {
		t.work = saved
		t.ops = t.ops[:mark]
		return err
	}
	return nil
}

// Seeding and read side

// AddTemplate stores a template, assigning ids to it and its stages when unset
func (s *MemoryStore) AddTemplate(tmpl *models.WorkflowTemplate) {
	if tmpl.ID == uuid.Nil {
		tmpl.ID = uuid.New()
	}
	for i := range tmpl.Stages {
		if tmpl.Stages[i].ID == uuid.Nil {
			tmpl.Stages[i].ID = uuid.New()
		}
		tmpl.Stages[i].TemplateID = tmpl.ID
	}
	row := *tmpl
	row.Stages = append([]models.StageDefinition(nil), tmpl.Stages...)
	_ = s.write(func(st *state) error {
		st.templates[row.ID] = row
		return nil
	})
}

// AddFile stores a file
func (s *MemoryStore) AddFile(f *models.File) {
	if f.ID == uuid.Nil {
		f.ID = uuid.New()
	}
	row := *f
	_ = s.write(func(st *state) error {
		st.files[row.ID] = row
		return nil
	})
}

// AddUser stores a directory user
func (s *MemoryStore) AddUser(u *models.User) {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	row := *u
	_ = s.write(func(st *state) error {
		st.users = append(st.users, row)
		return nil
	})
}

// PutWorkflow overwrites a workflow row, bypassing the engine
func (s *MemoryStore) PutWorkflow(wf *models.WorkflowInstance) {
	row := *wf
	_ = s.write(func(st *state) error {
		st.workflows[row.ID] = row
		return nil
	})
}

// DeleteStageInstances removes every visit of a workflow, bypassing the engine
func (s *MemoryStore) DeleteStageInstances(workflowID uuid.UUID) {
	_ = s.write(func(st *state) error {
		kept := st.stages[:0]
		for _, si := range st.stages {
			if si.WorkflowID != workflowID {
				kept = append(kept, si)
			}
		}
		st.stages = kept
		return nil
	})
}

// GetTemplate implements engine.TemplateSource
func (s *MemoryStore) GetTemplate(ctx context.Context, id uuid.UUID) (*models.WorkflowTemplate, error) {
	var (
		tmpl models.WorkflowTemplate
		ok   bool
	)
	s.read(func(st *state) { tmpl, ok = st.templates[id] })
	if !ok {
		return nil, repository.ErrNotFound
	}
	tmpl.Stages = append([]models.StageDefinition(nil), tmpl.Stages...)
	return &tmpl, nil
}

// ListTemplates returns all templates ordered by code
func (s *MemoryStore) ListTemplates(ctx context.Context) ([]models.WorkflowTemplate, error) {
	var out []models.WorkflowTemplate
	s.read(func(st *state) {
		for _, tmpl := range st.templates {
			out = append(out, tmpl)
		}
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

// ResolveAssignee implements engine.AssigneeResolver: the earliest active
// user holding the role, in the department when one is required
func (s *MemoryStore) ResolveAssignee(ctx context.Context, role string, department *string) (*uuid.UUID, error) {
	var found *uuid.UUID
	s.read(func(st *state) {
		for _, u := range st.users {
			if !u.Active || !strings.EqualFold(u.Role, role) {
				continue
			}
			if department != nil && (u.Department == nil || !strings.EqualFold(*u.Department, *department)) {
				continue
			}
			id := u.ID
			found = &id
			return
		}
	})
	return found, nil
}

// GetFile returns a committed file
func (s *MemoryStore) GetFile(ctx context.Context, id uuid.UUID) (*models.File, error) {
	var (
		f  models.File
		ok bool
	)
	s.read(func(st *state) { f, ok = st.files[id] })
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &f, nil
}

// GetWorkflow returns a committed workflow
func (s *MemoryStore) GetWorkflow(ctx context.Context, id uuid.UUID) (*models.WorkflowInstance, error) {
	var (
		wf models.WorkflowInstance
		ok bool
	)
	s.read(func(st *state) { wf, ok = st.workflows[id] })
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &wf, nil
}

// ListWorkflowsByFile returns every workflow a file went through, oldest first
func (s *MemoryStore) ListWorkflowsByFile(ctx context.Context, fileID uuid.UUID) ([]models.WorkflowInstance, error) {
	var out []models.WorkflowInstance
	s.read(func(st *state) {
		for _, wf := range st.workflows {
			if wf.FileID == fileID {
				out = append(out, wf)
			}
		}
	})
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// ListStageInstances returns a workflow's visits in the order they opened
func (s *MemoryStore) ListStageInstances(ctx context.Context, workflowID uuid.UUID) ([]models.StageInstance, error) {
	var out []models.StageInstance
	s.read(func(st *state) {
		for _, si := range st.stages {
			if si.WorkflowID == workflowID {
				out = append(out, si)
			}
		}
	})
	return out, nil
}

// ListWorkflowActions returns a workflow's audit rows in order
func (s *MemoryStore) ListWorkflowActions(ctx context.Context, workflowID uuid.UUID) ([]models.WorkflowAction, error) {
	var out []models.WorkflowAction
	s.read(func(st *state) {
		for _, a := range st.actions {
			if a.WorkflowID == workflowID {
				out = append(out, a)
			}
		}
	})
	return out, nil
}

// ListFileMovements returns a file's movements in order
func (s *MemoryStore) ListFileMovements(ctx context.Context, fileID uuid.UUID) ([]models.FileMovement, error) {
	var out []models.FileMovement
	s.read(func(st *state) { out = st.movementsFor(fileID) })
	return out, nil
}

// GetLatestFileMovement returns the newest movement of a file
func (s *MemoryStore) GetLatestFileMovement(ctx context.Context, fileID uuid.UUID) (*models.FileMovement, error) {
	movements, _ := s.ListFileMovements(ctx, fileID)
	if len(movements) == 0 {
		return nil, repository.ErrNotFound
	}
	latest := movements[len(movements)-1]
	return &latest, nil
}

// AllActions returns every committed audit row
func (s *MemoryStore) AllActions() []models.WorkflowAction {
	var out []models.WorkflowAction
	s.read(func(st *state) { out = append(out, st.actions...) })
	return out
}

// AllMovements returns every committed movement
func (s *MemoryStore) AllMovements() []models.FileMovement {
	var out []models.FileMovement
	s.read(func(st *state) { out = append(out, st.movements...) })
	return out
}

// AllNotifications returns every committed notification
func (s *MemoryStore) AllNotifications() []models.Notification {
	var out []models.Notification
	s.read(func(st *state) { out = append(out, st.notifications...) })
	return out
}

// CreateNotification stores a notification outside a workflow transaction
func (s *MemoryStore) CreateNotification(ctx context.Context, n *models.Notification) error {
	if err := s.fault("CreateNotification"); err != nil {
		return err
	}
	row := *n
	return s.write(func(st *state) error {
		st.notifications = append(st.notifications, row)
		return nil
	})
}

// ListNotifications returns a user's notifications, newest first
func (s *MemoryStore) ListNotifications(ctx context.Context, userID uuid.UUID, unreadOnly bool, limit int) ([]models.Notification, error) {
	var out []models.Notification
	s.read(func(st *state) {
		for i := len(st.notifications) - 1; i >= 0; i-- {
			n := st.notifications[i]
			if n.UserID != userID || (unreadOnly && n.IsRead) {
				continue
			}
			out = append(out, n)
			if limit > 0 && len(out) == limit {
				return
			}
		}
	})
	return out, nil
}

// MarkNotificationRead flags a user's notification as read
func (s *MemoryStore) MarkNotificationRead(ctx context.Context, id, userID uuid.UUID) error {
	return s.write(func(st *state) error {
		for i := range st.notifications {
			if st.notifications[i].ID == id && st.notifications[i].UserID == userID {
				st.notifications[i].IsRead = true
				return nil
			}
		}
		return repository.ErrNotFound
	})
}

// ListOverdueWorkflows returns ACTIVE workflows whose deadline passed before now
func (s *MemoryStore) ListOverdueWorkflows(ctx context.Context, now time.Time, limit int) ([]models.WorkflowInstance, error) {
	var out []models.WorkflowInstance
	s.read(func(st *state) {
		for _, wf := range st.workflows {
			if wf.IsSLABreached(now) {
				out = append(out, wf)
			}
		}
	})
	sort.Slice(out, func(i, j int) bool { return out[i].SLADeadline.Before(*out[j].SLADeadline) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// CountSignatures counts a user's signatures on a file
func (s *MemoryStore) CountSignatures(ctx context.Context, fileID, userID uuid.UUID) (int, error) {
	count := 0
	s.read(func(st *state) {
		for _, sig := range st.signatures {
			if sig.FileID == fileID && sig.UserID == userID {
				count++
			}
		}
	})
	return count, nil
}

// WithSigningTransaction runs fn while holding the signing lock. Writes
// are applied as they happen.
func (s *MemoryStore) WithSigningTransaction(ctx context.Context, fn func(tx repository.SigningTx) error) error {
	s.signMu.Lock()
	defer s.signMu.Unlock()
	return fn(memSigningTx{store: s})
}

type memSigningTx struct {
	store *MemoryStore
}

func (t memSigningTx) GetFileForUpdate(ctx context.Context, id uuid.UUID) (*models.File, error) {
	return t.store.GetFile(ctx, id)
}

func (t memSigningTx) GetLatestFileMovement(ctx context.Context, fileID uuid.UUID) (*models.FileMovement, error) {
	return t.store.GetLatestFileMovement(ctx, fileID)
}

func (t memSigningTx) GetLatestSignature(ctx context.Context, fileID, userID uuid.UUID) (*models.Signature, error) {
	return t.store.GetLatestSignature(ctx, fileID, userID)
}

func (t memSigningTx) CreateSignature(ctx context.Context, sig *models.Signature) error {
	if err := t.store.fault("CreateSignature"); err != nil {
		return err
	}
	return t.store.CreateSignature(ctx, sig)
}

// GetLatestSignature returns a user's newest signature on a file
func (s *MemoryStore) GetLatestSignature(ctx context.Context, fileID, userID uuid.UUID) (*models.Signature, error) {
	var (
		latest models.Signature
		found  bool
	)
	s.read(func(st *state) {
		for _, sig := range st.signatures {
			if sig.FileID == fileID && sig.UserID == userID && (!found || !sig.SignedAt.Before(latest.SignedAt)) {
				latest, found = sig, true
			}
		}
	})
	if !found {
		return nil, repository.ErrNotFound
	}
	return &latest, nil
}

// CreateSignature stores a signature
func (s *MemoryStore) CreateSignature(ctx context.Context, sig *models.Signature) error {
	row := *sig
	return s.write(func(st *state) error {
		st.signatures = append(st.signatures, row)
		return nil
	})
}

// ListSignatures returns the signatures on a file in order
func (s *MemoryStore) ListSignatures(ctx context.Context, fileID uuid.UUID) ([]models.Signature, error) {
	var out []models.Signature
	s.read(func(st *state) {
		for _, sig := range st.signatures {
			if sig.FileID == fileID {
				out = append(out, sig)
			}
		}
	})
	return out, nil
}
