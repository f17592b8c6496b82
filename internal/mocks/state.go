package mocks

import (
	"github.com/davidmoltin/efiling-workflows/internal/models"
	"github.com/google/uuid"
)

// state is one consistent copy of every table
type state struct {
	files         map[uuid.UUID]models.File
	templates     map[uuid.UUID]models.WorkflowTemplate
	users         []models.User
	workflows     map[uuid.UUID]models.WorkflowInstance
	stages        []models.StageInstance
	actions       []models.WorkflowAction
	movements     []models.FileMovement
	notifications []models.Notification
	signatures    []models.Signature
}

func newState() *state {
	return &state{
		files:     make(map[uuid.UUID]models.File),
		templates: make(map[uuid.UUID]models.WorkflowTemplate),
		workflows: make(map[uuid.UUID]models.WorkflowInstance),
	}
}

func (s *state) clone() *state {
	c := &state{
		files:         make(map[uuid.UUID]models.File, len(s.files)),
		templates:     make(map[uuid.UUID]models.WorkflowTemplate, len(s.templates)),
		workflows:     make(map[uuid.UUID]models.WorkflowInstance, len(s.workflows)),
		users:         append([]models.User(nil), s.users...),
		stages:        append([]models.StageInstance(nil), s.stages...),
		actions:       append([]models.WorkflowAction(nil), s.actions...),
		movements:     append([]models.FileMovement(nil), s.movements...),
		notifications: append([]models.Notification(nil), s.notifications...),
		signatures:    append([]models.Signature(nil), s.signatures...),
	}
	for k, v := range s.files {
		c.files[k] = v
	}
	for k, v := range s.templates {
		c.templates[k] = v
	}
	for k, v := range s.workflows {
		c.workflows[k] = v
	}
	return c
}

// op is one write, replayable against any state. Replaying re-checks the
// constraints a database would enforce.
type op func(s *state) error

func (s *state) openStage(workflowID, stageID uuid.UUID) (int, bool) {
	for i := range s.stages {
		si := s.stages[i]
		if si.WorkflowID == workflowID && si.StageID == stageID && si.Status == models.StageStatusInProgress {
			return i, true
		}
	}
	return -1, false
}

func (s *state) activeWorkflow(fileID uuid.UUID) (models.WorkflowInstance, bool) {
	for _, wf := range s.workflows {
		if wf.FileID == fileID && wf.Status == models.WorkflowStatusActive {
			return wf, true
		}
	}
	return models.WorkflowInstance{}, false
}

func (s *state) movementsFor(fileID uuid.UUID) []models.FileMovement {
	var out []models.FileMovement
	for _, m := range s.movements {
		if m.FileID == fileID {
			out = append(out, m)
		}
	}
	return out
}

func (s *state) hasStageInstance(id uuid.UUID) bool {
	for _, si := range s.stages {
		if si.ID == id {
			return true
		}
	}
	return false
}

func (s *state) hasAction(id uuid.UUID) bool {
	for _, a := range s.actions {
		if a.ID == id {
			return true
		}
	}
	return false
}
