package models

import (
	"sort"
	"time"

	"github.com/google/uuid"
)

// WorkflowTemplate is the ordered blueprint of stages a file category follows.
// Templates are immutable once stored.
type WorkflowTemplate struct {
	ID          uuid.UUID         `json:"id" db:"id"`
	Code        string            `json:"code" db:"code" validate:"required,role_code"`
	Name        string            `json:"name" db:"name" validate:"required,max=200"`
	Description *string           `json:"description,omitempty" db:"description"`
	Stages      []StageDefinition `json:"stages" validate:"required,min=1,dive"`
	CreatedAt   time.Time         `json:"created_at" db:"created_at"`
}

// StageDefinition is one step in a template
type StageDefinition struct {
	ID                 uuid.UUID `json:"id" db:"id"`
	TemplateID         uuid.UUID `json:"template_id" db:"template_id"`
	Order              int       `json:"order" db:"stage_order" validate:"gte=1"`
	Name               string    `json:"name" db:"name" validate:"required,max=200"`
	RequiredRole       string    `json:"required_role" db:"required_role" validate:"required,role_code"`
	RequiredDepartment *string   `json:"required_department,omitempty" db:"required_department" validate:"omitempty,role_code"`
	SLAHours           int       `json:"sla_hours" db:"sla_hours" validate:"gte=0"`
}

// SLA returns the stage SLA as a duration
func (s StageDefinition) SLA() time.Duration {
	return time.Duration(s.SLAHours) * time.Hour
}

// SortStages orders the stages by their order field
func (t *WorkflowTemplate) SortStages() {
	sort.SliceStable(t.Stages, func(i, j int) bool {
		return t.Stages[i].Order < t.Stages[j].Order
	})
}

// StageByID finds a stage definition by id
func (t *WorkflowTemplate) StageByID(id uuid.UUID) (*StageDefinition, bool) {
	for i := range t.Stages {
		if t.Stages[i].ID == id {
			return &t.Stages[i], true
		}
	}
	return nil, false
}

// StageByOrder finds a stage definition by its position
func (t *WorkflowTemplate) StageByOrder(order int) (*StageDefinition, bool) {
	for i := range t.Stages {
		if t.Stages[i].Order == order {
			return &t.Stages[i], true
		}
	}
	return nil, false
}
