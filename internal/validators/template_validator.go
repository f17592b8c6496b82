package validators

import (
	"fmt"
	"sort"
	"strings"

	"github.com/davidmoltin/efiling-workflows/internal/models"
	"github.com/davidmoltin/efiling-workflows/pkg/validator"
	"github.com/google/uuid"
)

// TemplateValidator validates workflow template definitions
type TemplateValidator struct {
	fields *validator.Validator
}

// NewTemplateValidator creates a new template validator
func NewTemplateValidator() *TemplateValidator {
	return &TemplateValidator{fields: validator.DefaultValidator}
}

// Validate checks field constraints and the stage ordering of a template
func (v *TemplateValidator) Validate(tmpl *models.WorkflowTemplate) error {
	var errors []string

	if err := v.fields.Validate(tmpl); err != nil {
		errors = append(errors, err.Error())
	}

	if len(tmpl.Stages) > 0 {
		if err := v.validateStages(tmpl); err != nil {
			errors = append(errors, err.Error())
		}
	}

	if len(errors) > 0 {
		return fmt.Errorf("template %s validation failed: %s", tmpl.Code, strings.Join(errors, "; "))
	}

	return nil
}

// validateStages enforces a dense, strictly increasing order from 1 and
// unique stage ids.
func (v *TemplateValidator) validateStages(tmpl *models.WorkflowTemplate) error {
	var errors []string

	orders := make([]int, 0, len(tmpl.Stages))
	ids := make(map[uuid.UUID]bool, len(tmpl.Stages))
	for _, stage := range tmpl.Stages {
		orders = append(orders, stage.Order)

		if stage.ID != uuid.Nil {
			if ids[stage.ID] {
				errors = append(errors, fmt.Sprintf("duplicate stage id: %s", stage.ID))
			}
			ids[stage.ID] = true
		}
	}

	sort.Ints(orders)
	for i, order := range orders {
		if order != i+1 {
			errors = append(errors, fmt.Sprintf("stage orders must be 1..%d without gaps or duplicates, got %v", len(orders), orders))
			break
		}
	}

	if len(errors) > 0 {
		return fmt.Errorf("%s", strings.Join(errors, "; "))
	}
	return nil
}
