package postgres

import (
	"context"
	"fmt"

	"github.com/davidmoltin/efiling-workflows/internal/models"
	"github.com/google/uuid"
)

// TemplateRepository reads and seeds workflow templates
type TemplateRepository struct {
	db queryer
}

// NewTemplateRepository creates a new template repository
func NewTemplateRepository(db queryer) *TemplateRepository {
	return &TemplateRepository{db: db}
}

// GetTemplate loads a template with its stages ordered by stage_order
func (r *TemplateRepository) GetTemplate(ctx context.Context, id uuid.UUID) (*models.WorkflowTemplate, error) {
	tmpl := &models.WorkflowTemplate{}
	query := `
		SELECT id, code, name, description, created_at
		FROM workflow_templates
		WHERE id = $1`

	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&tmpl.ID, &tmpl.Code, &tmpl.Name, &tmpl.Description, &tmpl.CreatedAt,
	)
	if err != nil {
		return nil, rowErr(err, "failed to get template %s", id)
	}

	stages, err := r.listStages(ctx, id)
	if err != nil {
		return nil, err
	}
	tmpl.Stages = stages

	return tmpl, nil
}

// GetTemplateByCode loads a template by its unique code
func (r *TemplateRepository) GetTemplateByCode(ctx context.Context, code string) (*models.WorkflowTemplate, error) {
	var id uuid.UUID
	err := r.db.QueryRowContext(ctx, `SELECT id FROM workflow_templates WHERE code = $1`, code).Scan(&id)
	if err != nil {
		return nil, rowErr(err, "failed to get template %s", code)
	}
	return r.GetTemplate(ctx, id)
}

// ListTemplates returns every template with its stages
func (r *TemplateRepository) ListTemplates(ctx context.Context) ([]models.WorkflowTemplate, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, code, name, description, created_at
		FROM workflow_templates
		ORDER BY code`)
	if err != nil {
		return nil, wrapErr(err, "failed to list templates")
	}
	defer rows.Close()

	var templates []models.WorkflowTemplate
	for rows.Next() {
		var tmpl models.WorkflowTemplate
		if err := rows.Scan(&tmpl.ID, &tmpl.Code, &tmpl.Name, &tmpl.Description, &tmpl.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan template: %w", err)
		}
		templates = append(templates, tmpl)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate templates: %w", err)
	}

	for i := range templates {
		stages, err := r.listStages(ctx, templates[i].ID)
		if err != nil {
			return nil, err
		}
		templates[i].Stages = stages
	}

	return templates, nil
}

func (r *TemplateRepository) listStages(ctx context.Context, templateID uuid.UUID) ([]models.StageDefinition, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, template_id, stage_order, name, required_role, required_department, sla_hours
		FROM workflow_stages
		WHERE template_id = $1
		ORDER BY stage_order`, templateID)
	if err != nil {
		return nil, wrapErr(err, "failed to list stages of template %s", templateID)
	}
	defer rows.Close()

	var stages []models.StageDefinition
	for rows.Next() {
		var s models.StageDefinition
		if err := rows.Scan(&s.ID, &s.TemplateID, &s.Order, &s.Name, &s.RequiredRole, &s.RequiredDepartment, &s.SLAHours); err != nil {
			return nil, fmt.Errorf("failed to scan stage: %w", err)
		}
		stages = append(stages, s)
	}
	return stages, rows.Err()
}

// CreateTemplate inserts a template and its stages. Templates are
// immutable once created; a code that already exists is a conflict.
func (r *TemplateRepository) CreateTemplate(ctx context.Context, tmpl *models.WorkflowTemplate) error {
	if tmpl.ID == uuid.Nil {
		tmpl.ID = uuid.New()
	}

	err := r.db.QueryRowContext(ctx, `
		INSERT INTO workflow_templates (id, code, name, description)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at`,
		tmpl.ID, tmpl.Code, tmpl.Name, tmpl.Description,
	).Scan(&tmpl.CreatedAt)
	if err != nil {
		return wrapErr(err, "failed to create template %s", tmpl.Code)
	}

	for i := range tmpl.Stages {
		s := &tmpl.Stages[i]
		if s.ID == uuid.Nil {
			s.ID = uuid.New()
		}
		s.TemplateID = tmpl.ID

		_, err := r.db.ExecContext(ctx, `
			INSERT INTO workflow_stages (id, template_id, stage_order, name, required_role, required_department, sla_hours)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			s.ID, s.TemplateID, s.Order, s.Name, s.RequiredRole, s.RequiredDepartment, s.SLAHours,
		)
		if err != nil {
			return wrapErr(err, "failed to create stage %d of template %s", s.Order, tmpl.Code)
		}
	}

	return nil
}

