package seeds

import (
	"context"
	"errors"
	"fmt"

	"github.com/davidmoltin/efiling-workflows/internal/models"
	"github.com/davidmoltin/efiling-workflows/internal/repository"
	"github.com/davidmoltin/efiling-workflows/internal/validators"
	"github.com/davidmoltin/efiling-workflows/pkg/logger"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// namespace derives stable ids for seeded rows so re-running a seed is a no-op
var namespace = uuid.MustParse("6f1c1d2e-8a43-4f55-9d0e-3c1a2b7e9f10")

// StableID returns the id a seeded row with the given key receives
func StableID(kind, key string) uuid.UUID {
	return uuid.NewSHA1(namespace, []byte(kind+":"+key))
}

// Target is where seed rows are written. *postgres.Store satisfies it.
type Target interface {
	GetTemplateByCode(ctx context.Context, code string) (*models.WorkflowTemplate, error)
	CreateTemplate(ctx context.Context, tmpl *models.WorkflowTemplate) error
	UpsertUser(ctx context.Context, u *models.User) error
	CreateFile(ctx context.Context, f *models.File) error
}

// Report counts what a seed run wrote
type Report struct {
	TemplatesCreated int `json:"templates_created"`
	TemplatesSkipped int `json:"templates_skipped"`
	Users            int `json:"users"`
	FilesCreated     int `json:"files_created"`
	FilesSkipped     int `json:"files_skipped"`
}

// Seeder writes the default municipal templates and, on request, demo
// users and a demo file
type Seeder struct {
	target Target
	logger *logger.Logger
}

// NewSeeder creates a new seeder
func NewSeeder(target Target, log *logger.Logger) *Seeder {
	return &Seeder{target: target, logger: log}
}

func strPtr(s string) *string { return &s }

// DefaultTemplates returns the municipal approval chains
func DefaultTemplates() []models.WorkflowTemplate {
	return []models.WorkflowTemplate{
		{
			Code:        "FILE_APPROVAL",
			Name:        "File approval",
			Description: strPtr("Standard approval chain for e-files"),
			Stages: []models.StageDefinition{
				{Order: 1, Name: "Chief Engineer review", RequiredRole: "CE", SLAHours: 48},
				{Order: 2, Name: "CEO review", RequiredRole: "CEO", SLAHours: 48},
				{Order: 3, Name: "COO sanction", RequiredRole: "COO", SLAHours: 72},
			},
		},
		{
			Code:        "WORK_ORDER",
			Name:        "Work order approval",
			Description: strPtr("Field work orders raised from citizen reports"),
			Stages: []models.StageDefinition{
				{Order: 1, Name: "Chief Engineer review", RequiredRole: "CE", SLAHours: 24},
				{Order: 2, Name: "CEO approval", RequiredRole: "CEO", SLAHours: 48},
			},
		},
	}
}

// DemoUsers returns one directory user per role in the default chains
func DemoUsers() []models.User {
	roads := strPtr("ROADS")
	users := []models.User{
		{Name: "Junior Engineer", Role: "JE", Department: roads},
		{Name: "Chief Engineer", Role: "CE", Department: roads},
		{Name: "Chief Executive Officer", Role: "CEO"},
		{Name: "Chief Operating Officer", Role: "COO"},
		{Name: "System Administrator", Role: "ADMIN"},
	}
	for i := range users {
		users[i].ID = StableID("user", users[i].Role)
		users[i].Active = true
	}
	return users
}

// DemoFile returns a file raised by the demo junior engineer
func DemoFile() models.File {
	return models.File{
		ID:         StableID("file", "EF-2026-0001"),
		FileNumber: "EF-2026-0001",
		Subject:    "Resurfacing of ward 12 arterial road",
		CreatedBy:  StableID("user", "JE"),
		Department: strPtr("ROADS"),
	}
}

// SeedTemplates creates every default template that does not exist yet.
// Templates are immutable, so an existing code is left untouched.
func (s *Seeder) SeedTemplates(ctx context.Context, report *Report) error {
	v := validators.NewTemplateValidator()
	for _, tmpl := range DefaultTemplates() {
		tmpl := tmpl
		if err := v.Validate(&tmpl); err != nil {
			return err
		}

		_, err := s.target.GetTemplateByCode(ctx, tmpl.Code)
		switch {
		case err == nil:
			s.logger.Info("Template already present", zap.String("code", tmpl.Code))
			report.TemplatesSkipped++
			continue
		case !errors.Is(err, repository.ErrNotFound):
			return fmt.Errorf("failed to look up template %s: %w", tmpl.Code, err)
		}

		tmpl.ID = StableID("template", tmpl.Code)
		for i := range tmpl.Stages {
			tmpl.Stages[i].ID = StableID("stage", fmt.Sprintf("%s/%d", tmpl.Code, tmpl.Stages[i].Order))
		}
		if err := s.target.CreateTemplate(ctx, &tmpl); err != nil {
			return fmt.Errorf("failed to create template %s: %w", tmpl.Code, err)
		}
		s.logger.Info("Template created", zap.String("code", tmpl.Code), zap.Int("stages", len(tmpl.Stages)))
		report.TemplatesCreated++
	}
	return nil
}

// SeedDemo mirrors the demo users and registers the demo file
func (s *Seeder) SeedDemo(ctx context.Context, report *Report) error {
	for _, u := range DemoUsers() {
		u := u
		if err := s.target.UpsertUser(ctx, &u); err != nil {
			return fmt.Errorf("failed to upsert user %s: %w", u.Role, err)
		}
		s.logger.Info("User seeded", logger.UUID("id", u.ID), zap.String("role", u.Role))
		report.Users++
	}

	file := DemoFile()
	err := s.target.CreateFile(ctx, &file)
	switch {
	case errors.Is(err, repository.ErrConflict):
		report.FilesSkipped++
	case err != nil:
		return fmt.Errorf("failed to create file %s: %w", file.FileNumber, err)
	default:
		s.logger.Info("File created", zap.String("file_number", file.FileNumber))
		report.FilesCreated++
	}
	return nil
}

// Run seeds templates and, when demo is set, demo users and a file
func (s *Seeder) Run(ctx context.Context, demo bool) (*Report, error) {
	report := &Report{}
	if err := s.SeedTemplates(ctx, report); err != nil {
		return report, err
	}
	if demo {
		if err := s.SeedDemo(ctx, report); err != nil {
			return report, err
		}
	}
	return report, nil
}

// Verify reports the default templates that are missing or whose stored
// stages differ from the built-in definition
func (s *Seeder) Verify(ctx context.Context) ([]string, error) {
	var problems []string
	for _, want := range DefaultTemplates() {
		got, err := s.target.GetTemplateByCode(ctx, want.Code)
		switch {
		case errors.Is(err, repository.ErrNotFound):
			problems = append(problems, fmt.Sprintf("%s: missing", want.Code))
			continue
		case err != nil:
			return nil, fmt.Errorf("failed to look up template %s: %w", want.Code, err)
		}

		if len(got.Stages) != len(want.Stages) {
			problems = append(problems, fmt.Sprintf("%s: has %d stages, want %d", want.Code, len(got.Stages), len(want.Stages)))
			continue
		}
		got.SortStages()
		for i, stage := range want.Stages {
			if got.Stages[i].RequiredRole != stage.RequiredRole {
				problems = append(problems, fmt.Sprintf("%s: stage %d requires %s, want %s",
					want.Code, stage.Order, got.Stages[i].RequiredRole, stage.RequiredRole))
			}
		}
	}
	return problems, nil
}
