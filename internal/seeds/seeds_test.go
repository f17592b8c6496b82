package seeds

import (
	"context"
	"errors"
	"testing"

	"github.com/davidmoltin/efiling-workflows/internal/models"
	"github.com/davidmoltin/efiling-workflows/internal/repository"
	"github.com/davidmoltin/efiling-workflows/internal/validators"
	"github.com/davidmoltin/efiling-workflows/pkg/logger"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTarget struct {
	templates map[string]models.WorkflowTemplate
	users     map[uuid.UUID]models.User
	files     map[string]models.File
	failUsers error
}

func newFakeTarget() *fakeTarget {
	return &fakeTarget{
		templates: map[string]models.WorkflowTemplate{},
		users:     map[uuid.UUID]models.User{},
		files:     map[string]models.File{},
	}
}

func (f *fakeTarget) GetTemplateByCode(ctx context.Context, code string) (*models.WorkflowTemplate, error) {
	tmpl, ok := f.templates[code]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &tmpl, nil
}

func (f *fakeTarget) CreateTemplate(ctx context.Context, tmpl *models.WorkflowTemplate) error {
	f.templates[tmpl.Code] = *tmpl
	return nil
}

func (f *fakeTarget) UpsertUser(ctx context.Context, u *models.User) error {
	if f.failUsers != nil {
		return f.failUsers
	}
	f.users[u.ID] = *u
	return nil
}

func (f *fakeTarget) CreateFile(ctx context.Context, file *models.File) error {
	if _, ok := f.files[file.FileNumber]; ok {
		return repository.ErrConflict
	}
	f.files[file.FileNumber] = *file
	return nil
}

func TestDefaultTemplates_AreValid(t *testing.T) {
	for _, tmpl := range DefaultTemplates() {
		tmpl := tmpl
		t.Run(tmpl.Code, func(t *testing.T) {
			require.NoError(t, validators.NewTemplateValidator().Validate(&tmpl))
		})
	}

	chain := DefaultTemplates()[0]
	var roles []string
	for _, s := range chain.Stages {
		roles = append(roles, s.RequiredRole)
	}
	assert.Equal(t, []string{"CE", "CEO", "COO"}, roles)
}

func TestSeeder_Run_IsIdempotent(t *testing.T) {
	target := newFakeTarget()
	seeder := NewSeeder(target, logger.NewForTesting())
	ctx := context.Background()

	first, err := seeder.Run(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, 2, first.TemplatesCreated)
	assert.Equal(t, 5, first.Users)
	assert.Equal(t, 1, first.FilesCreated)

	second, err := seeder.Run(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, 0, second.TemplatesCreated)
	assert.Equal(t, 2, second.TemplatesSkipped)
	assert.Equal(t, 1, second.FilesSkipped)

	assert.Len(t, target.templates, 2)
	assert.Len(t, target.users, 5)
	assert.Len(t, target.files, 1)
}

func TestSeeder_StableIDs(t *testing.T) {
	target := newFakeTarget()
	_, err := NewSeeder(target, logger.NewForTesting()).Run(context.Background(), true)
	require.NoError(t, err)

	tmpl := target.templates["FILE_APPROVAL"]
	assert.Equal(t, StableID("template", "FILE_APPROVAL"), tmpl.ID)
	assert.Equal(t, StableID("stage", "FILE_APPROVAL/2"), tmpl.Stages[1].ID)

	file := target.files["EF-2026-0001"]
	creator, ok := target.users[file.CreatedBy]
	require.True(t, ok, "demo file creator must be a seeded user")
	assert.Equal(t, "JE", creator.Role)
}

func TestSeeder_Run_WithoutDemo(t *testing.T) {
	target := newFakeTarget()

	report, err := NewSeeder(target, logger.NewForTesting()).Run(context.Background(), false)

	require.NoError(t, err)
	assert.Equal(t, 2, report.TemplatesCreated)
	assert.Empty(t, target.users)
	assert.Empty(t, target.files)
}

func TestSeeder_Run_PropagatesErrors(t *testing.T) {
	target := newFakeTarget()
	target.failUsers = errors.New("users table missing")

	_, err := NewSeeder(target, logger.NewForTesting()).Run(context.Background(), true)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "users table missing")
}

func TestSeeder_Verify(t *testing.T) {
	target := newFakeTarget()
	seeder := NewSeeder(target, logger.NewForTesting())
	ctx := context.Background()

	problems, err := seeder.Verify(ctx)
	require.NoError(t, err)
	assert.Len(t, problems, len(DefaultTemplates()))

	_, err = seeder.Run(ctx, false)
	require.NoError(t, err)

	problems, err = seeder.Verify(ctx)
	require.NoError(t, err)
	assert.Empty(t, problems)

	tampered := target.templates["WORK_ORDER"]
	tampered.Stages = tampered.Stages[:1]
	target.templates["WORK_ORDER"] = tampered

	problems, err = seeder.Verify(ctx)
	require.NoError(t, err)
	require.Len(t, problems, 1)
	assert.Contains(t, problems[0], "WORK_ORDER: has 1 stages")
}
