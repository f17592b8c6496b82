package testutil

import (
	"time"

	"github.com/davidmoltin/efiling-workflows/internal/models"
	"github.com/google/uuid"
)

// FixtureBuilder provides methods to create test fixtures
type FixtureBuilder struct{}

// NewFixtureBuilder creates a new fixture builder
func NewFixtureBuilder() *FixtureBuilder {
	return &FixtureBuilder{}
}

// User creates an active directory user holding role
func (fb *FixtureBuilder) User(role string, overrides ...func(*models.User)) *models.User {
	id := uuid.New()
	u := &models.User{
		ID:     id,
		Name:   role + " " + id.String()[:4],
		Role:   role,
		Active: true,
	}
	for _, override := range overrides {
		override(u)
	}
	return u
}

// Template creates a template with one stage per role, in order, each
// with a 48 hour SLA
func (fb *FixtureBuilder) Template(roles []string, overrides ...func(*models.WorkflowTemplate)) *models.WorkflowTemplate {
	id := uuid.New()
	tmpl := &models.WorkflowTemplate{
		ID:          id,
		Code:        "TEST_" + id.String()[:8],
		Name:        "Test approval chain",
		Description: StringPtr("Test template"),
		CreatedAt:   time.Now(),
	}
	for i, role := range roles {
		tmpl.Stages = append(tmpl.Stages, models.StageDefinition{
			ID:           uuid.New(),
			TemplateID:   id,
			Order:        i + 1,
			Name:         role + " review",
			RequiredRole: role,
			SLAHours:     48,
		})
	}
	for _, override := range overrides {
		override(tmpl)
	}
	return tmpl
}

// File creates a file owned by creator
func (fb *FixtureBuilder) File(creator uuid.UUID, overrides ...func(*models.File)) *models.File {
	id := uuid.New()
	now := time.Now()
	f := &models.File{
		ID:         id,
		FileNumber: "EF-TEST-" + id.String()[:8],
		Subject:    "Test file",
		CreatedBy:  creator,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	for _, override := range overrides {
		override(f)
	}
	return f
}

// Notification creates an unread notification for userID about fileID
func (fb *FixtureBuilder) Notification(userID, fileID uuid.UUID, overrides ...func(*models.Notification)) *models.Notification {
	n := &models.Notification{
		ID:             uuid.New(),
		UserID:         userID,
		FileID:         fileID,
		Type:           models.NotificationAssigned,
		Message:        "A file awaits your action",
		Priority:       models.PriorityNormal,
		ActionRequired: true,
		CreatedAt:      time.Now(),
	}
	for _, override := range overrides {
		override(n)
	}
	return n
}

// StringPtr returns a pointer to a string
func StringPtr(s string) *string {
	return &s
}

// TimePtr returns a pointer to a time.Time
func TimePtr(t time.Time) *time.Time {
	return &t
}

// UUIDPtr returns a pointer to a UUID
func UUIDPtr(id uuid.UUID) *uuid.UUID {
	return &id
}
