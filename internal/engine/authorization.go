package engine

import (
	"strings"

	"github.com/davidmoltin/efiling-workflows/internal/models"
)

// Authorizer decides whether an actor may act on a workflow's current stage
type Authorizer struct {
	adminRoles map[string]struct{}
}

// NewAuthorizer creates an authorizer. Holders of adminRoles may act on
// any stage.
func NewAuthorizer(adminRoles []string) *Authorizer {
	roles := make(map[string]struct{}, len(adminRoles))
	for _, r := range adminRoles {
		roles[normalizeRole(r)] = struct{}{}
	}
	return &Authorizer{adminRoles: roles}
}

// CanAct reports whether actor is the current assignee, holds the stage's
// required role (and department, when the stage names one) or holds an
// administrative role.
func (a *Authorizer) CanAct(actor models.Actor, wf *models.WorkflowInstance, stage *models.StageDefinition) bool {
	if wf.CurrentAssigneeID != nil && *wf.CurrentAssigneeID == actor.ID {
		return true
	}

	if a.IsAdmin(actor) {
		return true
	}

	if normalizeRole(actor.Role) != normalizeRole(stage.RequiredRole) {
		return false
	}
	if stage.RequiredDepartment == nil {
		return true
	}
	return actor.Department != nil && normalizeRole(*actor.Department) == normalizeRole(*stage.RequiredDepartment)
}

// IsAdmin reports whether the actor holds an administrative override role
func (a *Authorizer) IsAdmin(actor models.Actor) bool {
	_, ok := a.adminRoles[normalizeRole(actor.Role)]
	return ok
}

func normalizeRole(role string) string {
	return strings.ToUpper(strings.TrimSpace(role))
}
