package services

import (
	"bytes"
	"fmt"
	"text/template"

	"github.com/davidmoltin/efiling-workflows/internal/models"
)

// Titles shown by delivery channels above the notification message
const (
	workflowStartedTitle = `{{if .ActionRequired}}Action required: {{end}}File entered workflow`
	workflowActionTitle  = `{{if .ActionRequired}}Action required: {{end}}File updated`
	fileAssignedTitle    = `Action required: file assigned to you`
	slaBreachedTitle     = `{{if eq .Priority "HIGH"}}Urgent: {{end}}File overdue at its current stage`
)

// NotificationTemplates holds the parsed title templates per notification type
type NotificationTemplates struct {
	byType map[models.NotificationType]*template.Template
}

func loadNotificationTemplates() (*NotificationTemplates, error) {
	sources := map[models.NotificationType]string{
		models.NotificationWorkflowStarted: workflowStartedTitle,
		models.NotificationWorkflowAction:  workflowActionTitle,
		models.NotificationAssigned:        fileAssignedTitle,
		models.NotificationSLABreached:     slaBreachedTitle,
	}

	t := &NotificationTemplates{byType: make(map[models.NotificationType]*template.Template, len(sources))}
	for kind, src := range sources {
		tmpl, err := template.New(string(kind)).Parse(src)
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s title template: %w", kind, err)
		}
		t.byType[kind] = tmpl
	}
	return t, nil
}

// Title renders the title of n
func (t *NotificationTemplates) Title(n *models.Notification) (string, error) {
	tmpl, ok := t.byType[n.Type]
	if !ok {
		return "", fmt.Errorf("no title template for notification type %s", n.Type)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, n); err != nil {
		return "", fmt.Errorf("failed to render %s title: %w", n.Type, err)
	}
	return buf.String(), nil
}
