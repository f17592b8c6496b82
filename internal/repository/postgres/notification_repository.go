package postgres

import (
	"context"
	"fmt"

	"github.com/davidmoltin/efiling-workflows/internal/models"
	"github.com/google/uuid"
)

// NotificationRepository stores in-app notifications
type NotificationRepository struct {
	db queryer
}

// NewNotificationRepository creates a new notification repository
func NewNotificationRepository(db queryer) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// CreateNotification inserts one notification
func (r *NotificationRepository) CreateNotification(ctx context.Context, n *models.Notification) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO notifications (
			id, user_id, file_id, workflow_id, type, message, priority,
			action_required, is_read, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		n.ID, n.UserID, n.FileID, n.WorkflowID, n.Type, n.Message, n.Priority,
		n.ActionRequired, n.IsRead, n.CreatedAt,
	)
	if err != nil {
		return wrapErr(err, "failed to create notification for %s", n.UserID)
	}
	return nil
}

// ListNotifications returns a user's notifications, newest first
func (r *NotificationRepository) ListNotifications(ctx context.Context, userID uuid.UUID, unreadOnly bool, limit int) ([]models.Notification, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, file_id, workflow_id, type, message, priority,
		       action_required, is_read, created_at
		FROM notifications
		WHERE user_id = $1 AND (NOT $2 OR NOT is_read)
		ORDER BY created_at DESC
		LIMIT $3`, userID, unreadOnly, limit)
	if err != nil {
		return nil, wrapErr(err, "failed to list notifications of %s", userID)
	}
	defer rows.Close()

	var out []models.Notification
	for rows.Next() {
		var n models.Notification
		if err := rows.Scan(
			&n.ID, &n.UserID, &n.FileID, &n.WorkflowID, &n.Type, &n.Message, &n.Priority,
			&n.ActionRequired, &n.IsRead, &n.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// MarkNotificationRead marks a notification owned by userID as read
func (r *NotificationRepository) MarkNotificationRead(ctx context.Context, id, userID uuid.UUID) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE notifications SET is_read = TRUE WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return wrapErr(err, "failed to mark notification %s read", id)
	}
	return expectOne(result, "notification "+id.String())
}
