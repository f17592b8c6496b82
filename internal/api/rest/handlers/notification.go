package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/davidmoltin/efiling-workflows/internal/models"
	"github.com/davidmoltin/efiling-workflows/pkg/logger"
	"github.com/google/uuid"
)

// NotificationReader is the notification service surface the handlers use
type NotificationReader interface {
	List(ctx context.Context, userID uuid.UUID, unreadOnly bool, limit int) ([]models.Notification, error)
	MarkRead(ctx context.Context, id, userID uuid.UUID) error
}

// NotificationHandler serves the caller's own notifications
type NotificationHandler struct {
	logger        *logger.Logger
	notifications NotificationReader
}

// NewNotificationHandler creates a new notification handler
func NewNotificationHandler(log *logger.Logger, notifications NotificationReader) *NotificationHandler {
	return &NotificationHandler{logger: log, notifications: notifications}
}

// List handles GET /api/v1/notifications?unread=true&limit=50
func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	unreadOnly, _ := strconv.ParseBool(r.URL.Query().Get("unread"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	notifications, err := h.notifications.List(r.Context(), actor.ID, unreadOnly, limit)
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"notifications": notifications,
		"count":         len(notifications),
	})
}

// MarkRead handles POST /api/v1/notifications/{id}/read
func (h *NotificationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	if err := h.notifications.MarkRead(r.Context(), id, actor.ID); err != nil {
		respondServiceError(w, h.logger, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
