package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/davidmoltin/efiling-workflows/internal/engine"
	"github.com/davidmoltin/efiling-workflows/internal/models"
	"github.com/davidmoltin/efiling-workflows/internal/repository"
	"github.com/davidmoltin/efiling-workflows/pkg/config"
	"github.com/davidmoltin/efiling-workflows/pkg/logger"
	"github.com/davidmoltin/efiling-workflows/pkg/metrics"
	"github.com/google/uuid"
)

const (
	defaultNotificationLimit = 50
	maxNotificationLimit     = 200
)

// NotificationStore persists in-app notifications
type NotificationStore interface {
	CreateNotification(ctx context.Context, n *models.Notification) error
	ListNotifications(ctx context.Context, userID uuid.UUID, unreadOnly bool, limit int) ([]models.Notification, error)
	MarkNotificationRead(ctx context.Context, id, userID uuid.UUID) error
}

// Broadcaster is a pub/sub sink. *database.RedisClient satisfies it.
type Broadcaster interface {
	Publish(ctx context.Context, channel string, message interface{}) error
}

// NotificationEnvelope is the message published for each notification
type NotificationEnvelope struct {
	Title        string              `json:"title"`
	Notification models.Notification `json:"notification"`
}

// NotificationService stores notifications and fans them out to the
// delivery channel
type NotificationService struct {
	store       NotificationStore
	broadcaster Broadcaster
	channel     string
	templates   *NotificationTemplates
	metrics     *metrics.Metrics
	logger      *logger.Logger
}

// NewNotificationService creates a new notification service. broadcaster
// may be nil, in which case notifications are only stored.
func NewNotificationService(
	cfg *config.NotificationConfig,
	store NotificationStore,
	broadcaster Broadcaster,
	m *metrics.Metrics,
	log *logger.Logger,
) (*NotificationService, error) {
	templates, err := loadNotificationTemplates()
	if err != nil {
		return nil, fmt.Errorf("failed to load notification templates: %w", err)
	}

	return &NotificationService{
		store:       store,
		broadcaster: broadcaster,
		channel:     cfg.Channel,
		templates:   templates,
		metrics:     m,
		logger:      log,
	}, nil
}

// UserChannel is the per-user channel a notification is also published on
func (s *NotificationService) UserChannel(userID uuid.UUID) string {
	return s.channel + ":" + userID.String()
}

// Publish implements engine.NotificationPublisher. Every notification is
// published on the shared channel and on its recipient's channel.
func (s *NotificationService) Publish(ctx context.Context, notifications []*models.Notification) error {
	if s.broadcaster == nil {
		return nil
	}

	var errs []error
	for _, n := range notifications {
		if err := s.publishOne(ctx, n); err != nil {
			s.logger.Errorf("Failed to publish notification %s: %v", n.ID, err)
			s.metrics.NotificationPublished("error")
			errs = append(errs, err)
			continue
		}
		s.metrics.NotificationPublished("ok")
	}

	if len(errs) > 0 {
		return fmt.Errorf("notification publish errors: %w", errors.Join(errs...))
	}
	return nil
}

func (s *NotificationService) publishOne(ctx context.Context, n *models.Notification) error {
	title, err := s.templates.Title(n)
	if err != nil {
		return err
	}

	payload, err := json.Marshal(NotificationEnvelope{Title: title, Notification: *n})
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	if err := s.broadcaster.Publish(ctx, s.channel, payload); err != nil {
		return fmt.Errorf("failed to publish on %s: %w", s.channel, err)
	}
	if err := s.broadcaster.Publish(ctx, s.UserChannel(n.UserID), payload); err != nil {
		return fmt.Errorf("failed to publish on user channel: %w", err)
	}
	return nil
}

// Notify stores a notification outside any workflow transaction and
// publishes it. A publish failure is logged, not returned.
func (s *NotificationService) Notify(ctx context.Context, n *models.Notification) error {
	if err := s.store.CreateNotification(ctx, n); err != nil {
		return fmt.Errorf("failed to store notification: %w", err)
	}
	s.metrics.NotificationCreated(string(n.Type))

	if err := s.Publish(ctx, []*models.Notification{n}); err != nil {
		s.logger.Warnf("Notification %s stored but not published: %v", n.ID, err)
	}
	return nil
}

// List returns a user's notifications, newest first
func (s *NotificationService) List(ctx context.Context, userID uuid.UUID, unreadOnly bool, limit int) ([]models.Notification, error) {
	if limit <= 0 {
		limit = defaultNotificationLimit
	}
	if limit > maxNotificationLimit {
		limit = maxNotificationLimit
	}

	notifications, err := s.store.ListNotifications(ctx, userID, unreadOnly, limit)
	if err != nil {
		return nil, engine.Internal(err, "failed to list notifications")
	}
	if notifications == nil {
		notifications = []models.Notification{}
	}
	return notifications, nil
}

// MarkRead marks one of the user's notifications as read
func (s *NotificationService) MarkRead(ctx context.Context, id, userID uuid.UUID) error {
	err := s.store.MarkNotificationRead(ctx, id, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return engine.NotFound("notification %s not found", id)
	}
	if err != nil {
		return engine.Internal(err, "failed to mark notification %s read", id)
	}
	return nil
}

var _ engine.NotificationPublisher = (*NotificationService)(nil)
