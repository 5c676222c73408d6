package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"opsdesk/internal/domain"
	"opsdesk/internal/repository"
)

// Pusher delivers a payload to a user's live connections. Best-effort; a user
// with no open connections is not an error.
type Pusher interface {
	Push(userID string, payload any)
}

// NotificationService the notification inbox plus live push. Rows are written
// only through Notify, in response to lifecycle transitions.
type NotificationService interface {
	Notify(ctx context.Context, userID, kind, message, sourceType, sourceID string) error
	List(ctx context.Context, userID string, unreadOnly bool, limit, offset int) ([]*domain.Notification, error)
	UnreadCount(ctx context.Context, userID string) (int, error)
	MarkRead(ctx context.Context, userID, notificationID string) error
	MarkAllRead(ctx context.Context, userID string) (int, error)
}

type notificationService struct {
	notifications repository.NotificationsRepository
	pusher        Pusher
	logger        *zap.Logger
}

// NewNotificationService pusher may be nil when no live feed is wired.
func NewNotificationService(notifications repository.NotificationsRepository, pusher Pusher, logger *zap.Logger) NotificationService {
	return &notificationService{notifications: notifications, pusher: pusher, logger: logger}
}

func (s *notificationService) Notify(ctx context.Context, userID, kind, message, sourceType, sourceID string) error {
	if userID == "" {
		// Entities without an owner have nobody to notify.
		return nil
	}

	n := &domain.Notification{
		UserID:     userID,
		Kind:       kind,
		Message:    message,
		SourceType: sourceType,
		SourceID:   sourceID,
	}
	if _, err := s.notifications.CreateNotification(ctx, n); err != nil {
		return fmt.Errorf("create notification: %w", err)
	}

	if s.pusher != nil {
		s.pusher.Push(userID, map[string]any{
			"type":         "notification",
			"notification": n,
		})
	}
	return nil
}

func (s *notificationService) List(ctx context.Context, userID string, unreadOnly bool, limit, offset int) ([]*domain.Notification, error) {
	return s.notifications.ListNotifications(ctx, userID, unreadOnly, limit, offset)
}

func (s *notificationService) UnreadCount(ctx context.Context, userID string) (int, error) {
	return s.notifications.UnreadCount(ctx, userID)
}

func (s *notificationService) MarkRead(ctx context.Context, userID, notificationID string) error {
	return s.notifications.MarkRead(ctx, userID, notificationID)
}

func (s *notificationService) MarkAllRead(ctx context.Context, userID string) (int, error) {
	return s.notifications.MarkAllRead(ctx, userID)
}
