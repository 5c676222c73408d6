package repository

import (
	"context"

	"opsdesk/internal/domain"
)

// NotificationsRepository data access for the notification inbox. Rows are
// written only by the fan-out; clients just read and mark.
type NotificationsRepository interface {
	CreateNotification(ctx context.Context, n *domain.Notification) (string, error)

	ListNotifications(ctx context.Context, userID string, unreadOnly bool, limit, offset int) ([]*domain.Notification, error)

	UnreadCount(ctx context.Context, userID string) (int, error)

	// MarkRead marks one notification owned by userID. ErrNotFound when the
	// id is unknown or belongs to someone else.
	MarkRead(ctx context.Context, userID, notificationID string) error

	// MarkAllRead returns the number of rows flipped.
	MarkAllRead(ctx context.Context, userID string) (int, error)
}
