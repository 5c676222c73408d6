package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"opsdesk/internal/domain"
)

// PostgresNotificationsRepository notification inbox repository.
type PostgresNotificationsRepository struct {
	db *sql.DB
}

func NewPostgresNotificationsRepository(db *sql.DB) *PostgresNotificationsRepository {
	return &PostgresNotificationsRepository{db: db}
}

var _ NotificationsRepository = (*PostgresNotificationsRepository)(nil)

func (r *PostgresNotificationsRepository) CreateNotification(ctx context.Context, n *domain.Notification) (string, error) {
	if n.UserID == "" {
		return "", fmt.Errorf("%w: user_id is required", domain.ErrValidation)
	}
	if n.NotificationID == "" {
		n.NotificationID = uuid.NewString()
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO notifications (notification_id, user_id, kind, message, source_type, source_id, is_read)
		VALUES ($1::uuid, $2, $3, $4, $5, $6, false)
	`, n.NotificationID, n.UserID, n.Kind, n.Message, n.SourceType, n.SourceID)
	if err != nil {
		return "", fmt.Errorf("failed to create notification: %w", err)
	}
	return n.NotificationID, nil
}

func (r *PostgresNotificationsRepository) ListNotifications(ctx context.Context, userID string, unreadOnly bool, limit, offset int) ([]*domain.Notification, error) {
	if limit <= 0 {
		limit = 200
	}
	if offset < 0 {
		offset = 0
	}

	query := `
		SELECT notification_id::text, user_id, kind, message, source_type, source_id, is_read, created_at
		FROM notifications
		WHERE user_id = $1
	`
	args := []any{userID}
	if unreadOnly {
		query += " AND is_read = false"
	}
	query += " ORDER BY created_at DESC LIMIT $2 OFFSET $3"
	args = append(args, limit, offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	defer rows.Close()

	var list []*domain.Notification
	for rows.Next() {
		var n domain.Notification
		err := rows.Scan(&n.NotificationID, &n.UserID, &n.Kind, &n.Message,
			&n.SourceType, &n.SourceID, &n.IsRead, &n.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		list = append(list, &n)
	}
	return list, rows.Err()
}

func (r *PostgresNotificationsRepository) UnreadCount(ctx context.Context, userID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND is_read = false`,
		userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count unread notifications: %w", err)
	}
	return count, nil
}

func (r *PostgresNotificationsRepository) MarkRead(ctx context.Context, userID, notificationID string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE notifications SET is_read = true WHERE notification_id = $1::uuid AND user_id = $2`,
		notificationID, userID)
	if err != nil {
		return fmt.Errorf("failed to mark notification read: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("notification %s: %w", notificationID, domain.ErrNotFound)
	}
	return nil
}

func (r *PostgresNotificationsRepository) MarkAllRead(ctx context.Context, userID string) (int, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE notifications SET is_read = true WHERE user_id = $1 AND is_read = false`,
		userID)
	if err != nil {
		return 0, fmt.Errorf("failed to mark notifications read: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return int(affected), nil
}
