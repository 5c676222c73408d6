package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"opsdesk/internal/domain"
)

// MemoryNotificationsRepository in-memory NotificationsRepository for tests.
type MemoryNotificationsRepository struct {
	mu            sync.RWMutex
	notifications map[string]*domain.Notification
}

func NewMemoryNotificationsRepository() *MemoryNotificationsRepository {
	return &MemoryNotificationsRepository{notifications: make(map[string]*domain.Notification)}
}

var _ NotificationsRepository = (*MemoryNotificationsRepository)(nil)

func (r *MemoryNotificationsRepository) CreateNotification(ctx context.Context, n *domain.Notification) (string, error) {
	if n.UserID == "" {
		return "", fmt.Errorf("%w: user_id is required", domain.ErrValidation)
	}
	if n.NotificationID == "" {
		n.NotificationID = uuid.NewString()
	}
	n.CreatedAt = time.Now().UTC()

	r.mu.Lock()
	defer r.mu.Unlock()
	c := *n
	r.notifications[n.NotificationID] = &c
	return n.NotificationID, nil
}

func (r *MemoryNotificationsRepository) ListNotifications(ctx context.Context, userID string, unreadOnly bool, limit, offset int) ([]*domain.Notification, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	r.mu.RLock()
	var matched []*domain.Notification
	for _, n := range r.notifications {
		if n.UserID != userID {
			continue
		}
		if unreadOnly && n.IsRead {
			continue
		}
		c := *n
		matched = append(matched, &c)
	}
	r.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })

	if offset >= len(matched) {
		return nil, nil
	}
	end := offset + limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[offset:end], nil
}

func (r *MemoryNotificationsRepository) UnreadCount(ctx context.Context, userID string) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	count := 0
	for _, n := range r.notifications {
		if n.UserID == userID && !n.IsRead {
			count++
		}
	}
	return count, nil
}

func (r *MemoryNotificationsRepository) MarkRead(ctx context.Context, userID, notificationID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.notifications[notificationID]
	if !ok || n.UserID != userID {
		return fmt.Errorf("notification %s: %w", notificationID, domain.ErrNotFound)
	}
	n.IsRead = true
	return nil
}

func (r *MemoryNotificationsRepository) MarkAllRead(ctx context.Context, userID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	flipped := 0
	for _, n := range r.notifications {
		if n.UserID == userID && !n.IsRead {
			n.IsRead = true
			flipped++
		}
	}
	return flipped, nil
}
