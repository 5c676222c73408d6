package httpapi

import (
	"net/http"
	"strings"

	"go.uber.org/zap"

	"opsdesk/internal/service"
)

// NotificationsHandler routes /notifications/*. Every endpoint is scoped to
// the authenticated user.
type NotificationsHandler struct {
	notifications service.NotificationService
	healthy       service.HealthSource
	logger        *zap.Logger
}

func NewNotificationsHandler(notifications service.NotificationService, healthy service.HealthSource, logger *zap.Logger) *NotificationsHandler {
	return &NotificationsHandler{notifications: notifications, healthy: healthy, logger: logger}
}

func (h *NotificationsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.URL.Path == "/notifications":
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.list(w, r)
	case r.URL.Path == "/notifications/unread-count":
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.unreadCount(w, r)
	case r.URL.Path == "/notifications/mark-read":
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.markAllRead(w, r)
	case strings.HasPrefix(r.URL.Path, "/notifications/") && strings.HasSuffix(r.URL.Path, "/mark-read"):
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		id := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/notifications/"), "/mark-read")
		if id == "" || strings.Contains(id, "/") {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		h.markRead(w, r, id)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *NotificationsHandler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	notifications, err := h.notifications.List(r.Context(), UserID(r.Context()),
		q.Get("unread_only") == "true", parseInt(q.Get("limit"), 50), parseInt(q.Get("offset"), 0))
	if err != nil {
		writeError(w, h.logger, h.healthy, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"notifications": notifications})
}

func (h *NotificationsHandler) unreadCount(w http.ResponseWriter, r *http.Request) {
	count, err := h.notifications.UnreadCount(r.Context(), UserID(r.Context()))
	if err != nil {
		writeError(w, h.logger, h.healthy, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"unread": count})
}

func (h *NotificationsHandler) markAllRead(w http.ResponseWriter, r *http.Request) {
	flipped, err := h.notifications.MarkAllRead(r.Context(), UserID(r.Context()))
	if err != nil {
		writeError(w, h.logger, h.healthy, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"marked": flipped})
}

func (h *NotificationsHandler) markRead(w http.ResponseWriter, r *http.Request, id string) {
	if err := h.notifications.MarkRead(r.Context(), UserID(r.Context()), id); err != nil {
		writeError(w, h.logger, h.healthy, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"marked": 1})
}
