package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/josho007237-max/bn88Yoyo-sub000/internal/middleware"
	"github.com/josho007237-max/bn88Yoyo-sub000/internal/storage"
	"github.com/josho007237-max/bn88Yoyo-sub000/pkg/logger"
)

// NotificationHandler handles the operator notification feed.
type NotificationHandler struct {
	store  storage.Store
	logger *logger.Logger
}

// NewNotificationHandler creates a new notification handler.
func NewNotificationHandler(store storage.Store, log *logger.Logger) *NotificationHandler {
	return &NotificationHandler{
		store:  store,
		logger: log,
	}
}

// List handles GET /api/v1/notifications
func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := middleware.GetTenantID(ctx)

	f := storage.NotificationFilter{Limit: 50}

	if l := r.URL.Query().Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 && parsed <= 200 {
			f.Limit = parsed
		}
	}
	if r.URL.Query().Get("unread") == "true" {
		f.UnreadOnly = true
	}

	notifications, err := h.store.ListNotifications(ctx, tenantID, f)
	if err != nil {
		h.logger.Error("failed to list notifications", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list notifications")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"notifications": notifications,
		"count":         len(notifications),
	})
}

// MarkRead handles POST /api/v1/notifications/{id}/read
func (h *NotificationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := middleware.GetTenantID(ctx)
	userID := middleware.GetUserID(ctx)
	id := chi.URLParam(r, "id")

	n, err := h.store.MarkNotificationRead(ctx, tenantID, id, userID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "notification not found")
			return
		}
		h.logger.Error("failed to mark notification read",
			zap.String("notification_id", id),
			zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to mark notification read")
		return
	}

	writeJSON(w, http.StatusOK, n)
}
