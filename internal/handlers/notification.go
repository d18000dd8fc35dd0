package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/adi-253/duochat/internal/models"
	"github.com/adi-253/duochat/internal/services"
)

// NotificationHandler serves a user's notification inbox.
type NotificationHandler struct {
	notifications *services.NotificationService
}

func NewNotificationHandler(notifications *services.NotificationService) *NotificationHandler {
	return &NotificationHandler{notifications: notifications}
}

// List handles GET /api/notifications/{owner}
func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	resp, err := h.notifications.List(r.Context(), chi.URLParam(r, "owner"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// UnreadCount handles GET /api/notifications/unread/{owner}
func (h *NotificationHandler) UnreadCount(w http.ResponseWriter, r *http.Request) {
	n, err := h.notifications.UnreadCount(r.Context(), chi.URLParam(r, "owner"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, models.UnreadCountResponse{UnreadCount: n})
}

// MarkRead handles POST /api/notifications/mark-read
func (h *NotificationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	var req models.MarkReadRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	remaining, err := h.notifications.MarkRead(r.Context(), req.Owner, req.IDs)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, models.MarkReadResponse{OK: true, UnreadCount: remaining})
}
