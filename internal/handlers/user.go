package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/adi-253/duochat/internal/models"
	"github.com/adi-253/duochat/internal/services"
)

// UserHandler exposes presence over REST.
type UserHandler struct {
	chat *services.ChatService
}

func NewUserHandler(chat *services.ChatService) *UserHandler {
	return &UserHandler{chat: chat}
}

// Statuses handles GET /api/users/statuses
func (h *UserHandler) Statuses(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, models.UserStatusesResponse{Statuses: h.chat.Statuses()})
}

// Status handles GET /api/users/{username}/status
func (h *UserHandler) Status(w http.ResponseWriter, r *http.Request) {
	st, err := h.chat.Status(chi.URLParam(r, "username"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}
