package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/adi-253/duochat/internal/models"
	"github.com/adi-253/duochat/internal/services"
)

type TaskDraftHandler struct {
	drafts *services.TaskDraftService
}

func NewTaskDraftHandler(drafts *services.TaskDraftService) *TaskDraftHandler {
	return &TaskDraftHandler{drafts: drafts}
}

// Get handles GET /api/task-drafts/{owner}
// A user without a draft gets {"owner": ..., "task": null}.
func (h *TaskDraftHandler) Get(w http.ResponseWriter, r *http.Request) {
	draft, err := h.drafts.Get(r.Context(), chi.URLParam(r, "owner"))
	if err != nil {
		writeError(w, err)
		return
	}
	if draft.ID == "" {
		writeJSON(w, http.StatusOK, map[string]any{"owner": draft.Owner, "task": nil})
		return
	}
	writeJSON(w, http.StatusOK, draft)
}

// Save handles POST /api/task-drafts
func (h *TaskDraftHandler) Save(w http.ResponseWriter, r *http.Request) {
	var req models.UpsertTaskDraftRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	draft, err := h.drafts.Save(r.Context(), req.Owner, req.Task)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, draft)
}
