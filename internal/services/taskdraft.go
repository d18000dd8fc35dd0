package services

import (
	"context"

	"github.com/adi-253/duochat/internal/apperr"
	"github.com/adi-253/duochat/internal/models"
	"github.com/adi-253/duochat/internal/store"
)

// TaskDraftService stores the one task each user is composing. Drafts are
// replaced whole on every save and are not validated like sent tasks.
type TaskDraftService struct {
	store store.TaskDraftStore
}

func NewTaskDraftService(st store.TaskDraftStore) *TaskDraftService {
	return &TaskDraftService{store: st}
}

// Get returns the owner's draft. A user without a draft gets a draft with
// a nil task rather than an error.
func (s *TaskDraftService) Get(ctx context.Context, owner string) (*models.TaskDraft, error) {
	if owner == "" {
		return nil, apperr.Validation("owner is required")
	}
	d, err := s.store.GetTaskDraft(ctx, owner)
	if apperr.KindOf(err) == apperr.KindNotFound {
		return &models.TaskDraft{Owner: owner}, nil
	}
	return d, err
}

// Save replaces the owner's draft with task.
func (s *TaskDraftService) Save(ctx context.Context, owner string, task models.Task) (*models.TaskDraft, error) {
	if owner == "" || task == nil {
		return nil, apperr.Validation("owner and task are required")
	}
	return s.store.UpsertTaskDraft(ctx, owner, task)
}
