package services

import (
	"context"

	"github.com/adi-253/duochat/internal/apperr"
	"github.com/adi-253/duochat/internal/models"
	"github.com/adi-253/duochat/internal/store"
)

// NoteService keeps personal notes: text a user writes to themself. Notes
// never touch sockets or delivery status.
type NoteService struct {
	store store.NoteStore
}

func NewNoteService(st store.NoteStore) *NoteService {
	return &NoteService{store: st}
}

// Save stores a new note for username.
func (s *NoteService) Save(ctx context.Context, username, content string) (*models.PersonalNote, error) {
	if username == "" || content == "" {
		return nil, apperr.Validation("username and content are required")
	}
	n := &models.PersonalNote{Username: username, Content: content}
	if err := s.store.InsertNote(ctx, n); err != nil {
		return nil, err
	}
	return n, nil
}

// List returns username's notes, oldest first.
func (s *NoteService) List(ctx context.Context, username string) ([]models.PersonalNote, error) {
	if username == "" {
		return nil, apperr.Validation("username is required")
	}
	return s.store.ListNotes(ctx, username)
}
