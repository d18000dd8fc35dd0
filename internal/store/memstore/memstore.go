// Package memstore is an in-memory store.Store. Nothing survives a restart;
// it backs local development and tests.
package memstore

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/adi-253/duochat/internal/models"
	"github.com/adi-253/duochat/internal/store"
)

// Store keeps every collection in maps guarded by one RWMutex.
type Store struct {
	mu sync.RWMutex

	messages map[string]*models.Message
	// byConversation keeps message ids in insertion order per conversation
	byConversation map[string][]string

	notifications map[string]*models.Notification
	notes         []models.PersonalNote
	drafts        map[string]*models.TaskDraft

	now func() time.Time
}

var _ store.Store = (*Store)(nil)

// New creates an empty Store.
func New() *Store {
	return &Store{
		messages:       make(map[string]*models.Message),
		byConversation: make(map[string][]string),
		notifications:  make(map[string]*models.Notification),
		drafts:         make(map[string]*models.TaskDraft),
		now:            func() time.Time { return time.Now().UTC() },
	}
}

func newID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

func cloneMessage(m *models.Message) models.Message {
	c := *m
	c.Attachments = slices.Clone(m.Attachments)
	c.DeletedFor = slices.Clone(m.DeletedFor)
	if m.EditedAt != nil {
		t := *m.EditedAt
		c.EditedAt = &t
	}
	return c
}

func (s *Store) InsertMessage(_ context.Context, m *models.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m.Normalize()
	m.ID = newID()
	now := s.now()
	m.CreatedAt, m.UpdatedAt = now, now

	stored := cloneMessage(m)
	s.messages[m.ID] = &stored
	s.byConversation[m.ConversationID] = append(s.byConversation[m.ConversationID], m.ID)
	return nil
}

func (s *Store) GetMessage(_ context.Context, id string) (*models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.messages[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	c := cloneMessage(m)
	return &c, nil
}

func (s *Store) ListMessages(_ context.Context, conversationID string, opts store.ListOptions) ([]models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.byConversation[conversationID]
	out := make([]models.Message, 0, len(ids))
	for _, id := range ids {
		out = append(out, cloneMessage(s.messages[id]))
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return store.ApplyListOptions(out, opts), nil
}

func (s *Store) ListAwaitingStatus(_ context.Context, conversationID, recipient string, target models.DeliveryStatus) ([]models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.Message
	for _, id := range s.byConversation[conversationID] {
		m := s.messages[id]
		if m.Recipient == recipient && m.Status.Advances(target) {
			out = append(out, cloneMessage(m))
		}
	}
	return out, nil
}

func (s *Store) AdvanceStatus(_ context.Context, id string, target models.DeliveryStatus) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.messages[id]
	if !ok {
		return false, store.ErrNotFound
	}
	if !m.Status.Advances(target) {
		return false, nil
	}
	m.Status = target
	m.UpdatedAt = s.now()
	return true, nil
}

// mutate applies fn to the stored message under the write lock.
// A non-nil error from fn aborts without touching the message.
func (s *Store) mutate(id string, fn func(m *models.Message) error) (*models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.messages[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	if err := fn(m); err != nil {
		return nil, err
	}
	m.UpdatedAt = s.now()
	c := cloneMessage(m)
	return &c, nil
}

func (s *Store) UpdateContent(_ context.Context, id, content string, editedAt time.Time) (*models.Message, error) {
	return s.mutate(id, func(m *models.Message) error {
		if m.IsDeletedEveryone {
			return store.ErrTombstoned
		}
		m.Content = content
		m.EditedAt = &editedAt
		return nil
	})
}

func (s *Store) AddDeletedFor(_ context.Context, id, username string) (*models.Message, error) {
	return s.mutate(id, func(m *models.Message) error {
		if !m.DeletedForUser(username) {
			m.DeletedFor = append(m.DeletedFor, username)
		}
		return nil
	})
}

func (s *Store) MarkDeletedForEveryone(_ context.Context, id string) (*models.Message, error) {
	return s.mutate(id, func(m *models.Message) error {
		m.IsDeletedEveryone = true
		m.Content = ""
		m.Task = nil
		m.Attachments = []models.Attachment{}
		return nil
	})
}

func (s *Store) InsertNotification(_ context.Context, n *models.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	n.ID = newID()
	now := s.now()
	n.CreatedAt, n.UpdatedAt = now, now
	if n.Data == nil {
		n.Data = map[string]any{}
	}
	stored := *n
	s.notifications[n.ID] = &stored
	return nil
}

func (s *Store) ListNotifications(_ context.Context, owner string, limit int) ([]models.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.Notification
	for _, n := range s.notifications {
		if n.Owner == owner {
			out = append(out, *n)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) CountUnread(_ context.Context, owner string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int64
	for _, n := range s.notifications {
		if n.Owner == owner && !n.Read {
			count++
		}
	}
	return count, nil
}

func (s *Store) MarkNotificationsRead(_ context.Context, owner string, ids []string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var matched int64
	now := s.now()
	for _, id := range ids {
		n, ok := s.notifications[id]
		if !ok || n.Owner != owner {
			continue
		}
		matched++
		n.Read = true
		n.UpdatedAt = now
	}
	return matched, nil
}

func (s *Store) InsertNote(_ context.Context, n *models.PersonalNote) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	n.ID = newID()
	now := s.now()
	n.CreatedAt, n.UpdatedAt = now, now
	s.notes = append(s.notes, *n)
	return nil
}

func (s *Store) ListNotes(_ context.Context, username string) ([]models.PersonalNote, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []models.PersonalNote{}
	for _, n := range s.notes {
		if n.Username == username {
			out = append(out, n)
		}
	}
	return out, nil
}

func (s *Store) GetTaskDraft(_ context.Context, owner string) (*models.TaskDraft, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, ok := s.drafts[owner]
	if !ok {
		return nil, store.ErrNotFound
	}
	c := *d
	return &c, nil
}

func (s *Store) UpsertTaskDraft(_ context.Context, owner string, task models.Task) (*models.TaskDraft, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	d, ok := s.drafts[owner]
	if !ok {
		d = &models.TaskDraft{ID: newID(), Owner: owner, CreatedAt: now}
		s.drafts[owner] = d
	}
	d.Task = task
	d.UpdatedAt = now
	c := *d
	return &c, nil
}

func (s *Store) Close() error { return nil }
