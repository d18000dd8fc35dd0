// Package store declares the persistence contracts of the chat backend.
// Backends live in the memstore, sqlstore and mongostore subpackages.
package store

import (
	"context"
	"time"

	"github.com/adi-253/duochat/internal/apperr"
	"github.com/adi-253/duochat/internal/models"
)

// ErrNotFound is returned when a referenced document does not exist.
var ErrNotFound = apperr.NotFound("not found")

// ErrTombstoned is returned when a message deleted for everyone is modified.
var ErrTombstoned = apperr.Validation("message was deleted")

// ListOptions pages through a conversation's history. Messages are always
// returned oldest first.
type ListOptions struct {
	// Limit caps the number of messages, keeping the newest ones. 0 means all.
	Limit int
	// Before restricts the page to messages created strictly before it.
	Before time.Time
}

// MessageStore persists direct messages.
type MessageStore interface {
	// InsertMessage assigns ID and timestamps and persists m.
	InsertMessage(ctx context.Context, m *models.Message) error
	GetMessage(ctx context.Context, id string) (*models.Message, error)
	ListMessages(ctx context.Context, conversationID string, opts ListOptions) ([]models.Message, error)

	// ListAwaitingStatus returns messages in the conversation addressed to
	// recipient whose status ranks below target.
	ListAwaitingStatus(ctx context.Context, conversationID, recipient string, target models.DeliveryStatus) ([]models.Message, error)

	// AdvanceStatus moves the message to target only if its persisted status
	// ranks below target. It reports whether the row changed.
	AdvanceStatus(ctx context.Context, id string, target models.DeliveryStatus) (bool, error)

	// UpdateContent replaces the text of a message. It fails with
	// ErrTombstoned, and changes nothing, once the message was deleted for
	// everyone.
	UpdateContent(ctx context.Context, id, content string, editedAt time.Time) (*models.Message, error)

	// AddDeletedFor adds username to the message's deletedFor set. Adding
	// the same user twice is a no-op.
	AddDeletedFor(ctx context.Context, id, username string) (*models.Message, error)

	// MarkDeletedForEveryone tombstones the message: the flag is set and the
	// content, task and attachments are cleared.
	MarkDeletedForEveryone(ctx context.Context, id string) (*models.Message, error)
}

// NotificationStore persists per-owner notifications.
type NotificationStore interface {
	InsertNotification(ctx context.Context, n *models.Notification) error
	// ListNotifications returns the owner's newest notifications first.
	ListNotifications(ctx context.Context, owner string, limit int) ([]models.Notification, error)
	CountUnread(ctx context.Context, owner string) (int64, error)
	// MarkNotificationsRead marks the given ids read, ignoring ids that
	// belong to another owner. It returns the number of rows matched.
	MarkNotificationsRead(ctx context.Context, owner string, ids []string) (int64, error)
}

// NoteStore persists personal notes.
type NoteStore interface {
	InsertNote(ctx context.Context, n *models.PersonalNote) error
	ListNotes(ctx context.Context, username string) ([]models.PersonalNote, error)
}

// TaskDraftStore persists at most one task draft per owner.
type TaskDraftStore interface {
	GetTaskDraft(ctx context.Context, owner string) (*models.TaskDraft, error)
	// UpsertTaskDraft replaces the owner's draft as a whole.
	UpsertTaskDraft(ctx context.Context, owner string, task models.Task) (*models.TaskDraft, error)
}

// Store is the full persistence surface of the backend.
type Store interface {
	MessageStore
	NotificationStore
	NoteStore
	TaskDraftStore
	Close() error
}

// ApplyListOptions trims an oldest-first slice to the page described by opts.
func ApplyListOptions(msgs []models.Message, opts ListOptions) []models.Message {
	if !opts.Before.IsZero() {
		end := len(msgs)
		for i, m := range msgs {
			if !m.CreatedAt.Before(opts.Before) {
				end = i
				break
			}
		}
		msgs = msgs[:end]
	}
	if opts.Limit > 0 && len(msgs) > opts.Limit {
		msgs = msgs[len(msgs)-opts.Limit:]
	}
	return msgs
}
