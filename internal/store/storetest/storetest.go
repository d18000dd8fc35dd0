// Package storetest holds behaviour checks shared by every store.Store
// backend. Backend packages call Run from their own tests.
package storetest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adi-253/duochat/internal/apperr"
	"github.com/adi-253/duochat/internal/conversation"
	"github.com/adi-253/duochat/internal/models"
	"github.com/adi-253/duochat/internal/store"
)

// Factory returns a fresh, empty store for one subtest.
type Factory func(t *testing.T) store.Store

// Run exercises s against the store.Store contract.
func Run(t *testing.T, newStore Factory) {
	tests := []struct {
		name string
		fn   func(t *testing.T, s store.Store)
	}{
		{"InsertAndGetMessage", testInsertAndGetMessage},
		{"GetMissingMessage", testGetMissingMessage},
		{"ListMessagesOrderAndPaging", testListMessagesOrderAndPaging},
		{"AdvanceStatusIsMonotonic", testAdvanceStatusIsMonotonic},
		{"ListAwaitingStatus", testListAwaitingStatus},
		{"UpdateContent", testUpdateContent},
		{"AddDeletedForIsIdempotent", testAddDeletedForIsIdempotent},
		{"MarkDeletedForEveryone", testMarkDeletedForEveryone},
		{"UpdateContentAfterDeleteForEveryone", testUpdateContentAfterDeleteForEveryone},
		{"Notifications", testNotifications},
		{"Notes", testNotes},
		{"TaskDrafts", testTaskDrafts},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newStore(t)
			t.Cleanup(func() { _ = s.Close() })
			tt.fn(t, s)
		})
	}
}

func textMessage(sender, recipient, content string) *models.Message {
	return &models.Message{
		Sender:         sender,
		Recipient:      recipient,
		ConversationID: conversation.ID(sender, recipient),
		Type:           models.MessageTypeText,
		Content:        content,
	}
}

func sampleTask() models.Task {
	return models.Task{
		"title": "Onboarding",
		"screens": []any{
			map[string]any{"id": "s1", "fields": []any{map[string]any{"type": "text", "label": "Name"}}},
		},
	}
}

func insert(t *testing.T, s store.Store, m *models.Message) *models.Message {
	t.Helper()
	require.NoError(t, s.InsertMessage(context.Background(), m))
	require.NotEmpty(t, m.ID)
	return m
}

func testInsertAndGetMessage(t *testing.T, s store.Store) {
	ctx := context.Background()
	m := textMessage("alice", "bob", "hi")
	m.Attachments = []models.Attachment{{URL: "http://x/1.png", Filename: "1.png", Size: 12}}
	m.ReplyTo = models.StrPtr("parent")
	insert(t, s, m)

	assert.Equal(t, models.StatusSent, m.Status)
	assert.False(t, m.CreatedAt.IsZero())

	got, err := s.GetMessage(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, "hi", got.Content)
	assert.Equal(t, "alice::bob", got.ConversationID)
	assert.Equal(t, models.StatusSent, got.Status)
	require.Len(t, got.Attachments, 1)
	assert.Equal(t, models.DefaultAttachmentProvider, got.Attachments[0].Provider)
	require.NotNil(t, got.ReplyTo)
	assert.Equal(t, "parent", *got.ReplyTo)
	assert.Nil(t, got.ForwardedFrom)
	assert.Empty(t, got.DeletedFor)
	assert.Nil(t, got.EditedAt)

	task := &models.Message{
		Sender:         "alice",
		Recipient:      "bob",
		ConversationID: conversation.ID("alice", "bob"),
		Type:           models.MessageTypeTask,
		Content:        "ignored",
		Task:           sampleTask(),
	}
	insert(t, s, task)
	got, err = s.GetMessage(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, models.MessageTypeTask, got.Type)
	assert.Empty(t, got.Content)
	assert.Equal(t, "Onboarding", got.Task.Title())
	require.NoError(t, got.Task.Validate())
}

func testGetMissingMessage(t *testing.T, s store.Store) {
	_, err := s.GetMessage(context.Background(), "does-not-exist")
	require.Error(t, err)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func testListMessagesOrderAndPaging(t *testing.T, s store.Store) {
	ctx := context.Background()
	var ids []string
	for _, c := range []string{"one", "two", "three", "four"} {
		m := insert(t, s, textMessage("alice", "bob", c))
		ids = append(ids, m.ID)
		time.Sleep(2 * time.Millisecond)
	}
	insert(t, s, textMessage("alice", "carol", "elsewhere"))

	all, err := s.ListMessages(ctx, conversation.ID("bob", "alice"), store.ListOptions{})
	require.NoError(t, err)
	require.Len(t, all, 4)
	for i, m := range all {
		assert.Equal(t, ids[i], m.ID)
	}

	last, err := s.ListMessages(ctx, "alice::bob", store.ListOptions{Limit: 2})
	require.NoError(t, err)
	require.Len(t, last, 2)
	assert.Equal(t, "three", last[0].Content)
	assert.Equal(t, "four", last[1].Content)

	before, err := s.ListMessages(ctx, "alice::bob", store.ListOptions{Before: all[2].CreatedAt, Limit: 1})
	require.NoError(t, err)
	require.Len(t, before, 1)
	assert.Equal(t, "two", before[0].Content)

	empty, err := s.ListMessages(ctx, "nobody::noone", store.ListOptions{})
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func testAdvanceStatusIsMonotonic(t *testing.T, s store.Store) {
	ctx := context.Background()
	m := insert(t, s, textMessage("alice", "bob", "hi"))

	changed, err := s.AdvanceStatus(ctx, m.ID, models.StatusDelivered)
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = s.AdvanceStatus(ctx, m.ID, models.StatusDelivered)
	require.NoError(t, err)
	assert.False(t, changed, "repeating a transition is a no-op")

	changed, err = s.AdvanceStatus(ctx, m.ID, models.StatusRead)
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = s.AdvanceStatus(ctx, m.ID, models.StatusDelivered)
	require.NoError(t, err)
	assert.False(t, changed, "read never regresses")

	got, err := s.GetMessage(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusRead, got.Status)

	_, err = s.AdvanceStatus(ctx, "missing", models.StatusRead)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func testListAwaitingStatus(t *testing.T, s store.Store) {
	ctx := context.Background()
	toBob := insert(t, s, textMessage("alice", "bob", "to bob"))
	insert(t, s, textMessage("bob", "alice", "to alice"))
	delivered := insert(t, s, textMessage("alice", "bob", "delivered"))
	_, err := s.AdvanceStatus(ctx, delivered.ID, models.StatusDelivered)
	require.NoError(t, err)

	pending, err := s.ListAwaitingStatus(ctx, "alice::bob", "bob", models.StatusDelivered)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, toBob.ID, pending[0].ID)

	unread, err := s.ListAwaitingStatus(ctx, "alice::bob", "bob", models.StatusRead)
	require.NoError(t, err)
	assert.Len(t, unread, 2)
}

func testUpdateContent(t *testing.T, s store.Store) {
	ctx := context.Background()
	m := insert(t, s, textMessage("alice", "bob", "hi"))

	editedAt := time.Now().UTC().Truncate(time.Millisecond)
	got, err := s.UpdateContent(ctx, m.ID, "hello", editedAt)
	require.NoError(t, err)
	assert.Equal(t, "hello", got.Content)
	require.NotNil(t, got.EditedAt)
	assert.WithinDuration(t, editedAt, *got.EditedAt, time.Millisecond)

	got, err = s.UpdateContent(ctx, m.ID, "hello again", editedAt.Add(time.Second))
	require.NoError(t, err)
	assert.Equal(t, "hello again", got.Content)
	assert.Equal(t, m.ID, got.ID)

	all, err := s.ListMessages(ctx, "alice::bob", store.ListOptions{})
	require.NoError(t, err)
	assert.Len(t, all, 1)

	_, err = s.UpdateContent(ctx, "missing", "x", editedAt)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func testAddDeletedForIsIdempotent(t *testing.T, s store.Store) {
	ctx := context.Background()
	m := insert(t, s, textMessage("alice", "bob", "hi"))

	_, err := s.AddDeletedFor(ctx, m.ID, "bob")
	require.NoError(t, err)
	got, err := s.AddDeletedFor(ctx, m.ID, "bob")
	require.NoError(t, err)
	assert.Equal(t, []string{"bob"}, got.DeletedFor)
	assert.Equal(t, "hi", got.Content)

	_, err = s.AddDeletedFor(ctx, "missing", "bob")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func testMarkDeletedForEveryone(t *testing.T, s store.Store) {
	ctx := context.Background()
	m := textMessage("alice", "bob", "secret")
	m.Attachments = []models.Attachment{{URL: "http://x/1.png"}}
	insert(t, s, m)

	got, err := s.MarkDeletedForEveryone(ctx, m.ID)
	require.NoError(t, err)
	assert.True(t, got.IsDeletedEveryone)

	got, err = s.GetMessage(ctx, m.ID)
	require.NoError(t, err)
	assert.True(t, got.IsDeletedEveryone)
	assert.Empty(t, got.Content)
	assert.Empty(t, got.Attachments)
	assert.Nil(t, got.Task)
}

func testUpdateContentAfterDeleteForEveryone(t *testing.T, s store.Store) {
	ctx := context.Background()
	m := insert(t, s, textMessage("alice", "bob", "secret"))

	_, err := s.MarkDeletedForEveryone(ctx, m.ID)
	require.NoError(t, err)

	_, err = s.UpdateContent(ctx, m.ID, "resurrected", time.Now().UTC())
	assert.ErrorIs(t, err, store.ErrTombstoned)
	assert.ErrorIs(t, err, apperr.ErrValidation)

	got, err := s.GetMessage(ctx, m.ID)
	require.NoError(t, err)
	assert.True(t, got.IsDeletedEveryone)
	assert.Empty(t, got.Content)
	assert.Nil(t, got.EditedAt)
}

func testNotifications(t *testing.T, s store.Store) {
	ctx := context.Background()
	var ids []string
	for i := 0; i < 3; i++ {
		n := &models.Notification{
			Owner: "bob",
			Actor: models.StrPtr("alice"),
			Type:  models.NotificationMessage,
			Title: "Message from alice",
			Body:  "hi",
			Data:  map[string]any{"messageId": "m", "conversationId": "alice::bob"},
		}
		require.NoError(t, s.InsertNotification(ctx, n))
		ids = append(ids, n.ID)
		time.Sleep(2 * time.Millisecond)
	}
	require.NoError(t, s.InsertNotification(ctx, &models.Notification{Owner: "carol", Type: models.NotificationTask}))

	list, err := s.ListNotifications(ctx, "bob", 2)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, ids[2], list[0].ID, "newest first")
	assert.Equal(t, "alice::bob", list[0].Data["conversationId"])
	require.NotNil(t, list[0].Actor)
	assert.Equal(t, "alice", *list[0].Actor)

	unread, err := s.CountUnread(ctx, "bob")
	require.NoError(t, err)
	assert.EqualValues(t, 3, unread)

	// carol's id must not be touched through bob
	carol, err := s.ListNotifications(ctx, "carol", 10)
	require.NoError(t, err)
	require.Len(t, carol, 1)

	matched, err := s.MarkNotificationsRead(ctx, "bob", []string{ids[0], ids[1], carol[0].ID})
	require.NoError(t, err)
	assert.EqualValues(t, 2, matched)

	unread, err = s.CountUnread(ctx, "bob")
	require.NoError(t, err)
	assert.EqualValues(t, 1, unread)

	unread, err = s.CountUnread(ctx, "carol")
	require.NoError(t, err)
	assert.EqualValues(t, 1, unread)
}

func testNotes(t *testing.T, s store.Store) {
	ctx := context.Background()
	require.NoError(t, s.InsertNote(ctx, &models.PersonalNote{Username: "alice", Content: "first"}))
	time.Sleep(2 * time.Millisecond)
	require.NoError(t, s.InsertNote(ctx, &models.PersonalNote{Username: "alice", Content: "second"}))
	require.NoError(t, s.InsertNote(ctx, &models.PersonalNote{Username: "bob", Content: "other"}))

	notes, err := s.ListNotes(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, notes, 2)
	assert.Equal(t, "first", notes[0].Content)
	assert.Equal(t, "second", notes[1].Content)
	assert.NotEmpty(t, notes[0].ID)

	none, err := s.ListNotes(ctx, "nobody")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func testTaskDrafts(t *testing.T, s store.Store) {
	ctx := context.Background()
	_, err := s.GetTaskDraft(ctx, "alice")
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	first, err := s.UpsertTaskDraft(ctx, "alice", models.Task{"title": "v1"})
	require.NoError(t, err)
	assert.Equal(t, "v1", first.Task.Title())

	second, err := s.UpsertTaskDraft(ctx, "alice", models.Task{"title": "v2", "description": "whole replace"})
	require.NoError(t, err)
	assert.Equal(t, "v2", second.Task.Title())

	got, err := s.GetTaskDraft(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "alice", got.Owner)
	assert.Equal(t, "v2", got.Task.Title())
	assert.Equal(t, "whole replace", got.Task["description"])
}
